package clock

import "time"

// Clock is the time source for phase deadlines, throttles and liveness
// checks. Tests swap in mocks.MockClock to step time by hand.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock
type RealClock struct{}

// New returns the system clock
func New() *RealClock {
	return &RealClock{}
}

func (c *RealClock) Now() time.Time {
	return time.Now()
}
