package model

import "time"

// SessionID uniquely identifies a game session
type SessionID string

// RoomCode is the 6-digit code used to join private sessions
type RoomCode string

// SessionState represents the lifecycle state of a session
type SessionState string

const (
	SessionStateWaiting  SessionState = "waiting"  // Accepting joins, not started
	SessionStateGetReady SessionState = "getready" // Pause before a round
	SessionStateGuess    SessionState = "guess"    // Accepting guesses
	SessionStateEnd      SessionState = "end"      // Results shown, grace period
	SessionStateShutdown SessionState = "shutdown" // Terminal
)

// Location is a target coordinate
type Location struct {
	Lat     float64 `json:"lat"`
	Long    float64 `json:"long"`
	Country string  `json:"country,omitempty"`
}

// LatLong is a [lat, lng] pair as sent on the wire
type LatLong [2]float64

// Valid reports whether the pair is a real coordinate
func (ll LatLong) Valid() bool {
	return ll[0] >= -90 && ll[0] <= 90 && ll[1] >= -180 && ll[1] <= 180
}

// Guess is one player's guess for one round
type Guess struct {
	LatLong  LatLong       `json:"latLong"`
	Final    bool          `json:"final"`
	Elapsed  time.Duration `json:"elapsed"`
	UsedHint bool          `json:"usedHint"`
	Points   int           `json:"points"`
}

// Round holds one round's target and the guesses made for it
type Round struct {
	Location Location
	Guesses  map[ConnID]*Guess
}

// Member is a player's membership in a session
type Member struct {
	ID        ConnID    `json:"id"`
	Username  string    `json:"username"`
	AccountID AccountID `json:"-"`
	Rating    int       `json:"-"`
	Supporter bool      `json:"supporter"`
	Host      bool      `json:"host"`
	Score     int       `json:"score"`
	Final     bool      `json:"final"`
	JoinedAt  time.Time `json:"-"`
}

// SessionConfig holds the settings a session is created with
type SessionConfig struct {
	Rounds            int
	TimePerRound      time.Duration
	WaitBetweenRounds time.Duration
	MaxDist           float64
	MaxPlayers        int
	Location          string
}

// Session defaults
const (
	DefaultRounds            = 5
	DefaultTimePerRound      = 60 * time.Second
	DefaultWaitBetweenRounds = 10 * time.Second
	DefaultMaxDist           = 20000
	DefaultMaxPlayers        = 100
	DefaultLocationPool      = "all"

	// PublicPlayerCap caps public sessions regardless of MaxPlayers
	PublicPlayerCap = 10
)

// DefaultSessionConfig returns the configuration used for public sessions
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Rounds:            DefaultRounds,
		TimePerRound:      DefaultTimePerRound,
		WaitBetweenRounds: DefaultWaitBetweenRounds,
		MaxDist:           DefaultMaxDist,
		MaxPlayers:        DefaultMaxPlayers,
		Location:          DefaultLocationPool,
	}
}
