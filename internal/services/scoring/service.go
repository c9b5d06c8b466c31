package scoring

import (
	"math"

	"github.com/mcoot/geoduel/internal/model"
)

const (
	// EarthRadiusKm is the mean Earth radius used for great-circle distance
	EarthRadiusKm = 6371.0
	// MaxPoints is awarded for an exact guess
	MaxPoints = 5000
	// decay controls how quickly points fall off with distance
	decay = 10.0
)

// Scorer awards points for one guess against a round's target
type Scorer interface {
	Points(target model.Location, guess model.LatLong, usedHint bool, maxDist float64) int
}

// Service provides distance-based scoring for guesses
type Service struct{}

// New creates a new ScoringService
func New() *Service {
	return &Service{}
}

var _ Scorer = (*Service)(nil)

// Points decays exponentially with the distance between guess and target,
// relative to maxDist. Using a hint halves the result.
func (s *Service) Points(target model.Location, guess model.LatLong, usedHint bool, maxDist float64) int {
	if maxDist <= 0 {
		maxDist = model.DefaultMaxDist
	}

	dist := Distance(target.Lat, target.Long, guess[0], guess[1])
	pts := MaxPoints * math.Exp(-decay*dist/maxDist)
	if usedHint {
		pts /= 2
	}
	return int(math.Round(pts))
}

// Distance returns the haversine great-circle distance in kilometres
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
