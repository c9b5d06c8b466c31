package scoring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/geoduel/internal/model"
)

type ServiceSuite struct {
	suite.Suite
	service *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.service = New()
}

var (
	london = model.Location{Lat: 51.5074, Long: -0.1278}
	paris  = model.LatLong{48.8566, 2.3522}
)

// Distance tests

func (s *ServiceSuite) TestDistanceSamePointIsZero() {
	s.InDelta(0, Distance(10, 20, 10, 20), 1e-9)
}

func (s *ServiceSuite) TestDistanceLondonParis() {
	s.InDelta(343.5, Distance(london.Lat, london.Long, paris[0], paris[1]), 1.0)
}

func (s *ServiceSuite) TestDistanceIsSymmetric() {
	a := Distance(-33.8688, 151.2093, 40.7128, -74.0060)
	b := Distance(40.7128, -74.0060, -33.8688, 151.2093)
	s.InDelta(a, b, 1e-6)
}

func (s *ServiceSuite) TestDistanceAntipodesIsHalfCircumference() {
	s.InDelta(math.Pi*EarthRadiusKm, Distance(0, 0, 0, 180), 1e-6)
}

// Points tests

func (s *ServiceSuite) TestExactGuessScoresMax() {
	guess := model.LatLong{london.Lat, london.Long}
	s.Equal(MaxPoints, s.service.Points(london, guess, false, model.DefaultMaxDist))
}

func (s *ServiceSuite) TestHintHalvesPoints() {
	guess := model.LatLong{london.Lat, london.Long}
	s.Equal(MaxPoints/2, s.service.Points(london, guess, true, model.DefaultMaxDist))
}

func (s *ServiceSuite) TestPointsDecayWithDistance() {
	dist := Distance(london.Lat, london.Long, paris[0], paris[1])
	want := int(math.Round(MaxPoints * math.Exp(-10*dist/model.DefaultMaxDist)))

	s.Equal(want, s.service.Points(london, paris, false, model.DefaultMaxDist))
	s.Less(s.service.Points(london, model.LatLong{40.7128, -74.0060}, false, model.DefaultMaxDist), want)
}

func (s *ServiceSuite) TestSmallerMaxDistIsStricter() {
	wide := s.service.Points(london, paris, false, model.DefaultMaxDist)
	narrow := s.service.Points(london, paris, false, 1000)
	s.Less(narrow, wide)
}

func (s *ServiceSuite) TestZeroMaxDistUsesDefault() {
	s.Equal(
		s.service.Points(london, paris, false, model.DefaultMaxDist),
		s.service.Points(london, paris, false, 0),
	)
}
