package rating

import "math"

// ELO parameters
const (
	K            = 32  // rating change scale
	Spread       = 400 // rating gap at which the expected score is 10:1
	MinRating    = 100
	VictoryBonus = 10 // added to the winner on top of the regular change
	ScoreShare   = 5  // scales the share of the duel's points a player earned
)

// Result values for one side of a duel
const (
	Loss = 0.0
	Draw = 0.5
	Win  = 1.0
)

// Expected returns the expected score of a player rated r against other
func Expected(r, other int) float64 {
	qa := math.Pow(10, float64(r)/Spread)
	qb := math.Pow(10, float64(other)/Spread)
	return qa / (qa + qb)
}

// NewRating returns r after a duel against other with the given result,
// where points and otherPoints are the duel's final totals
func NewRating(r, other int, result float64, points, otherPoints int) int {
	share := 0.0
	if total := points + otherPoints; total > 0 {
		share = float64(points) / float64(total)
	}

	next := float64(r) + K*(result-Expected(r, other)) + ScoreShare*share + result*VictoryBonus
	return int(math.Round(math.Max(next, MinRating)))
}

// Outcomes computes both new ratings for a duel decided on points
func Outcomes(rating1, rating2, points1, points2 int) (int, int) {
	result1 := resultFor(points1, points2)
	return NewRating(rating1, rating2, result1, points1, points2),
		NewRating(rating2, rating1, 1-result1, points2, points1)
}

func resultFor(points, otherPoints int) float64 {
	switch {
	case points > otherPoints:
		return Win
	case points < otherPoints:
		return Loss
	}
	return Draw
}

// League names
const (
	LeagueBeginner = "Beginner"
	LeagueBronze   = "Bronze"
	LeagueSilver   = "Silver"
	LeagueGold     = "Gold"
	LeaguePlatinum = "Platinum"
)

var leagueFloors = []struct {
	min  int
	name string
}{
	{8000, LeaguePlatinum},
	{6000, LeagueGold},
	{4000, LeagueSilver},
	{2000, LeagueBronze},
}

// League returns the league label for a rating. Ratings above the top
// bracket stay in the top league.
func League(rating int) string {
	for _, l := range leagueFloors {
		if rating >= l.min {
			return l.name
		}
	}
	return LeagueBeginner
}
