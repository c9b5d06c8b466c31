package model

import (
	"regexp"
	"strings"
	"time"
)

// AccountID identifies a persisted account
type AccountID string

// InitialRating is the rating assigned to new accounts
const InitialRating = 1000

// Account is the persisted profile of a registered player
type Account struct {
	ID                 AccountID     `json:"id"`
	Username           string        `json:"username"`
	Secret             string        `json:"-"`
	Rating             int           `json:"rating"`
	Supporter          bool          `json:"supporter"`
	AllowFriendReq     bool          `json:"allowFriendReq"`
	TimeZone           string        `json:"timeZone,omitempty"`
	Streak             int           `json:"streak"`
	LastLogin          time.Time     `json:"lastLogin"`
	FirstLoginComplete bool          `json:"firstLoginComplete"`
	Duels              DuelStats     `json:"duels"`
	RatingToday        int           `json:"ratingToday"`
	RatingTodayDay     string        `json:"ratingTodayDay,omitempty"`
	RatingHistory      []RatingPoint `json:"ratingHistory,omitempty"`
	CreatedAt          time.Time     `json:"createdAt"`
}

// NewAccount returns an account with default preferences
func NewAccount(id AccountID, username, secret string, now time.Time) *Account {
	return &Account{
		ID:             id,
		Username:       username,
		Secret:         secret,
		Rating:         InitialRating,
		AllowFriendReq: true,
		CreatedAt:      now,
	}
}

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,30}$`)

// ValidUsername reports whether name has an acceptable account name shape
func ValidUsername(name string) bool {
	return usernamePattern.MatchString(name)
}

// NormalizedUsername is the key used for case-insensitive name lookups
func NormalizedUsername(username string) string {
	return strings.ToLower(username)
}

// DuelStats counts ranked duel outcomes
type DuelStats struct {
	Played int `json:"played"`
	Wins   int `json:"wins"`
	Losses int `json:"losses"`
	Tied   int `json:"tied"`
}

// RatingPoint is one entry of an account's rating history
type RatingPoint struct {
	Rating int       `json:"rating"`
	At     time.Time `json:"at"`
}

// RatingChange describes the result of one ranked duel for one account
type RatingChange struct {
	NewRating int
	OldRating int
	Draw      bool
	Winner    bool
	At        time.Time
}

// Apply folds the change into the account's rating fields and counters
func (a *Account) Apply(change RatingChange) {
	day := change.At.UTC().Format(time.DateOnly)
	if a.RatingTodayDay != day {
		a.RatingToday = 0
		a.RatingTodayDay = day
	}
	a.RatingToday += change.NewRating - change.OldRating
	a.Rating = change.NewRating
	a.RatingHistory = append(a.RatingHistory, RatingPoint{Rating: change.NewRating, At: change.At})

	a.Duels.Played++
	switch {
	case change.Draw:
		a.Duels.Tied++
	case change.Winner:
		a.Duels.Wins++
	default:
		a.Duels.Losses++
	}
}

// LoginUpdate is written on every successful verification
type LoginUpdate struct {
	LastLogin time.Time
	// TimeZone and Streak are only written when SetStreak is true
	TimeZone  string
	Streak    int
	SetStreak bool
}

// ApplyLogin folds the login update into the account
func (a *Account) ApplyLogin(u LoginUpdate) {
	a.LastLogin = u.LastLogin
	if u.SetStreak {
		a.TimeZone = u.TimeZone
		a.Streak = u.Streak
		a.FirstLoginComplete = true
	}
}
