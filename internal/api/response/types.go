package response

import (
	"github.com/mcoot/geoduel/internal/model"
	"github.com/mcoot/geoduel/internal/services/game"
)

// Health is the body of the health check
type Health struct {
	Status string `json:"status"`
}

// Stats summarises server load
type Stats struct {
	Players     int                        `json:"players"`
	Queued      int                        `json:"queued"`
	Sessions    map[model.SessionState]int `json:"sessions"`
	Maintenance bool                       `json:"maintenance"`
}

// Session is one live session in API responses
type Session struct {
	ID       string `json:"id"`
	Public   bool   `json:"public"`
	State    string `json:"state"`
	CurRound int    `json:"cur_round"`
	Rounds   int    `json:"rounds"`
	Players  int    `json:"players"`
	Ranked   bool   `json:"ranked"`
}

// SessionFromInfo converts a session summary. The room code is never
// exposed in listings.
func SessionFromInfo(info game.Info) Session {
	return Session{
		ID:       string(info.ID),
		Public:   info.Public,
		State:    string(info.State),
		CurRound: info.CurRound,
		Rounds:   info.Rounds,
		Players:  info.Players,
		Ranked:   info.Ranked,
	}
}

// SessionList is the response for the session listing
type SessionList struct {
	Sessions []Session `json:"sessions"`
}
