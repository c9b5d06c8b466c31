package handler

import (
	"net/http"
	"slices"
	"strings"

	"github.com/gorilla/mux"

	"github.com/mcoot/geoduel/internal/api/apierr"
	"github.com/mcoot/geoduel/internal/api/response"
	"github.com/mcoot/geoduel/internal/model"
	"github.com/mcoot/geoduel/internal/services/game"
	"github.com/mcoot/geoduel/internal/services/matchmaking"
	"github.com/mcoot/geoduel/internal/services/registry"
	"github.com/mcoot/geoduel/internal/transport/ws"
)

// StatsHandler serves read-only views of live server state
type StatsHandler struct {
	players    *registry.Registry
	queue      *matchmaking.Queue
	games      *game.Controller
	dispatcher *ws.Dispatcher
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(
	players *registry.Registry,
	queue *matchmaking.Queue,
	games *game.Controller,
	dispatcher *ws.Dispatcher,
) *StatsHandler {
	return &StatsHandler{
		players:    players,
		queue:      queue,
		games:      games,
		dispatcher: dispatcher,
	}
}

// Stats handles GET /api/v1/stats
func (h *StatsHandler) Stats(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, response.Stats{
		Players:     h.players.Count(),
		Queued:      h.queue.Len(),
		Sessions:    h.games.CountByState(),
		Maintenance: h.dispatcher.Maintenance(),
	})
}

// Sessions handles GET /api/v1/sessions
func (h *StatsHandler) Sessions(w http.ResponseWriter, _ *http.Request) {
	sessions := h.games.Sessions()
	out := make([]response.Session, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, response.SessionFromInfo(s.Info()))
	}
	slices.SortFunc(out, func(a, b response.Session) int {
		return strings.Compare(a.ID, b.ID)
	})
	response.JSON(w, http.StatusOK, response.SessionList{Sessions: out})
}

// Session handles GET /api/v1/sessions/{code}
func (h *StatsHandler) Session(w http.ResponseWriter, r *http.Request) {
	code := model.RoomCode(mux.Vars(r)["code"])
	if len(code) != game.RoomCodeLength {
		apierr.WriteError(w, apierr.NewInvalidRequestError("code must be 6 digits"))
		return
	}

	session, ok := h.games.GetByCode(code)
	if !ok {
		apierr.WriteError(w, model.ErrInvalidRoomCode)
		return
	}
	response.JSON(w, http.StatusOK, response.SessionFromInfo(session.Info()))
}
