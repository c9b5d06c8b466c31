package matchmaking

import (
	"container/list"
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/geoduel/internal/model"
	"github.com/mcoot/geoduel/internal/services/game"
)

// DefaultInterval is how often the queue is matched
const DefaultInterval = 500 * time.Millisecond

// PlayerLookup resolves queued connection ids to live players
type PlayerLookup interface {
	Get(id model.ConnID) (*model.Player, bool)
}

// Queue holds players waiting for a public game. Entries keep insertion
// order; enqueue and dequeue are O(1).
type Queue struct {
	players PlayerLookup
	games   *game.Controller
	logger  *slog.Logger

	mu      sync.Mutex
	order   *list.List
	entries map[model.ConnID]*list.Element
}

// New creates an empty queue
func New(players PlayerLookup, games *game.Controller, logger *slog.Logger) *Queue {
	return &Queue{
		players: players,
		games:   games,
		logger:  logger,
		order:   list.New(),
		entries: make(map[model.ConnID]*list.Element),
	}
}

// Enqueue adds a player who is not in a session. It reports whether the
// player is queued afterwards.
func (q *Queue) Enqueue(player *model.Player) bool {
	if player.SessionID() != "" {
		return false
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.entries[player.ID]; !ok {
		q.entries[player.ID] = q.order.PushBack(player.ID)
	}
	player.SetQueued(true)
	return true
}

// Dequeue removes a player from the queue, if present
func (q *Queue) Dequeue(player *model.Player) {
	q.mu.Lock()
	q.remove(player.ID)
	q.mu.Unlock()
	player.SetQueued(false)
}

// Contains reports whether the connection is queued
func (q *Queue) Contains(id model.ConnID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.entries[id]
	return ok
}

// Len returns the number of queued connections
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.order.Len()
}

// remove drops an entry; mu must be held
func (q *Queue) remove(id model.ConnID) {
	if el, ok := q.entries[id]; ok {
		q.order.Remove(el)
		delete(q.entries, id)
	}
}

// snapshot returns queued ids in order
func (q *Queue) snapshot() []model.ConnID {
	q.mu.Lock()
	defer q.mu.Unlock()
	ids := make([]model.ConnID, 0, q.order.Len())
	for el := q.order.Front(); el != nil; el = el.Next() {
		ids = append(ids, el.Value.(model.ConnID))
	}
	return ids
}

// Tick matches queued players into public sessions:
// fill joinable sessions, auto-start ready ones, then open a new session
// when at least two players are still waiting.
func (q *Queue) Tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	sessions := q.games.Sessions()
	for _, session := range sessions {
		if q.Len() == 0 {
			break
		}
		if slots := session.OpenSlots(); slots > 0 {
			q.fill(session, slots)
		}
	}

	for _, session := range sessions {
		if !session.ReadyToAutoStart() {
			continue
		}
		if err := session.Start(); err != nil {
			q.logger.Warn("failed to auto-start session",
				slog.String("session_id", string(session.ID)),
				slog.String("error", err.Error()),
			)
		}
	}

	if q.Len() < 2 {
		return
	}

	session, err := q.games.CreatePublic()
	if err != nil {
		q.logger.Error("failed to create public session", slog.String("error", err.Error()))
		return
	}
	if q.fill(session, session.OpenSlots()) == 0 {
		q.games.Close(session)
		return
	}
	q.logger.Info("matched players into new session",
		slog.String("session_id", string(session.ID)),
		slog.Int("players", session.Info().Players),
	)
}

// fill moves up to n queued players into session and returns how many joined
func (q *Queue) fill(session *game.Session, n int) int {
	joined := 0
	for _, id := range q.snapshot() {
		if joined >= n {
			break
		}

		player, ok := q.players.Get(id)
		if !ok {
			q.drop(id)
			continue
		}

		err := session.AddPlayer(player, false)
		switch {
		case err == nil:
			q.drop(id)
			joined++
		case errors.Is(err, model.ErrAlreadyInSession):
			// Joined a game some other way since queueing
			q.drop(id)
		case errors.Is(err, model.ErrSessionFull):
			return joined
		default:
			q.logger.Warn("failed to add queued player",
				slog.String("session_id", string(session.ID)),
				slog.String("conn_id", string(id)),
				slog.String("error", err.Error()),
			)
			return joined
		}
	}
	return joined
}

func (q *Queue) drop(id model.ConnID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.remove(id)
}

// Run ticks every interval until ctx is done
func (q *Queue) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			q.Tick(ctx)
		}
	}
}
