package registry

import (
	"log/slog"
	"sync"

	"github.com/mcoot/geoduel/internal/dependencies/clock"
	"github.com/mcoot/geoduel/internal/dependencies/random"
	"github.com/mcoot/geoduel/internal/model"
)

// UnregisterFunc is called with a player that has just been removed
type UnregisterFunc func(player *model.Player)

// Registry tracks every live connection and the account each one holds
type Registry struct {
	clock  clock.Clock
	random random.Random
	logger *slog.Logger

	mu       sync.RWMutex
	players  map[model.ConnID]*model.Player
	accounts map[model.AccountID]model.ConnID
	claims   map[model.ConnID]model.AccountID

	callbacksMu sync.RWMutex
	callbacks   []UnregisterFunc
}

// New creates an empty registry
func New(clock clock.Clock, random random.Random, logger *slog.Logger) *Registry {
	return &Registry{
		clock:    clock,
		random:   random,
		logger:   logger,
		players:  make(map[model.ConnID]*model.Player),
		accounts: make(map[model.AccountID]model.ConnID),
		claims:   make(map[model.ConnID]model.AccountID),
	}
}

// OnUnregister adds a callback run synchronously by Unregister
func (r *Registry) OnUnregister(fn UnregisterFunc) {
	r.callbacksMu.Lock()
	defer r.callbacksMu.Unlock()
	r.callbacks = append(r.callbacks, fn)
}

// Register assigns a fresh connection id and records the player
func (r *Registry) Register(conn model.Conn) *model.Player {
	player := model.NewPlayer(model.ConnID(r.random.UUID()), conn, r.clock.Now())

	r.mu.Lock()
	r.players[player.ID] = player
	count := len(r.players)
	r.mu.Unlock()

	r.logger.Debug("connection registered",
		slog.String("conn_id", string(player.ID)),
		slog.Int("connections", count),
	)
	return player
}

// Unregister removes the player and runs every unregister callback before
// returning. It reports false if the id was not registered.
func (r *Registry) Unregister(id model.ConnID) bool {
	r.mu.Lock()
	player, ok := r.players[id]
	if ok {
		delete(r.players, id)
		if accountID, claimed := r.claims[id]; claimed {
			delete(r.claims, id)
			delete(r.accounts, accountID)
		}
	}
	r.mu.Unlock()

	if !ok {
		return false
	}

	r.callbacksMu.RLock()
	callbacks := append([]UnregisterFunc(nil), r.callbacks...)
	r.callbacksMu.RUnlock()

	for _, fn := range callbacks {
		fn(player)
	}

	r.logger.Debug("connection unregistered", slog.String("conn_id", string(id)))
	return true
}

// Get returns the player for a connection id
func (r *Registry) Get(id model.ConnID) (*model.Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	player, ok := r.players[id]
	return player, ok
}

// FindByAccount returns the live connection holding an account
func (r *Registry) FindByAccount(accountID model.AccountID) (*model.Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.accounts[accountID]
	if !ok {
		return nil, false
	}
	player, ok := r.players[id]
	return player, ok
}

// ClaimAccount binds an account to a connection. Only one live connection
// may hold an account; a second claim fails with ErrAccountInUse.
func (r *Registry) ClaimAccount(id model.ConnID, accountID model.AccountID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.players[id]; !ok {
		return model.ErrPlayerNotFound
	}
	if holder, ok := r.accounts[accountID]; ok && holder != id {
		return model.ErrAccountInUse
	}
	r.accounts[accountID] = id
	r.claims[id] = accountID
	return nil
}

// Broadcast sends msg to every player matching pred; a nil pred matches all
func (r *Registry) Broadcast(pred func(*model.Player) bool, msg any) {
	for _, player := range r.Snapshot() {
		if pred == nil || pred(player) {
			player.Send(msg)
		}
	}
}

// Count returns the number of live connections
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players)
}

// Snapshot returns the live players at the time of the call
func (r *Registry) Snapshot() []*model.Player {
	r.mu.RLock()
	defer r.mu.RUnlock()
	players := make([]*model.Player, 0, len(r.players))
	for _, p := range r.players {
		players = append(players, p)
	}
	return players
}
