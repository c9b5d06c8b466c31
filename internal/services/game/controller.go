package game

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/mcoot/geoduel/internal/dependencies/clock"
	"github.com/mcoot/geoduel/internal/dependencies/random"
	"github.com/mcoot/geoduel/internal/model"
	"github.com/mcoot/geoduel/internal/services/chat"
	"github.com/mcoot/geoduel/internal/services/scoring"
)

const (
	// RoomCodeLength is the length of generated room codes
	RoomCodeLength = 6
	// RoomCodeAlphabet is the characters used in room codes
	RoomCodeAlphabet = "0123456789"

	maxCodeAttempts = 100
)

// Private session bounds
const (
	MinRounds       = 1
	MaxRounds       = 20
	MinTimePerRound = 10 * time.Second
	MaxTimePerRound = 300 * time.Second
)

// PrivateOptions are the host's choices for a private session
type PrivateOptions struct {
	Rounds       int
	TimePerRound time.Duration
	Location     string
	// MaxDist overrides the default scoring distance when positive
	MaxDist float64
}

// Controller owns every live session. The session map is guarded by mu;
// session state is guarded by each session's own lock.
type Controller struct {
	locations LocationProvider
	scorer    scoring.Scorer
	ratings   RatingSink
	chat      *chat.Service
	clock     clock.Clock
	random    random.Random
	logger    *slog.Logger

	mu       sync.RWMutex
	sessions map[model.SessionID]*Session
	codes    map[model.RoomCode]model.SessionID
	created  []model.SessionID
}

// NewController creates a new GameController
func NewController(
	locations LocationProvider,
	scorer scoring.Scorer,
	ratings RatingSink,
	chatService *chat.Service,
	clock clock.Clock,
	random random.Random,
	logger *slog.Logger,
) *Controller {
	return &Controller{
		locations: locations,
		scorer:    scorer,
		ratings:   ratings,
		chat:      chatService,
		clock:     clock,
		random:    random,
		logger:    logger,
		sessions:  make(map[model.SessionID]*Session),
		codes:     make(map[model.RoomCode]model.SessionID),
	}
}

// Creation

// CreatePublic creates an empty public session with default settings
func (c *Controller) CreatePublic() (*Session, error) {
	cfg := model.DefaultSessionConfig()
	locs, err := c.locations.Generate(cfg.Location, cfg.Rounds)
	if err != nil {
		return nil, err
	}

	session := c.newSession("", true, cfg, locs)
	c.mu.Lock()
	c.register(session)
	c.mu.Unlock()

	c.logger.Info("public session created", slog.String("session_id", string(session.ID)))
	return session, nil
}

// CreatePrivate creates a private session hosted by host
func (c *Controller) CreatePrivate(host *model.Player, opts PrivateOptions) (*Session, error) {
	if err := validatePrivate(opts); err != nil {
		return nil, err
	}
	if host.SessionID() != "" {
		return nil, model.ErrAlreadyInSession
	}

	cfg := model.DefaultSessionConfig()
	cfg.Rounds = opts.Rounds
	cfg.TimePerRound = opts.TimePerRound
	cfg.Location = opts.Location
	if opts.MaxDist > 0 {
		cfg.MaxDist = opts.MaxDist
	}

	locs, err := c.locations.Generate(cfg.Location, cfg.Rounds)
	if err != nil {
		return nil, err
	}
	if len(locs) == 0 {
		return nil, model.ErrUnknownLocationPool
	}
	if len(locs) < cfg.Rounds {
		c.logger.Warn("location pool smaller than requested rounds",
			slog.String("pool", cfg.Location),
			slog.Int("requested", cfg.Rounds),
			slog.Int("available", len(locs)),
		)
		cfg.Rounds = len(locs)
	}

	c.mu.Lock()
	code, err := c.newCode()
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	session := c.newSession(code, false, cfg, locs)
	c.register(session)
	c.mu.Unlock()

	if err := session.AddPlayer(host, true); err != nil {
		c.remove(session)
		return nil, err
	}

	c.logger.Info("private session created",
		slog.String("session_id", string(session.ID)),
		slog.String("code", string(code)),
		slog.String("host", string(host.ID)),
	)
	return session, nil
}

func validatePrivate(opts PrivateOptions) error {
	if opts.Rounds < MinRounds || opts.Rounds > MaxRounds {
		return model.ErrInvalidConfig
	}
	if opts.TimePerRound < MinTimePerRound || opts.TimePerRound > MaxTimePerRound {
		return model.ErrInvalidConfig
	}
	if opts.Location == "" || opts.MaxDist < 0 {
		return model.ErrInvalidConfig
	}
	return nil
}

func (c *Controller) newSession(code model.RoomCode, public bool, cfg model.SessionConfig, locs []model.Location) *Session {
	return newSession(
		model.SessionID(c.random.UUID()),
		code,
		public,
		cfg,
		locs,
		c.clock,
		c.scorer,
		c.ratings,
		c.logger,
	)
}

// newCode picks an unused room code; mu must be held
func (c *Controller) newCode() (model.RoomCode, error) {
	for range maxCodeAttempts {
		code := model.RoomCode(c.random.String(RoomCodeLength, RoomCodeAlphabet))
		if _, exists := c.codes[code]; !exists && code != "" {
			return code, nil
		}
	}
	return "", model.ErrInvalidRoomCode
}

// register adds a session; mu must be held
func (c *Controller) register(s *Session) {
	c.sessions[s.ID] = s
	c.created = append(c.created, s.ID)
	if s.Code != "" {
		c.codes[s.Code] = s.ID
	}
}

func (c *Controller) remove(s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, s.ID)
	c.created = slices.DeleteFunc(c.created, func(id model.SessionID) bool { return id == s.ID })
	if s.Code != "" && c.codes[s.Code] == s.ID {
		delete(c.codes, s.Code)
	}
}

// Lookup

// Get returns a session by id
func (c *Controller) Get(id model.SessionID) (*Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.sessions[id]
	return s, ok
}

// GetByCode resolves a private room code
func (c *Controller) GetByCode(code model.RoomCode) (*Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.codes[code]
	if !ok {
		return nil, false
	}
	s, ok := c.sessions[id]
	return s, ok
}

// SessionFor returns the session the player is currently in
func (c *Controller) SessionFor(player *model.Player) (*Session, bool) {
	id := player.SessionID()
	if id == "" {
		return nil, false
	}
	return c.Get(id)
}

// Sessions returns every live session in creation order
func (c *Controller) Sessions() []*Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Session, 0, len(c.created))
	for _, id := range c.created {
		out = append(out, c.sessions[id])
	}
	return out
}

// Count returns the number of live sessions
func (c *Controller) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sessions)
}

// CountByState tallies live sessions per state
func (c *Controller) CountByState() map[model.SessionState]int {
	counts := make(map[model.SessionState]int)
	for _, s := range c.Sessions() {
		counts[s.Info().State]++
	}
	return counts
}

// Player operations

// JoinByCode adds player to the private session with the given code
func (c *Controller) JoinByCode(player *model.Player, code model.RoomCode) (*Session, error) {
	session, ok := c.GetByCode(code)
	if !ok {
		return nil, model.ErrInvalidRoomCode
	}
	if err := session.AddPlayer(player, false); err != nil {
		return nil, err
	}
	return session, nil
}

// Leave removes player from their current session, if any
func (c *Controller) Leave(player *model.Player, socketClosed bool) {
	session, ok := c.SessionFor(player)
	if !ok {
		return
	}
	if session.RemovePlayer(player, socketClosed) {
		c.remove(session)
	}
}

// StartByHost starts the host's private session
func (c *Controller) StartByHost(player *model.Player) error {
	session, ok := c.SessionFor(player)
	if !ok {
		return model.ErrNotInSession
	}
	return session.StartByHost(player)
}

// Place records a guess in the player's current session
func (c *Controller) Place(player *model.Player, latLong model.LatLong, final bool, round *int) {
	if session, ok := c.SessionFor(player); ok {
		session.SetGuess(player.ID, latLong, final, round)
	}
}

// Chat filters message and broadcasts it in the player's session
func (c *Controller) Chat(player *model.Player, message string) {
	session, ok := c.SessionFor(player)
	if !ok {
		return
	}
	text, ok := c.chat.Prepare(player, message)
	if !ok {
		return
	}
	session.Chat(player, text)
}

// Ticking

// Tick advances every session whose deadline has passed
func (c *Controller) Tick(now time.Time) {
	for _, s := range c.Sessions() {
		if s.Advance(now) {
			c.remove(s)
		}
	}
}

// Run ticks every interval until ctx is done
func (c *Controller) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.Tick(c.clock.Now())
		}
	}
}

// Close shuts a session down and forgets it
func (c *Controller) Close(s *Session) {
	s.Shutdown()
	c.remove(s)
}

// ShutdownAll ends every session, e.g. on server stop
func (c *Controller) ShutdownAll() {
	for _, s := range c.Sessions() {
		c.Close(s)
	}
}
