package heartbeat

import (
	"context"
	"log/slog"
	"time"

	"github.com/mcoot/geoduel/internal/dependencies/clock"
	"github.com/mcoot/geoduel/internal/model"
)

// Players is the part of the connection registry the monitor reads
type Players interface {
	Snapshot() []*model.Player
	Count() int
}

// Config holds configuration for the heartbeat monitor
type Config struct {
	Interval    time.Duration
	PongTimeout time.Duration
}

// DefaultConfig returns default heartbeat configuration
func DefaultConfig() Config {
	return Config{
		Interval:    5 * time.Second,
		PongTimeout: 60 * time.Second,
	}
}

// Monitor pushes server time and online counts, and closes connections
// that stop answering
type Monitor struct {
	players Players
	clock   clock.Clock
	logger  *slog.Logger
	cfg     Config
}

// New creates a new heartbeat Monitor
func New(players Players, clock clock.Clock, logger *slog.Logger, cfg Config) *Monitor {
	def := DefaultConfig()
	if cfg.Interval == 0 {
		cfg.Interval = def.Interval
	}
	if cfg.PongTimeout == 0 {
		cfg.PongTimeout = def.PongTimeout
	}
	return &Monitor{
		players: players,
		clock:   clock,
		logger:  logger,
		cfg:     cfg,
	}
}

// Beat sends the server time to everyone and the online count to
// verified players who are not in a session
func (m *Monitor) Beat(now time.Time) {
	count := model.CountMessage{Type: model.MsgCount, Count: m.players.Count()}
	tick := model.TimeMessage{Type: model.MsgTime, Time: now.UnixMilli()}

	for _, p := range m.players.Snapshot() {
		if p.Identity().Verified && p.SessionID() == "" {
			p.Send(count)
		}
		p.Send(tick)
	}
}

// Sweep closes every connection whose last pong is older than the pong
// timeout. Closing ends the connection's read loop, which unregisters it.
func (m *Monitor) Sweep(now time.Time) int {
	closed := 0
	for _, p := range m.players.Snapshot() {
		if idle := now.Sub(p.LastPong()); idle > m.cfg.PongTimeout {
			m.logger.Info("closing unresponsive connection",
				slog.String("conn_id", string(p.ID)),
				slog.Duration("idle", idle),
			)
			p.Close()
			closed++
		}
	}
	return closed
}

// Run beats and sweeps every interval until ctx is done
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			now := m.clock.Now()
			m.Beat(now)
			m.Sweep(now)
		}
	}
}
