package factory

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mcoot/geoduel/internal/config"
	"github.com/mcoot/geoduel/internal/dependencies/clock"
	"github.com/mcoot/geoduel/internal/dependencies/random"
	"github.com/mcoot/geoduel/internal/model"
	"github.com/mcoot/geoduel/internal/services/auth"
	"github.com/mcoot/geoduel/internal/services/chat"
	"github.com/mcoot/geoduel/internal/services/game"
	"github.com/mcoot/geoduel/internal/services/heartbeat"
	"github.com/mcoot/geoduel/internal/services/matchmaking"
	"github.com/mcoot/geoduel/internal/services/rating"
	"github.com/mcoot/geoduel/internal/services/registry"
	"github.com/mcoot/geoduel/internal/services/scoring"
	"github.com/mcoot/geoduel/internal/services/social"
	"github.com/mcoot/geoduel/internal/storage"
	"github.com/mcoot/geoduel/internal/storage/memory"
	redisstorage "github.com/mcoot/geoduel/internal/storage/redis"
	sqlitestorage "github.com/mcoot/geoduel/internal/storage/sqlite"
	"github.com/mcoot/geoduel/internal/transport/ws"
)

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
	StorageTypeSQLite = "sqlite"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.AccountStore

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Services
	Registry       *registry.Registry
	ScoringService *scoring.Service
	RatingUpdater  *rating.Updater
	ChatService    *chat.Service
	GameController *game.Controller
	Queue          *matchmaking.Queue
	AuthService    *auth.Service
	SocialService  *social.Service
	Heartbeat      *heartbeat.Monitor
	Dispatcher     *ws.Dispatcher
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory", "redis" or "sqlite")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// SQLiteConfig holds database settings (required if StorageType is "sqlite")
	SQLiteConfig *sqlitestorage.Config
	// HeartbeatConfig is optional; zero fields use heartbeat defaults
	HeartbeatConfig heartbeat.Config
	// ExtraLocations are added to the built-in world pool
	ExtraLocations []model.Location
	// ExtraBadWords extend the chat profanity list
	ExtraBadWords []string
	// Maintenance starts the server in maintenance mode
	Maintenance bool
}

// ConfigFrom maps server configuration onto a factory Config, loading
// the extra locations file if one is set
func ConfigFrom(c *config.Config, logger *slog.Logger) (Config, error) {
	cfg := Config{
		Logger:      logger,
		StorageType: c.Storage,
		HeartbeatConfig: heartbeat.Config{
			Interval:    c.HeartbeatInterval,
			PongTimeout: c.PongTimeout,
		},
		ExtraBadWords: c.ExtraBadWords,
		Maintenance:   c.Maintenance,
	}

	switch c.Storage {
	case StorageTypeRedis:
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = c.RedisURL
		cfg.RedisConfig = &redisCfg
	case StorageTypeSQLite:
		sqliteCfg := sqlitestorage.DefaultConfig()
		sqliteCfg.Path = c.SQLitePath
		cfg.SQLiteConfig = &sqliteCfg
	}

	if c.LocationsFile != "" {
		locs, err := game.LoadLocations(c.LocationsFile)
		if err != nil {
			return Config{}, err
		}
		cfg.ExtraLocations = locs
	}
	return cfg, nil
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	store, err := newStorage(cfg)
	if err != nil {
		return nil, err
	}

	// Create external dependencies
	clk := clock.New()
	rnd := random.New()

	app := newWithDependencies(
		store,
		clk,
		rnd,
		game.NewWorldProvider(rnd, cfg.ExtraLocations...),
		chat.NewProfanityFilter(cfg.ExtraBadWords...),
		cfg.HeartbeatConfig,
		logger,
	)
	if cfg.Maintenance {
		app.Dispatcher.SetMaintenance(true)
	}
	return app, nil
}

func newStorage(cfg Config) (storage.AccountStore, error) {
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		return memory.New(), nil
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		store, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		return store, nil
	case StorageTypeSQLite:
		if cfg.SQLiteConfig == nil {
			return nil, errors.New("SQLiteConfig required when StorageType is sqlite")
		}
		store, err := sqlitestorage.New(*cfg.SQLiteConfig)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite: %w", err)
		}
		return store, nil
	default:
		return nil, errors.New("invalid StorageType: must be 'memory', 'redis' or 'sqlite'")
	}
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	store storage.AccountStore,
	clk clock.Clock,
	rnd random.Random,
	locations game.LocationProvider,
	filter chat.Filter,
	heartbeatCfg heartbeat.Config,
	logger *slog.Logger,
) *App {
	players := registry.New(clk, rnd, logger)
	scoringService := scoring.New()
	ratingUpdater := rating.NewUpdater(store, players, clk, logger)
	chatService := chat.New(filter, clk)
	gameController := game.NewController(locations, scoringService, ratingUpdater, chatService, clk, rnd, logger)
	queue := matchmaking.New(players, gameController, logger)
	authService := auth.New(store, players, clk, rnd, logger)
	socialService := social.New(store, players, gameController, queue, clk, logger)
	monitor := heartbeat.New(players, clk, logger, heartbeatCfg)
	dispatcher := ws.NewDispatcher(players, authService, socialService, gameController, queue, clk, logger)

	// A closed connection leaves the queue before its session
	players.OnUnregister(queue.Dequeue)
	players.OnUnregister(func(p *model.Player) {
		gameController.Leave(p, true)
	})

	return &App{
		Storage:        store,
		Clock:          clk,
		Random:         rnd,
		Registry:       players,
		ScoringService: scoringService,
		RatingUpdater:  ratingUpdater,
		ChatService:    chatService,
		GameController: gameController,
		Queue:          queue,
		AuthService:    authService,
		SocialService:  socialService,
		Heartbeat:      monitor,
		Dispatcher:     dispatcher,
	}
}

// Close releases the storage backend
func (a *App) Close() error {
	return a.Storage.Close()
}
