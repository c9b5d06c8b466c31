package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Storage backends
const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
	StorageSQLite = "sqlite"
)

// Config is the server configuration, read from the environment
type Config struct {
	Host     string     `env:"GEODUEL_HOST"`
	Port     int        `env:"GEODUEL_PORT" envDefault:"8080"`
	LogLevel slog.Level `env:"GEODUEL_LOG_LEVEL" envDefault:"INFO"`

	Storage    string `env:"GEODUEL_STORAGE" envDefault:"memory"`
	RedisURL   string `env:"GEODUEL_REDIS_URL" envDefault:"redis://localhost:6379"`
	SQLitePath string `env:"GEODUEL_SQLITE_PATH" envDefault:"data/geoduel.db"`

	TickInterval      time.Duration `env:"GEODUEL_TICK_INTERVAL" envDefault:"100ms"`
	QueueInterval     time.Duration `env:"GEODUEL_QUEUE_INTERVAL" envDefault:"500ms"`
	HeartbeatInterval time.Duration `env:"GEODUEL_HEARTBEAT_INTERVAL" envDefault:"5s"`
	PongTimeout       time.Duration `env:"GEODUEL_PONG_TIMEOUT" envDefault:"60s"`

	Maintenance bool `env:"GEODUEL_MAINTENANCE"`

	// LocationsFile optionally extends the built-in location pool
	LocationsFile string `env:"GEODUEL_LOCATIONS_FILE"`
	// ExtraBadWords extend the chat profanity list
	ExtraBadWords []string `env:"GEODUEL_BAD_WORDS" envSeparator:","`
}

// Load reads the given .env files, if they exist, then parses the
// environment. Variables already set take precedence over the files.
func Load(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", f, err)
		}
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c Config) validate() error {
	switch c.Storage {
	case StorageMemory, StorageRedis, StorageSQLite:
	default:
		return fmt.Errorf("invalid storage %q: must be memory, redis or sqlite", c.Storage)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	for name, d := range map[string]time.Duration{
		"tick interval":      c.TickInterval,
		"queue interval":     c.QueueInterval,
		"heartbeat interval": c.HeartbeatInterval,
		"pong timeout":       c.PongTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	return nil
}
