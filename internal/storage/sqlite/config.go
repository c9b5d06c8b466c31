package sqlite

import "time"

// Config holds SQLite connection settings
type Config struct {
	// Path is the database file, or ":memory:" for a private in-memory database
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultConfig returns sensible defaults for a file-backed database
func DefaultConfig() Config {
	return Config{
		Path:            "data/geoduel.db",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// inMemory reports whether the path names a private in-memory database,
// which only lives as long as its single connection
func (c Config) inMemory() bool {
	return c.Path == ":memory:"
}
