package testutil

import (
	"io"
	"log/slog"
)

// NopLogger returns a logger for services under test; every record is
// dropped
func NopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
