package logger

import (
	"log/slog"
	"os"
)

// New returns a JSON structured logger writing to stdout. The level is
// read from QUORUM_LOG_LEVEL (debug, info, warn, error), defaulting to info.
func New() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(os.Getenv("QUORUM_LOG_LEVEL"))); err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
