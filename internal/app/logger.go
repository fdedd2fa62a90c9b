package app

import (
	"io"
	"log/slog"
)

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// newLogger builds the host logger from the CLI's level and format choices.
// The CLI validates both before this runs; anything unrecognized falls back
// to info-level text output. The instance is never installed globally, so
// embedders keep their own default logger.
func newLogger(level, format string, out io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if lvl, ok := logLevels[level]; ok {
		opts.Level = lvl
	}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(out, opts))
	}
	return slog.New(slog.NewTextHandler(out, opts))
}
