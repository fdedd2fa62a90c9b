package testutil

import (
	"io"
	"log/slog"
)

// NewLogger builds the debug-level text logger tests run under.
func NewLogger(out io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
