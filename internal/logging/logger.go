// Package logging provides structured logging configuration using log/slog.
//
// Every load gets a logger enriched with a run_id attribute (ForRun) so
// the progress and summary lines of concurrent loads can be told apart.
// Dumps log through the default logger, without a run_id.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
)

// Setup configures the global slog logger based on level and format.
//
// Level values: "debug", "info", "warn", "error" (default: "info")
// Format values: "text", "json" (default: "text")
func Setup(level, format string) {
	slog.SetDefault(slog.New(handlerFor(os.Stdout, level, format)))
}

func handlerFor(w io.Writer, level, format string) slog.Handler {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if strings.ToLower(format) == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ForRun returns a logger tagged with a fresh run_id.
func ForRun(base *slog.Logger) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	return base.With("run_id", uuid.NewString())
}

// Open resolves a LOGGER destination ("stdout", "stderr", or a file path)
// into a run logger plus a close function for file destinations.
func Open(dest, level, format string) (*slog.Logger, func() error, error) {
	noop := func() error { return nil }
	switch strings.ToLower(strings.TrimSpace(dest)) {
	case "", "stdout":
		return slog.New(handlerFor(os.Stdout, level, format)), noop, nil
	case "stderr":
		return slog.New(handlerFor(os.Stderr, level, format)), noop, nil
	}
	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open logger destination: %w", err)
	}
	return slog.New(handlerFor(f, level, format)), f.Close, nil
}
