// Package logger provides the process-wide slog setup and shared log attributes.
//
// Log level comes from LOG_LEVEL (debug, info, warn/warning, error; case
// insensitive, anything else falls back to info). GO_ENV=production switches
// the handler to JSON for log collectors; everything else gets human-readable
// text output.
package logger

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger builds the root slog.Logger from the environment.
func NewLogger() *slog.Logger {
	level := parseLevel(os.Getenv("LOG_LEVEL"))

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if os.Getenv("GO_ENV") == "production" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Scope tags a log record with the subsystem it came from, e.g.
// logger.Scope("query.engine"). Keeping the key stable makes the records
// filterable in aggregation.
func Scope(scope string) slog.Attr {
	return slog.String("scope", scope)
}

// Error wraps an error as a log attribute under the "error" key.
func Error(err error) slog.Attr {
	return slog.Any("error", err)
}
