// Package log configures the process-wide slog logger.
package log

import (
	"log/slog"
	"os"
)

// Setup installs the default slog handler. Format is "text" or "json"; info
// is the fallback level for unknown values.
func Setup(logLevel, format string) {
	var level slog.Level

	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// WithModule returns a logger tagged with the originating module name.
func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}

// WithSession tags a logger with the identifiers every turn-level log line
// should carry.
func WithSession(logger *slog.Logger, sessionID, workflowID, stepRef string) *slog.Logger {
	return logger.With(
		"session_id", sessionID,
		"workflow_id", workflowID,
		"step_ref", stepRef,
	)
}
