// Package logger builds the process-wide structured logger.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel maps a LOG_LEVEL value to a slog level. Unknown values mean info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// New creates a JSON logger on stdout at the given level and installs it as the slog default.
func New(level string) *slog.Logger {
	log := NewWithWriter(os.Stdout, level)
	slog.SetDefault(log)
	return log
}

// NewWithWriter is New without touching the default logger.
func NewWithWriter(w io.Writer, level string) *slog.Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     ParseLevel(level),
		AddSource: true,
	})
	return slog.New(h)
}

// Discard returns a logger that drops every record. Used where a collaborator is optional.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
