package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options controls the handler New builds.
type Options struct {
	Format string // "json" (default) or "console"
	Level  string // debug, info, warn, error
	Output io.Writer
}

// New returns a production-friendly JSON logger writing to stdout unless
// LOG_FORMAT=console is provided to prefer a human-readable output.
func New() *slog.Logger {
	return NewWithOptions(Options{Format: os.Getenv("LOG_FORMAT"), Level: os.Getenv("LOG_LEVEL")})
}

// NewWithOptions builds a logger from explicit options; empty fields fall back
// to JSON at info level on stdout.
func NewWithOptions(o Options) *slog.Logger {
	out := o.Output
	if out == nil {
		out = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: ParseLevel(o.Level)}
	var handler slog.Handler = slog.NewJSONHandler(out, opts)
	if strings.EqualFold(o.Format, "console") {
		handler = slog.NewTextHandler(out, opts)
	}
	return slog.New(handler)
}

// ParseLevel maps a level name to slog's level, defaulting to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
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

// Discard returns a logger that drops everything; handy in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
