// Package logging defines a minimal structured-logging interface used across
// the project, with adapters for log/slog and go.uber.org/zap.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.uber.org/zap"
)

// Logger is a context-aware, structured logger.
//
// The variadic args are interpreted as key–value pairs, e.g.:
//
//	log.Info(ctx, "login succeeded", "user_id", id)
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given key–value pairs.
	With(args ...any) Logger
}

// New builds the process logger. backend is "slog" (JSON to stdout) or "zap"
// (production config); level is one of debug, info, warn, error.
func New(backend, level string) (Logger, error) {
	switch strings.ToLower(backend) {
	case "zap":
		cfg := zap.NewProductionConfig()
		lvl, err := zap.ParseAtomicLevel(normalizeLevel(level))
		if err != nil {
			return nil, err
		}
		cfg.Level = lvl
		z, err := cfg.Build()
		if err != nil {
			return nil, err
		}
		return NewZapLogger(z), nil
	default:
		return NewJSONSlogLogger(os.Stdout, level), nil
	}
}

// NewJSONSlogLogger returns a slog-backed Logger writing JSON lines to w.
func NewJSONSlogLogger(w io.Writer, level string) *SlogLogger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(normalizeLevel(level))); err != nil {
		lvl = slog.LevelInfo
	}
	return NewSlogLogger(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})))
}

func normalizeLevel(level string) string {
	if level == "" {
		return "info"
	}
	return strings.ToLower(level)
}
