package slogx

import (
	"context"
	"log/slog"
)

// Leveled wraps a handler with its own minimum level, so one component can
// log more (or less) verbosely than the process default.
func Leveled(h slog.Handler, level slog.Level) slog.Handler {
	return &leveledHandler{inner: h, level: level}
}

type leveledHandler struct {
	inner slog.Handler
	level slog.Level
}

func (l *leveledHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= l.level
}

func (l *leveledHandler) Handle(ctx context.Context, rec slog.Record) error {
	return l.inner.Handle(ctx, rec)
}

func (l *leveledHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &leveledHandler{inner: l.inner.WithAttrs(attrs), level: l.level}
}

func (l *leveledHandler) WithGroup(name string) slog.Handler {
	return &leveledHandler{inner: l.inner.WithGroup(name), level: l.level}
}
