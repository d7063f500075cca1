package logging

import (
	"context"
	"errors"
	"log/slog"
)

// teeHandler sends each record to a primary handler and a JSON copy. The
// copy is still written when the primary fails.
type teeHandler struct {
	primary slog.Handler
	copy    slog.Handler
}

func (h teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.primary.Enabled(ctx, level) || h.copy.Enabled(ctx, level)
}

func (h teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var primaryErr, copyErr error
	if h.primary.Enabled(ctx, r.Level) {
		primaryErr = h.primary.Handle(ctx, r.Clone())
	}
	if h.copy.Enabled(ctx, r.Level) {
		copyErr = h.copy.Handle(ctx, r)
	}
	return errors.Join(primaryErr, copyErr)
}

func (h teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return teeHandler{primary: h.primary.WithAttrs(attrs), copy: h.copy.WithAttrs(attrs)}
}

func (h teeHandler) WithGroup(name string) slog.Handler {
	return teeHandler{primary: h.primary.WithGroup(name), copy: h.copy.WithGroup(name)}
}
