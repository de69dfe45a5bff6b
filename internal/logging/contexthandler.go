package logging

import (
	"context"
	"log/slog"
)

// ContextProvider returns attributes evaluated at log time.
type ContextProvider func() []slog.Attr

// SessionInfo is the subset of the session context that gets logged.
type SessionInfo interface {
	SessionID() string
	Slot() string
}

// SessionAttrs attaches the current save slot and session id to records.
func SessionAttrs(s SessionInfo) ContextProvider {
	return func() []slog.Attr {
		var attrs []slog.Attr
		if id := s.SessionID(); id != "" {
			attrs = append(attrs, slog.String("session", id))
		}
		if slot := s.Slot(); slot != "" {
			attrs = append(attrs, slog.String("slot", slot))
		}
		return attrs
	}
}

// ContextHandler wraps another handler and injects dynamic context attributes.
type ContextHandler struct {
	inner    slog.Handler
	provider ContextProvider
}

// NewContextHandler creates a handler that adds dynamic context to each record.
func NewContextHandler(inner slog.Handler, provider ContextProvider) *ContextHandler {
	return &ContextHandler{inner: inner, provider: provider}
}

func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.provider != nil {
		r.AddAttrs(h.provider()...)
	}
	return h.inner.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{inner: h.inner.WithAttrs(attrs), provider: h.provider}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &ContextHandler{inner: h.inner.WithGroup(name), provider: h.provider}
}
