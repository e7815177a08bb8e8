package logging

import (
	"context"
	"log/slog"
	"sync"
)

// ContextProvider is a function that returns dynamic context attributes.
type ContextProvider func() []slog.Attr

// ContextHandler wraps another handler and injects dynamic context attributes.
type ContextHandler struct {
	inner    slog.Handler
	provider ContextProvider
}

// NewContextHandler creates a handler that adds dynamic context to each record.
func NewContextHandler(inner slog.Handler, provider ContextProvider) *ContextHandler {
	return &ContextHandler{
		inner:    inner,
		provider: provider,
	}
}

// Enabled delegates to the inner handler.
func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle adds dynamic context attributes and delegates to the inner handler.
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.provider != nil {
		r.AddAttrs(h.provider()...)
	}
	return h.inner.Handle(ctx, r)
}

// WithAttrs returns a new ContextHandler with the given attributes.
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{
		inner:    h.inner.WithAttrs(attrs),
		provider: h.provider,
	}
}

// WithGroup returns a new ContextHandler with the given group.
func (h *ContextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &ContextHandler{
		inner:    h.inner.WithGroup(name),
		provider: h.provider,
	}
}

// RunContext tracks which tournament and round is running, for log records.
type RunContext struct {
	mu           sync.RWMutex
	tournamentID string
	round        int
}

// SetTournament starts a new tournament at round 0.
func (c *RunContext) SetTournament(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tournamentID = id
	c.round = 0
}

// SetRound updates the current round.
func (c *RunContext) SetRound(round int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.round = round
}

// Attrs is a ContextProvider. Nothing is added before a tournament starts.
func (c *RunContext) Attrs() []slog.Attr {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.tournamentID == "" {
		return nil
	}
	attrs := []slog.Attr{slog.String("tournament", c.tournamentID)}
	if c.round > 0 {
		attrs = append(attrs, slog.Int("round", c.round))
	}
	return attrs
}
