package logging

import (
	"context"
	"log/slog"
)

// Correlation identifies where in a conversation a log record was produced.
type Correlation struct {
	ConversationID string
	StepID         string
	BehaviorID     string
}

// Attrs returns the non-empty IDs as slog attributes.
func (c Correlation) Attrs() []slog.Attr {
	attrs := make([]slog.Attr, 0, 3)
	if c.ConversationID != "" {
		attrs = append(attrs, slog.String("conversation_id", c.ConversationID))
	}
	if c.StepID != "" {
		attrs = append(attrs, slog.String("step_id", c.StepID))
	}
	if c.BehaviorID != "" {
		attrs = append(attrs, slog.String("behavior_id", c.BehaviorID))
	}
	return attrs
}

type correlationKey struct{}

// FromContext returns the correlation carried by ctx; the zero value if none.
func FromContext(ctx context.Context) Correlation {
	c, _ := ctx.Value(correlationKey{}).(Correlation)
	return c
}

// NewContext returns a copy of ctx carrying c.
func NewContext(ctx context.Context, c Correlation) context.Context {
	return context.WithValue(ctx, correlationKey{}, c)
}

func update(ctx context.Context, fn func(*Correlation)) context.Context {
	c := FromContext(ctx)
	fn(&c)
	return NewContext(ctx, c)
}

// WithConversationID returns a context with the conversation ID set.
func WithConversationID(ctx context.Context, id string) context.Context {
	return update(ctx, func(c *Correlation) { c.ConversationID = id })
}

// WithStepID returns a context with the conversation step ID set.
func WithStepID(ctx context.Context, id string) context.Context {
	return update(ctx, func(c *Correlation) { c.StepID = id })
}

// WithBehaviorID returns a context with the behavior ID set.
func WithBehaviorID(ctx context.Context, id string) context.Context {
	return update(ctx, func(c *Correlation) { c.BehaviorID = id })
}

// WithIDs replaces all three correlation IDs at once.
func WithIDs(ctx context.Context, conversationID, stepID, behaviorID string) context.Context {
	return NewContext(ctx, Correlation{ConversationID: conversationID, StepID: stepID, BehaviorID: behaviorID})
}

func ConversationID(ctx context.Context) string { return FromContext(ctx).ConversationID }
func StepID(ctx context.Context) string         { return FromContext(ctx).StepID }
func BehaviorID(ctx context.Context) string     { return FromContext(ctx).BehaviorID }

// LogWith returns logger with the context's correlation IDs attached.
// Loggers built by New already do this per record; LogWith serves loggers
// supplied by callers.
func LogWith(ctx context.Context, logger *slog.Logger) *slog.Logger {
	attrs := FromContext(ctx).Attrs()
	if len(attrs) == 0 {
		return logger
	}
	args := make([]any, len(attrs))
	for i, a := range attrs {
		args[i] = a
	}
	return logger.With(args...)
}

// CorrelationHandler adds the correlation IDs of the record's context to
// every record it handles, so logger.InfoContext(ctx, ...) is enough.
type CorrelationHandler struct {
	inner slog.Handler
}

func NewCorrelationHandler(inner slog.Handler) *CorrelationHandler {
	return &CorrelationHandler{inner: inner}
}

func (h *CorrelationHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *CorrelationHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(FromContext(ctx).Attrs()...)
	return h.inner.Handle(ctx, r)
}

func (h *CorrelationHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *CorrelationHandler) WithGroup(name string) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithGroup(name)}
}
