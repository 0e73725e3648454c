package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func jsonLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(NewCorrelationHandler(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
}

func TestCorrelation_Setters(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, Correlation{}, FromContext(ctx))

	ctx = WithConversationID(ctx, "conv-123")
	ctx = WithStepID(ctx, "step-1")
	ctx = WithBehaviorID(ctx, "greet")

	assert.Equal(t, Correlation{ConversationID: "conv-123", StepID: "step-1", BehaviorID: "greet"}, FromContext(ctx))
	assert.Equal(t, "conv-123", ConversationID(ctx))
	assert.Equal(t, "step-1", StepID(ctx))
	assert.Equal(t, "greet", BehaviorID(ctx))
}

func TestCorrelation_SettersDoNotLeakToParent(t *testing.T) {
	parent := WithIDs(context.Background(), "conv-1", "step-1", "")
	child := WithBehaviorID(parent, "fallback")

	assert.Empty(t, BehaviorID(parent))
	assert.Equal(t, "fallback", BehaviorID(child))
	assert.Equal(t, "conv-1", ConversationID(child))
}

func TestCorrelation_Attrs(t *testing.T) {
	assert.Empty(t, Correlation{}.Attrs())

	attrs := Correlation{ConversationID: "c", BehaviorID: "b"}.Attrs()
	assert.Len(t, attrs, 2)
	assert.Equal(t, "conversation_id", attrs[0].Key)
	assert.Equal(t, "behavior_id", attrs[1].Key)
}

func TestLogWith(t *testing.T) {
	tests := []struct {
		name    string
		ctx     context.Context
		present []string
		absent  []string
	}{
		{
			name:    "all ids",
			ctx:     WithIDs(context.Background(), "conv-abc", "step-x", "greet"),
			present: []string{"conversation_id=conv-abc", "step_id=step-x", "behavior_id=greet"},
		},
		{
			name:    "conversation only",
			ctx:     WithConversationID(context.Background(), "conv-only"),
			present: []string{"conversation_id=conv-only"},
			absent:  []string{"step_id", "behavior_id"},
		},
		{
			name:   "empty context",
			ctx:    context.Background(),
			absent: []string{"conversation_id", "step_id", "behavior_id"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
			LogWith(tc.ctx, logger).Info("step evaluated")

			out := buf.String()
			assert.Contains(t, out, "step evaluated")
			for _, s := range tc.present {
				assert.Contains(t, out, s)
			}
			for _, s := range tc.absent {
				assert.NotContains(t, out, s)
			}
		})
	}
}

func TestCorrelationHandler(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithIDs(context.Background(), "conv-auto", "step-auto", "greet")
	jsonLogger(&buf).InfoContext(ctx, "auto inject")

	out := buf.String()
	assert.Contains(t, out, `"conversation_id":"conv-auto"`)
	assert.Contains(t, out, `"step_id":"step-auto"`)
	assert.Contains(t, out, `"behavior_id":"greet"`)
}

func TestCorrelationHandler_EmptyContext(t *testing.T) {
	var buf bytes.Buffer
	jsonLogger(&buf).InfoContext(context.Background(), "bare log")

	out := buf.String()
	assert.NotContains(t, out, "conversation_id")
	assert.Contains(t, out, "bare log")
}

func TestCorrelationHandler_WithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	h := NewCorrelationHandler(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	logger := slog.New(h.WithAttrs([]slog.Attr{slog.String("component", "behavior")}).WithGroup("rule"))

	logger.InfoContext(WithConversationID(context.Background(), "conv-attr"), "grouped", "key", "val")

	out := buf.String()
	assert.Contains(t, out, `"component":"behavior"`)
	assert.Contains(t, out, "conv-attr")
	assert.Contains(t, out, `"rule":{`)
}
