package store

import (
	"context"
	"fmt"
	"time"

	"github.com/rendis/behaviors/pkg/schema"
)

// TriggerLog provides conversation-scoped history on top of a Store.
type TriggerLog struct {
	store Store
}

// NewTriggerLog wraps a Store to provide conversation history operations.
func NewTriggerLog(s Store) *TriggerLog {
	return &TriggerLog{store: s}
}

// RecordEvaluation appends an evaluation to the log.
func (l *TriggerLog) RecordEvaluation(ctx context.Context, ev *Evaluation) error {
	return l.store.RecordEvaluation(ctx, ev)
}

// History returns the most recent evaluations of a conversation in sequence
// order. A limit of zero returns all of them. Returns an error if sequence
// gaps are detected.
func (l *TriggerLog) History(ctx context.Context, conversationID string, limit int) ([]*Evaluation, error) {
	evs, err := l.store.ListEvaluations(ctx, EvaluationFilter{ConversationID: conversationID})
	if err != nil {
		return nil, fmt.Errorf("list evaluations: %w", err)
	}

	for i, ev := range evs {
		expected := int64(i + 1)
		if ev.Sequence != expected {
			return nil, schema.NewErrorf(schema.ErrCodeStore,
				"sequence gap in conversation %s: expected %d, got %d", conversationID, expected, ev.Sequence)
		}
	}

	if limit > 0 && len(evs) > limit {
		evs = evs[len(evs)-limit:]
	}
	return evs, nil
}

// ConversationSummary aggregates a conversation's trigger history.
type ConversationSummary struct {
	ConversationID  string         `json:"conversation_id"`
	Evaluations     int            `json:"evaluations"`
	Triggers        map[string]int `json:"triggers"`
	LastTriggered   []string       `json:"last_triggered,omitempty"`
	LastEvaluatedAt *time.Time     `json:"last_evaluated_at,omitempty"`
}

// Summarize replays a conversation's history into per-behavior trigger counts.
func (l *TriggerLog) Summarize(ctx context.Context, conversationID string) (*ConversationSummary, error) {
	evs, err := l.History(ctx, conversationID, 0)
	if err != nil {
		return nil, err
	}

	sum := &ConversationSummary{
		ConversationID: conversationID,
		Evaluations:    len(evs),
		Triggers:       make(map[string]int),
	}
	for _, ev := range evs {
		for _, tr := range ev.Triggers {
			sum.Triggers[tr.BehaviorID]++
		}
	}
	if n := len(evs); n > 0 {
		last := evs[n-1]
		ts := last.CreatedAt
		sum.LastEvaluatedAt = &ts
		for _, tr := range last.Triggers {
			sum.LastTriggered = append(sum.LastTriggered, tr.BehaviorID)
		}
	}
	return sum, nil
}
