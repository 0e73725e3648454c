package store

import "time"

// Evaluation is one recorded behavior evaluation of a conversation step.
type Evaluation struct {
	ID             string    `json:"id"`
	SetID          string    `json:"set_id"`
	SetVersion     string    `json:"set_version,omitempty"`
	ConversationID string    `json:"conversation_id"`
	StepID         string    `json:"step_id,omitempty"`
	Sequence       int64     `json:"sequence"`
	Triggers       []Trigger `json:"triggers,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Trigger is a behavior that fired during an evaluation.
type Trigger struct {
	BehaviorID string   `json:"behavior_id"`
	Actions    []string `json:"actions,omitempty"`
}

// EvaluationFilter narrows ListEvaluations and CountTriggers.
type EvaluationFilter struct {
	ConversationID string
	BehaviorID     string // only evaluations that triggered this behavior
	Since          *time.Time
	Limit          int
	Offset         int
}
