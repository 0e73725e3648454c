package store

import "context"

// Store defines the persistence layer contract for the trigger log.
// All implementations must be safe for concurrent use.
type Store interface {
	// Evaluations (append-only)
	RecordEvaluation(ctx context.Context, ev *Evaluation) error
	GetEvaluation(ctx context.Context, id string) (*Evaluation, error)
	ListEvaluations(ctx context.Context, filter EvaluationFilter) ([]*Evaluation, error)

	// Aggregates
	CountTriggers(ctx context.Context, filter EvaluationFilter) (map[string]int, error)

	// Maintenance
	Migrate(ctx context.Context) error
	Vacuum(ctx context.Context) error

	// Lifecycle
	Close() error
}
