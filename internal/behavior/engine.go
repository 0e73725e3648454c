// Package behavior compiles behavior sets and evaluates conversation steps
// against them.
package behavior

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/rendis/behaviors/internal/expressions"
	"github.com/rendis/behaviors/internal/facts"
	"github.com/rendis/behaviors/internal/logging"
	"github.com/rendis/behaviors/internal/store"
	"github.com/rendis/behaviors/internal/validation"
	"github.com/rendis/behaviors/pkg/schema"
)

// Recorder persists evaluation results. store.LibSQLStore and
// store.TriggerLog satisfy it.
type Recorder interface {
	RecordEvaluation(ctx context.Context, ev *store.Evaluation) error
}

// Options configures Compile. Every field is optional.
type Options struct {
	Resolver *expressions.Resolver
	Querier  *facts.Querier
	Guards   *GuardEngine
	Recorder Recorder
	Logger   *slog.Logger
}

// Step is one conversation step to evaluate.
type Step struct {
	ConversationID string
	StepID         string
	Facts          map[string]any // domain -> fact
	Memory         any            // conversation memory, queried by path for domains absent from Facts
}

// Triggered is a behavior whose expression and guard matched a step.
type Triggered struct {
	BehaviorID   string              `json:"behavior_id"`
	Actions      []string            `json:"actions,omitempty"`
	Outputs      []schema.Output     `json:"outputs,omitempty"`
	QuickReplies []schema.QuickReply `json:"quick_replies,omitempty"`
}

// Result is the outcome of evaluating one step.
type Result struct {
	EvaluationID   string                           `json:"evaluation_id"`
	SetID          string                           `json:"set_id"`
	ConversationID string                           `json:"conversation_id,omitempty"`
	StepID         string                           `json:"step_id,omitempty"`
	Triggered      []Triggered                      `json:"triggered"`
	Failures       map[string][]expressions.Failure `json:"failures,omitempty"`
	EvaluatedAt    time.Time                        `json:"evaluated_at"`
}

// BehaviorIDs returns the IDs of the triggered behaviors in order.
func (r *Result) BehaviorIDs() []string {
	ids := make([]string, len(r.Triggered))
	for i, t := range r.Triggered {
		ids[i] = t.BehaviorID
	}
	return ids
}

type compiledRule struct {
	rule schema.BehaviorRule
	expr *expressions.Expression
}

// cloneRule copies the slices of a rule so the engine owns them. The
// unresolved expression is dropped; expr replaces it.
func cloneRule(b schema.BehaviorRule) schema.BehaviorRule {
	b.Expression = nil
	b.Actions = slices.Clone(b.Actions)
	b.Outputs = slices.Clone(b.Outputs)
	b.QuickReplies = slices.Clone(b.QuickReplies)
	return b
}

// triggered returns a result entry the caller may modify freely.
func (r compiledRule) triggered() Triggered {
	return Triggered{
		BehaviorID:   r.rule.ID,
		Actions:      slices.Clone(r.rule.Actions),
		Outputs:      slices.Clone(r.rule.Outputs),
		QuickReplies: slices.Clone(r.rule.QuickReplies),
	}
}

// Engine evaluates conversation steps against a compiled behavior set.
// It is immutable after Compile and safe for concurrent use.
type Engine struct {
	setID    string
	version  string
	rules    []compiledRule
	guards   *GuardEngine
	querier  *facts.Querier
	recorder Recorder
	logger   *slog.Logger
}

// Compile validates a behavior set, resolves every rule expression and
// compiles every guard. Any defect is returned as an error; an engine is
// never built from a partially valid set.
func Compile(set *schema.BehaviorSet, opts Options) (*Engine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	resolver := opts.Resolver
	if resolver == nil {
		resolver = expressions.NewResolver(nil)
	}

	validator, err := validation.NewSetValidator(resolver)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeConfiguration, "create behavior set validator").WithCause(err)
	}
	result := validator.Validate(set)
	for _, w := range result.Warnings {
		logger.Warn("behavior set warning", "set_id", set.ID, "path", w.Path, "message", w.Message)
	}
	if err := result.ToError(); err != nil {
		return nil, err
	}

	guards := opts.Guards
	if guards == nil {
		if guards, err = NewGuardEngine(); err != nil {
			return nil, schema.NewError(schema.ErrCodeConfiguration, "create guard engine").WithCause(err)
		}
	}
	querier := opts.Querier
	if querier == nil {
		querier = facts.NewQuerier()
	}

	rules := make([]compiledRule, 0, len(set.Behaviors))
	for _, b := range set.Behaviors {
		expr, err := resolver.Resolve(b.Expression)
		if err != nil {
			return nil, err
		}
		if b.Guard != "" {
			if _, err := guards.Compile(b.Guard); err != nil {
				if be, ok := schema.AsBehaviorError(err); ok {
					return nil, be.WithPath("behaviors." + b.ID + ".guard")
				}
				return nil, err
			}
		}
		rules = append(rules, compiledRule{rule: cloneRule(b), expr: expr})
	}

	logger.Info("behavior set compiled", "set_id", set.ID, "version", set.Version, "behaviors", len(rules))

	return &Engine{
		setID:    set.ID,
		version:  set.Version,
		rules:    rules,
		guards:   guards,
		querier:  querier,
		recorder: opts.Recorder,
		logger:   logger,
	}, nil
}

// SetID returns the ID of the compiled behavior set.
func (e *Engine) SetID() string { return e.setID }

// Version returns the version of the compiled behavior set.
func (e *Engine) Version() string { return e.version }

// Behaviors returns the behavior IDs in declaration order.
func (e *Engine) Behaviors() []string {
	ids := make([]string, len(e.rules))
	for i, r := range e.rules {
		ids[i] = r.rule.ID
	}
	return ids
}

// Expression returns a copy of the resolved expression of a behavior.
func (e *Engine) Expression(behaviorID string) (*expressions.Expression, bool) {
	for _, r := range e.rules {
		if r.rule.ID == behaviorID {
			return r.expr.Clone(), true
		}
	}
	return nil, false
}

// Facts builds the fact source for a step: flat facts first, then the
// memory document.
func (e *Engine) Facts(step Step) expressions.Facts {
	var doc expressions.Facts
	if step.Memory != nil {
		doc = e.querier.Document(step.Memory)
	}
	return facts.Chain(facts.Map(step.Facts), doc)
}

// Evaluate matches every behavior against the step in declaration order.
// All matching behaviors trigger. A guard that fails at runtime is logged and
// its behavior does not trigger; guards that select data the step lacks are
// logged at debug only. Recording failures are logged and do not
// fail the evaluation.
func (e *Engine) Evaluate(ctx context.Context, step Step) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ctx = logging.WithConversationID(ctx, step.ConversationID)
	ctx = logging.WithStepID(ctx, step.StepID)

	src := e.Facts(step)
	res := &Result{
		EvaluationID:   uuid.New().String(),
		SetID:          e.setID,
		ConversationID: step.ConversationID,
		StepID:         step.StepID,
		Triggered:      []Triggered{},
		EvaluatedAt:    time.Now().UTC(),
	}

	for _, r := range e.rules {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !r.expr.Evaluate(src) {
			if res.Failures == nil {
				res.Failures = make(map[string][]expressions.Failure)
			}
			res.Failures[r.rule.ID] = r.expr.Explain(src)
			continue
		}
		if !e.guardPasses(ctx, r.rule, step) {
			continue
		}
		res.Triggered = append(res.Triggered, r.triggered())
		logging.LogWith(logging.WithBehaviorID(ctx, r.rule.ID), e.logger).Debug("behavior triggered")
	}

	e.record(ctx, res)
	return res, nil
}

func (e *Engine) guardPasses(ctx context.Context, rule schema.BehaviorRule, step Step) bool {
	if rule.Guard == "" {
		return true
	}
	ok, err := e.guards.Evaluate(rule.Guard, GuardData{Facts: step.Facts, Memory: step.Memory})
	if err != nil {
		logger := logging.LogWith(logging.WithBehaviorID(ctx, rule.ID), e.logger)
		if schema.HasCode(err, schema.ErrCodeNotFound) {
			logger.Debug("behavior guard skipped", "guard", rule.Guard, "error", err)
		} else {
			logger.Warn("behavior guard failed", "guard", rule.Guard, "error", err)
		}
		return false
	}
	return ok
}

func (e *Engine) record(ctx context.Context, res *Result) {
	if e.recorder == nil || res.ConversationID == "" {
		return
	}
	ev := &store.Evaluation{
		ID:             res.EvaluationID,
		SetID:          e.setID,
		SetVersion:     e.version,
		ConversationID: res.ConversationID,
		StepID:         res.StepID,
		CreatedAt:      res.EvaluatedAt,
	}
	for _, t := range res.Triggered {
		ev.Triggers = append(ev.Triggers, store.Trigger{BehaviorID: t.BehaviorID, Actions: t.Actions})
	}
	if err := e.recorder.RecordEvaluation(ctx, ev); err != nil {
		logging.LogWith(ctx, e.logger).Error("record evaluation failed", "evaluation_id", res.EvaluationID, "error", err)
	}
}
