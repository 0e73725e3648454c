package behavior

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/rendis/behaviors/pkg/schema"
)

// GuardEngine compiles and evaluates behavior guards written in CEL.
// The environment exposes two top-level variables:
//   - facts:  map(string, dyn), the step's flat facts
//   - memory: map(string, dyn), the conversation memory document
//
// Compiled programs are cached and reused across goroutines.
type GuardEngine struct {
	env *cel.Env

	mu    sync.RWMutex
	cache map[string]cel.Program
}

// NewGuardEngine creates a guard engine with a sandboxed CEL environment.
func NewGuardEngine() (*GuardEngine, error) {
	mapType := cel.MapType(cel.StringType, cel.DynType)

	env, err := cel.NewEnv(
		cel.Variable("facts", mapType),
		cel.Variable("memory", mapType),
	)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}

	return &GuardEngine{
		env:   env,
		cache: make(map[string]cel.Program),
	}, nil
}

// Compile checks a guard expression and caches its program.
func (g *GuardEngine) Compile(guard string) (cel.Program, error) {
	if guard == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "empty guard expression")
	}
	return g.getOrCompile(guard)
}

// Evaluate runs a guard against the step data. A guard that selects data the
// step lacks returns a NOT_FOUND error; one that fails otherwise at runtime or
// does not yield a bool returns an EXECUTION_ERROR.
func (g *GuardEngine) Evaluate(guard string, data GuardData) (bool, error) {
	prg, err := g.Compile(guard)
	if err != nil {
		return false, err
	}

	out, _, err := prg.Eval(data.activation())
	if err != nil {
		if missingGuardData(err) {
			return false, schema.NewErrorf(schema.ErrCodeNotFound,
				"guard %q references data absent from the step: %s", guard, err.Error()).
				WithCause(err).
				WithDetails(map[string]any{"guard": guard})
		}
		return false, schema.NewErrorf(schema.ErrCodeExecution,
			"guard evaluation failed for %q: %s", guard, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"guard": guard})
	}

	b, ok := out.Value().(bool)
	if !ok {
		return false, schema.NewErrorf(schema.ErrCodeExecution,
			"guard %q returned %T, want bool", guard, out.Value()).
			WithDetails(map[string]any{"guard": guard})
	}
	return b, nil
}

// missingGuardData reports whether a CEL runtime error comes from selecting
// a key or field the step data does not have.
func missingGuardData(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "no such key") || strings.Contains(msg, "no such attribute")
}

// CacheSize returns the number of compiled guards.
func (g *GuardEngine) CacheSize() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.cache)
}

func (g *GuardEngine) getOrCompile(guard string) (cel.Program, error) {
	g.mu.RLock()
	if prg, ok := g.cache[guard]; ok {
		g.mu.RUnlock()
		return prg, nil
	}
	g.mu.RUnlock()

	g.mu.Lock()
	defer g.mu.Unlock()

	// Double-check after acquiring write lock.
	if prg, ok := g.cache[guard]; ok {
		return prg, nil
	}

	ast, issues := g.env.Compile(guard)
	if issues != nil && issues.Err() != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"guard compile error in %q: %s", guard, issues.Err().Error()).
			WithCause(issues.Err()).
			WithDetails(map[string]any{"guard": guard})
	}
	prg, err := g.env.Program(ast)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"guard program error for %q: %s", guard, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"guard": guard})
	}

	g.cache[guard] = prg
	return prg, nil
}

// GuardData is the input of a guard evaluation.
type GuardData struct {
	Facts  map[string]any
	Memory any
}

// activation builds the CEL activation. Values are flattened to JSON shapes
// so structured facts such as *schema.Node become maps; missing keys default
// to empty maps to prevent CEL runtime nil-ref errors.
func (d GuardData) activation() map[string]any {
	return map[string]any{
		"facts":  plainMap(d.Facts),
		"memory": plainMap(d.Memory),
	}
}

func plainMap(v any) map[string]any {
	if v == nil {
		return map[string]any{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil || out == nil {
		return map[string]any{}
	}
	return out
}
