// Package templating renders behavior outputs and quick replies. Templates
// embed ${{ expr }} references evaluated with expr-lang against a context map.
package templating

import (
	"encoding/json"
	"fmt"
	"html"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/rendis/behaviors/pkg/schema"
)

// Mode selects how substituted values are written into the output.
type Mode int

const (
	// ModeText writes values verbatim.
	ModeText Mode = iota
	// ModeHTML escapes substituted values. Literal template text is kept as is.
	ModeHTML
)

func (m Mode) String() string {
	if m == ModeHTML {
		return "html"
	}
	return "text"
}

// Engine renders templates. It supports everything expr-lang does inside a
// reference: nil coalescing (??), optional chaining (?.), pipes, and the
// builtin string and array functions. Compiled programs are cached and reused
// across goroutines.
type Engine struct {
	mu    sync.RWMutex
	cache map[string]*vm.Program
}

// NewEngine creates a template engine.
func NewEngine() *Engine {
	return &Engine{cache: make(map[string]*vm.Program)}
}

// Render substitutes every ${{ expr }} reference in tpl. References that
// evaluate to nil render as the empty string.
func (e *Engine) Render(tpl string, data map[string]any, mode Mode) (string, error) {
	if !strings.Contains(tpl, "${{") {
		return tpl, nil
	}
	if data == nil {
		data = map[string]any{}
	}

	var out strings.Builder
	out.Grow(len(tpl))

	i := 0
	for i < len(tpl) {
		idx := strings.Index(tpl[i:], "${{")
		if idx == -1 {
			out.WriteString(tpl[i:])
			break
		}
		out.WriteString(tpl[i : i+idx])
		start := i + idx + 3

		end := strings.Index(tpl[start:], "}}")
		if end == -1 {
			return "", schema.NewError(schema.ErrCodeTemplate, "unclosed ${{ reference").
				WithDetails(map[string]any{"template": tpl})
		}
		end += start

		src := strings.TrimSpace(tpl[start:end])
		if strings.Contains(src, "${{") {
			return "", schema.NewError(schema.ErrCodeTemplate,
				"nested reference not allowed: ${{...}} cannot contain ${{").
				WithDetails(map[string]any{"template": tpl})
		}
		if src == "" {
			return "", schema.NewError(schema.ErrCodeTemplate, "empty reference: ${{  }}").
				WithDetails(map[string]any{"template": tpl})
		}

		val, err := e.Evaluate(src, data)
		if err != nil {
			return "", err
		}
		s := inline(val)
		if mode == ModeHTML {
			s = html.EscapeString(s)
		}
		out.WriteString(s)

		i = end + 2
	}
	return out.String(), nil
}

// Evaluate compiles (or retrieves from cache) a single expression and runs it
// with data as its environment.
func (e *Engine) Evaluate(src string, data map[string]any) (any, error) {
	prg, err := e.getOrCompile(src)
	if err != nil {
		return nil, err
	}
	out, err := vm.Run(prg, data)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution,
			"template evaluation failed for %q: %s", src, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"expression": src})
	}
	return out, nil
}

// CacheSize returns the number of compiled expressions.
func (e *Engine) CacheSize() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.cache)
}

// getOrCompile returns a cached compiled program or compiles and caches a new
// one. Programs are compiled without a typed environment so one program
// serves every context map.
func (e *Engine) getOrCompile(src string) (*vm.Program, error) {
	e.mu.RLock()
	if prg, ok := e.cache[src]; ok {
		e.mu.RUnlock()
		return prg, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	// Double-check after acquiring write lock.
	if prg, ok := e.cache[src]; ok {
		return prg, nil
	}

	prg, err := expr.Compile(src, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeTemplate,
			"template compile error in %q: %s", src, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"expression": src})
	}

	e.cache[src] = prg
	return prg, nil
}

// inline converts an evaluated value into its textual form. Strings are
// written without quotes; maps and slices are JSON-encoded.
func inline(val any) string {
	switch v := val.(type) {
	case string:
		return v
	case nil:
		return ""
	case bool:
		if v {
			return "true"
		}
		return "false"
	case float64:
		return fmt.Sprintf("%v", v)
	case int:
		return fmt.Sprintf("%d", v)
	case int64:
		return fmt.Sprintf("%d", v)
	case fmt.Stringer:
		return v.String()
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}
