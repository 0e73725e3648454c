package expressions

import (
	"sort"

	"github.com/rendis/behaviors/pkg/schema"
)

// Built-in operator and marker names.
const (
	NameAny      = "*"
	NameAll      = "all"
	NameIgnored  = "ignored"
	NameNegation = "negation"
	NameAnd      = "and"
	NameOr       = "or"
)

// Variadic marks a prototype that accepts any number of children.
const Variadic = -1

// Prototype describes how to build a registered operator: its kind, its
// connector operator and its arity. It holds no children or domain, so it is
// a plain value and building from it never aliases another expression.
type Prototype struct {
	Name  string
	Kind  Kind
	Op    Operator
	Arity int
}

// Build creates a fresh expression of the prototype's kind with the given
// children and domain. A child count that violates the arity is a
// configuration error.
func (p Prototype) Build(children []*Expression, domain string) (*Expression, error) {
	if p.Arity != Variadic && len(children) != p.Arity {
		return nil, schema.NewErrorf(schema.ErrCodeConfiguration,
			"%s requires exactly %d child, got %d", p.Name, p.Arity, len(children)).
			WithDetails(map[string]any{"name": p.Name, "arity": p.Arity, "children": len(children)})
	}
	var own []*Expression
	if len(children) > 0 {
		own = make([]*Expression, len(children))
		copy(own, children)
	}
	return &Expression{
		Kind:     p.Kind,
		Name:     p.Name,
		Op:       p.Op,
		Children: own,
		Domain:   domain,
	}, nil
}

// Registry is an immutable mapping from operator name to prototype. It is
// populated once by NewRegistry and only read afterwards, so concurrent
// lookups need no locking.
type Registry struct {
	prototypes map[string]Prototype
}

// Builtins returns the built-in prototype table.
func Builtins() []Prototype {
	return []Prototype{
		{Name: NameAny, Kind: KindAny, Arity: Variadic},
		{Name: NameAll, Kind: KindAll, Arity: Variadic},
		{Name: NameIgnored, Kind: KindIgnored, Arity: Variadic},
		{Name: NameNegation, Kind: KindNegation, Arity: 1},
		{Name: NameAnd, Kind: KindConnector, Op: OpAnd, Arity: Variadic},
		{Name: NameOr, Kind: KindConnector, Op: OpOr, Arity: Variadic},
	}
}

// NewRegistry builds a registry from prototypes. A defective table (empty or
// duplicate names, numeric names, connectors without an operator, opaque or
// value kinds) is reported as a configuration error and must be treated as
// fatal by the caller.
func NewRegistry(prototypes ...Prototype) (*Registry, error) {
	m := make(map[string]Prototype, len(prototypes))
	for _, p := range prototypes {
		if p.Name == "" {
			return nil, schema.NewError(schema.ErrCodeConfiguration, "prototype name is empty")
		}
		if _, isNum := ParseNumber(p.Name); isNum {
			return nil, schema.NewErrorf(schema.ErrCodeConfiguration,
				"prototype name %q is numeric; numbers are never operators", p.Name)
		}
		if _, exists := m[p.Name]; exists {
			return nil, schema.NewErrorf(schema.ErrCodeConflict, "prototype %q already registered", p.Name)
		}
		switch p.Kind {
		case KindAny, KindAll, KindIgnored, KindNegation:
		case KindConnector:
			if p.Op != OpAnd && p.Op != OpOr {
				return nil, schema.NewErrorf(schema.ErrCodeConfiguration,
					"connector prototype %q has no operator", p.Name)
			}
		default:
			return nil, schema.NewErrorf(schema.ErrCodeConfiguration,
				"prototype %q has unbuildable kind %s", p.Name, p.Kind)
		}
		if p.Arity < Variadic {
			return nil, schema.NewErrorf(schema.ErrCodeConfiguration,
				"prototype %q has invalid arity %d", p.Name, p.Arity)
		}
		m[p.Name] = p
	}
	return &Registry{prototypes: m}, nil
}

var defaultRegistry = mustRegistry(NewRegistry(Builtins()...))

func mustRegistry(r *Registry, err error) *Registry {
	if err != nil {
		panic("expressions: built-in registry is defective: " + err.Error())
	}
	return r
}

// DefaultRegistry returns the process-wide registry of built-in operators.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Lookup returns the prototype registered under name.
func (r *Registry) Lookup(name string) (Prototype, bool) {
	p, ok := r.prototypes[name]
	return p, ok
}

// Has reports whether name is a registered operator.
func (r *Registry) Has(name string) bool {
	_, ok := r.prototypes[name]
	return ok
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.prototypes))
	for n := range r.prototypes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered prototypes.
func (r *Registry) Len() int {
	return len(r.prototypes)
}
