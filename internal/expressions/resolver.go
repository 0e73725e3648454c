package expressions

import (
	"fmt"

	"github.com/rendis/behaviors/pkg/schema"
)

// Resolver turns unresolved rule nodes into typed expressions using a
// registry, numeric-literal detection, or pass-through. It holds no mutable
// state and is safe for concurrent use.
type Resolver struct {
	registry *Registry
}

// NewResolver creates a Resolver over registry. A nil registry selects the
// built-in one.
func NewResolver(registry *Registry) *Resolver {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Resolver{registry: registry}
}

// Registry returns the registry the resolver looks names up in.
func (r *Resolver) Registry() *Registry {
	return r.registry
}

// Resolve resolves node and all of its descendants bottom-up. A nil node
// resolves to nil without error. Configuration errors carry the path of the
// offending node, e.g. "and[1]/negation".
func (r *Resolver) Resolve(node *schema.Node) (*Expression, error) {
	if node == nil {
		return nil, nil
	}
	return r.resolve(node, node.Name, true)
}

// ResolveShallow applies the resolution rules to node only. Its children are
// carried over as opaque pass-through nodes, so registered names below the
// top are not interpreted; callers that use it resolve descendants themselves.
func (r *Resolver) ResolveShallow(node *schema.Node) (*Expression, error) {
	if node == nil {
		return nil, nil
	}
	return r.resolve(node, node.Name, false)
}

// ResolveAll resolves nodes element-wise, preserving order and length. Nil
// entries stay nil.
func (r *Resolver) ResolveAll(nodes []*schema.Node) ([]*Expression, error) {
	out := make([]*Expression, len(nodes))
	for i, n := range nodes {
		if n == nil {
			continue
		}
		e, err := r.resolve(n, fmt.Sprintf("[%d]/%s", i, n.Name), true)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

func (r *Resolver) resolve(node *schema.Node, path string, deep bool) (*Expression, error) {
	children, err := r.children(node, path, deep)
	if err != nil {
		return nil, err
	}

	if len(node.Children) == 0 {
		if n, ok := ParseNumber(node.Name); ok {
			return newLiteral(node.Name, n, node.Domain), nil
		}
	}

	if proto, ok := r.registry.Lookup(node.Name); ok {
		e, err := proto.Build(children, node.Domain)
		if err != nil {
			if be, ok := schema.AsBehaviorError(err); ok {
				return nil, be.WithPath(path)
			}
			return nil, err
		}
		return e, nil
	}

	return NewOpaque(node.Name, node.Domain, children...), nil
}

func (r *Resolver) children(node *schema.Node, path string, deep bool) ([]*Expression, error) {
	if len(node.Children) == 0 {
		return nil, nil
	}
	out := make([]*Expression, len(node.Children))
	for i, c := range node.Children {
		if c == nil {
			return nil, schema.NewErrorf(schema.ErrCodeConfiguration,
				"%s has a nil child at index %d", node.Name, i).
				WithPath(path)
		}
		if !deep {
			out[i] = passThrough(c)
			continue
		}
		e, err := r.resolve(c, fmt.Sprintf("%s[%d]/%s", path, i, c.Name), true)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

// passThrough copies a node tree into opaque expressions without lookup.
func passThrough(node *schema.Node) *Expression {
	e := NewOpaque(node.Name, node.Domain)
	if len(node.Children) > 0 {
		e.Children = make([]*Expression, 0, len(node.Children))
		for _, c := range node.Children {
			if c != nil {
				e.Children = append(e.Children, passThrough(c))
			}
		}
	}
	return e
}

var defaultResolver = NewResolver(nil)

// Resolve resolves node with the built-in registry.
func Resolve(node *schema.Node) (*Expression, error) {
	return defaultResolver.Resolve(node)
}

// ResolveAll resolves nodes with the built-in registry.
func ResolveAll(nodes []*schema.Node) ([]*Expression, error) {
	return defaultResolver.ResolveAll(nodes)
}
