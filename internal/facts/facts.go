// Package facts provides the fact sources rule expressions are matched
// against: flat domain maps, layered chains, and conversation-memory
// documents addressed by path or jq query.
package facts

import (
	"sort"

	"github.com/rendis/behaviors/internal/expressions"
)

// Map is a flat domain → fact mapping.
type Map map[string]any

// Lookup returns the fact stored under domain.
func (m Map) Lookup(domain string) (any, bool) {
	v, ok := m[domain]
	return v, ok
}

// Domains returns the domains present in the map, sorted.
func (m Map) Domains() []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Chain consults each source in order and returns the first fact found.
// Nil sources are skipped.
func Chain(sources ...expressions.Facts) expressions.Facts {
	return chain(sources)
}

type chain []expressions.Facts

func (c chain) Lookup(domain string) (any, bool) {
	for _, s := range c {
		if s == nil {
			continue
		}
		if v, ok := s.Lookup(domain); ok {
			return v, true
		}
	}
	return nil, false
}

var (
	_ expressions.Facts = Map(nil)
	_ expressions.Facts = chain(nil)
)
