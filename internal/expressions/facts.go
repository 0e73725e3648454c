package expressions

// Facts is the fact source an expression is matched against. Lookup returns
// the fact stored under domain, or false when the domain is absent.
type Facts interface {
	Lookup(domain string) (any, bool)
}

// FactsFunc adapts a function to Facts.
type FactsFunc func(domain string) (any, bool)

// Lookup calls f.
func (f FactsFunc) Lookup(domain string) (any, bool) {
	return f(domain)
}

// Bind returns facts in which domain resolves to value and every other
// domain falls through to parent.
func Bind(parent Facts, domain string, value any) Facts {
	return &boundFacts{parent: parent, domain: domain, value: value}
}

type boundFacts struct {
	parent Facts
	domain string
	value  any
}

func (b *boundFacts) Lookup(domain string) (any, bool) {
	if domain == b.domain {
		return b.value, true
	}
	if b.parent == nil {
		return nil, false
	}
	return b.parent.Lookup(domain)
}

type noFacts struct{}

func (noFacts) Lookup(string) (any, bool) { return nil, false }
