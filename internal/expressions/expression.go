package expressions

import (
	"strings"
)

// Kind is the closed set of expression node variants.
type Kind int

const (
	// KindOpaque is a pass-through token the registry does not know.
	KindOpaque Kind = iota
	// KindAny is the "*" wildcard; it always matches.
	KindAny
	// KindAll is the universal quantifier over a domain's fact set.
	KindAll
	// KindValue is a numeric or string literal compared against a fact.
	KindValue
	// KindIgnored is a neutral placeholder; it always matches and never fails.
	KindIgnored
	// KindNegation is unary NOT.
	KindNegation
	// KindConnector is an n-ary AND/OR.
	KindConnector
)

var kindNames = map[Kind]string{
	KindOpaque:    "opaque",
	KindAny:       "any",
	KindAll:       "all",
	KindValue:     "value",
	KindIgnored:   "ignored",
	KindNegation:  "negation",
	KindConnector: "connector",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Operator selects the boolean fold of a connector.
type Operator int

const (
	OpNone Operator = iota
	OpAnd
	OpOr
)

func (o Operator) String() string {
	switch o {
	case OpAnd:
		return "and"
	case OpOr:
		return "or"
	default:
		return ""
	}
}

// Literal is the payload of a value expression. Numeric literals carry the
// parsed number and compare numerically; others compare as text.
type Literal struct {
	Text    string
	Number  float64
	Numeric bool
}

// Expression is a resolved rule node. Every Expression is owned by the caller
// that resolved or built it; nothing is shared with the registry.
type Expression struct {
	Kind     Kind
	Name     string
	Children []*Expression
	Domain   string

	// Op is set for KindConnector.
	Op Operator
	// Literal is set for KindValue.
	Literal Literal
}

// NewAny returns a wildcard expression.
func NewAny(domain string) *Expression {
	return &Expression{Kind: KindAny, Name: NameAny, Domain: domain}
}

// NewAll returns a universal quantifier over domain whose children form the
// per-fact matching condition.
func NewAll(domain string, children ...*Expression) *Expression {
	return &Expression{Kind: KindAll, Name: NameAll, Domain: domain, Children: children}
}

// NewIgnored returns a neutral placeholder.
func NewIgnored() *Expression {
	return &Expression{Kind: KindIgnored, Name: NameIgnored}
}

// NewNegation returns NOT child.
func NewNegation(child *Expression) *Expression {
	return &Expression{Kind: KindNegation, Name: NameNegation, Children: []*Expression{child}}
}

// NewAnd returns the conjunction of children.
func NewAnd(children ...*Expression) *Expression {
	return &Expression{Kind: KindConnector, Name: NameAnd, Op: OpAnd, Children: children}
}

// NewOr returns the disjunction of children.
func NewOr(children ...*Expression) *Expression {
	return &Expression{Kind: KindConnector, Name: NameOr, Op: OpOr, Children: children}
}

// NewNumber returns a numeric value leaf matched against the fact at domain.
func NewNumber(n float64, domain string) *Expression {
	return &Expression{
		Kind:    KindValue,
		Name:    FormatNumber(n),
		Domain:  domain,
		Literal: Literal{Text: FormatNumber(n), Number: n, Numeric: true},
	}
}

// NewString returns a text value leaf matched against the fact at domain.
func NewString(s, domain string) *Expression {
	return &Expression{
		Kind:    KindValue,
		Name:    s,
		Domain:  domain,
		Literal: Literal{Text: s},
	}
}

// NewOpaque returns a pass-through node carrying name and children unchanged.
func NewOpaque(name, domain string, children ...*Expression) *Expression {
	return &Expression{Kind: KindOpaque, Name: name, Domain: domain, Children: children}
}

// newLiteral builds a value leaf from the literal text of a node name.
func newLiteral(text string, n float64, domain string) *Expression {
	return &Expression{
		Kind:    KindValue,
		Name:    text,
		Domain:  domain,
		Literal: Literal{Text: text, Number: n, Numeric: true},
	}
}

// InDomain sets the expression's domain and returns it.
func (e *Expression) InDomain(domain string) *Expression {
	e.Domain = domain
	return e
}

// Clone returns a deep copy of the expression tree.
func (e *Expression) Clone() *Expression {
	if e == nil {
		return nil
	}
	cp := *e
	if e.Children != nil {
		cp.Children = make([]*Expression, len(e.Children))
		for i, c := range e.Children {
			cp.Children[i] = c.Clone()
		}
	}
	return &cp
}

// String renders the expression as name(child, child).
func (e *Expression) String() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	e.write(&b)
	return b.String()
}

func (e *Expression) write(b *strings.Builder) {
	if e == nil {
		b.WriteString("<nil>")
		return
	}
	b.WriteString(e.Name)
	if len(e.Children) == 0 {
		return
	}
	b.WriteByte('(')
	for i, c := range e.Children {
		if i > 0 {
			b.WriteString(", ")
		}
		c.write(b)
	}
	b.WriteByte(')')
}
