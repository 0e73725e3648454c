package expressions

import (
	"encoding/json"
	"fmt"
	"math/big"
	"reflect"
	"strconv"

	"github.com/rendis/behaviors/pkg/schema"
)

// Evaluate matches the expression against facts. Evaluation is pure and
// synchronous. A domain missing from facts is a non-match, never an error.
// A nil expression never matches.
func (e *Expression) Evaluate(facts Facts) bool {
	if e == nil {
		return false
	}
	if facts == nil {
		facts = noFacts{}
	}

	switch e.Kind {
	case KindAny, KindIgnored:
		return true
	case KindNegation:
		// Resolution rejects any other arity.
		if len(e.Children) != 1 {
			return false
		}
		return !e.Children[0].Evaluate(facts)
	case KindConnector:
		return e.evaluateConnector(facts)
	case KindValue:
		fact, ok := facts.Lookup(e.Domain)
		return ok && matchLiteral(e.Literal, fact)
	case KindAll:
		return e.evaluateAll(facts)
	case KindOpaque:
		fact, ok := facts.Lookup(e.Domain)
		return ok && e.matchStructured(facts, fact)
	default:
		return false
	}
}

func (e *Expression) evaluateConnector(facts Facts) bool {
	switch e.Op {
	case OpAnd:
		for _, c := range e.Children {
			if !c.Evaluate(facts) {
				return false
			}
		}
		return true
	case OpOr:
		for _, c := range e.Children {
			if c.Evaluate(facts) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// evaluateAll binds each element of the domain's fact set in turn and
// requires every child to match it. An empty set is treated like an absent
// one and never matches: a rule over a domain's facts needs facts to hold.
func (e *Expression) evaluateAll(facts Facts) bool {
	fact, ok := facts.Lookup(e.Domain)
	if !ok {
		return false
	}
	set := factSet(fact)
	if len(set) == 0 {
		return false
	}
	for _, elem := range set {
		scoped := Bind(facts, e.Domain, elem)
		for _, c := range e.Children {
			if c == nil || !c.Evaluate(Bind(scoped, c.Domain, elem)) {
				return false
			}
		}
	}
	return true
}

// matchStructured matches an opaque node against a token or structured fact:
// names must be equal and each child must match the corresponding child fact.
func (e *Expression) matchStructured(facts Facts, fact any) bool {
	name, childFacts, ok := structured(fact)
	if !ok || name != e.Name || len(childFacts) != len(e.Children) {
		return false
	}
	for i, c := range e.Children {
		if c == nil || !c.Evaluate(Bind(facts, c.Domain, childFacts[i])) {
			return false
		}
	}
	return true
}

// matchLiteral compares numerically when the literal is numeric. Integer
// and textual facts compare exactly against the literal text; float facts
// are already rounded, so they compare against the literal's float value.
func matchLiteral(lit Literal, fact any) bool {
	if !lit.Numeric {
		s, ok := textFact(fact)
		return ok && s == lit.Text
	}
	switch v := fact.(type) {
	case float64:
		return v == lit.Number
	case float32:
		return float64(v) == lit.Number
	}
	want, ok := ParseExact(lit.Text)
	if !ok {
		if want = new(big.Rat).SetFloat64(lit.Number); want == nil {
			return false
		}
	}
	got, ok := exactFact(fact)
	return ok && got.Cmp(want) == 0
}

// structured returns the name and child facts of a token or node-shaped fact.
func structured(fact any) (string, []any, bool) {
	switch v := fact.(type) {
	case string:
		return v, nil, true
	case *schema.Node:
		if v == nil {
			return "", nil, false
		}
		return nodeFact(*v)
	case schema.Node:
		return nodeFact(v)
	case map[string]any:
		name, ok := v["name"].(string)
		if !ok {
			return "", nil, false
		}
		children, _ := v["children"].([]any)
		return name, children, true
	default:
		return "", nil, false
	}
}

func nodeFact(n schema.Node) (string, []any, bool) {
	var children []any
	for _, c := range n.Children {
		children = append(children, c)
	}
	return n.Name, children, true
}

// integerFact returns the decimal text of an integer-typed fact.
func integerFact(fact any) (string, bool) {
	switch v := fact.(type) {
	case int:
		return strconv.FormatInt(int64(v), 10), true
	case int8:
		return strconv.FormatInt(int64(v), 10), true
	case int16:
		return strconv.FormatInt(int64(v), 10), true
	case int32:
		return strconv.FormatInt(int64(v), 10), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case uint:
		return strconv.FormatUint(uint64(v), 10), true
	case uint8:
		return strconv.FormatUint(uint64(v), 10), true
	case uint16:
		return strconv.FormatUint(uint64(v), 10), true
	case uint32:
		return strconv.FormatUint(uint64(v), 10), true
	case uint64:
		return strconv.FormatUint(v, 10), true
	}
	return "", false
}

// exactFact reads a non-float fact as an exact number.
func exactFact(fact any) (*big.Rat, bool) {
	if s, ok := integerFact(fact); ok {
		return ParseExact(s)
	}
	if v, ok := fact.(json.Number); ok {
		return ParseExact(string(v))
	}
	if name, children, ok := structured(fact); ok && len(children) == 0 {
		return ParseExact(name)
	}
	return nil, false
}

func textFact(fact any) (string, bool) {
	switch v := fact.(type) {
	case bool:
		return strconv.FormatBool(v), true
	case json.Number:
		return string(v), true
	case float64:
		return FormatNumber(v), true
	case float32:
		return FormatNumber(float64(v)), true
	}
	if s, ok := integerFact(fact); ok {
		return s, true
	}
	if name, children, ok := structured(fact); ok {
		return name, len(children) == 0
	}
	return "", false
}

// factSet views a fact as a set: slices and arrays yield their elements, any
// other non-nil fact is a one-element set.
func factSet(fact any) []any {
	switch v := fact.(type) {
	case nil:
		return nil
	case []any:
		return v
	case string:
		return []any{v}
	}
	rv := reflect.ValueOf(fact)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out
	}
	return []any{fact}
}

// Failure is a leaf that kept an expression from matching.
type Failure struct {
	Path   string `json:"path"`
	Name   string `json:"name"`
	Domain string `json:"domain,omitempty"`
	Reason string `json:"reason"`
}

func (f Failure) String() string {
	return fmt.Sprintf("%s: %s", f.Path, f.Reason)
}

// Explain returns the leaves that made the expression evaluate false against
// facts; it is empty when the expression matches. Ignored nodes never appear.
func (e *Expression) Explain(facts Facts) []Failure {
	if facts == nil {
		facts = noFacts{}
	}
	if e == nil {
		return []Failure{{Path: "<nil>", Reason: "no expression"}}
	}
	var out []Failure
	e.explain(facts, e.Name, &out)
	return out
}

func (e *Expression) explain(facts Facts, path string, out *[]Failure) {
	if e == nil || e.Evaluate(facts) {
		return
	}
	fail := func(reason string) {
		*out = append(*out, Failure{Path: path, Name: e.Name, Domain: e.Domain, Reason: reason})
	}

	switch e.Kind {
	case KindConnector:
		if e.Op == OpOr && len(e.Children) == 0 {
			fail("no alternatives")
			return
		}
		for i, c := range e.Children {
			if c != nil {
				c.explain(facts, fmt.Sprintf("%s[%d]/%s", path, i, c.Name), out)
			}
		}
	case KindNegation:
		if len(e.Children) != 1 {
			fail(fmt.Sprintf("negation has %d children", len(e.Children)))
			return
		}
		fail(fmt.Sprintf("negated %s matched", e.Children[0]))
	case KindValue, KindOpaque, KindAll:
		fact, ok := facts.Lookup(e.Domain)
		switch {
		case !ok:
			fail("no fact")
		case e.Kind == KindAll && len(factSet(fact)) == 0:
			fail("empty fact set")
		default:
			fail(fmt.Sprintf("fact %v does not match", fact))
		}
	}
}
