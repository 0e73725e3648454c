package schema

import "strings"

// Node is an unresolved rule node as authored in a behavior set: an operator
// or token name, its ordered children, and the domain the node is matched
// against. Nodes are resolved into typed expressions before evaluation.
//
//	{"name": "and", "children": [
//	    {"name": "greeting", "domain": "input"},
//	    {"name": "negation", "children": [{"name": "3", "domain": "count"}]}
//	]}
type Node struct {
	Name     string  `json:"name" yaml:"name"`
	Children []*Node `json:"children,omitempty" yaml:"children,omitempty"`
	Domain   string  `json:"domain,omitempty" yaml:"domain,omitempty"`
}

// NewNode creates a node with the given name and children.
func NewNode(name string, children ...*Node) *Node {
	return &Node{Name: name, Children: children}
}

// InDomain sets the node's domain and returns the node.
func (n *Node) InDomain(domain string) *Node {
	n.Domain = domain
	return n
}

// String renders the node as name(child, child).
func (n *Node) String() string {
	if n == nil {
		return "<nil>"
	}
	if len(n.Children) == 0 {
		return n.Name
	}
	var b strings.Builder
	b.WriteString(n.Name)
	b.WriteByte('(')
	for i, c := range n.Children {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(c.String())
	}
	b.WriteByte(')')
	return b.String()
}
