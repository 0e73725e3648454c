package schema

// BehaviorSet is the authored document a behavior engine is compiled from.
// It is loaded from JSON or YAML.
type BehaviorSet struct {
	ID        string         `json:"id" yaml:"id"`
	Version   string         `json:"version,omitempty" yaml:"version,omitempty"`
	Behaviors []BehaviorRule `json:"behaviors,omitempty" yaml:"behaviors,omitempty"`
}

// BehaviorRule is a single behavior: when Expression matches the facts of a
// conversation step (and Guard, if set, evaluates true) the behavior triggers
// and its actions and outputs are handed to the caller.
type BehaviorRule struct {
	ID           string       `json:"id" yaml:"id"`
	Description  string       `json:"description,omitempty" yaml:"description,omitempty"`
	Expression   *Node        `json:"expression" yaml:"expression"`
	Guard        string       `json:"guard,omitempty" yaml:"guard,omitempty"` // CEL, over facts and memory
	Actions      []string     `json:"actions,omitempty" yaml:"actions,omitempty"`
	Outputs      []Output     `json:"outputs,omitempty" yaml:"outputs,omitempty"`
	QuickReplies []QuickReply `json:"quick_replies,omitempty" yaml:"quick_replies,omitempty"`
}

// Output is a templated output produced by a triggered behavior.
type Output struct {
	Type  OutputType `json:"type" yaml:"type"`
	Value string     `json:"value" yaml:"value"`
}

// OutputType selects the templating mode of an output.
type OutputType string

const (
	OutputText OutputType = "text"
	OutputHTML OutputType = "html"
)

// QuickReply is a suggested user reply attached to a behavior's output.
type QuickReply struct {
	Value       string `json:"value" yaml:"value"`
	Expressions string `json:"expressions,omitempty" yaml:"expressions,omitempty"`
	IsDefault   bool   `json:"is_default,omitempty" yaml:"is_default,omitempty"`
}
