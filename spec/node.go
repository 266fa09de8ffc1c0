package spec

// Node is one statement of a parsed prompt file. The set of implementations
// is closed; interpreters switch over the concrete types below.
type Node interface {
	node()
}

// Block is an ordered sequence of nodes; blocks nest arbitrarily.
type Block []Node

// Metadata holds front matter values as raw source strings.
// Values are not type-coerced: quotes present in source are preserved.
type Metadata map[string]string

type TextNode struct {
	Content string
}

type VariableNode struct {
	Name string
}

type IfNode struct {
	Condition  string
	TrueBlock  Block
	FalseBlock Block // nil when no else branch is present
}

type ForNode struct {
	Iterator string
	Iterable string
	Block    Block
}

type StateNode struct {
	Name         string
	InitialValue string // JSON literal
}

type ImportNode struct {
	Statement string
}

type IncludeNode struct {
	TemplateName string
}

type EffectNode struct {
	Content string
}

func (TextNode) node()     {}
func (VariableNode) node() {}
func (IfNode) node()       {}
func (ForNode) node()      {}
func (StateNode) node()    {}
func (ImportNode) node()   {}
func (IncludeNode) node()  {}
func (EffectNode) node()   {}
