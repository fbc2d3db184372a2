package native

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
)

// Node is a vertex of a native expression graph.
type Node interface {
	// ReturnType is the Arrow type the node produces per row.
	ReturnType() arrow.DataType
	String() string
	nativeNode()
}

// FieldNode reads a column of the batch.
type FieldNode struct {
	Field arrow.Field
}

// NewFieldNode returns a node reading the column described by f.
func NewFieldNode(f arrow.Field) *FieldNode {
	return &FieldNode{Field: f}
}

func (n *FieldNode) ReturnType() arrow.DataType { return n.Field.Type }
func (n *FieldNode) String() string             { return n.Field.Name }
func (*FieldNode) nativeNode()                  {}

// LiteralNode is a constant broadcast to every row.
type LiteralNode struct {
	Type arrow.DataType
	// Value is an int32, bool, float32 or float64 matching Type.
	Value any
}

// NewLiteralNode returns a literal of the Arrow type matching v's Go type.
func NewLiteralNode(v any) (*LiteralNode, error) {
	switch v.(type) {
	case int32:
		return &LiteralNode{Type: arrow.PrimitiveTypes.Int32, Value: v}, nil
	case bool:
		return &LiteralNode{Type: arrow.FixedWidthTypes.Boolean, Value: v}, nil
	case float32:
		return &LiteralNode{Type: arrow.PrimitiveTypes.Float32, Value: v}, nil
	case float64:
		return &LiteralNode{Type: arrow.PrimitiveTypes.Float64, Value: v}, nil
	default:
		return nil, fmt.Errorf("unsupported literal type %T", v)
	}
}

func (n *LiteralNode) ReturnType() arrow.DataType { return n.Type }
func (*LiteralNode) nativeNode()                  {}

func (n *LiteralNode) String() string {
	switch v := n.Value.(type) {
	case float32:
		return fmt.Sprintf("%gf", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// FunctionNode calls a registry function on its argument nodes.
type FunctionNode struct {
	Name string
	Args []Node
	Ret  arrow.DataType
}

// NewFunctionNode returns a call of the named function. ret must match the
// registry signature for the argument types or Compile fails.
func NewFunctionNode(name string, args []Node, ret arrow.DataType) *FunctionNode {
	return &FunctionNode{Name: name, Args: args, Ret: ret}
}

func (n *FunctionNode) ReturnType() arrow.DataType { return n.Ret }
func (*FunctionNode) nativeNode()                  {}

func (n *FunctionNode) String() string {
	args := make([]string, len(n.Args))
	for i, a := range n.Args {
		args[i] = a.String()
	}
	return n.Name + "(" + strings.Join(args, ", ") + ")"
}

// Condition is a boolean graph root, the unit handed to Engine.Compile.
type Condition struct {
	root Node
}

// NewCondition wraps root. Roots that do not return a boolean fail with
// ErrNonBooleanCondition.
func NewCondition(root Node) (*Condition, error) {
	if root == nil {
		return nil, fmt.Errorf("%w: nil root", ErrNonBooleanCondition)
	}
	if rt := root.ReturnType(); rt == nil || rt.ID() != arrow.BOOL {
		return nil, fmt.Errorf("%w: %s returns %v", ErrNonBooleanCondition, root, rt)
	}
	return &Condition{root: root}, nil
}

// Root returns the graph root.
func (c *Condition) Root() Node { return c.root }

func (c *Condition) String() string { return c.root.String() }

// Walk visits the graph depth-first, arguments before their function.
func Walk(n Node, fn func(Node) error) error {
	if f, ok := n.(*FunctionNode); ok {
		for _, a := range f.Args {
			if err := Walk(a, fn); err != nil {
				return err
			}
		}
	}
	return fn(n)
}
