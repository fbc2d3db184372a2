package expressions

import (
	"fmt"
	"strings"
)

// LiteralNode is a leaf holding a scalar constant.
type LiteralNode struct {
	Value Value
}

// BindingNode is a leaf referencing a named column of a declared kind.
type BindingNode struct {
	Name string
	Kind Kind
}

// OpNode tags an interior node with its operator.
type OpNode struct {
	Op BasicOp
}

// nodeSelf is the closed set of node payloads.
type nodeSelf interface {
	selfMarker()
}

func (LiteralNode) selfMarker() {}
func (BindingNode) selfMarker() {}
func (OpNode) selfMarker()      {}

// Node is an expression tree node: a literal, a binding or an operation with
// one (unary) or two (binary) owned children.
//
// A node owns its children exclusively. Passing a node to a builder consumes
// it, and passing a consumed node again panics with ErrNodeConsumed, so a
// subtree can never be shared between two parents. Once built, a tree is only
// read and may be read from several goroutines.
type Node struct {
	self     nodeSelf
	left     *Node
	right    *Node
	consumed bool
}

// Literal returns the literal payload, if n is a literal leaf.
func (n *Node) Literal() (LiteralNode, bool) {
	l, ok := n.self.(LiteralNode)
	return l, ok
}

// Binding returns the binding payload, if n is a binding leaf.
func (n *Node) Binding() (BindingNode, bool) {
	b, ok := n.self.(BindingNode)
	return b, ok
}

// Operation returns the operation payload, if n is an interior node.
func (n *Node) Operation() (OpNode, bool) {
	o, ok := n.self.(OpNode)
	return o, ok
}

// Left returns the first child, nil for leaves.
func (n *Node) Left() *Node { return n.left }

// Right returns the second child, nil for leaves and unary operations.
func (n *Node) Right() *Node { return n.right }

// consume marks n as owned by a new parent.
func (n *Node) consume() *Node {
	n.checkAvailable()
	n.consumed = true
	return n
}

// checkAvailable panics unless n can still be passed as an operand.
func (n *Node) checkAvailable() {
	if n == nil {
		panic(fmt.Errorf("%w: nil operand", ErrMalformedTree))
	}
	if n.consumed {
		panic(fmt.Errorf("%w: %s", ErrNodeConsumed, n))
	}
}

// String renders the subtree in infix form, e.g. "((x > 1.5) && (y == 3))".
func (n *Node) String() string {
	var sb strings.Builder
	n.write(&sb)
	return sb.String()
}

func (n *Node) write(sb *strings.Builder) {
	if n == nil {
		sb.WriteString("<nil>")
		return
	}
	switch self := n.self.(type) {
	case LiteralNode:
		sb.WriteString(self.Value.String())
	case BindingNode:
		sb.WriteString(self.Name)
	case OpNode:
		if self.Op.IsUnary() {
			sb.WriteString(self.Op.String())
			sb.WriteByte('(')
			n.left.write(sb)
			sb.WriteByte(')')
			return
		}
		sb.WriteByte('(')
		n.left.write(sb)
		sb.WriteByte(' ')
		sb.WriteString(self.Op.String())
		sb.WriteByte(' ')
		n.right.write(sb)
		sb.WriteByte(')')
	default:
		sb.WriteString("<invalid>")
	}
}

// Filter owns the root of a predicate tree and is the unit of compilation.
type Filter struct {
	root *Node
}

// NewFilter wraps root, consuming it.
func NewFilter(root *Node) *Filter {
	return &Filter{root: root.consume()}
}

// Root returns the root node for read-only traversal.
func (f *Filter) Root() *Node {
	if f == nil {
		return nil
	}
	return f.root
}

// String renders the predicate in infix form.
func (f *Filter) String() string {
	return f.Root().String()
}
