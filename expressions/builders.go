package expressions

import "fmt"

// Operand is accepted on either side of a comparison or arithmetic builder.
// Raw scalars are wrapped into literal nodes of their native kind.
type Operand interface {
	*Node | int | int32 | bool | float32 | float64
}

// Lit returns a literal leaf holding v.
func Lit[T Scalar](v T) *Node {
	return &Node{self: LiteralNode{Value: ValueOf(v)}}
}

// NewLiteral returns a literal leaf for a runtime value.
// Values outside the four supported kinds fail with ErrUnsupportedType.
func NewLiteral(v any) (*Node, error) {
	val, err := NewValue(v)
	if err != nil {
		return nil, err
	}
	return &Node{self: LiteralNode{Value: val}}, nil
}

// LitValue returns a literal leaf for an already constructed Value.
func LitValue(v Value) *Node {
	if !v.Kind().Valid() {
		panic(fmt.Errorf("%w: literal of kind %s", ErrUnsupportedType, v.Kind()))
	}
	return &Node{self: LiteralNode{Value: v}}
}

// Column returns a binding leaf for a column whose Go type is T.
//
//	x := expressions.Column[float32]("x")
func Column[T Scalar](name string) *Node {
	return Bind(name, KindOf[T]())
}

// Bind returns a binding leaf for a column of the given kind.
func Bind(name string, kind Kind) *Node {
	if !kind.Valid() {
		panic(fmt.Errorf("%w: binding %q of kind %s", ErrUnsupportedType, name, kind))
	}
	return &Node{self: BindingNode{Name: name, Kind: kind}}
}

// Greater returns l > r.
func Greater[L, R Operand](l L, r R) *Node { return binary(OpGreaterThan, l, r) }

// Less returns l < r.
func Less[L, R Operand](l L, r R) *Node { return binary(OpLessThan, l, r) }

// GreaterEqual returns l >= r.
func GreaterEqual[L, R Operand](l L, r R) *Node { return binary(OpGreaterThanOrEqual, l, r) }

// LessEqual returns l <= r.
func LessEqual[L, R Operand](l L, r R) *Node { return binary(OpLessThanOrEqual, l, r) }

// Equal returns l == r.
func Equal[L, R Operand](l L, r R) *Node { return binary(OpEqual, l, r) }

// NotEqual returns l != r.
func NotEqual[L, R Operand](l L, r R) *Node { return binary(OpNotEqual, l, r) }

// Add returns l + r.
func Add[L, R Operand](l L, r R) *Node { return binary(OpAddition, l, r) }

// Sub returns l - r.
func Sub[L, R Operand](l L, r R) *Node { return binary(OpSubtraction, l, r) }

// Mul returns l * r.
func Mul[L, R Operand](l L, r R) *Node { return binary(OpMultiplication, l, r) }

// Div returns l / r.
func Div[L, R Operand](l L, r R) *Node { return binary(OpDivision, l, r) }

// And returns l && r. Both operands must be nodes.
func And(l, r *Node) *Node { return binary(OpLogicalAnd, l, r) }

// Or returns l || r. Both operands must be nodes.
func Or(l, r *Node) *Node { return binary(OpLogicalOr, l, r) }

// Exp returns e^n.
func Exp(n *Node) *Node { return unary(OpExp, n) }

// Log returns the natural logarithm of n.
func Log(n *Node) *Node { return unary(OpLog, n) }

// Log10 returns the base-10 logarithm of n.
func Log10(n *Node) *Node { return unary(OpLog10, n) }

// Abs returns |n|.
func Abs(n *Node) *Node { return unary(OpAbs, n) }

// NewOp builds an operation node from an operator tag, as the filter codecs do.
// right must be nil for unary operators.
func NewOp(op BasicOp, left, right *Node) (*Node, error) {
	switch {
	case !op.Valid():
		return nil, fmt.Errorf("%w: invalid operator %d", ErrMalformedTree, int(op))
	case left == nil:
		return nil, fmt.Errorf("%w: %s without operand", ErrMalformedTree, op)
	case op.IsUnary() && right != nil:
		return nil, fmt.Errorf("%w: unary %s with two operands", ErrMalformedTree, op)
	case !op.IsUnary() && right == nil:
		return nil, fmt.Errorf("%w: binary %s with one operand", ErrMalformedTree, op)
	case left.consumed || (right != nil && right.consumed):
		return nil, fmt.Errorf("%w: operand of %s", ErrNodeConsumed, op)
	}
	if right == nil {
		return unary(op, left), nil
	}
	return binary(op, left, right), nil
}

func unary(op BasicOp, n *Node) *Node {
	return &Node{self: OpNode{Op: op}, left: n.consume()}
}

func binary[L, R Operand](op BasicOp, l L, r R) *Node {
	left := operandNode(l)
	right := operandNode(r)
	// Both operands are checked before either is consumed so a failed call
	// leaves its arguments usable.
	left.checkAvailable()
	right.checkAvailable()
	if left == right {
		panic(fmt.Errorf("%w: %s used as both operands", ErrNodeConsumed, left))
	}
	return &Node{self: OpNode{Op: op}, left: left.consume(), right: right.consume()}
}

func operandNode[T Operand](v T) *Node {
	switch x := any(v).(type) {
	case *Node:
		return x
	case int:
		return Lit(x)
	case int32:
		return Lit(x)
	case bool:
		return Lit(x)
	case float32:
		return Lit(x)
	case float64:
		return Lit(x)
	default:
		panic(fmt.Errorf("%w: %T", ErrUnsupportedType, v))
	}
}
