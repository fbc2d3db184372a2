package expressions

import (
	"fmt"
	"strings"
)

// DatumSource tells which of the DatumSpec fields is meaningful.
type DatumSource int

const (
	// DatumNone marks the absent right operand of a unary operation.
	DatumNone DatumSource = iota
	// DatumSlot references the result of an earlier operation.
	DatumSlot
	// DatumLiteral embeds a constant.
	DatumLiteral
	// DatumBinding embeds a column reference.
	DatumBinding
)

// DatumSpec is one operand of a lowered operation.
type DatumSpec struct {
	Source  DatumSource
	Slot    int
	Literal Value
	Binding BindingNode
}

// Kind returns the operand kind, looking up slot results in ops.
func (d DatumSpec) Kind(ops Operations) Kind {
	switch d.Source {
	case DatumSlot:
		if d.Slot < 0 || d.Slot >= len(ops) {
			return KindUnknown
		}
		return ops[d.Slot].Result
	case DatumLiteral:
		return d.Literal.Kind()
	case DatumBinding:
		return d.Binding.Kind
	default:
		return KindUnknown
	}
}

func (d DatumSpec) String() string {
	switch d.Source {
	case DatumSlot:
		return fmt.Sprintf("$%d", d.Slot)
	case DatumLiteral:
		return d.Literal.String()
	case DatumBinding:
		return fmt.Sprintf("%s:%s", d.Binding.Name, d.Binding.Kind)
	default:
		return "_"
	}
}

// ColumnOperationSpec is one slot of the lowered form.
type ColumnOperationSpec struct {
	Op     BasicOp
	Index  int
	Left   DatumSpec
	Right  DatumSpec
	Result Kind
}

func (s ColumnOperationSpec) String() string {
	if s.Op.IsUnary() {
		return fmt.Sprintf("$%d = %s(%s) :%s", s.Index, s.Op, s.Left, s.Result)
	}
	return fmt.Sprintf("$%d = %s %s %s :%s", s.Index, s.Left, s.Op, s.Right, s.Result)
}

// Operations is a post-order list of lowered operations. Slot references only
// point backwards and the last element is the root.
type Operations []ColumnOperationSpec

// Root returns the root operation.
func (ops Operations) Root() (ColumnOperationSpec, bool) {
	if len(ops) == 0 {
		return ColumnOperationSpec{}, false
	}
	return ops[len(ops)-1], true
}

// Bindings returns every binding operand in slot order, left before right.
// A column used twice is reported twice.
func (ops Operations) Bindings() []BindingNode {
	var out []BindingNode
	for _, op := range ops {
		for _, d := range [2]DatumSpec{op.Left, op.Right} {
			if d.Source == DatumBinding {
				out = append(out, d.Binding)
			}
		}
	}
	return out
}

func (ops Operations) String() string {
	lines := make([]string, len(ops))
	for i, op := range ops {
		lines[i] = op.String()
	}
	return strings.Join(lines, "\n")
}

// CreateOperations flattens the filter tree into Operations.
//
// Each operation node receives the next slot in post-order, left subtree
// first. Literal and binding children are embedded, operation children are
// referenced by slot. Trees that break the arity rules fail with a
// *MalformedTreeError; so does a root that is a bare leaf, since it has no
// operation to evaluate.
func CreateOperations(f *Filter) (Operations, error) {
	root := f.Root()
	if root == nil {
		return nil, &MalformedTreeError{Path: "root", Reason: "filter has no root"}
	}
	if _, ok := root.Operation(); !ok {
		return nil, &MalformedTreeError{Path: "root", Reason: "root is a leaf, not an operation"}
	}

	var ops Operations
	if _, err := lowerNode(root, "root", &ops); err != nil {
		return nil, err
	}
	return ops, nil
}

func lowerNode(n *Node, path string, ops *Operations) (DatumSpec, error) {
	switch self := n.self.(type) {
	case LiteralNode:
		if n.left != nil || n.right != nil {
			return DatumSpec{}, &MalformedTreeError{Path: path, Reason: "literal with children"}
		}
		if !self.Value.Kind().Valid() {
			return DatumSpec{}, &MalformedTreeError{Path: path, Reason: "literal without a kind"}
		}
		return DatumSpec{Source: DatumLiteral, Literal: self.Value}, nil
	case BindingNode:
		if n.left != nil || n.right != nil {
			return DatumSpec{}, &MalformedTreeError{Path: path, Reason: "binding with children"}
		}
		if !self.Kind.Valid() {
			return DatumSpec{}, &MalformedTreeError{Path: path, Reason: fmt.Sprintf("binding %q without a kind", self.Name)}
		}
		return DatumSpec{Source: DatumBinding, Binding: self}, nil
	case OpNode:
		return lowerOp(n, self.Op, path, ops)
	default:
		return DatumSpec{}, &MalformedTreeError{Path: path, Reason: "node has no payload"}
	}
}

func lowerOp(n *Node, op BasicOp, path string, ops *Operations) (DatumSpec, error) {
	switch {
	case !op.Valid():
		return DatumSpec{}, &MalformedTreeError{Path: path, Reason: fmt.Sprintf("invalid operator %d", int(op))}
	case n.left == nil:
		return DatumSpec{}, &MalformedTreeError{Path: path, Reason: fmt.Sprintf("%s without left operand", op)}
	case op.IsUnary() && n.right != nil:
		return DatumSpec{}, &MalformedTreeError{Path: path, Reason: fmt.Sprintf("unary %s with right operand", op)}
	case !op.IsUnary() && n.right == nil:
		return DatumSpec{}, &MalformedTreeError{Path: path, Reason: fmt.Sprintf("binary %s without right operand", op)}
	}

	left, err := lowerNode(n.left, path+".left", ops)
	if err != nil {
		return DatumSpec{}, err
	}
	var right DatumSpec
	if n.right != nil {
		if right, err = lowerNode(n.right, path+".right", ops); err != nil {
			return DatumSpec{}, err
		}
	}

	result, err := resultKind(op, left.Kind(*ops), right.Kind(*ops))
	if err != nil {
		return DatumSpec{}, fmt.Errorf("%s: %w", path, err)
	}

	idx := len(*ops)
	*ops = append(*ops, ColumnOperationSpec{
		Op:     op,
		Index:  idx,
		Left:   left,
		Right:  right,
		Result: result,
	})
	return DatumSpec{Source: DatumSlot, Slot: idx}, nil
}
