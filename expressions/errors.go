package expressions

import (
	"errors"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
)

var (
	// ErrUnsupportedType indicates a literal or binding of a type outside the four supported kinds.
	ErrUnsupportedType = errors.New("unsupported scalar type")

	// ErrNodeConsumed indicates a node was used as an operand more than once.
	// Nodes own their children exclusively, so a subtree cannot be shared.
	ErrNodeConsumed = errors.New("expression node already consumed")

	// ErrMalformedTree indicates a node violates the leaf/arity invariants.
	ErrMalformedTree = errors.New("malformed expression tree")

	// ErrUnresolvedBinding indicates a binding names a column absent from the schema.
	ErrUnresolvedBinding = errors.New("binding not found in schema")

	// ErrKindMismatch indicates a binding's declared kind differs from the schema column type.
	ErrKindMismatch = errors.New("binding kind mismatch")

	// ErrTypeMismatch indicates an operator applied to operands of incompatible kinds.
	ErrTypeMismatch = errors.New("operand type mismatch")

	// ErrNoEngine indicates a compile or evaluation request without a native engine.
	ErrNoEngine = errors.New("native engine is required")
)

// MalformedTreeError reports where in the tree an arity invariant was broken.
type MalformedTreeError struct {
	// Path locates the node from the root, e.g. "root.left.right".
	Path   string
	Reason string
}

func (e *MalformedTreeError) Error() string {
	return fmt.Sprintf("%s at %s: %s", ErrMalformedTree, e.Path, e.Reason)
}

func (e *MalformedTreeError) Unwrap() error { return ErrMalformedTree }

// BindingError reports which binding failed schema validation and why.
// It unwraps to ErrUnresolvedBinding or ErrKindMismatch.
type BindingError struct {
	Name string
	Want Kind
	// Got is the schema's type for the column; nil when the column is absent.
	Got arrow.DataType
	err error
}

func (e *BindingError) Error() string {
	if e.Got == nil {
		return fmt.Sprintf("binding %q (%s): %s", e.Name, e.Want, e.err)
	}
	return fmt.Sprintf("binding %q: %s: declared %s, schema has %s", e.Name, e.err, e.Want, e.Got)
}

func (e *BindingError) Unwrap() error { return e.err }
