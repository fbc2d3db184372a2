package native

import (
	"errors"
	"fmt"
)

var (
	// ErrNonBooleanCondition indicates a condition root that does not produce a boolean.
	ErrNonBooleanCondition = errors.New("condition root is not boolean")

	// ErrCompile indicates the engine rejected an expression graph.
	ErrCompile = errors.New("filter compilation failed")

	// ErrSchemaMismatch indicates a batch whose schema differs from the compiled filter's schema.
	ErrSchemaMismatch = errors.New("batch schema does not match compiled filter")

	// ErrForeignFilter indicates a filter compiled by another engine.
	ErrForeignFilter = errors.New("filter was compiled by a different engine")

	// ErrEvaluate indicates a failure while applying a compiled filter.
	ErrEvaluate = errors.New("filter evaluation failed")
)

// CompileError reports which node of the graph the engine could not compile.
type CompileError struct {
	// Node is the rendered graph node, e.g. "add(x, 1)".
	Node   string
	Reason string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrCompile, e.Node, e.Reason)
}

func (e *CompileError) Unwrap() error { return ErrCompile }
