// Package native defines the engine-side expression graph and the Engine
// capability that compiles a boolean Condition against an Arrow schema and
// applies the compiled Filter to record batches.
//
// A graph is built from three node types:
//
//	FieldNode     reads a column of the batch
//	LiteralNode   a constant of type int32, bool, float32 or float64
//	FunctionNode  calls a Registry function such as "greater_than" or "castFLOAT8"
//
// Function calls are strictly typed: both operands of a binary function share
// one Arrow type, so mixed-type expressions carry explicit cast nodes.
//
// VectorEngine is the in-process implementation. The duckdb subpackage
// provides an engine that renders conditions to SQL.
//
// Evaluation produces a SelectionVector, the ascending positions of the rows
// for which the condition is true:
//
//	f, err := eng.Compile(schema, cond)
//	if err != nil {
//	    return err
//	}
//	sel, err := eng.Evaluate(f, rec)
package native
