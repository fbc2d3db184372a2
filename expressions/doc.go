// Package expressions builds typed filter predicates over named columns and
// compiles them for a native engine.
//
// A predicate is an expression tree of literals, column bindings and
// operations, assembled with builder functions:
//
//	x := expressions.Column[float32]("x")
//	y := expressions.Column[int32]("y")
//	f := expressions.NewFilter(expressions.And(
//	    expressions.Greater(x, float32(1.5)),
//	    expressions.Equal(y, 3),
//	))
//
// Every builder consumes its node operands. A node may be used as an operand
// only once; reusing it panics with ErrNodeConsumed.
//
// Compilation runs in four steps, each available on its own:
//
//	ops, err := expressions.CreateOperations(f)                 // post-order linear form
//	err = expressions.CheckSchema(schema, ops)                   // every binding resolves
//	tree, err := expressions.CreateExpressionTree(ops, schema)   // native graph with casts
//	cond, err := expressions.CreateCondition(tree)               // boolean root
//	compiled, err := expressions.CreateFilter(engine, schema, cond)
//
// CreateSelection runs all of them and evaluates one batch. For a stream of
// batches an ExpressionInfoCache compiles each filter once per schema and
// Select applies the compiled filter.
//
// Typing follows int < float < double: mixed numeric operands are widened to
// the wider kind, comparisons return bool, exp, log and log10 return double,
// and abs keeps the operand kind. Booleans only compare with == and != and
// are the only operands of && and ||.
package expressions
