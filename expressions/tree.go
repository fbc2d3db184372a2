package expressions

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/viraaj-s/AliceO2/native"
)

// CreateExpressionTree rebuilds ops as a native graph bound to schema.
//
// Bindings become field nodes for the schema field of the same name, literals
// become native literals and each slot becomes a function call on the nodes
// of its operands. Operands of different numeric kinds are widened with cast
// nodes first. The schema is validated before anything is built.
func CreateExpressionTree(ops Operations, schema *arrow.Schema) (native.Node, error) {
	if len(ops) == 0 {
		return nil, &MalformedTreeError{Path: "root", Reason: "no operations"}
	}
	if err := CheckSchema(schema, ops); err != nil {
		return nil, err
	}

	nodes := make([]native.Node, len(ops))
	for i, op := range ops {
		if op.Index != i {
			return nil, &MalformedTreeError{Path: fmt.Sprintf("slot %d", i), Reason: fmt.Sprintf("index %d out of order", op.Index)}
		}
		left, leftKind, err := datumNode(op.Left, schema, nodes[:i], ops)
		if err != nil {
			return nil, err
		}
		args := []native.Node{left}
		kinds := []Kind{leftKind}
		if !op.Op.IsUnary() {
			right, rightKind, err := datumNode(op.Right, schema, nodes[:i], ops)
			if err != nil {
				return nil, err
			}
			args = append(args, right)
			kinds = append(kinds, rightKind)
		}

		result, err := resultKind(op.Op, kinds[0], kindAt(kinds, 1))
		if err != nil {
			return nil, fmt.Errorf("slot %d: %w", i, err)
		}
		if op.Op.IsComparison() || op.Op.IsArithmetic() {
			if args, err = widen(op.Op, args, kinds); err != nil {
				return nil, fmt.Errorf("slot %d: %w", i, err)
			}
		}
		nodes[i] = native.NewFunctionNode(op.Op.FunctionName(), args, result.ArrowType())
	}
	return nodes[len(nodes)-1], nil
}

func kindAt(kinds []Kind, i int) Kind {
	if i < len(kinds) {
		return kinds[i]
	}
	return KindUnknown
}

func datumNode(d DatumSpec, schema *arrow.Schema, built []native.Node, ops Operations) (native.Node, Kind, error) {
	switch d.Source {
	case DatumSlot:
		if d.Slot < 0 || d.Slot >= len(built) {
			return nil, KindUnknown, &MalformedTreeError{Path: fmt.Sprintf("slot %d", len(built)), Reason: fmt.Sprintf("forward reference to slot %d", d.Slot)}
		}
		return built[d.Slot], ops[d.Slot].Result, nil
	case DatumLiteral:
		lit, err := native.NewLiteralNode(d.Literal.Any())
		if err != nil {
			return nil, KindUnknown, fmt.Errorf("%w: %w", ErrUnsupportedType, err)
		}
		return lit, d.Literal.Kind(), nil
	case DatumBinding:
		field := schema.Field(schema.FieldIndices(d.Binding.Name)[0])
		return native.NewFieldNode(field), d.Binding.Kind, nil
	default:
		return nil, KindUnknown, &MalformedTreeError{Path: fmt.Sprintf("slot %d", len(built)), Reason: "missing operand"}
	}
}

// widen casts the narrower numeric operand to the kind of the wider one.
func widen(op BasicOp, args []native.Node, kinds []Kind) ([]native.Node, error) {
	if kinds[0] == kinds[1] {
		return args, nil
	}
	target, err := promote(op, kinds[0], kinds[1])
	if err != nil {
		return nil, err
	}
	for i := range args {
		if kinds[i] != target {
			args[i] = castNode(args[i], target)
		}
	}
	return args, nil
}

func castNode(n native.Node, to Kind) native.Node {
	name := native.FuncCastFloat8
	if to == KindFloat {
		name = native.FuncCastFloat4
	}
	return native.NewFunctionNode(name, []native.Node{n}, to.ArrowType())
}

// CreateCondition wraps a graph root as a condition. A root that does not
// produce a boolean fails with native.ErrNonBooleanCondition.
func CreateCondition(root native.Node) (*native.Condition, error) {
	return native.NewCondition(root)
}

// CreateFilter compiles cond for schema. Engine errors are returned as is.
func CreateFilter(eng native.Engine, schema *arrow.Schema, cond *native.Condition) (native.Filter, error) {
	if eng == nil {
		return nil, ErrNoEngine
	}
	f, err := eng.Compile(schema, cond)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", cond, err)
	}
	return f, nil
}

// CreateFilterFromOperations builds the graph and condition for ops and compiles them.
func CreateFilterFromOperations(eng native.Engine, schema *arrow.Schema, ops Operations) (native.Filter, error) {
	if eng == nil {
		return nil, ErrNoEngine
	}
	root, err := CreateExpressionTree(ops, schema)
	if err != nil {
		return nil, err
	}
	cond, err := CreateCondition(root)
	if err != nil {
		return nil, err
	}
	return CreateFilter(eng, schema, cond)
}
