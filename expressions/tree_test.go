package expressions

import (
	"errors"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/viraaj-s/AliceO2/native"
)

func TestCreateExpressionTree(t *testing.T) {
	ops := mustOperations(t, xyFilter())

	root, err := CreateExpressionTree(ops, xySchema)
	if err != nil {
		t.Fatalf("CreateExpressionTree() failed: %v", err)
	}

	want := "and(greater_than(x, 1.5f), equal(y, 3))"
	if root.String() != want {
		t.Errorf("tree = %s, want %s", root, want)
	}
	if root.ReturnType().ID() != arrow.BOOL {
		t.Errorf("root returns %s, want bool", root.ReturnType())
	}
}

func TestCreateExpressionTreeCasts(t *testing.T) {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "x", Type: arrow.PrimitiveTypes.Float32},
		{Name: "y", Type: arrow.PrimitiveTypes.Int32},
		{Name: "d", Type: arrow.PrimitiveTypes.Float64},
	}, nil)

	tests := []struct {
		name string
		root *Node
		want string
	}{
		{
			name: "int against float literal",
			root: Greater(Column[int32]("y"), float32(1.5)),
			want: "greater_than(castFLOAT4(y), 1.5f)",
		},
		{
			name: "float against double",
			root: Less(Column[float32]("x"), Column[float64]("d")),
			want: "less_than(castFLOAT8(x), d)",
		},
		{
			name: "mixed arithmetic",
			root: GreaterEqual(Add(Column[int32]("y"), Column[float32]("x")), 0.5),
			want: "greater_than_or_equal_to(castFLOAT8(add(castFLOAT4(y), x)), 0.5)",
		},
		{
			name: "unary",
			root: LessEqual(Abs(Sub(Column[float32]("x"), float32(5))), float32(0.1)),
			want: "less_than_or_equal_to(abs(subtract(x, 5f)), 0.1f)",
		},
		{
			name: "log returns double",
			root: Greater(Log(Column[int32]("y")), 1),
			want: "greater_than(log(y), castFLOAT8(1))",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ops := mustOperations(t, NewFilter(tt.root))
			tree, err := CreateExpressionTree(ops, schema)
			if err != nil {
				t.Fatalf("CreateExpressionTree() failed: %v", err)
			}
			if tree.String() != tt.want {
				t.Errorf("tree = %s, want %s", tree, tt.want)
			}
			if err := native.DefaultRegistry().Check(schema, mustCondition(t, tree)); err != nil {
				t.Errorf("tree does not type-check: %v", err)
			}
		})
	}
}

func mustCondition(t *testing.T, root native.Node) *native.Condition {
	t.Helper()
	cond, err := CreateCondition(root)
	if err != nil {
		t.Fatalf("CreateCondition() failed: %v", err)
	}
	return cond
}

func TestCreateExpressionTreeValidatesFirst(t *testing.T) {
	ops := mustOperations(t, NewFilter(Greater(Column[int32]("z"), 1)))
	if _, err := CreateExpressionTree(ops, xySchema); !errors.Is(err, ErrUnresolvedBinding) {
		t.Errorf("error = %v, want ErrUnresolvedBinding", err)
	}
}

func TestCreateConditionRequiresBoolean(t *testing.T) {
	arith := mustOperations(t, NewFilter(Add(Column[float32]("x"), float32(1))))
	tree, err := CreateExpressionTree(arith, xySchema)
	if err != nil {
		t.Fatalf("CreateExpressionTree() failed: %v", err)
	}
	if _, err := CreateCondition(tree); !errors.Is(err, native.ErrNonBooleanCondition) {
		t.Errorf("arithmetic root: error = %v, want ErrNonBooleanCondition", err)
	}

	// Wrapping the same expression in a comparison makes it a valid condition.
	wrapped := mustOperations(t, NewFilter(Greater(Add(Column[float32]("x"), float32(1)), float32(0))))
	tree, err = CreateExpressionTree(wrapped, xySchema)
	if err != nil {
		t.Fatalf("CreateExpressionTree() failed: %v", err)
	}
	if _, err := CreateCondition(tree); err != nil {
		t.Errorf("comparison root: unexpected error %v", err)
	}
}

func TestCreateFilterNoEngine(t *testing.T) {
	ops := mustOperations(t, xyFilter())
	if _, err := CreateFilterFromOperations(nil, xySchema, ops); !errors.Is(err, ErrNoEngine) {
		t.Errorf("error = %v, want ErrNoEngine", err)
	}
}

type rejectingEngine struct{ native.Engine }

func (rejectingEngine) Compile(*arrow.Schema, *native.Condition) (native.Filter, error) {
	return nil, &native.CompileError{Node: "and", Reason: "rejected"}
}

func TestCreateFilterReturnsCompileError(t *testing.T) {
	ops := mustOperations(t, xyFilter())
	_, err := CreateFilterFromOperations(rejectingEngine{}, xySchema, ops)

	var ce *native.CompileError
	if !errors.As(err, &ce) || ce.Reason != "rejected" {
		t.Fatalf("error = %v, want the engine's CompileError", err)
	}
	if !errors.Is(err, native.ErrCompile) {
		t.Error("error should wrap native.ErrCompile")
	}
}
