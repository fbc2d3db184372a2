package expressions

import (
	"errors"
	"reflect"
	"testing"
)

func TestCreateOperationsPostOrder(t *testing.T) {
	ops := mustOperations(t, xyFilter())

	if len(ops) != 3 {
		t.Fatalf("Expected 3 operations, got %d:\n%s", len(ops), ops)
	}

	want := []struct {
		op     BasicOp
		left   DatumSource
		right  DatumSource
		result Kind
	}{
		{OpGreaterThan, DatumBinding, DatumLiteral, KindBool},
		{OpEqual, DatumBinding, DatumLiteral, KindBool},
		{OpLogicalAnd, DatumSlot, DatumSlot, KindBool},
	}
	for i, w := range want {
		got := ops[i]
		if got.Index != i || got.Op != w.op || got.Left.Source != w.left || got.Right.Source != w.right || got.Result != w.result {
			t.Errorf("slot %d = %s, want op %s", i, got, w.op)
		}
	}

	root, _ := ops.Root()
	if root.Left.Slot != 0 || root.Right.Slot != 1 {
		t.Errorf("root should reference slots 0 and 1, got %s", root)
	}
}

func TestCreateOperationsReferencesPointBackwards(t *testing.T) {
	f := NewFilter(LessEqual(
		Abs(Sub(Column[float32]("x"), float32(5))),
		Add(Mul(Column[int32]("y"), 2), Div(Column[int32]("y"), 3)),
	))
	ops := mustOperations(t, f)

	for i, op := range ops {
		for _, d := range []DatumSpec{op.Left, op.Right} {
			if d.Source == DatumSlot && d.Slot >= i {
				t.Errorf("slot %d references slot %d", i, d.Slot)
			}
		}
	}
	if root, _ := ops.Root(); root.Op != OpLessThanOrEqual {
		t.Errorf("last slot should be the root, got %s", root)
	}
	if got := len(ops.Bindings()); got != 3 {
		t.Errorf("Expected 3 binding operands, got %d", got)
	}
}

func TestCreateOperationsDeterministic(t *testing.T) {
	build := func() *Filter {
		return NewFilter(Or(
			And(Greater(Column[float32]("x"), float32(1.5)), Equal(Column[int32]("y"), 3)),
			Less(Exp(Column[float64]("d")), 10.0),
		))
	}

	first := mustOperations(t, build())
	for i := 0; i < 10; i++ {
		again := mustOperations(t, build())
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("lowering is not deterministic:\n%s\nvs\n%s", first, again)
		}
	}

	// Lowering only reads the tree.
	f := build()
	a := mustOperations(t, f)
	b := mustOperations(t, f)
	if !reflect.DeepEqual(a, b) {
		t.Fatal("lowering the same filter twice differs")
	}
}

func TestCreateOperationsResultKinds(t *testing.T) {
	tests := []struct {
		name string
		root *Node
		want Kind
	}{
		{"int plus float", Add(Column[int32]("y"), float32(1)), KindFloat},
		{"float times double", Mul(Column[float32]("x"), 2.0), KindDouble},
		{"int division", Div(Column[int32]("y"), 2), KindInt},
		{"exp of int", Exp(Column[int32]("y")), KindDouble},
		{"abs keeps kind", Abs(Column[float32]("x")), KindFloat},
		{"comparison", Greater(Column[int32]("y"), 2.5), KindBool},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ops := mustOperations(t, NewFilter(tt.root))
			root, _ := ops.Root()
			if root.Result != tt.want {
				t.Errorf("result kind = %s, want %s", root.Result, tt.want)
			}
		})
	}
}

func TestCreateOperationsTypeMismatch(t *testing.T) {
	tests := []struct {
		name string
		root *Node
	}{
		{"and on numbers", And(Column[int32]("a"), Column[int32]("b"))},
		{"bool arithmetic", Add(Column[bool]("flag"), 1)},
		{"bool ordering", Greater(Column[bool]("flag"), true)},
		{"bool against number", Equal(Column[bool]("flag"), 1)},
		{"log of bool", Log(Column[bool]("flag"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CreateOperations(NewFilter(tt.root))
			if !errors.Is(err, ErrTypeMismatch) {
				t.Errorf("error = %v, want ErrTypeMismatch", err)
			}
		})
	}
}

func TestCreateOperationsMalformed(t *testing.T) {
	leaf := func() *Node { return Column[int32]("a") }

	tests := []struct {
		name string
		root *Node
		path string
	}{
		{
			name: "literal with child",
			root: &Node{self: OpNode{Op: OpEqual}, left: &Node{self: LiteralNode{Value: ValueOf(1)}, left: leaf()}, right: leaf()},
			path: "root.left",
		},
		{
			name: "unary with right child",
			root: &Node{self: OpNode{Op: OpAbs}, left: leaf(), right: leaf()},
			path: "root",
		},
		{
			name: "binary missing right",
			root: &Node{self: OpNode{Op: OpLogicalAnd}, left: &Node{self: OpNode{Op: OpGreaterThan}, left: leaf()}, right: leaf()},
			path: "root.left",
		},
		{
			name: "op without children",
			root: &Node{self: OpNode{Op: OpGreaterThan}},
			path: "root",
		},
		{
			name: "empty payload",
			root: &Node{self: OpNode{Op: OpEqual}, left: leaf(), right: &Node{}},
			path: "root.right",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CreateOperations(&Filter{root: tt.root})
			var mte *MalformedTreeError
			if !errors.As(err, &mte) {
				t.Fatalf("error = %v, want *MalformedTreeError", err)
			}
			if mte.Path != tt.path {
				t.Errorf("Path = %q, want %q", mte.Path, tt.path)
			}
			if !errors.Is(err, ErrMalformedTree) {
				t.Error("error should wrap ErrMalformedTree")
			}
		})
	}
}

func TestCreateOperationsLeafRoot(t *testing.T) {
	for _, root := range []*Node{Column[bool]("flag"), Lit(true)} {
		if _, err := CreateOperations(NewFilter(root)); !errors.Is(err, ErrMalformedTree) {
			t.Errorf("%s: error = %v, want ErrMalformedTree", root, err)
		}
	}
	if _, err := CreateOperations(nil); !errors.Is(err, ErrMalformedTree) {
		t.Errorf("nil filter: error = %v, want ErrMalformedTree", err)
	}
}
