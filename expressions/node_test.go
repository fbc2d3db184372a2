package expressions

import (
	"errors"
	"testing"
)

func TestBuildersWrapScalars(t *testing.T) {
	tests := []struct {
		name string
		node *Node
		want string
	}{
		{"node scalar", Greater(Column[float32]("x"), float32(1.5)), "(x > 1.5f)"},
		{"scalar node", Less(2, Column[int32]("y")), "(2 < y)"},
		{"node node", Equal(Column[int32]("a"), Column[int32]("b")), "(a == b)"},
		{"double literal", GreaterEqual(Column[float64]("d"), 0.25), "(d >= 0.25)"},
		{"bool literal", NotEqual(Column[bool]("flag"), true), "(flag != true)"},
		{"arithmetic", Mul(Add(Column[int32]("a"), 1), 2), "((a + 1) * 2)"},
		{"unary", Abs(Sub(Column[float32]("x"), float32(5))), "abs((x - 5f))"},
		{"logical", Or(LessEqual(Column[int32]("a"), 0), Log10(Column[float64]("d"))), "((a <= 0) || log10(d))"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.node.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLiteralKinds(t *testing.T) {
	tests := []struct {
		node *Node
		want Kind
	}{
		{Lit(1), KindInt},
		{Lit(int32(-7)), KindInt},
		{Lit(true), KindBool},
		{Lit(float32(0.5)), KindFloat},
		{Lit(0.5), KindDouble},
	}

	for _, tt := range tests {
		lit, ok := tt.node.Literal()
		if !ok {
			t.Fatalf("%s: expected literal node", tt.node)
		}
		if lit.Value.Kind() != tt.want {
			t.Errorf("%s: kind = %s, want %s", tt.node, lit.Value.Kind(), tt.want)
		}
	}
}

func TestNewLiteralRejectsUnsupportedTypes(t *testing.T) {
	for _, v := range []any{int64(1), "x", uint8(1), nil, 1 << 40} {
		if _, err := NewLiteral(v); !errors.Is(err, ErrUnsupportedType) {
			t.Errorf("NewLiteral(%v) error = %v, want ErrUnsupportedType", v, err)
		}
	}
}

func TestLitPanicsOnInt32Overflow(t *testing.T) {
	r := expectPanic(t, func() { Lit(1 << 40) })
	if err, ok := r.(error); !ok || !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("Expected ErrUnsupportedType panic, got %v", r)
	}
}

func TestNodeConsumedOnce(t *testing.T) {
	x := Column[float32]("x")
	_ = Greater(x, float32(1))

	r := expectPanic(t, func() { Less(x, float32(2)) })
	if err, ok := r.(error); !ok || !errors.Is(err, ErrNodeConsumed) {
		t.Errorf("Expected ErrNodeConsumed panic, got %v", r)
	}
}

func TestFailedBuilderKeepsOperands(t *testing.T) {
	a := Column[float32]("a")
	b := Column[float32]("b")
	_ = Abs(b)

	r := expectPanic(t, func() { Greater(a, b) })
	if err, ok := r.(error); !ok || !errors.Is(err, ErrNodeConsumed) {
		t.Fatalf("Expected ErrNodeConsumed panic, got %v", r)
	}
	if got := Greater(a, float32(1)).String(); got != "(a > 1f)" {
		t.Errorf("reused left operand = %s", got)
	}

	c := Column[int32]("c")
	expectPanic(t, func() { Add(c, c) })
	if got := Add(c, 1).String(); got != "(c + 1)" {
		t.Errorf("reused operand = %s", got)
	}
}

func TestNewFilterConsumesRoot(t *testing.T) {
	root := Greater(Column[int32]("a"), 1)
	f := NewFilter(root)
	if f.Root() != root {
		t.Fatal("Root() should return the wrapped node")
	}
	expectPanic(t, func() { NewFilter(root) })
}

func TestNewOp(t *testing.T) {
	n, err := NewOp(OpAbs, Column[int32]("a"), nil)
	if err != nil {
		t.Fatalf("NewOp() failed: %v", err)
	}
	if n.String() != "abs(a)" {
		t.Errorf("String() = %q", n.String())
	}

	if _, err := NewOp(OpAddition, Column[int32]("a"), nil); !errors.Is(err, ErrMalformedTree) {
		t.Errorf("binary op with one operand: error = %v, want ErrMalformedTree", err)
	}
	if _, err := NewOp(OpExp, Column[int32]("a"), Lit(1)); !errors.Is(err, ErrMalformedTree) {
		t.Errorf("unary op with two operands: error = %v, want ErrMalformedTree", err)
	}

	used := Column[int32]("a")
	_ = Abs(used)
	if _, err := NewOp(OpLog, used, nil); !errors.Is(err, ErrNodeConsumed) {
		t.Errorf("consumed operand: error = %v, want ErrNodeConsumed", err)
	}
}

func TestParseOpRoundTrip(t *testing.T) {
	for op := OpGreaterThan; op <= OpAbs; op++ {
		got, err := ParseOp(op.String())
		if err != nil {
			t.Fatalf("ParseOp(%q) failed: %v", op.String(), err)
		}
		if got != op {
			t.Errorf("ParseOp(%q) = %v, want %v", op.String(), got, op)
		}
		if op.FunctionName() == "" {
			t.Errorf("%s has no function name", op)
		}
	}
}
