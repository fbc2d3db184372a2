package expressions

import (
	"errors"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
)

func TestIsSchemaCompatible(t *testing.T) {
	ops := mustOperations(t, xyFilter())

	if !IsSchemaCompatible(xySchema, ops) {
		t.Fatal("filter should be compatible with {x float, y int}")
	}

	// Changing the kind of any single bound column flips the result.
	for i := 0; i < xySchema.NumFields(); i++ {
		fields := append([]arrow.Field(nil), xySchema.Fields()...)
		fields[i].Type = arrow.PrimitiveTypes.Float64
		changed := arrow.NewSchema(fields, nil)

		if IsSchemaCompatible(changed, ops) {
			t.Errorf("changing %q to double should make the schema incompatible", fields[i].Name)
		}
		err := CheckSchema(changed, ops)
		var be *BindingError
		if !errors.As(err, &be) || !errors.Is(err, ErrKindMismatch) {
			t.Fatalf("CheckSchema() error = %v, want kind mismatch", err)
		}
		if be.Name != fields[i].Name || be.Got == nil || be.Got.ID() != arrow.FLOAT64 {
			t.Errorf("unexpected binding error %+v", be)
		}
	}
}

func TestCheckSchemaUnresolvedBinding(t *testing.T) {
	f := NewFilter(And(
		Greater(Column[float32]("x"), float32(0)),
		Equal(Column[int32]("z"), 1),
	))
	ops := mustOperations(t, f)

	err := CheckSchema(xySchema, ops)
	if !errors.Is(err, ErrUnresolvedBinding) {
		t.Fatalf("error = %v, want ErrUnresolvedBinding", err)
	}
	var be *BindingError
	if !errors.As(err, &be) || be.Name != "z" {
		t.Errorf("expected binding error for z, got %v", err)
	}
}

func TestCheckSchemaReportsFirstFailure(t *testing.T) {
	f := NewFilter(And(
		Equal(Column[int32]("missing"), 1),
		Greater(Column[int32]("x"), 0),
	))
	ops := mustOperations(t, f)

	var be *BindingError
	if err := CheckSchema(xySchema, ops); !errors.As(err, &be) || be.Name != "missing" {
		t.Errorf("expected the first binding in slot order to fail, got %v", err)
	}
}

func TestCheckSchemaNilSchema(t *testing.T) {
	ops := mustOperations(t, xyFilter())
	if err := CheckSchema(nil, ops); !errors.Is(err, ErrUnresolvedBinding) {
		t.Errorf("error = %v, want ErrUnresolvedBinding", err)
	}
}

func TestKindArrowMapping(t *testing.T) {
	for _, k := range []Kind{KindInt, KindBool, KindFloat, KindDouble} {
		if got := KindFromArrow(k.ArrowType()); got != k {
			t.Errorf("KindFromArrow(%s.ArrowType()) = %s", k, got)
		}
	}
	if KindFromArrow(arrow.PrimitiveTypes.Int64) != KindUnknown {
		t.Error("int64 must not map to a supported kind")
	}
}
