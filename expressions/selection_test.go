package expressions

import (
	"errors"
	"reflect"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/viraaj-s/AliceO2/native"
)

func TestCreateSelectionEndToEnd(t *testing.T) {
	rec := xyRecord(t, []float32{2.0, 0.5, 3.0}, []int32{3, 3, 4})

	sel, err := CreateSelection(native.NewVectorEngine(), rec, xyFilter())
	if err != nil {
		t.Fatalf("CreateSelection() failed: %v", err)
	}
	if got := sel.Indices(); !reflect.DeepEqual(got, []uint32{0}) {
		t.Errorf("selection = %v, want [0]", got)
	}
}

func TestCreateSelectionAbsDifference(t *testing.T) {
	schema := arrow.NewSchema([]arrow.Field{{Name: "x", Type: arrow.PrimitiveTypes.Float32}}, nil)
	builder := array.NewRecordBuilder(memory.NewGoAllocator(), schema)
	defer builder.Release()
	builder.Field(0).(*array.Float32Builder).AppendValues([]float32{4.95, 5.2, 5.05}, nil)
	rec := builder.NewRecord()
	defer rec.Release()

	f := NewFilter(LessEqual(Abs(Sub(Column[float32]("x"), float32(5.0))), float32(0.1)))

	sel, err := CreateSelection(native.NewVectorEngine(), rec, f)
	if err != nil {
		t.Fatalf("CreateSelection() failed: %v", err)
	}
	if got := sel.Indices(); !reflect.DeepEqual(got, []uint32{0, 2}) {
		t.Errorf("selection = %v, want [0 2]", got)
	}
}

func TestCreateSelectionUnresolvedBindingBeforeCompile(t *testing.T) {
	rec := xyRecord(t, []float32{1}, []int32{1})
	eng := newCountingEngine()

	f := NewFilter(Greater(Column[int32]("z"), 0))
	_, err := CreateSelection(eng, rec, f)
	if !errors.Is(err, ErrUnresolvedBinding) {
		t.Fatalf("error = %v, want ErrUnresolvedBinding", err)
	}
	if n := eng.compiles.Load(); n != 0 {
		t.Errorf("engine compiled %d times, want 0", n)
	}
}

func TestCompileIdempotent(t *testing.T) {
	rec := xyRecord(t, []float32{2.0, 0.5, 3.0, 1.6}, []int32{3, 3, 4, 3})
	eng := native.NewVectorEngine()
	ops := mustOperations(t, xyFilter())

	first, err := CreateFilterFromOperations(eng, xySchema, ops)
	if err != nil {
		t.Fatalf("first compile failed: %v", err)
	}
	second, err := CreateFilterFromOperations(eng, xySchema, ops)
	if err != nil {
		t.Fatalf("second compile failed: %v", err)
	}

	a, err := Select(eng, rec, first)
	if err != nil {
		t.Fatalf("Select(first) failed: %v", err)
	}
	b, err := Select(eng, rec, second)
	if err != nil {
		t.Fatalf("Select(second) failed: %v", err)
	}
	if !reflect.DeepEqual(a.Indices(), b.Indices()) {
		t.Errorf("compiled filters disagree: %v vs %v", a.Indices(), b.Indices())
	}
	if !reflect.DeepEqual(a.Indices(), []uint32{0, 3}) {
		t.Errorf("selection = %v, want [0 3]", a.Indices())
	}
}

func TestSelectSchemaMismatch(t *testing.T) {
	eng := native.NewVectorEngine()
	compiled, err := CreateFilterFromOperations(eng, xySchema, mustOperations(t, xyFilter()))
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}

	other := arrow.NewSchema([]arrow.Field{
		{Name: "x", Type: arrow.PrimitiveTypes.Float32},
		{Name: "y", Type: arrow.PrimitiveTypes.Int32},
		{Name: "extra", Type: arrow.PrimitiveTypes.Int32},
	}, nil)
	builder := array.NewRecordBuilder(memory.NewGoAllocator(), other)
	defer builder.Release()
	builder.Field(0).(*array.Float32Builder).Append(2)
	builder.Field(1).(*array.Int32Builder).Append(3)
	builder.Field(2).(*array.Int32Builder).Append(0)
	rec := builder.NewRecord()
	defer rec.Release()

	if _, err := Select(eng, rec, compiled); !errors.Is(err, native.ErrSchemaMismatch) {
		t.Errorf("error = %v, want ErrSchemaMismatch", err)
	}
}

func TestSelectAcrossBatches(t *testing.T) {
	eng := native.NewVectorEngine()
	compiled, err := CreateFilterFromOperations(eng, xySchema, mustOperations(t, xyFilter()))
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}

	batches := []struct {
		xs   []float32
		ys   []int32
		want []uint32
	}{
		{[]float32{2, 0.5, 3}, []int32{3, 3, 4}, []uint32{0}},
		{[]float32{9, 9, 9}, []int32{3, 3, 3}, []uint32{0, 1, 2}},
		{[]float32{1, 1}, []int32{3, 3}, []uint32{}},
	}
	for i, b := range batches {
		sel, err := Select(eng, xyRecord(t, b.xs, b.ys), compiled)
		if err != nil {
			t.Fatalf("batch %d: %v", i, err)
		}
		if !reflect.DeepEqual(sel.Indices(), b.want) {
			t.Errorf("batch %d: selection = %v, want %v", i, sel.Indices(), b.want)
		}
	}
}
