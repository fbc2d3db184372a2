package expressions

import (
	"sync/atomic"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/viraaj-s/AliceO2/native"
)

// countingEngine wraps the vector engine and counts compilations.
type countingEngine struct {
	native.Engine
	compiles atomic.Int32
}

func newCountingEngine() *countingEngine {
	return &countingEngine{Engine: native.NewVectorEngine()}
}

func (e *countingEngine) Compile(schema *arrow.Schema, cond *native.Condition) (native.Filter, error) {
	e.compiles.Add(1)
	return e.Engine.Compile(schema, cond)
}

var xySchema = arrow.NewSchema([]arrow.Field{
	{Name: "x", Type: arrow.PrimitiveTypes.Float32},
	{Name: "y", Type: arrow.PrimitiveTypes.Int32},
}, nil)

// xyRecord builds a {x float32, y int32} batch.
func xyRecord(t *testing.T, xs []float32, ys []int32) arrow.Record {
	t.Helper()
	builder := array.NewRecordBuilder(memory.NewGoAllocator(), xySchema)
	defer builder.Release()
	builder.Field(0).(*array.Float32Builder).AppendValues(xs, nil)
	builder.Field(1).(*array.Int32Builder).AppendValues(ys, nil)
	rec := builder.NewRecord()
	t.Cleanup(rec.Release)
	return rec
}

// xyFilter is (x > 1.5f) && (y == 3).
func xyFilter() *Filter {
	return NewFilter(And(
		Greater(Column[float32]("x"), float32(1.5)),
		Equal(Column[int32]("y"), 3),
	))
}

func mustOperations(t *testing.T, f *Filter) Operations {
	t.Helper()
	ops, err := CreateOperations(f)
	if err != nil {
		t.Fatalf("CreateOperations() failed: %v", err)
	}
	return ops
}

func expectPanic(t *testing.T, fn func()) any {
	t.Helper()
	var recovered any
	func() {
		defer func() { recovered = recover() }()
		fn()
	}()
	if recovered == nil {
		t.Fatal("Expected panic, got none")
	}
	return recovered
}
