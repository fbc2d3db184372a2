package o2

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"reflect"
	"sync/atomic"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/viraaj-s/AliceO2/catalog"
	"github.com/viraaj-s/AliceO2/expressions"
	"github.com/viraaj-s/AliceO2/internal/recovery"
	"github.com/viraaj-s/AliceO2/native"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

var xySchema = arrow.NewSchema([]arrow.Field{
	{Name: "x", Type: arrow.PrimitiveTypes.Float32},
	{Name: "y", Type: arrow.PrimitiveTypes.Int32},
}, nil)

// xyRecord builds {x: [2.0, 1.0, 3.0], y: [3, 3, 4]}.
func xyRecord(t testing.TB, mem memory.Allocator) arrow.Record {
	t.Helper()
	builder := array.NewRecordBuilder(mem, xySchema)
	defer builder.Release()
	builder.Field(0).(*array.Float32Builder).AppendValues([]float32{2.0, 1.0, 3.0}, nil)
	builder.Field(1).(*array.Int32Builder).AppendValues([]int32{3, 3, 4}, nil)
	return builder.NewRecord()
}

func xyFilter() *expressions.Filter {
	return expressions.NewFilter(expressions.And(
		expressions.Greater(expressions.Column[float32]("x"), float32(1.5)),
		expressions.Equal(expressions.Column[int32]("y"), 3),
	))
}

// countingEngine counts compilations of the wrapped vector engine.
type countingEngine struct {
	native.Engine
	compiles atomic.Int64
}

func (e *countingEngine) Compile(schema *arrow.Schema, cond *native.Condition) (native.Filter, error) {
	e.compiles.Add(1)
	return e.Engine.Compile(schema, cond)
}

// panickingEngine panics on every evaluation.
type panickingEngine struct{ native.Engine }

func (panickingEngine) Evaluate(native.Filter, arrow.Record) (*native.SelectionVector, error) {
	panic("engine fault")
}

func TestPipelineProcess(t *testing.T) {
	p, err := NewPipeline(Config{Filters: []*expressions.Filter{xyFilter()}, Logger: quietLogger})
	if err != nil {
		t.Fatalf("NewPipeline() failed: %v", err)
	}

	rec := xyRecord(t, memory.NewGoAllocator())
	defer rec.Release()

	res, err := p.Process(context.Background(), 0, rec)
	if err != nil {
		t.Fatalf("Process() failed: %v", err)
	}
	if !reflect.DeepEqual(res.Selection.Indices(), []uint32{0}) {
		t.Errorf("selection = %v, want [0]", res.Selection.Indices())
	}
}

func TestPipelineIntersectsFilters(t *testing.T) {
	p, err := NewPipeline(Config{
		Filters: []*expressions.Filter{
			expressions.NewFilter(expressions.Greater(expressions.Column[float32]("x"), float32(1.5))),
			expressions.NewFilter(expressions.LessEqual(expressions.Column[int32]("y"), 3)),
		},
		Logger: quietLogger,
	})
	if err != nil {
		t.Fatal(err)
	}

	rec := xyRecord(t, memory.NewGoAllocator())
	defer rec.Release()

	res, err := p.Process(context.Background(), 0, rec)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(res.Selections[0].Indices(), []uint32{0, 2}) {
		t.Errorf("filter 0 = %v, want [0 2]", res.Selections[0].Indices())
	}
	if !reflect.DeepEqual(res.Selections[1].Indices(), []uint32{0, 1}) {
		t.Errorf("filter 1 = %v, want [0 1]", res.Selections[1].Indices())
	}
	if !reflect.DeepEqual(res.Selection.Indices(), []uint32{0}) {
		t.Errorf("combined = %v, want [0]", res.Selection.Indices())
	}
}

func TestPipelineCompilesOncePerSchema(t *testing.T) {
	eng := &countingEngine{Engine: native.NewVectorEngine()}
	p, err := NewPipeline(Config{Filters: []*expressions.Filter{
		expressions.NewFilter(expressions.Greater(expressions.Column[float32]("x"), float32(1.5))),
	}, Engine: eng, Logger: quietLogger})
	if err != nil {
		t.Fatal(err)
	}

	a := xyRecord(t, memory.NewGoAllocator())
	defer a.Release()

	wide := arrow.NewSchema(append(xySchema.Fields(), arrow.Field{Name: "z", Type: arrow.PrimitiveTypes.Float64}), nil)
	builder := array.NewRecordBuilder(memory.NewGoAllocator(), wide)
	defer builder.Release()
	builder.Field(0).(*array.Float32Builder).AppendValues([]float32{5}, nil)
	builder.Field(1).(*array.Int32Builder).AppendValues([]int32{1}, nil)
	builder.Field(2).(*array.Float64Builder).AppendValues([]float64{0}, nil)
	b := builder.NewRecord()
	defer b.Release()

	ctx := context.Background()
	for i, rec := range []arrow.Record{a, a, b, b, a} {
		if _, err := p.Process(ctx, i, rec); err != nil {
			t.Fatalf("batch %d: %v", i, err)
		}
	}
	if got := eng.compiles.Load(); got != 3 {
		t.Errorf("engine compiles = %d, want 3", got)
	}
	if p.Compiles() != 3 {
		t.Errorf("Compiles() = %d, want 3", p.Compiles())
	}
}

func TestPipelineIncompatibleBatch(t *testing.T) {
	other := arrow.NewSchema([]arrow.Field{
		{Name: "x", Type: arrow.PrimitiveTypes.Float64},
		{Name: "y", Type: arrow.PrimitiveTypes.Int32},
	}, nil)
	builder := array.NewRecordBuilder(memory.NewGoAllocator(), other)
	defer builder.Release()
	rec := builder.NewRecord()
	defer rec.Release()

	t.Run("fail", func(t *testing.T) {
		eng := &countingEngine{Engine: native.NewVectorEngine()}
		p, err := NewPipeline(Config{Filters: []*expressions.Filter{xyFilter()}, Engine: eng, Logger: quietLogger})
		if err != nil {
			t.Fatal(err)
		}
		_, err = p.Process(context.Background(), 4, rec)
		if !errors.Is(err, ErrIncompatibleBatch) || !errors.Is(err, expressions.ErrKindMismatch) {
			t.Errorf("error = %v, want ErrIncompatibleBatch wrapping ErrKindMismatch", err)
		}
		if eng.compiles.Load() != 0 {
			t.Error("incompatible batch reached the engine")
		}
	})

	t.Run("skip", func(t *testing.T) {
		p, err := NewPipeline(Config{Filters: []*expressions.Filter{xyFilter()}, SkipIncompatible: true, Logger: quietLogger})
		if err != nil {
			t.Fatal(err)
		}
		res, err := p.Process(context.Background(), 4, rec)
		if err != nil {
			t.Fatalf("Process() failed: %v", err)
		}
		if !res.Skipped || !errors.Is(res.Err, ErrIncompatibleBatch) {
			t.Errorf("result = %+v, want skipped", res)
		}
	})
}

func TestPipelineRecoversEnginePanic(t *testing.T) {
	p, err := NewPipeline(Config{
		Filters: []*expressions.Filter{xyFilter()},
		Engine:  panickingEngine{Engine: native.NewVectorEngine()},
		Logger:  quietLogger,
	})
	if err != nil {
		t.Fatal(err)
	}

	rec := xyRecord(t, memory.NewGoAllocator())
	defer rec.Release()

	if _, err := p.Process(context.Background(), 0, rec); err == nil {
		t.Fatal("Expected error from a panicking engine")
	}
}

func TestPipelineProcessBatches(t *testing.T) {
	eng := &countingEngine{Engine: native.NewVectorEngine()}
	p, err := NewPipeline(Config{Filters: []*expressions.Filter{xyFilter()}, Engine: eng, Workers: 4, Logger: quietLogger})
	if err != nil {
		t.Fatal(err)
	}

	recs := make([]arrow.Record, 16)
	for i := range recs {
		recs[i] = xyRecord(t, memory.NewGoAllocator())
		defer recs[i].Release()
	}

	results, err := p.ProcessBatches(context.Background(), recs)
	if err != nil {
		t.Fatalf("ProcessBatches() failed: %v", err)
	}
	for i, res := range results {
		if res.Batch != i {
			t.Errorf("result %d has batch %d", i, res.Batch)
		}
		if !reflect.DeepEqual(res.Selection.Indices(), []uint32{0}) {
			t.Errorf("batch %d selection = %v", i, res.Selection.Indices())
		}
	}
	if eng.compiles.Load() != 1 {
		t.Errorf("engine compiles = %d, want 1", eng.compiles.Load())
	}
}

func TestPipelineProcessBatchesCancelled(t *testing.T) {
	p, err := NewPipeline(Config{Filters: []*expressions.Filter{xyFilter()}, Logger: quietLogger})
	if err != nil {
		t.Fatal(err)
	}
	rec := xyRecord(t, memory.NewGoAllocator())
	defer rec.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.ProcessBatches(ctx, []arrow.Record{rec}); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestPipelineWithTable(t *testing.T) {
	tracks := catalog.MustTable("tracks", "",
		catalog.Persistent[float32]("x"),
		catalog.Persistent[int32]("y"),
		catalog.Dynamic1("r", "x", func(x float32) float64 { return math.Abs(float64(x) - 2) }),
	)
	r, err := tracks.Binding("r")
	if err != nil {
		t.Fatal(err)
	}

	p, err := NewPipelineBuilder().
		Table(tracks).
		Filter(expressions.NewFilter(expressions.LessEqual(r, 1.0))).
		Logger(quietLogger).
		Build()
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}

	rec := xyRecord(t, memory.NewGoAllocator())
	defer rec.Release()

	var got [][]float32
	err = p.Run(context.Background(), mustReader(t, rec), func(res *Result, selected arrow.Record) error {
		if selected.NumCols() != 2 {
			t.Errorf("selected batch has %d columns, want the 2 stored ones", selected.NumCols())
		}
		got = append(got, append([]float32(nil), selected.Column(0).(*array.Float32).Float32Values()...))
		return nil
	})
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if !reflect.DeepEqual(got, [][]float32{{2, 1, 3}}) {
		t.Errorf("Run() emitted %v", got)
	}
}

func TestPipelineRunRecoversEmitPanic(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	p, err := NewPipeline(Config{Filters: []*expressions.Filter{xyFilter()}, Allocator: mem, Logger: quietLogger})
	if err != nil {
		t.Fatal(err)
	}
	rec := xyRecord(t, mem)
	defer rec.Release()
	rdr, err := array.NewRecordReader(rec.Schema(), []arrow.Record{rec})
	if err != nil {
		t.Fatal(err)
	}
	defer rdr.Release()

	err = p.Run(context.Background(), rdr, func(*Result, arrow.Record) error {
		panic("emit failed")
	})
	if !errors.Is(err, recovery.ErrPanic) {
		t.Errorf("error = %v, want recovery.ErrPanic", err)
	}
}

func mustReader(t *testing.T, recs ...arrow.Record) array.RecordReader {
	t.Helper()
	rdr, err := array.NewRecordReader(recs[0].Schema(), recs)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(rdr.Release)
	return rdr
}
