package native

import (
	"fmt"
	"log/slog"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// VectorEngine is the in-process engine. Compile turns the graph into a tree
// of typed kernels over the column buffers of a batch; Evaluate runs them and
// collects the rows whose result is true. Rows whose result is null are not
// selected.
type VectorEngine struct {
	registry *Registry
	logger   *slog.Logger
}

// VectorOption configures a VectorEngine.
type VectorOption func(*VectorEngine)

// WithRegistry restricts the engine to the overloads of r.
func WithRegistry(r *Registry) VectorOption {
	return func(e *VectorEngine) { e.registry = r }
}

// WithLogger sets the logger used for compile diagnostics.
func WithLogger(l *slog.Logger) VectorOption {
	return func(e *VectorEngine) { e.logger = l }
}

// NewVectorEngine returns an engine using DefaultRegistry.
func NewVectorEngine(opts ...VectorOption) *VectorEngine {
	e := &VectorEngine{registry: DefaultRegistry(), logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type vectorFilter struct {
	schema *arrow.Schema
	cond   *Condition
	root   kernel
}

func (f *vectorFilter) Schema() *arrow.Schema { return f.schema }
func (f *vectorFilter) Condition() *Condition { return f.cond }

// Compile implements Engine.
func (e *VectorEngine) Compile(schema *arrow.Schema, cond *Condition) (Filter, error) {
	if err := e.registry.Check(schema, cond); err != nil {
		return nil, err
	}
	root, err := e.build(schema, cond.Root())
	if err != nil {
		return nil, err
	}
	e.logger.Debug("Compiled vector filter", "condition", cond.String())
	return &vectorFilter{schema: schema, cond: cond, root: root}, nil
}

// Evaluate implements Engine.
func (e *VectorEngine) Evaluate(f Filter, rec arrow.Record) (*SelectionVector, error) {
	vf, ok := f.(*vectorFilter)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrForeignFilter, f)
	}
	if err := CheckRecord(f, rec); err != nil {
		return nil, err
	}

	out, err := vf.root(rec)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEvaluate, err)
	}
	result, ok := out.(*column[bool])
	if !ok {
		return nil, fmt.Errorf("%w: condition produced %T", ErrEvaluate, out)
	}

	n := int(rec.NumRows())
	indices := make([]uint32, 0, n)
	for i := 0; i < n; i++ {
		if result.ok(i) && result.at(i) {
			indices = append(indices, uint32(i))
		}
	}
	return NewSelectionVector(indices, n), nil
}

func (e *VectorEngine) build(schema *arrow.Schema, n Node) (kernel, error) {
	switch n := n.(type) {
	case *FieldNode:
		idx := schema.FieldIndices(n.Field.Name)[0]
		return fieldKernel(idx, n.Field.Type.ID())
	case *LiteralNode:
		return literalKernel(n.Value)
	case *FunctionNode:
		args := make([]kernel, len(n.Args))
		for i, a := range n.Args {
			k, err := e.build(schema, a)
			if err != nil {
				return nil, err
			}
			args[i] = k
		}
		k, ok := functionKernel(n.Name, n.Args[0].ReturnType().ID(), args)
		if !ok {
			return nil, &CompileError{Node: n.String(), Reason: "function has no vector kernel"}
		}
		return k, nil
	default:
		return nil, &CompileError{Node: fmt.Sprintf("%T", n), Reason: "unknown node type"}
	}
}

func fieldKernel(idx int, t arrow.Type) (kernel, error) {
	switch t {
	case arrow.INT32:
		return loadKernel(idx, func(a arrow.Array) []int32 { return a.(*array.Int32).Int32Values() }), nil
	case arrow.FLOAT32:
		return loadKernel(idx, func(a arrow.Array) []float32 { return a.(*array.Float32).Float32Values() }), nil
	case arrow.FLOAT64:
		return loadKernel(idx, func(a arrow.Array) []float64 { return a.(*array.Float64).Float64Values() }), nil
	case arrow.BOOL:
		return loadKernel(idx, func(a arrow.Array) []bool {
			b := a.(*array.Boolean)
			out := make([]bool, b.Len())
			for i := range out {
				out[i] = b.Value(i)
			}
			return out
		}), nil
	default:
		return nil, &CompileError{Node: fmt.Sprintf("column %d", idx), Reason: fmt.Sprintf("unsupported type %s", t)}
	}
}

func literalKernel(v any) (kernel, error) {
	switch v := v.(type) {
	case int32:
		return constKernel(v), nil
	case bool:
		return constKernel(v), nil
	case float32:
		return constKernel(v), nil
	case float64:
		return constKernel(v), nil
	default:
		return nil, &CompileError{Node: fmt.Sprintf("%v", v), Reason: fmt.Sprintf("unsupported literal type %T", v)}
	}
}

// functionKernel dispatches on the type of the first argument; the registry
// check has already matched the full signature.
func functionKernel(name string, t arrow.Type, args []kernel) (kernel, bool) {
	switch t {
	case arrow.INT32:
		return numericKernel[int32](name, args)
	case arrow.FLOAT32:
		return numericKernel[float32](name, args)
	case arrow.FLOAT64:
		return numericKernel[float64](name, args)
	case arrow.BOOL:
		return boolKernel(name, args)
	default:
		return nil, false
	}
}
