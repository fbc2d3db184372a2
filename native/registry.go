package native

import (
	"fmt"
	"slices"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
)

// Function names understood by every engine.
const (
	FuncGreaterThan        = "greater_than"
	FuncLessThan           = "less_than"
	FuncGreaterThanOrEqual = "greater_than_or_equal_to"
	FuncLessThanOrEqual    = "less_than_or_equal_to"
	FuncEqual              = "equal"
	FuncNotEqual           = "not_equal"
	FuncAnd                = "and"
	FuncOr                 = "or"
	FuncAdd                = "add"
	FuncSubtract           = "subtract"
	FuncMultiply           = "multiply"
	FuncDivide             = "divide"
	FuncExp                = "exp"
	FuncLog                = "log"
	FuncLog10              = "log10"
	FuncAbs                = "abs"
	FuncCastFloat4         = "castFLOAT4"
	FuncCastFloat8         = "castFLOAT8"
)

// Signature is one typed overload of a registry function.
type Signature struct {
	Name   string
	Params []arrow.Type
	Result arrow.Type
}

func (s Signature) String() string {
	return signatureKey(s.Name, s.Params) + " " + s.Result.String()
}

func signatureKey(name string, params []arrow.Type) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = p.String()
	}
	return name + "(" + strings.Join(parts, ",") + ")"
}

// Registry holds the function overloads an engine accepts.
// It is read-only after construction and safe for concurrent use.
type Registry struct {
	sigs map[string]Signature
}

// NewRegistry builds a registry from explicit signatures.
func NewRegistry(sigs ...Signature) *Registry {
	r := &Registry{sigs: make(map[string]Signature, len(sigs))}
	for _, s := range sigs {
		r.sigs[signatureKey(s.Name, s.Params)] = s
	}
	return r
}

var defaultRegistry = NewRegistry(defaultSignatures()...)

// DefaultRegistry returns the registry shared by the built-in engines.
func DefaultRegistry() *Registry { return defaultRegistry }

func defaultSignatures() []Signature {
	numeric := []arrow.Type{arrow.INT32, arrow.FLOAT32, arrow.FLOAT64}
	var sigs []Signature
	for _, name := range []string{
		FuncGreaterThan, FuncLessThan, FuncGreaterThanOrEqual,
		FuncLessThanOrEqual, FuncEqual, FuncNotEqual,
	} {
		for _, t := range numeric {
			sigs = append(sigs, Signature{Name: name, Params: []arrow.Type{t, t}, Result: arrow.BOOL})
		}
	}
	for _, name := range []string{FuncEqual, FuncNotEqual, FuncAnd, FuncOr} {
		sigs = append(sigs, Signature{Name: name, Params: []arrow.Type{arrow.BOOL, arrow.BOOL}, Result: arrow.BOOL})
	}
	for _, name := range []string{FuncAdd, FuncSubtract, FuncMultiply, FuncDivide} {
		for _, t := range numeric {
			sigs = append(sigs, Signature{Name: name, Params: []arrow.Type{t, t}, Result: t})
		}
	}
	for _, t := range numeric {
		sigs = append(sigs,
			Signature{Name: FuncExp, Params: []arrow.Type{t}, Result: arrow.FLOAT64},
			Signature{Name: FuncLog, Params: []arrow.Type{t}, Result: arrow.FLOAT64},
			Signature{Name: FuncLog10, Params: []arrow.Type{t}, Result: arrow.FLOAT64},
			Signature{Name: FuncAbs, Params: []arrow.Type{t}, Result: t},
		)
	}
	sigs = append(sigs,
		Signature{Name: FuncCastFloat4, Params: []arrow.Type{arrow.INT32}, Result: arrow.FLOAT32},
		Signature{Name: FuncCastFloat8, Params: []arrow.Type{arrow.INT32}, Result: arrow.FLOAT64},
		Signature{Name: FuncCastFloat8, Params: []arrow.Type{arrow.FLOAT32}, Result: arrow.FLOAT64},
	)
	return sigs
}

// Lookup finds the overload of name for the given argument types.
func (r *Registry) Lookup(name string, args ...arrow.DataType) (Signature, bool) {
	params := make([]arrow.Type, len(args))
	for i, a := range args {
		if a == nil {
			return Signature{}, false
		}
		params[i] = a.ID()
	}
	s, ok := r.sigs[signatureKey(name, params)]
	return s, ok
}

// Signatures lists every overload, sorted by name and parameters.
func (r *Registry) Signatures() []Signature {
	out := make([]Signature, 0, len(r.sigs))
	for _, s := range r.sigs {
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b Signature) int {
		return strings.Compare(signatureKey(a.Name, a.Params), signatureKey(b.Name, b.Params))
	})
	return out
}

// Check type-checks a condition against a schema: fields must exist with the
// same type, and every function call must match an overload whose result is
// the node's declared return type. Failures are *CompileError.
func (r *Registry) Check(schema *arrow.Schema, cond *Condition) error {
	if cond == nil {
		return &CompileError{Node: "<nil>", Reason: "no condition"}
	}
	if schema == nil {
		return &CompileError{Node: cond.String(), Reason: "no schema"}
	}
	return Walk(cond.Root(), func(n Node) error {
		switch n := n.(type) {
		case *FieldNode:
			idx := schema.FieldIndices(n.Field.Name)
			if len(idx) == 0 {
				return &CompileError{Node: n.String(), Reason: "field not in schema"}
			}
			if got := schema.Field(idx[0]).Type; !arrow.TypeEqual(got, n.Field.Type) {
				return &CompileError{Node: n.String(), Reason: fmt.Sprintf("field type %s, schema has %s", n.Field.Type, got)}
			}
		case *LiteralNode:
			if _, err := NewLiteralNode(n.Value); err != nil {
				return &CompileError{Node: n.String(), Reason: err.Error()}
			}
		case *FunctionNode:
			types := make([]arrow.DataType, len(n.Args))
			for i, a := range n.Args {
				types[i] = a.ReturnType()
			}
			sig, ok := r.Lookup(n.Name, types...)
			if !ok {
				return &CompileError{Node: n.String(), Reason: "no matching function signature"}
			}
			if n.Ret == nil || n.Ret.ID() != sig.Result {
				return &CompileError{Node: n.String(), Reason: fmt.Sprintf("declared return %v, function returns %s", n.Ret, sig.Result)}
			}
		default:
			return &CompileError{Node: fmt.Sprintf("%T", n), Reason: "unknown node type"}
		}
		return nil
	})
}
