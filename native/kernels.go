package native

import (
	"fmt"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
)

type number interface {
	~int32 | ~float32 | ~float64
}

// column is an intermediate result. A scalar column holds one value that
// stands for every row.
type column[T any] struct {
	values []T
	// valid is nil when no row is null.
	valid  []bool
	scalar bool
}

func (c *column[T]) at(i int) T {
	if c.scalar {
		return c.values[0]
	}
	return c.values[i]
}

func (c *column[T]) ok(i int) bool {
	if c.valid == nil {
		return true
	}
	if c.scalar {
		return c.valid[0]
	}
	return c.valid[i]
}

// kernel produces a *column[T] for a batch.
type kernel func(rec arrow.Record) (any, error)

func loadKernel[T any](idx int, values func(arrow.Array) []T) kernel {
	return func(rec arrow.Record) (any, error) {
		arr := rec.Column(idx)
		col := &column[T]{values: values(arr)}
		if arr.NullN() > 0 {
			col.valid = make([]bool, arr.Len())
			for i := range col.valid {
				col.valid[i] = arr.IsValid(i)
			}
		}
		return col, nil
	}
}

func constKernel[T any](v T) kernel {
	col := &column[T]{values: []T{v}, scalar: true}
	return func(arrow.Record) (any, error) { return col, nil }
}

func argument[T any](k kernel, rec arrow.Record) (*column[T], error) {
	out, err := k(rec)
	if err != nil {
		return nil, err
	}
	col, ok := out.(*column[T])
	if !ok {
		var zero T
		return nil, fmt.Errorf("argument is %T, want column of %T", out, zero)
	}
	return col, nil
}

// unaryKernel applies fn row by row; fn reports false to produce a null.
func unaryKernel[T, R any](arg kernel, fn func(T) (R, bool)) kernel {
	return func(rec arrow.Record) (any, error) {
		a, err := argument[T](arg, rec)
		if err != nil {
			return nil, err
		}
		n := int(rec.NumRows())
		if a.scalar {
			n = 1
		}
		out := &column[R]{values: make([]R, n), scalar: a.scalar}
		for i := 0; i < n; i++ {
			if !a.ok(i) {
				out.setNull(i, n)
				continue
			}
			v, ok := fn(a.at(i))
			if !ok {
				out.setNull(i, n)
				continue
			}
			out.values[i] = v
		}
		return out, nil
	}
}

// binaryKernel applies fn row by row. A null operand yields a null row.
func binaryKernel[T, R any](left, right kernel, fn func(T, T) (R, bool)) kernel {
	return func(rec arrow.Record) (any, error) {
		a, err := argument[T](left, rec)
		if err != nil {
			return nil, err
		}
		b, err := argument[T](right, rec)
		if err != nil {
			return nil, err
		}
		scalar := a.scalar && b.scalar
		n := int(rec.NumRows())
		if scalar {
			n = 1
		}
		out := &column[R]{values: make([]R, n), scalar: scalar}
		for i := 0; i < n; i++ {
			if !a.ok(i) || !b.ok(i) {
				out.setNull(i, n)
				continue
			}
			v, ok := fn(a.at(i), b.at(i))
			if !ok {
				out.setNull(i, n)
				continue
			}
			out.values[i] = v
		}
		return out, nil
	}
}

func (c *column[T]) setNull(i, n int) {
	if c.valid == nil {
		c.valid = make([]bool, n)
		for j := range c.valid {
			c.valid[j] = true
		}
	}
	c.valid[i] = false
}

func numericKernel[T number](name string, args []kernel) (kernel, bool) {
	switch name {
	case FuncGreaterThan:
		return binaryKernel(args[0], args[1], func(a, b T) (bool, bool) { return a > b, true }), true
	case FuncLessThan:
		return binaryKernel(args[0], args[1], func(a, b T) (bool, bool) { return a < b, true }), true
	case FuncGreaterThanOrEqual:
		return binaryKernel(args[0], args[1], func(a, b T) (bool, bool) { return a >= b, true }), true
	case FuncLessThanOrEqual:
		return binaryKernel(args[0], args[1], func(a, b T) (bool, bool) { return a <= b, true }), true
	case FuncEqual:
		return binaryKernel(args[0], args[1], func(a, b T) (bool, bool) { return a == b, true }), true
	case FuncNotEqual:
		return binaryKernel(args[0], args[1], func(a, b T) (bool, bool) { return a != b, true }), true
	case FuncAdd:
		return binaryKernel(args[0], args[1], func(a, b T) (T, bool) { return a + b, true }), true
	case FuncSubtract:
		return binaryKernel(args[0], args[1], func(a, b T) (T, bool) { return a - b, true }), true
	case FuncMultiply:
		return binaryKernel(args[0], args[1], func(a, b T) (T, bool) { return a * b, true }), true
	case FuncDivide:
		return binaryKernel(args[0], args[1], divide[T]), true
	case FuncExp:
		return unaryKernel(args[0], func(a T) (float64, bool) { return math.Exp(float64(a)), true }), true
	case FuncLog:
		return unaryKernel(args[0], func(a T) (float64, bool) { return math.Log(float64(a)), true }), true
	case FuncLog10:
		return unaryKernel(args[0], func(a T) (float64, bool) { return math.Log10(float64(a)), true }), true
	case FuncAbs:
		return unaryKernel(args[0], func(a T) (T, bool) {
			if a < 0 {
				return -a, true
			}
			return a, true
		}), true
	case FuncCastFloat4:
		return unaryKernel(args[0], func(a T) (float32, bool) { return float32(a), true }), true
	case FuncCastFloat8:
		return unaryKernel(args[0], func(a T) (float64, bool) { return float64(a), true }), true
	default:
		return nil, false
	}
}

// divide yields null for an integer division by zero. Float division follows
// IEEE 754.
func divide[T number](a, b T) (T, bool) {
	if _, isInt := any(b).(int32); isInt && b == 0 {
		return 0, false
	}
	return a / b, true
}

func boolKernel(name string, args []kernel) (kernel, bool) {
	switch name {
	case FuncEqual:
		return binaryKernel(args[0], args[1], func(a, b bool) (bool, bool) { return a == b, true }), true
	case FuncNotEqual:
		return binaryKernel(args[0], args[1], func(a, b bool) (bool, bool) { return a != b, true }), true
	case FuncAnd:
		return logicalKernel(args[0], args[1], false), true
	case FuncOr:
		return logicalKernel(args[0], args[1], true), true
	default:
		return nil, false
	}
}

// logicalKernel implements three-valued and/or. dominant is the value that
// decides the result on its own: false for and, true for or.
func logicalKernel(left, right kernel, dominant bool) kernel {
	return func(rec arrow.Record) (any, error) {
		a, err := argument[bool](left, rec)
		if err != nil {
			return nil, err
		}
		b, err := argument[bool](right, rec)
		if err != nil {
			return nil, err
		}
		scalar := a.scalar && b.scalar
		n := int(rec.NumRows())
		if scalar {
			n = 1
		}
		out := &column[bool]{values: make([]bool, n), scalar: scalar}
		for i := 0; i < n; i++ {
			aok, bok := a.ok(i), b.ok(i)
			switch {
			case aok && a.at(i) == dominant, bok && b.at(i) == dominant:
				out.values[i] = dominant
			case aok && bok:
				out.values[i] = !dominant
			default:
				out.setNull(i, n)
			}
		}
		return out, nil
	}
}
