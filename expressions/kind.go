package expressions

import (
	"fmt"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
)

// Kind identifies the scalar type of a literal or a column binding.
// The set is closed: every value and binding is one of the four kinds below.
type Kind int

const (
	KindUnknown Kind = iota
	KindInt          // int32, Arrow INT32
	KindBool         // bool, Arrow BOOL
	KindFloat        // float32, Arrow FLOAT32
	KindDouble       // float64, Arrow FLOAT64
)

// String returns the lower-case kind name used in filter definitions.
func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindFloat:
		return "float"
	case KindDouble:
		return "double"
	default:
		return "unknown"
	}
}

// ParseKind resolves a kind name as produced by Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "int", "int32":
		return KindInt, nil
	case "bool", "boolean":
		return KindBool, nil
	case "float", "float32":
		return KindFloat, nil
	case "double", "float64":
		return KindDouble, nil
	default:
		return KindUnknown, fmt.Errorf("%w: kind %q", ErrUnsupportedType, s)
	}
}

// Valid reports whether k is one of the four supported kinds.
func (k Kind) Valid() bool {
	return k >= KindInt && k <= KindDouble
}

// Numeric reports whether arithmetic is defined for k.
func (k Kind) Numeric() bool {
	return k == KindInt || k == KindFloat || k == KindDouble
}

// ArrowType returns the Arrow data type a column of this kind must have.
// Returns nil for KindUnknown.
func (k Kind) ArrowType() arrow.DataType {
	switch k {
	case KindInt:
		return arrow.PrimitiveTypes.Int32
	case KindBool:
		return arrow.FixedWidthTypes.Boolean
	case KindFloat:
		return arrow.PrimitiveTypes.Float32
	case KindDouble:
		return arrow.PrimitiveTypes.Float64
	default:
		return nil
	}
}

// KindFromArrow maps an Arrow data type back to a kind.
// Types outside the closed set map to KindUnknown.
func KindFromArrow(dt arrow.DataType) Kind {
	if dt == nil {
		return KindUnknown
	}
	switch dt.ID() {
	case arrow.INT32:
		return KindInt
	case arrow.BOOL:
		return KindBool
	case arrow.FLOAT32:
		return KindFloat
	case arrow.FLOAT64:
		return KindDouble
	default:
		return KindUnknown
	}
}

// Scalar is the set of Go types accepted as literal values and column types.
// int is accepted for untyped integer constants and must fit in int32.
type Scalar interface {
	int | int32 | bool | float32 | float64
}

// KindOf returns the kind selected for the Go type T.
func KindOf[T Scalar]() Kind {
	var zero T
	switch any(zero).(type) {
	case int, int32:
		return KindInt
	case bool:
		return KindBool
	case float32:
		return KindFloat
	default:
		return KindDouble
	}
}

// Value is an immutable scalar constant tagged with its kind.
// The zero Value has KindUnknown and is never produced by a successful constructor.
type Value struct {
	kind Kind
	i    int32
	b    bool
	f    float32
	d    float64
}

// ValueOf builds a Value from a supported Go scalar.
// Panics if an int does not fit in int32.
func ValueOf[T Scalar](v T) Value {
	val, err := NewValue(v)
	if err != nil {
		panic(err)
	}
	return val
}

// NewValue builds a Value from an arbitrary Go value.
// Any type outside int, int32, bool, float32 and float64 fails with ErrUnsupportedType.
func NewValue(v any) (Value, error) {
	switch x := v.(type) {
	case int:
		if x < math.MinInt32 || x > math.MaxInt32 {
			return Value{}, fmt.Errorf("%w: int %d overflows int32", ErrUnsupportedType, x)
		}
		return Value{kind: KindInt, i: int32(x)}, nil
	case int32:
		return Value{kind: KindInt, i: x}, nil
	case bool:
		return Value{kind: KindBool, b: x}, nil
	case float32:
		return Value{kind: KindFloat, f: x}, nil
	case float64:
		return Value{kind: KindDouble, d: x}, nil
	default:
		return Value{}, fmt.Errorf("%w: %T", ErrUnsupportedType, v)
	}
}

// Kind returns the kind tag of the value.
func (v Value) Kind() Kind { return v.kind }

// Int returns the payload of a KindInt value.
func (v Value) Int() int32 { return v.i }

// Bool returns the payload of a KindBool value.
func (v Value) Bool() bool { return v.b }

// Float returns the payload of a KindFloat value.
func (v Value) Float() float32 { return v.f }

// Double returns the payload of a KindDouble value.
func (v Value) Double() float64 { return v.d }

// Any returns the payload as its native Go type (int32, bool, float32 or float64).
func (v Value) Any() any {
	switch v.kind {
	case KindInt:
		return v.i
	case KindBool:
		return v.b
	case KindFloat:
		return v.f
	case KindDouble:
		return v.d
	default:
		return nil
	}
}

// Float64 returns the payload widened to float64. Booleans map to 0 and 1.
func (v Value) Float64() float64 {
	switch v.kind {
	case KindInt:
		return float64(v.i)
	case KindBool:
		if v.b {
			return 1
		}
		return 0
	case KindFloat:
		return float64(v.f)
	default:
		return v.d
	}
}

// Equal reports whether two values have the same kind and payload.
func (v Value) Equal(o Value) bool {
	return v == o
}

// String formats the payload; floats keep a trailing "f" to tell them from doubles.
func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindFloat:
		return fmt.Sprintf("%gf", v.f)
	case KindDouble:
		return fmt.Sprintf("%g", v.d)
	default:
		return "<invalid>"
	}
}

// convertValue coerces a decoded number or bool to the requested kind.
// Used by the filter codecs, where the wire type of a number depends on the encoder.
func convertValue(raw any, kind Kind) (Value, error) {
	switch kind {
	case KindBool:
		b, ok := raw.(bool)
		if !ok {
			return Value{}, fmt.Errorf("%w: %T is not a bool", ErrUnsupportedType, raw)
		}
		return ValueOf(b), nil
	case KindInt, KindFloat, KindDouble:
	default:
		return Value{}, fmt.Errorf("%w: kind %s", ErrUnsupportedType, kind)
	}

	var f float64
	switch x := raw.(type) {
	case int8:
		f = float64(x)
	case int16:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case int:
		f = float64(x)
	case uint8:
		f = float64(x)
	case uint16:
		f = float64(x)
	case uint32:
		f = float64(x)
	case uint64:
		f = float64(x)
	case float32:
		if kind == KindFloat {
			return ValueOf(x), nil
		}
		f = float64(x)
	case float64:
		f = x
	default:
		return Value{}, fmt.Errorf("%w: %T is not a number", ErrUnsupportedType, raw)
	}

	switch kind {
	case KindInt:
		if f != math.Trunc(f) || f < math.MinInt32 || f > math.MaxInt32 {
			return Value{}, fmt.Errorf("%w: %v is not an int32", ErrUnsupportedType, raw)
		}
		return ValueOf(int32(f)), nil
	case KindFloat:
		return ValueOf(float32(f)), nil
	default:
		return ValueOf(f), nil
	}
}
