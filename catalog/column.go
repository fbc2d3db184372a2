package catalog

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/viraaj-s/AliceO2/expressions"
)

// ColumnRole tells how a column's values are obtained.
type ColumnRole int

const (
	RolePersistent ColumnRole = iota
	RoleIndex
	RoleDynamic
)

func (r ColumnRole) String() string {
	switch r {
	case RolePersistent:
		return "persistent"
	case RoleIndex:
		return "index"
	case RoleDynamic:
		return "dynamic"
	default:
		return fmt.Sprintf("ColumnRole(%d)", int(r))
	}
}

// ColumnType is the set of Go types a column can hold.
type ColumnType interface {
	int32 | bool | float32 | float64
}

// Column declares one column of a table.
// Build columns with Persistent, Index, Dynamic1 or Dynamic2.
type Column struct {
	Name     string
	Kind     expressions.Kind
	Role     ColumnRole
	Nullable bool

	// Target is the referenced table of an index column.
	Target string

	// Args are the columns a dynamic column is computed from.
	Args []string

	argKinds []expressions.Kind
	compute  func(mem memory.Allocator, args []arrow.Array) (arrow.Array, error)
}

// Persistent declares a stored column of type T.
func Persistent[T ColumnType](name string) Column {
	return Column{Name: name, Kind: expressions.KindOf[T](), Role: RolePersistent}
}

// Index declares a stored int column holding row positions in the target table.
// Negative values mean no referenced row.
func Index(name, target string) Column {
	return Column{Name: name, Kind: expressions.KindInt, Role: RoleIndex, Target: target}
}

// Dynamic1 declares a column computed from one other column.
// A null argument yields a null value.
func Dynamic1[A, R ColumnType](name, arg string, fn func(A) R) Column {
	return Column{
		Name:     name,
		Kind:     expressions.KindOf[R](),
		Role:     RoleDynamic,
		Nullable: true,
		Args:     []string{arg},
		argKinds: []expressions.Kind{expressions.KindOf[A]()},
		compute: func(mem memory.Allocator, args []arrow.Array) (arrow.Array, error) {
			a := args[0]
			return build(mem, a.Len(), func(i int) (R, bool) {
				if a.IsNull(i) {
					var zero R
					return zero, false
				}
				return fn(valueAt[A](a, i)), true
			})
		},
	}
}

// Dynamic2 declares a column computed from two other columns.
// A null argument yields a null value.
func Dynamic2[A, B, R ColumnType](name, argA, argB string, fn func(A, B) R) Column {
	return Column{
		Name:     name,
		Kind:     expressions.KindOf[R](),
		Role:     RoleDynamic,
		Nullable: true,
		Args:     []string{argA, argB},
		argKinds: []expressions.Kind{expressions.KindOf[A](), expressions.KindOf[B]()},
		compute: func(mem memory.Allocator, args []arrow.Array) (arrow.Array, error) {
			a, b := args[0], args[1]
			return build(mem, a.Len(), func(i int) (R, bool) {
				if a.IsNull(i) || b.IsNull(i) {
					var zero R
					return zero, false
				}
				return fn(valueAt[A](a, i), valueAt[B](b, i)), true
			})
		},
	}
}

func (c Column) validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: column name is required", ErrInvalidColumn)
	}
	if !c.Kind.Valid() {
		return fmt.Errorf("%w: %s has unsupported kind %s", ErrInvalidColumn, c.Name, c.Kind)
	}
	switch c.Role {
	case RolePersistent:
	case RoleIndex:
		if c.Kind != expressions.KindInt || c.Target == "" {
			return fmt.Errorf("%w: index %s must be int with a target table", ErrInvalidColumn, c.Name)
		}
	case RoleDynamic:
		if c.compute == nil || len(c.Args) == 0 || len(c.Args) != len(c.argKinds) {
			return fmt.Errorf("%w: dynamic %s has no computation", ErrInvalidColumn, c.Name)
		}
	default:
		return fmt.Errorf("%w: %s has role %s", ErrInvalidColumn, c.Name, c.Role)
	}
	return nil
}

func (c Column) field() arrow.Field {
	keys := []string{MetadataRole}
	values := []string{c.Role.String()}
	if c.Role == RoleIndex {
		keys = append(keys, MetadataIndexTarget)
		values = append(values, c.Target)
	}
	return arrow.Field{
		Name:     c.Name,
		Type:     c.Kind.ArrowType(),
		Nullable: c.Nullable,
		Metadata: arrow.NewMetadata(keys, values),
	}
}

// valueAt reads row i of an array whose type was checked against T.
func valueAt[T ColumnType](arr arrow.Array, i int) T {
	var v any
	switch a := arr.(type) {
	case *array.Int32:
		v = a.Value(i)
	case *array.Boolean:
		v = a.Value(i)
	case *array.Float32:
		v = a.Value(i)
	case *array.Float64:
		v = a.Value(i)
	}
	return v.(T)
}

func build[T ColumnType](mem memory.Allocator, n int, value func(i int) (T, bool)) (arrow.Array, error) {
	b := array.NewBuilder(mem, expressions.KindOf[T]().ArrowType())
	defer b.Release()
	b.Reserve(n)

	for i := 0; i < n; i++ {
		v, ok := value(i)
		if !ok {
			b.AppendNull()
			continue
		}
		switch b := b.(type) {
		case *array.Int32Builder:
			b.Append(any(v).(int32))
		case *array.BooleanBuilder:
			b.Append(any(v).(bool))
		case *array.Float32Builder:
			b.Append(any(v).(float32))
		case *array.Float64Builder:
			b.Append(any(v).(float64))
		default:
			return nil, fmt.Errorf("unexpected builder %T", b)
		}
	}
	return b.NewArray(), nil
}
