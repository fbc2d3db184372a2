package catalog

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/viraaj-s/AliceO2/expressions"
)

// Field metadata keys written on the Arrow fields of a table.
const (
	MetadataRole        = "o2.role"
	MetadataIndexTarget = "o2.index_target"
)

// Table describes the columns of one batch type.
// Implementations MUST be goroutine-safe.
type Table interface {
	// Name returns the table name (e.g., "tracks").
	Name() string

	// Comment returns optional table documentation.
	Comment() string

	// Columns returns the declarations in declaration order.
	Columns() []Column

	// ArrowSchema returns the schema of the stored batches:
	// persistent and index columns in declaration order.
	ArrowSchema() *arrow.Schema

	// Materialize returns rec extended with the dynamic columns.
	// Caller MUST call Release() on the returned record.
	Materialize(mem memory.Allocator, rec arrow.Record) (arrow.Record, error)
}

// StaticTable is an immutable table built from column declarations.
type StaticTable struct {
	name    string
	comment string
	columns []Column
	byName  map[string]int
	stored  *arrow.Schema
	full    *arrow.Schema
}

// NewTable validates the declarations and builds a table.
// Dynamic columns may only read columns declared before them.
func NewTable(name, comment string, columns ...Column) (*StaticTable, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: table name is required", ErrInvalidColumn)
	}

	t := &StaticTable{
		name:    name,
		comment: comment,
		columns: append([]Column(nil), columns...),
		byName:  make(map[string]int, len(columns)),
	}

	var stored, full []arrow.Field
	for i, c := range t.columns {
		if err := c.validate(); err != nil {
			return nil, fmt.Errorf("table %s: %w", name, err)
		}
		if _, dup := t.byName[c.Name]; dup {
			return nil, fmt.Errorf("%w: table %s declares %q twice", ErrInvalidColumn, name, c.Name)
		}
		for j, arg := range c.Args {
			idx, ok := t.byName[arg]
			if !ok {
				return nil, fmt.Errorf("%w: %s reads %q, which is not declared before it", ErrInvalidColumn, c.Name, arg)
			}
			if got := t.columns[idx].Kind; got != c.argKinds[j] {
				return nil, fmt.Errorf("%w: %s reads %q as %s, declared %s", ErrInvalidColumn, c.Name, arg, c.argKinds[j], got)
			}
		}
		t.byName[c.Name] = i

		f := c.field()
		full = append(full, f)
		if c.Role != RoleDynamic {
			stored = append(stored, f)
		}
	}

	t.stored = arrow.NewSchema(stored, nil)
	t.full = arrow.NewSchema(full, nil)
	return t, nil
}

// MustTable is NewTable for package-level declarations. Panics on error.
func MustTable(name, comment string, columns ...Column) *StaticTable {
	t, err := NewTable(name, comment, columns...)
	if err != nil {
		panic(err)
	}
	return t
}

// Name implements Table interface.
func (t *StaticTable) Name() string {
	return t.name
}

// Comment implements Table interface.
func (t *StaticTable) Comment() string {
	return t.comment
}

// Columns implements Table interface.
func (t *StaticTable) Columns() []Column {
	return append([]Column(nil), t.columns...)
}

// ArrowSchema implements Table interface.
func (t *StaticTable) ArrowSchema() *arrow.Schema {
	return t.stored
}

// MaterializedSchema returns the schema of batches produced by Materialize.
func (t *StaticTable) MaterializedSchema() *arrow.Schema {
	return t.full
}

// Column returns the declaration of a column.
func (t *StaticTable) Column(name string) (Column, bool) {
	idx, ok := t.byName[name]
	if !ok {
		return Column{}, false
	}
	return t.columns[idx], true
}

// Binding returns an expression leaf bound to the column with its declared kind.
func (t *StaticTable) Binding(name string) (*expressions.Node, error) {
	c, ok := t.Column(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrColumnNotFound, t.name, name)
	}
	return expressions.Bind(c.Name, c.Kind), nil
}

// Materialize implements Table interface.
// Stored columns are looked up by name, so rec may carry extra columns;
// the result holds exactly the columns of MaterializedSchema.
func (t *StaticTable) Materialize(mem memory.Allocator, rec arrow.Record) (arrow.Record, error) {
	if mem == nil {
		mem = memory.DefaultAllocator
	}

	cols := make([]arrow.Array, len(t.columns))
	var computed []arrow.Array
	defer func() {
		for _, arr := range computed {
			arr.Release()
		}
	}()

	for i, c := range t.columns {
		if c.Role != RoleDynamic {
			arr, err := storedColumn(rec, c)
			if err != nil {
				return nil, fmt.Errorf("table %s: %w", t.name, err)
			}
			cols[i] = arr
			continue
		}

		args := make([]arrow.Array, len(c.Args))
		for j, arg := range c.Args {
			args[j] = cols[t.byName[arg]]
		}
		arr, err := c.compute(mem, args)
		if err != nil {
			return nil, fmt.Errorf("table %s: compute %s: %w", t.name, c.Name, err)
		}
		computed = append(computed, arr)
		cols[i] = arr
	}

	return array.NewRecord(t.full, cols, rec.NumRows()), nil
}

func storedColumn(rec arrow.Record, c Column) (arrow.Array, error) {
	indices := rec.Schema().FieldIndices(c.Name)
	if len(indices) == 0 {
		return nil, fmt.Errorf("%w: missing column %q", ErrBatchMismatch, c.Name)
	}
	arr := rec.Column(indices[0])
	if got := expressions.KindFromArrow(arr.DataType()); got != c.Kind {
		return nil, fmt.Errorf("%w: column %q is %s, declared %s", ErrBatchMismatch, c.Name, arr.DataType(), c.Kind)
	}
	return arr, nil
}
