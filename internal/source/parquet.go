// Package source loads flat Parquet files as Arrow record batches whose
// columns use the filter kinds: INT32, BOOLEAN, FLOAT and DOUBLE.
package source

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/segmentio/parquet-go"
)

// DefaultBatchSize is the number of rows per batch when Options.BatchSize is zero.
const DefaultBatchSize = 64 * 1024

var (
	ErrColumnNotFound    = errors.New("column not found")
	ErrUnsupportedColumn = errors.New("unsupported column type")
)

// Options configures a Parquet load.
type Options struct {
	// Columns to load. OPTIONAL. Default: every flat column of a supported type.
	// Naming an unsupported or missing column is an error.
	Columns []string

	// Rows per emitted batch. OPTIONAL. Default: DefaultBatchSize.
	BatchSize int

	// Allocator for the batches. OPTIONAL. Default: memory.DefaultAllocator.
	Allocator memory.Allocator
}

// ReadParquet opens the file at path and loads its rows.
// Caller MUST call Release() on the returned reader.
func ReadParquet(path string, opts Options) (array.RecordReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	return ReadParquetFrom(f, stat.Size(), opts)
}

// column maps one parquet leaf to a position in the Arrow schema.
type column struct {
	field arrow.Field
	index int
}

// ReadParquetFrom loads rows from an in-memory or on-disk Parquet source.
func ReadParquetFrom(r io.ReaderAt, size int64, opts Options) (array.RecordReader, error) {
	mem := opts.Allocator
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	pf, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}

	cols, err := selectColumns(pf.Schema(), opts.Columns)
	if err != nil {
		return nil, err
	}
	fields := make([]arrow.Field, len(cols))
	byIndex := make(map[int]int, len(cols))
	for i, c := range cols {
		fields[i] = c.field
		byIndex[c.index] = i
	}
	schema := arrow.NewSchema(fields, nil)

	builder := array.NewRecordBuilder(mem, schema)
	defer builder.Release()

	var recs []arrow.Record
	release := func() {
		for _, rec := range recs {
			rec.Release()
		}
	}

	pr := parquet.NewReader(pf)
	defer func() { _ = pr.Close() }()

	rows := make([]parquet.Row, batchSize)
	pending := 0
	for {
		n, err := pr.ReadRows(rows)
		for _, row := range rows[:n] {
			for _, v := range row {
				pos, ok := byIndex[v.Column()]
				if !ok {
					continue
				}
				appendValue(builder.Field(pos), v)
			}
			pending++
			if pending == batchSize {
				recs = append(recs, builder.NewRecord())
				pending = 0
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			release()
			return nil, fmt.Errorf("failed to read rows: %w", err)
		}
	}
	if pending > 0 {
		recs = append(recs, builder.NewRecord())
	}

	rdr, err := array.NewRecordReader(schema, recs)
	release()
	if err != nil {
		return nil, err
	}
	return rdr, nil
}

func selectColumns(schema *parquet.Schema, names []string) ([]column, error) {
	if len(names) == 0 {
		var cols []column
		for _, f := range schema.Fields() {
			if !f.Leaf() || f.Repeated() {
				continue
			}
			c, err := lookup(schema, f.Name())
			if errors.Is(err, ErrUnsupportedColumn) {
				continue
			}
			if err != nil {
				return nil, err
			}
			cols = append(cols, c)
		}
		return cols, nil
	}

	cols := make([]column, 0, len(names))
	for _, name := range names {
		c, err := lookup(schema, name)
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return cols, nil
}

func lookup(schema *parquet.Schema, name string) (column, error) {
	leaf, ok := schema.Lookup(name)
	if !ok {
		return column{}, fmt.Errorf("%w: %s", ErrColumnNotFound, name)
	}
	if leaf.Node.Repeated() {
		return column{}, fmt.Errorf("%w: %s is repeated", ErrUnsupportedColumn, name)
	}

	var dt arrow.DataType
	switch kind := leaf.Node.Type().Kind(); kind {
	case parquet.Boolean:
		dt = arrow.FixedWidthTypes.Boolean
	case parquet.Int32:
		dt = arrow.PrimitiveTypes.Int32
	case parquet.Float:
		dt = arrow.PrimitiveTypes.Float32
	case parquet.Double:
		dt = arrow.PrimitiveTypes.Float64
	default:
		return column{}, fmt.Errorf("%w: %s has physical type %s", ErrUnsupportedColumn, name, kind)
	}
	return column{
		field: arrow.Field{Name: name, Type: dt, Nullable: leaf.Node.Optional()},
		index: leaf.ColumnIndex,
	}, nil
}

func appendValue(b array.Builder, v parquet.Value) {
	if v.IsNull() {
		b.AppendNull()
		return
	}
	switch b := b.(type) {
	case *array.BooleanBuilder:
		b.Append(v.Boolean())
	case *array.Int32Builder:
		b.Append(v.Int32())
	case *array.Float32Builder:
		b.Append(v.Float())
	case *array.Float64Builder:
		b.Append(v.Double())
	}
}
