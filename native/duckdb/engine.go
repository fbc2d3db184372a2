// Package duckdb implements native.Engine on an embedded DuckDB database.
//
// Compile renders the condition as a SQL WHERE clause. Evaluate appends the
// columns the condition reads to a scratch table and selects the positions
// of the matching rows.
package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	goduckdb "github.com/duckdb/duckdb-go/v2"
	"github.com/google/uuid"

	"github.com/viraaj-s/AliceO2/native"
)

// rowColumn holds the batch row position in scratch tables.
const rowColumn = "__o2_row"

// Config configures the DuckDB engine.
type Config struct {
	// DSN of the database. OPTIONAL: defaults to an in-memory database.
	DSN string

	// Registry restricts the accepted functions.
	// OPTIONAL: uses native.DefaultRegistry() if nil.
	Registry *native.Registry

	// Logger for compile and evaluation diagnostics.
	// OPTIONAL: uses slog.Default() if nil.
	Logger *slog.Logger
}

// Engine evaluates conditions with DuckDB. Evaluations are serialized on a
// single connection.
type Engine struct {
	db       *sql.DB
	registry *native.Registry
	logger   *slog.Logger

	mu   sync.Mutex
	conn *sql.Conn
}

// New opens the database and the connection used for evaluation.
func New(ctx context.Context, cfg Config) (*Engine, error) {
	connector, err := goduckdb.NewConnector(cfg.DSN, nil)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	db := sql.OpenDB(connector)

	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect duckdb: %w", err)
	}

	e := &Engine{
		db:       db,
		conn:     conn,
		registry: cfg.Registry,
		logger:   cfg.Logger,
	}
	if e.registry == nil {
		e.registry = native.DefaultRegistry()
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e, nil
}

// Close releases the connection and the database.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.conn.Close(); err != nil {
		e.db.Close()
		return err
	}
	return e.db.Close()
}

type sqlFilter struct {
	schema *arrow.Schema
	cond   *native.Condition
	where  string
	// columns are the schema positions the condition reads, ascending.
	columns []int
}

func (f *sqlFilter) Schema() *arrow.Schema        { return f.schema }
func (f *sqlFilter) Condition() *native.Condition { return f.cond }

// SQL returns the rendered WHERE clause body.
func (f *sqlFilter) SQL() string { return f.where }

// Compile implements native.Engine.
func (e *Engine) Compile(schema *arrow.Schema, cond *native.Condition) (native.Filter, error) {
	if err := e.registry.Check(schema, cond); err != nil {
		return nil, err
	}

	// Scratch columns are named by schema position: field names may be
	// keywords or differ only by case, which DuckDB identifiers cannot express.
	var columns []int
	mapping := make(map[string]string)
	_ = native.Walk(cond.Root(), func(n native.Node) error {
		if f, ok := n.(*native.FieldNode); ok {
			idx := schema.FieldIndices(f.Field.Name)[0]
			if !slices.Contains(columns, idx) {
				columns = append(columns, idx)
				mapping[f.Field.Name] = scratchColumn(idx)
			}
		}
		return nil
	})
	slices.Sort(columns)

	enc := Encoder{ColumnMapping: mapping}
	where, err := enc.EncodeCondition(cond)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("Compiled DuckDB filter", "where", where)
	return &sqlFilter{schema: schema, cond: cond, where: where, columns: columns}, nil
}

// Evaluate implements native.Engine.
func (e *Engine) Evaluate(f native.Filter, rec arrow.Record) (*native.SelectionVector, error) {
	return e.EvaluateContext(context.Background(), f, rec)
}

// EvaluateContext is Evaluate with a context for the database calls.
func (e *Engine) EvaluateContext(ctx context.Context, f native.Filter, rec arrow.Record) (*native.SelectionVector, error) {
	sf, ok := f.(*sqlFilter)
	if !ok {
		return nil, fmt.Errorf("%w: %T", native.ErrForeignFilter, f)
	}
	if err := native.CheckRecord(f, rec); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	table := "batch_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := e.createTable(ctx, table, sf); err != nil {
		return nil, fmt.Errorf("%w: %w", native.ErrEvaluate, err)
	}
	defer func() {
		if _, err := e.conn.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			e.logger.Error("Failed to drop scratch table", "table", table, "error", err)
		}
	}()

	if err := e.appendRecord(table, sf, rec); err != nil {
		return nil, fmt.Errorf("%w: %w", native.ErrEvaluate, err)
	}

	indices, err := e.selectRows(ctx, table, sf.where)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", native.ErrEvaluate, err)
	}
	return native.NewSelectionVector(indices, int(rec.NumRows())), nil
}

func (e *Engine) createTable(ctx context.Context, table string, f *sqlFilter) error {
	defs := []string{rowColumn + " BIGINT"}
	for _, idx := range f.columns {
		field := f.schema.Field(idx)
		defs = append(defs, `"`+scratchColumn(idx)+`" `+sqlType(field.Type.ID()))
	}
	_, err := e.conn.ExecContext(ctx, "CREATE TABLE "+table+" ("+strings.Join(defs, ", ")+")")
	return err
}

func (e *Engine) appendRecord(table string, f *sqlFilter, rec arrow.Record) error {
	return e.conn.Raw(func(raw any) error {
		dc, ok := raw.(driver.Conn)
		if !ok {
			return fmt.Errorf("unexpected driver connection %T", raw)
		}
		appender, err := goduckdb.NewAppenderFromConn(dc, "", table)
		if err != nil {
			return err
		}

		row := make([]driver.Value, len(f.columns)+1)
		for i := 0; i < int(rec.NumRows()); i++ {
			row[0] = int64(i)
			for j, idx := range f.columns {
				row[j+1] = cellValue(rec.Column(idx), i)
			}
			if err := appender.AppendRow(row...); err != nil {
				appender.Close()
				return err
			}
		}
		return appender.Close()
	})
}

func (e *Engine) selectRows(ctx context.Context, table, where string) ([]uint32, error) {
	query := "SELECT " + rowColumn + " FROM " + table + " WHERE " + where + " ORDER BY " + rowColumn
	rows, err := e.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	indices := []uint32{}
	for rows.Next() {
		var i int64
		if err := rows.Scan(&i); err != nil {
			return nil, err
		}
		indices = append(indices, uint32(i))
	}
	return indices, rows.Err()
}

// scratchColumn names the scratch table column holding schema field idx.
func scratchColumn(idx int) string {
	return "c" + strconv.Itoa(idx)
}

func cellValue(col arrow.Array, i int) driver.Value {
	if col.IsNull(i) {
		return nil
	}
	switch c := col.(type) {
	case *array.Int32:
		return c.Value(i)
	case *array.Boolean:
		return c.Value(i)
	case *array.Float32:
		return c.Value(i)
	case *array.Float64:
		return c.Value(i)
	default:
		return nil
	}
}

func sqlType(t arrow.Type) string {
	switch t {
	case arrow.INT32:
		return "INTEGER"
	case arrow.BOOL:
		return "BOOLEAN"
	case arrow.FLOAT32:
		return "FLOAT"
	case arrow.FLOAT64:
		return "DOUBLE"
	default:
		return "VARCHAR"
	}
}
