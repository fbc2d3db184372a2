// Package catalog declares the tables a filter pipeline reads.
//
// A table is a list of typed columns with one of three roles:
//   - Persistent columns are stored in the batches.
//   - Index columns are stored int columns that reference rows of another table.
//   - Dynamic columns are computed from other columns when a batch is read.
//
// Filters bind to any of them. Dynamic columns become bindable once
// Materialize has appended them to a batch.
//
// All types are immutable after construction and safe for concurrent use.
package catalog

import (
	"context"
	"errors"
)

var (
	// ErrColumnNotFound is returned when a column name is not declared.
	ErrColumnNotFound = errors.New("column not found")

	// ErrInvalidColumn is returned for a column declaration that cannot be built.
	ErrInvalidColumn = errors.New("invalid column declaration")

	// ErrDuplicateTable is returned when a catalog already holds a table with the same name.
	ErrDuplicateTable = errors.New("duplicate table")

	// ErrBatchMismatch is returned when a batch lacks a stored column or has it with another type.
	ErrBatchMismatch = errors.New("batch does not match table")
)

// Catalog is a named collection of tables.
// All methods MUST be goroutine-safe.
type Catalog interface {
	// Tables returns all tables ordered by name.
	// Returns empty slice (not nil) if no tables available.
	Tables(ctx context.Context) ([]Table, error)

	// Table returns a specific table by name.
	// Returns (nil, nil) if table doesn't exist (not an error).
	Table(ctx context.Context, name string) (Table, error)
}
