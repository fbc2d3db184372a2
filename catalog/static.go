package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// StaticCatalog is an in-memory catalog. Tables are added once and never removed.
type StaticCatalog struct {
	mu     sync.RWMutex
	tables map[string]Table
}

// NewStaticCatalog creates a catalog holding the given tables.
func NewStaticCatalog(tables ...Table) (*StaticCatalog, error) {
	c := &StaticCatalog{tables: make(map[string]Table, len(tables))}
	for _, t := range tables {
		if err := c.AddTable(t); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// AddTable registers a table under its name.
func (c *StaticCatalog) AddTable(t Table) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.tables[t.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTable, t.Name())
	}
	c.tables[t.Name()] = t
	return nil
}

// Tables implements Catalog interface.
func (c *StaticCatalog) Tables(ctx context.Context) ([]Table, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]Table, 0, len(c.tables))
	for _, t := range c.tables {
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name() < result[j].Name() })
	return result, nil
}

// Table implements Catalog interface.
func (c *StaticCatalog) Table(ctx context.Context, name string) (Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, ok := c.tables[name]
	if !ok {
		return nil, nil // Not found, not an error
	}
	return t, nil
}

// ResolveIndex returns the table an index column references.
// Returns ErrColumnNotFound if the column is not an index of table.
func ResolveIndex(ctx context.Context, cat Catalog, table Table, column string) (Table, error) {
	for _, c := range table.Columns() {
		if c.Name != column {
			continue
		}
		if c.Role != RoleIndex {
			return nil, fmt.Errorf("%w: %s.%s is %s, not an index", ErrColumnNotFound, table.Name(), column, c.Role)
		}
		target, err := cat.Table(ctx, c.Target)
		if err != nil {
			return nil, err
		}
		if target == nil {
			return nil, fmt.Errorf("%w: %s.%s references unknown table %s", ErrColumnNotFound, table.Name(), column, c.Target)
		}
		return target, nil
	}
	return nil, fmt.Errorf("%w: %s.%s", ErrColumnNotFound, table.Name(), column)
}
