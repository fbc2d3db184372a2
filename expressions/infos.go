package expressions

import (
	"log/slog"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/viraaj-s/AliceO2/native"
)

// ExpressionInfo is the compiled state of one configured filter for the
// schema it was last compiled against.
type ExpressionInfo struct {
	// Index identifies the configured filter within a pipeline.
	Index  int
	Schema *arrow.Schema
	Tree   native.Node
	Filter native.Filter
}

// UpdateExpressionInfos returns the compiled state of filter f for schema.
//
// The entry with the given index is reused when its schema equals schema.
// Otherwise f is lowered, validated and compiled again and the entry is
// replaced, or appended when no entry has the index. The returned slice is
// the updated infos; reused reports whether compilation was skipped. On error
// infos is returned unchanged.
func UpdateExpressionInfos(eng native.Engine, f *Filter, index int, schema *arrow.Schema, infos []ExpressionInfo) (updated []ExpressionInfo, info *ExpressionInfo, reused bool, err error) {
	pos := -1
	for i := range infos {
		if infos[i].Index == index {
			pos = i
			break
		}
	}
	if pos >= 0 && infos[pos].Schema != nil && infos[pos].Schema.Equal(schema) {
		return infos, &infos[pos], true, nil
	}

	fresh, err := compileInfo(eng, f, index, schema)
	if err != nil {
		return infos, nil, false, err
	}
	if pos >= 0 {
		infos[pos] = fresh
		return infos, &infos[pos], false, nil
	}
	infos = append(infos, fresh)
	return infos, &infos[len(infos)-1], false, nil
}

func compileInfo(eng native.Engine, f *Filter, index int, schema *arrow.Schema) (ExpressionInfo, error) {
	if eng == nil {
		return ExpressionInfo{}, ErrNoEngine
	}
	ops, err := CreateOperations(f)
	if err != nil {
		return ExpressionInfo{}, err
	}
	tree, err := CreateExpressionTree(ops, schema)
	if err != nil {
		return ExpressionInfo{}, err
	}
	cond, err := CreateCondition(tree)
	if err != nil {
		return ExpressionInfo{}, err
	}
	compiled, err := CreateFilter(eng, schema, cond)
	if err != nil {
		return ExpressionInfo{}, err
	}
	return ExpressionInfo{Index: index, Schema: schema, Tree: tree, Filter: compiled}, nil
}

// ExpressionInfoCache keeps the compiled state of several filters across a
// stream of batches. Lookups and recompilation are serialized; the compiled
// filters it returns can be evaluated concurrently.
type ExpressionInfoCache struct {
	eng    native.Engine
	logger *slog.Logger

	mu       sync.Mutex
	infos    []ExpressionInfo
	compiles int
}

// NewExpressionInfoCache returns an empty cache compiling with eng.
// A nil logger uses slog.Default().
func NewExpressionInfoCache(eng native.Engine, logger *slog.Logger) *ExpressionInfoCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExpressionInfoCache{eng: eng, logger: logger}
}

// Get returns the compiled filter for (index, schema), compiling f on a miss.
// The returned value is a copy and stays valid after later updates.
func (c *ExpressionInfoCache) Get(f *Filter, index int, schema *arrow.Schema) (ExpressionInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	infos, info, reused, err := UpdateExpressionInfos(c.eng, f, index, schema, c.infos)
	if err != nil {
		return ExpressionInfo{}, err
	}
	c.infos = infos
	if reused {
		return *info, nil
	}
	c.compiles++
	c.logger.Debug("Compiled filter", "index", index, "filter", f.String(), "compiles", c.compiles)
	return *info, nil
}

// Compiles returns how many times a filter was compiled.
func (c *ExpressionInfoCache) Compiles() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.compiles
}

// Infos returns a snapshot of the cache entries.
func (c *ExpressionInfoCache) Infos() []ExpressionInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ExpressionInfo, len(c.infos))
	copy(out, c.infos)
	return out
}

// Reset drops every entry.
func (c *ExpressionInfoCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.infos = nil
}
