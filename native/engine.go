package native

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
)

// Engine compiles conditions into filters and applies them to batches.
//
// Compile is the expensive step and is expected to run once per distinct
// (condition, schema) pair. Compiled filters are immutable and Evaluate may
// be called concurrently with the same filter on different batches.
type Engine interface {
	Compile(schema *arrow.Schema, cond *Condition) (Filter, error)
	Evaluate(f Filter, rec arrow.Record) (*SelectionVector, error)
}

// Filter is an engine-specific compiled condition.
type Filter interface {
	// Schema is the schema the filter was compiled against.
	Schema() *arrow.Schema
	Condition() *Condition
}

// CheckRecord verifies that rec can be evaluated by f.
func CheckRecord(f Filter, rec arrow.Record) error {
	if rec == nil {
		return fmt.Errorf("%w: nil record", ErrEvaluate)
	}
	if !rec.Schema().Equal(f.Schema()) {
		return fmt.Errorf("%w: got %s", ErrSchemaMismatch, rec.Schema())
	}
	return nil
}
