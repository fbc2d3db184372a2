package expressions

import (
	"github.com/apache/arrow-go/v18/arrow"

	"github.com/viraaj-s/AliceO2/native"
)

// CreateSelection lowers f, validates it against the batch schema, compiles
// it and applies it to rec. Nothing is cached; use an ExpressionInfoCache or
// Select with a compiled filter when the same filter runs over many batches.
func CreateSelection(eng native.Engine, rec arrow.Record, f *Filter) (*native.SelectionVector, error) {
	if eng == nil {
		return nil, ErrNoEngine
	}
	ops, err := CreateOperations(f)
	if err != nil {
		return nil, err
	}
	compiled, err := CreateFilterFromOperations(eng, rec.Schema(), ops)
	if err != nil {
		return nil, err
	}
	return Select(eng, rec, compiled)
}

// Select applies an already compiled filter to rec. It fails with
// native.ErrSchemaMismatch when rec does not have the compiled schema.
func Select(eng native.Engine, rec arrow.Record, compiled native.Filter) (*native.SelectionVector, error) {
	if eng == nil {
		return nil, ErrNoEngine
	}
	if err := native.CheckRecord(compiled, rec); err != nil {
		return nil, err
	}
	return eng.Evaluate(compiled, rec)
}
