package expressions

import (
	"github.com/apache/arrow-go/v18/arrow"
)

// IsSchemaCompatible reports whether every binding in ops resolves to a
// schema column of the declared kind.
func IsSchemaCompatible(schema *arrow.Schema, ops Operations) bool {
	return CheckSchema(schema, ops) == nil
}

// CheckSchema validates every binding operand of ops against schema in slot
// order and returns a *BindingError for the first one that fails. A column
// name present more than once in the schema resolves to its first field.
func CheckSchema(schema *arrow.Schema, ops Operations) error {
	for _, b := range ops.Bindings() {
		if err := checkBinding(schema, b); err != nil {
			return err
		}
	}
	return nil
}

func checkBinding(schema *arrow.Schema, b BindingNode) error {
	if schema == nil {
		return &BindingError{Name: b.Name, Want: b.Kind, err: ErrUnresolvedBinding}
	}
	idx := schema.FieldIndices(b.Name)
	if len(idx) == 0 {
		return &BindingError{Name: b.Name, Want: b.Kind, err: ErrUnresolvedBinding}
	}
	field := schema.Field(idx[0])
	if KindFromArrow(field.Type) != b.Kind {
		return &BindingError{Name: b.Name, Want: b.Kind, Got: field.Type, err: ErrKindMismatch}
	}
	return nil
}
