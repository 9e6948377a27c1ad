package schema

import (
	"fmt"

	"github.com/strata-labs/docguard/internal/core"
)

// Validator checks documents against a table's declared columns. Only
// declared columns are checked; extra fields pass through untouched.
type Validator struct {
	schema *core.Schema
}

// NewValidator creates a schema validator for one table.
func NewValidator(schema *core.Schema) *Validator {
	return &Validator{schema: schema}
}

// ValidateDocument validates a complete document, as assembled for an
// insert. Non-nullable declared columns must be present and non-nil.
func (v *Validator) ValidateDocument(doc core.Document) error {
	if doc == nil {
		return fmt.Errorf("document cannot be nil")
	}
	if v.schema == nil {
		return nil
	}
	for _, col := range v.schema.Columns {
		value, exists := doc[col.Name]
		if core.IsNullish(value, exists) {
			if !col.Nullable {
				return fmt.Errorf("column %q cannot be null", col.Name)
			}
			continue
		}
		if err := checkType(col, value); err != nil {
			return fmt.Errorf("column %q: %w", col.Name, err)
		}
	}
	return nil
}

// ValidatePartial validates only the fields present in a partial
// update. Fields without a declared column are accepted.
func (v *Validator) ValidatePartial(partial core.Document) error {
	if partial == nil {
		return fmt.Errorf("partial update cannot be nil")
	}
	if v.schema == nil {
		return nil
	}
	for name, value := range partial {
		col := v.schema.ColumnByName(name)
		if col == nil {
			continue
		}
		if value == nil {
			if !col.Nullable {
				return fmt.Errorf("column %q cannot be null", name)
			}
			continue
		}
		if err := checkType(*col, value); err != nil {
			return fmt.Errorf("column %q: %w", name, err)
		}
	}
	return nil
}

// checkType verifies a value is compatible with the column's declared
// type. Untyped columns accept anything.
func checkType(col core.Column, value interface{}) error {
	switch col.Type {
	case "":
		return nil
	case "string":
		if _, ok := value.(string); !ok {
			return fmt.Errorf("expected string, got %T", value)
		}
	case "bool":
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("expected bool, got %T", value)
		}
	case "int64", "int":
		switch value.(type) {
		case int, int8, int16, int32, int64:
		default:
			return fmt.Errorf("expected integer, got %T", value)
		}
	case "float64", "float":
		switch value.(type) {
		case int, int8, int16, int32, int64, float32, float64:
		default:
			return fmt.Errorf("expected number, got %T", value)
		}
	default:
		// Unknown declared types are accepted rather than rejected, so
		// schemas can carry store-specific type names.
		return nil
	}
	return nil
}
