// Package core defines the shared types of the validation layer:
// documents, schemas, the storage contract, conflict errors and the
// per-operation validation context.
package core

// IDField is the default primary identifier field of a document.
const IDField = "_id"

// Document is a schemaless record, the unit every operation works on.
// Values are whatever the caller and the store exchange; adapters that
// round-trip through JSON hand back json.Unmarshal's types.
type Document map[string]interface{}

// ID returns the document's primary identifier, or "" when the
// document carries none under IDField.
func (d Document) ID() string {
	if id, ok := d[IDField].(string); ok {
		return id
	}
	return ""
}

// Clone returns a shallow copy of the document. Nested values are
// shared with the original.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// IsNullish reports whether a field value counts as unset: the field
// is absent from the document, or present with a nil value. The two
// cases are deliberately equivalent everywhere values are judged.
func IsNullish(v interface{}, present bool) bool {
	return !present || v == nil
}
