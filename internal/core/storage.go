package core

import (
	"context"
	"errors"
)

// ErrDocumentNotFound is returned by Storage.Get and Storage.Patch when
// no document exists under the given id.
var ErrDocumentNotFound = errors.New("document not found")

// Storage defines the document-store primitives the validation layer
// consumes. Implementations exist for memory, Redis, DynamoDB and MySQL.
//
// The layer performs no locking of its own: conflict checks are
// read-then-decide, so correctness under concurrent writers depends on
// the store's own isolation guarantees.
type Storage interface {
	// RegisterSchema makes a table's schema metadata known to the
	// store before any operation touches the table. Adapters use it to
	// maintain secondary indexes; registering the same table again
	// replaces its metadata.
	RegisterSchema(schema *Schema) error

	// Insert stores a new document and returns its generated id.
	// The stored document carries the id under the schema's primary
	// identifier field.
	Insert(ctx context.Context, table string, doc Document) (string, error)

	// Get retrieves a document by id. Returns ErrDocumentNotFound if
	// the id is unknown.
	Get(ctx context.Context, table string, id string) (Document, error)

	// Patch applies a partial update to an existing document. Fields
	// present in partial overwrite the stored values; other fields are
	// untouched. Returns ErrDocumentNotFound if the id is unknown.
	Patch(ctx context.Context, table string, id string, partial Document) error

	// ScanByIndex returns the documents whose indexed field values
	// exactly equal the given values. The values bind a prefix of the
	// index's fields in their declared order. Result order is stable
	// for a given store state.
	ScanByIndex(ctx context.Context, table, indexName string, values []interface{}) ([]Document, error)

	// Close releases any resources held by the store.
	Close() error
}
