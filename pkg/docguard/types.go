// Package docguard is the public entry point of the validation layer:
// a client binds tables to schemas, uniqueness constraints, default
// values and validator plugins, and hands back table handles whose
// Insert/Patch operations enforce all of it in front of the document
// store.
package docguard

import (
	"github.com/strata-labs/docguard/internal/constraint"
	"github.com/strata-labs/docguard/internal/core"
)

// Aliases re-export the shared types callers handle directly.
type (
	// Document is a schemaless record.
	Document = core.Document

	// Schema is a table's metadata: primary id field, columns, indexes.
	Schema = core.Schema

	// Column declares one schema column.
	Column = core.Column

	// Index declares one secondary index.
	Index = core.Index

	// Validator is a named unit of insert/patch-time logic.
	Validator = core.Validator

	// ValidateContext is the per-call value handed to every validator.
	ValidateContext = core.ValidateContext

	// Hook is a single validator callback.
	Hook = core.Hook

	// ConflictResult carries the details of a uniqueness conflict.
	ConflictResult = core.ConflictResult

	// ConflictError is the terminal error of a write that would violate
	// a uniqueness constraint.
	ConflictError = core.ConflictError

	// ConfigurationError reports a bad table/index reference, raised at
	// bind time.
	ConfigurationError = core.ConfigurationError

	// ConstraintRef names a secondary index and, optionally, the
	// identifier fields used for self-match detection.
	ConstraintRef = constraint.Ref
)

// Re-exported sentinels; match with errors.Is.
var (
	ErrUniqueRowConflict    = core.ErrUniqueRowConflict
	ErrUniqueColumnConflict = core.ErrUniqueColumnConflict
	ErrProtectedColumn      = core.ErrProtectedColumn
	ErrDocumentNotFound     = core.ErrDocumentNotFound
)

// IDField is the default primary identifier field of a document.
const IDField = core.IDField
