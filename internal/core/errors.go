package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUniqueRowConflict marks conflicts raised by a composite
	// uniqueness constraint. Match with errors.Is.
	ErrUniqueRowConflict = errors.New("unique row conflict")

	// ErrUniqueColumnConflict marks conflicts raised by a single-column
	// uniqueness constraint. Match with errors.Is.
	ErrUniqueColumnConflict = errors.New("unique column conflict")

	// ErrProtectedColumn is returned when an ordinary patch touches a
	// protected column. PatchUnrestricted bypasses this check.
	ErrProtectedColumn = errors.New("protected column")
)

// ConflictKind distinguishes the two uniqueness constraint variants.
type ConflictKind string

const (
	// ConflictKindRow identifies a composite (multi-field) constraint.
	ConflictKindRow ConflictKind = "unique-row"

	// ConflictKindColumn identifies a single-column constraint.
	ConflictKindColumn ConflictKind = "unique-column"
)

// ConflictResult carries the details of a detected uniqueness conflict.
// It is handed to OnFail callbacks and embedded in the ConflictError.
type ConflictResult struct {
	// Kind identifies which constraint variant failed.
	Kind ConflictKind

	// Table is the table the conflicting documents live in.
	Table string

	// Fields are the conflicting field names. A single-column
	// constraint reports exactly one field.
	Fields []string

	// Existing is the full document already holding the values.
	Existing Document
}

// ConflictError is the terminal error of an insert or patch that would
// violate a uniqueness constraint. It unwraps to ErrUniqueRowConflict or
// ErrUniqueColumnConflict depending on the constraint variant.
type ConflictError struct {
	Result ConflictResult
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	fields := strings.Join(e.Result.Fields, ", ")
	if e.Result.Kind == ConflictKindColumn {
		return fmt.Sprintf("table %q: value for column %q already exists (document %s)",
			e.Result.Table, fields, e.Result.Existing.ID())
	}
	return fmt.Sprintf("table %q: row with identical values for (%s) already exists (document %s)",
		e.Result.Table, fields, e.Result.Existing.ID())
}

// Unwrap maps the conflict kind onto its sentinel so callers can branch
// with errors.Is without inspecting the payload.
func (e *ConflictError) Unwrap() error {
	if e.Result.Kind == ConflictKindColumn {
		return ErrUniqueColumnConflict
	}
	return ErrUniqueRowConflict
}

// NewConflictError builds a ConflictError from a conflict result.
func NewConflictError(result ConflictResult) *ConflictError {
	return &ConflictError{Result: result}
}

// ConfigurationError reports an invalid table/index reference or a
// malformed constraint entry. It is raised eagerly when a table is
// bound, never per request.
type ConfigurationError struct {
	Table  string
	Detail string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("configuration error: %s", e.Detail)
	}
	return fmt.Sprintf("configuration error for table %q: %s", e.Table, e.Detail)
}

// NewConfigurationError builds a ConfigurationError for a table.
func NewConfigurationError(table, format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Table: table, Detail: fmt.Sprintf(format, args...)}
}
