package core

import (
	"context"

	"go.uber.org/zap"
)

// OperationType identifies which write path a validation run is part of.
type OperationType string

const (
	// OperationInsert represents an insert of a new document.
	OperationInsert OperationType = "insert"

	// OperationPatch represents a partial update of an existing document.
	OperationPatch OperationType = "patch"
)

// Hook is a single validator callback. It receives the in-flight
// document and returns the document to hand to the next validator;
// pure validators return their input unchanged. Returning an error
// aborts the operation before anything reaches storage.
type Hook func(ctx context.Context, vctx *ValidateContext, doc Document) (Document, error)

// Validator is a named unit of insert/patch-time logic. A validator may
// implement one or both hooks; a nil hook is skipped for that operation.
// Validators are stateless with respect to the pipeline: anything they
// need lives in Config or is fetched live through the context's storage
// handle.
type Validator struct {
	// Name uniquely identifies the validator within a table's chain.
	Name string

	// Config is an opaque value available to the hooks.
	Config interface{}

	// OnInsert runs for insert operations, OnPatch for patches.
	OnInsert Hook
	OnPatch  Hook
}

// HookFor returns the hook matching the operation, or nil.
func (v Validator) HookFor(op OperationType) Hook {
	if op == OperationInsert {
		return v.OnInsert
	}
	return v.OnPatch
}

// FailureHandler is notified synchronously with the conflict details
// before the operation returns its error. It is a side channel only:
// the return is ignored and the error is returned regardless.
type FailureHandler func(ConflictResult)

// ValidateContext is the per-call value handed unchanged to every
// validator in the pipeline. It is constructed once per Insert/Patch
// call and discarded afterwards; it must never be shared across calls.
type ValidateContext struct {
	// Table is the table the operation targets.
	Table string

	// Operation is the kind of write in flight.
	Operation OperationType

	// DocumentID is the id of the document being patched. Empty for
	// inserts.
	DocumentID string

	// Storage is a live handle to the document store, for validators
	// that need to look at existing data.
	Storage Storage

	// Schema is the bound table's schema metadata, if any.
	Schema *Schema

	// OnFail, when set, is invoked with the conflict details before a
	// uniqueness error is returned.
	OnFail FailureHandler

	// Logger is never nil; defaults to a no-op logger.
	Logger *zap.Logger

	// current caches the pre-patch document so that N constraint
	// checks on the same call cost one read, not N.
	current       Document
	currentLoaded bool
}

// NewValidateContext builds a context for one top-level operation call.
func NewValidateContext(table string, op OperationType, docID string, storage Storage, schema *Schema, onFail FailureHandler, logger *zap.Logger) *ValidateContext {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ValidateContext{
		Table:      table,
		Operation:  op,
		DocumentID: docID,
		Storage:    storage,
		Schema:     schema,
		OnFail:     onFail,
		Logger:     logger,
	}
}

// Current returns the pre-patch document for patch operations, fetching
// it from storage on first use and caching it for the rest of the call.
// Returns nil for insert operations.
func (v *ValidateContext) Current(ctx context.Context) (Document, error) {
	if v.Operation != OperationPatch {
		return nil, nil
	}
	if v.currentLoaded {
		return v.current, nil
	}
	doc, err := v.Storage.Get(ctx, v.Table, v.DocumentID)
	if err != nil {
		return nil, err
	}
	v.current = doc
	v.currentLoaded = true
	return doc, nil
}

// ReportFailure invokes the OnFail callback with the conflict details.
// A panicking callback is recovered and logged; the conflict error is
// returned to the caller either way.
func (v *ValidateContext) ReportFailure(result ConflictResult) {
	if v.OnFail == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			v.Logger.Warn("onFail callback panicked",
				zap.String("table", v.Table),
				zap.Any("panic", r))
		}
	}()
	v.OnFail(result)
}
