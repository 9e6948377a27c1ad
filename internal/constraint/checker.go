package constraint

import (
	"context"
	"reflect"

	"go.uber.org/zap"

	"github.com/strata-labs/docguard/internal/core"
)

// Checker decides PASS or CONFLICT for one constraint entry against one
// in-flight write. It is stateless; the per-call state (cached pre-patch
// document, failure callback) lives on the ValidateContext.
type Checker struct{}

// NewChecker creates a uniqueness checker.
func NewChecker() *Checker {
	return &Checker{}
}

// Check runs the uniqueness algorithm for entry against the in-flight
// document. For inserts doc is the complete candidate document; for
// patches it is the partial update, with missing fields read from the
// pre-patch document. Returns nil on PASS and a *core.ConflictError on
// CONFLICT, after notifying the context's failure handler.
func (c *Checker) Check(ctx context.Context, vctx *core.ValidateContext, entry Entry, doc core.Document) error {
	values, skip, err := c.effectiveValues(ctx, vctx, entry, doc)
	if err != nil {
		return err
	}
	if skip {
		// A nullish effective value cannot be a conflict candidate.
		return nil
	}

	matches, err := vctx.Storage.ScanByIndex(ctx, vctx.Table, entry.Index, values)
	if err != nil {
		return err
	}

	for _, match := range matches {
		if vctx.Operation == core.OperationPatch {
			self, err := c.isSelf(ctx, vctx, entry, match)
			if err != nil {
				return err
			}
			if self {
				// The document being patched, re-observed through the
				// index.
				continue
			}
		}

		result := core.ConflictResult{
			Kind:     entry.Kind,
			Table:    vctx.Table,
			Fields:   entry.conflictFields(),
			Existing: match,
		}
		vctx.Logger.Debug("uniqueness conflict",
			zap.String("table", vctx.Table),
			zap.String("index", entry.Index),
			zap.Strings("fields", result.Fields),
			zap.String("existing_id", match.ID()))
		vctx.ReportFailure(result)
		return core.NewConflictError(result)
	}
	return nil
}

// effectiveValues computes the value each index field will hold after
// the operation completes, in the index's declared field order. skip is
// true when a nullish value removes the write from conflict
// consideration.
func (c *Checker) effectiveValues(ctx context.Context, vctx *core.ValidateContext, entry Entry, doc core.Document) (values []interface{}, skip bool, err error) {
	var current core.Document
	if vctx.Operation == core.OperationPatch {
		current, err = vctx.Current(ctx)
		if err != nil {
			return nil, false, err
		}
	}

	values = make([]interface{}, 0, len(entry.Fields))
	for _, field := range entry.Fields {
		v, present := doc[field]
		if !present && current != nil {
			v, present = current[field]
		}
		if core.IsNullish(v, present) && !entry.IncludeNullish {
			return nil, true, nil
		}
		values = append(values, v)
	}
	return values, false, nil
}

// isSelf reports whether an index match is the document being patched.
// All identifier fields must compare equal against the pre-patch
// current document; a partial match is treated as a foreign document.
func (c *Checker) isSelf(ctx context.Context, vctx *core.ValidateContext, entry Entry, match core.Document) (bool, error) {
	current, err := vctx.Current(ctx)
	if err != nil {
		return false, err
	}
	for _, field := range entry.IdentifierFields {
		mv, mok := match[field]
		cv, cok := current[field]
		if mok != cok || !valuesEqual(mv, cv) {
			return false, nil
		}
	}
	return true, nil
}

// valuesEqual compares two field values. Comparable values use ==;
// composite values fall back to deep equality.
func valuesEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == b
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta == tb && ta.Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}
