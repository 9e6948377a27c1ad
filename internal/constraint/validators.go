package constraint

import (
	"context"

	"github.com/strata-labs/docguard/internal/core"
)

// NewValidator wraps a resolved constraint entry as a pipeline
// validator. The hook runs for both inserts and patches, passes the
// document through unchanged on PASS and returns the conflict error on
// CONFLICT.
func NewValidator(entry Entry, checker *Checker) core.Validator {
	hook := func(ctx context.Context, vctx *core.ValidateContext, doc core.Document) (core.Document, error) {
		if err := checker.Check(ctx, vctx, entry, doc); err != nil {
			return nil, err
		}
		return doc, nil
	}
	return core.Validator{
		Name:     string(entry.Kind) + ":" + entry.Index,
		Config:   entry,
		OnInsert: hook,
		OnPatch:  hook,
	}
}

// BuildValidators resolves constraint refs into the built-in validator
// chain: unique-row validators first, then unique-column validators,
// each group in configuration order.
func BuildValidators(rowEntries, columnEntries []Entry) []core.Validator {
	checker := NewChecker()
	out := make([]core.Validator, 0, len(rowEntries)+len(columnEntries))
	for _, e := range rowEntries {
		out = append(out, NewValidator(e, checker))
	}
	for _, e := range columnEntries {
		out = append(out, NewValidator(e, checker))
	}
	return out
}
