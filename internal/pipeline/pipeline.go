// Package pipeline runs an ordered chain of validators against an
// in-flight document.
package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/strata-labs/docguard/internal/core"
)

// Run executes each validator's hook for the context's operation, in
// order, feeding each validator the document returned by the previous
// one. Validators without a hook for the operation are skipped. The
// first hook error stops the chain and propagates unmodified; nothing
// has reached storage at that point, so there is nothing to roll back.
//
// Execution is strictly sequential: later validators may depend on the
// document produced by earlier ones, and total ordering keeps
// first-failure reporting deterministic.
func Run(ctx context.Context, validators []core.Validator, vctx *core.ValidateContext, doc core.Document) (core.Document, error) {
	for _, v := range validators {
		hook := v.HookFor(vctx.Operation)
		if hook == nil {
			continue
		}
		next, err := hook(ctx, vctx, doc)
		if err != nil {
			vctx.Logger.Debug("validator rejected document",
				zap.String("table", vctx.Table),
				zap.String("operation", string(vctx.Operation)),
				zap.String("validator", v.Name),
				zap.Error(err))
			return nil, err
		}
		doc = next
	}
	return doc, nil
}
