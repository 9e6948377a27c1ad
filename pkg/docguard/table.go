package docguard

import (
	"context"

	"github.com/strata-labs/docguard/internal/core"
	"github.com/strata-labs/docguard/internal/table"
)

// Table is the handle for operating on one bound table. Every write
// runs the table's full validation chain before anything reaches the
// store.
type Table interface {
	// Insert validates and stores a new document, returning its
	// generated id. Configured defaults are merged under the caller's
	// fields before validation.
	Insert(ctx context.Context, doc Document, opts ...OpOption) (string, error)

	// Patch validates and applies a partial update. It is rejected with
	// ErrProtectedColumn when the update touches a protected column.
	Patch(ctx context.Context, id string, partial Document, opts ...OpOption) error

	// PatchUnrestricted applies a partial update without the
	// protected-column guard. Validators still run; the commit path is
	// the one Patch uses.
	PatchUnrestricted(ctx context.Context, id string, partial Document, opts ...OpOption) error

	// Get retrieves a document by id. Returns ErrDocumentNotFound when
	// the id is unknown.
	Get(ctx context.Context, id string) (Document, error)
}

// tableWrapper adapts the internal orchestrator to the public Table
// interface.
type tableWrapper struct {
	impl *table.TableImpl
}

func (tw *tableWrapper) Insert(ctx context.Context, doc Document, opts ...OpOption) (string, error) {
	return tw.impl.Insert(ctx, doc, failureHandler(opts))
}

func (tw *tableWrapper) Patch(ctx context.Context, id string, partial Document, opts ...OpOption) error {
	return tw.impl.Patch(ctx, id, partial, failureHandler(opts))
}

func (tw *tableWrapper) PatchUnrestricted(ctx context.Context, id string, partial Document, opts ...OpOption) error {
	return tw.impl.PatchUnrestricted(ctx, id, partial, failureHandler(opts))
}

func (tw *tableWrapper) Get(ctx context.Context, id string) (Document, error) {
	return tw.impl.Get(ctx, id)
}

// failureHandler resolves the per-call options into the internal
// failure callback.
func failureHandler(opts []OpOption) core.FailureHandler {
	var settings opOptions
	for _, opt := range opts {
		opt(&settings)
	}
	if settings.onFail == nil {
		return nil
	}
	return core.FailureHandler(settings.onFail)
}
