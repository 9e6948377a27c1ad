// Package table implements the operation orchestrator: the transform
// and validate phases in front of every storage write.
package table

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/strata-labs/docguard/internal/core"
	"github.com/strata-labs/docguard/internal/defaults"
	"github.com/strata-labs/docguard/internal/pipeline"
	"github.com/strata-labs/docguard/internal/registry"
)

// TableImpl sequences the write flows for one bound table:
//
//	insert: materialize defaults -> validate -> storage insert
//	patch:  protected-column guard -> validate -> storage patch
//
// Flows are linear and non-retrying; any error aborts before commit and
// propagates to the caller unchanged.
type TableImpl struct {
	tableName string
	binding   *registry.Binding
	storage   core.Storage
	events    core.EventQueue
	logger    *zap.Logger
}

// NewTableImpl creates the orchestrator for one bound table. events may
// be nil when no conflict-event channel is configured.
func NewTableImpl(binding *registry.Binding, storage core.Storage, events core.EventQueue, logger *zap.Logger) *TableImpl {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TableImpl{
		tableName: binding.Table,
		binding:   binding,
		storage:   storage,
		events:    events,
		logger:    logger,
	}
}

// Insert validates and stores a new document, returning its generated
// id. Defaults are merged under the caller's fields before the
// validator chain runs; storage is only reached with the fully
// validated document.
func (t *TableImpl) Insert(ctx context.Context, doc core.Document, onFail core.FailureHandler) (string, error) {
	if doc == nil {
		return "", fmt.Errorf("document cannot be nil")
	}

	merged, err := defaults.Materialize(ctx, t.binding.Defaults, doc)
	if err != nil {
		return "", err
	}

	vctx := core.NewValidateContext(t.tableName, core.OperationInsert, "",
		t.storage, t.binding.Schema, t.failureHandler(core.OperationInsert, onFail), t.logger)

	validated, err := pipeline.Run(ctx, t.binding.Chain(), vctx, merged)
	if err != nil {
		return "", err
	}

	id, err := t.storage.Insert(ctx, t.tableName, validated)
	if err != nil {
		return "", err
	}
	t.logger.Debug("document inserted",
		zap.String("table", t.tableName),
		zap.String("id", id))
	return id, nil
}

// Patch validates and applies a partial update. Ordinary patches are
// rejected when they touch a protected column.
func (t *TableImpl) Patch(ctx context.Context, id string, partial core.Document, onFail core.FailureHandler) error {
	if err := t.checkProtected(partial); err != nil {
		return err
	}
	return t.patch(ctx, id, partial, onFail)
}

// PatchUnrestricted applies a partial update without the
// protected-column guard. Validators still run and the commit path is
// the one Patch uses; only the caller-facing restriction differs.
func (t *TableImpl) PatchUnrestricted(ctx context.Context, id string, partial core.Document, onFail core.FailureHandler) error {
	return t.patch(ctx, id, partial, onFail)
}

// patch is the shared validate-then-commit flow behind both variants.
func (t *TableImpl) patch(ctx context.Context, id string, partial core.Document, onFail core.FailureHandler) error {
	if id == "" {
		return fmt.Errorf("document id cannot be empty")
	}
	if len(partial) == 0 {
		return fmt.Errorf("partial update cannot be empty")
	}

	vctx := core.NewValidateContext(t.tableName, core.OperationPatch, id,
		t.storage, t.binding.Schema, t.failureHandler(core.OperationPatch, onFail), t.logger)

	validated, err := pipeline.Run(ctx, t.binding.Chain(), vctx, partial)
	if err != nil {
		return err
	}

	if err := t.storage.Patch(ctx, t.tableName, id, validated); err != nil {
		return err
	}
	t.logger.Debug("document patched",
		zap.String("table", t.tableName),
		zap.String("id", id))
	return nil
}

// Get retrieves a document by id, straight from storage.
func (t *TableImpl) Get(ctx context.Context, id string) (core.Document, error) {
	return t.storage.Get(ctx, t.tableName, id)
}

// checkProtected rejects partial updates that touch a protected column.
func (t *TableImpl) checkProtected(partial core.Document) error {
	for field := range partial {
		if t.binding.IsProtected(field) {
			return fmt.Errorf("%w: %q cannot be patched on table %q",
				core.ErrProtectedColumn, field, t.tableName)
		}
	}
	return nil
}

// failureHandler combines the caller's OnFail callback with the
// conflict-event side channel. Event delivery is best effort and never
// affects the operation outcome.
func (t *TableImpl) failureHandler(op core.OperationType, onFail core.FailureHandler) core.FailureHandler {
	return func(result core.ConflictResult) {
		if t.events != nil {
			event := &core.ConflictEvent{
				Table:      result.Table,
				Operation:  op,
				Kind:       result.Kind,
				Fields:     result.Fields,
				ExistingID: result.Existing.ID(),
				Timestamp:  time.Now(),
			}
			if err := t.events.Enqueue(context.Background(), event); err != nil {
				t.logger.Warn("failed to enqueue conflict event",
					zap.String("table", t.tableName),
					zap.Error(err))
			}
		}
		if onFail != nil {
			onFail(result)
		}
	}
}
