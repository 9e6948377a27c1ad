package constraint_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-labs/docguard/internal/constraint"
	"github.com/strata-labs/docguard/internal/core"
	"github.com/strata-labs/docguard/internal/schema"
	"github.com/strata-labs/docguard/internal/storage"
)

func usersSchema() *core.Schema {
	return &core.Schema{
		TableName: "users",
		Indexes: []core.Index{
			{Name: "by_email", Fields: []string{"email"}},
			{Name: "by_org_name", Fields: []string{"org", "name"}},
		},
	}
}

func newUsersStore(t *testing.T) core.Storage {
	t.Helper()
	store := storage.NewMemoryStore(nil)
	require.NoError(t, store.RegisterSchema(usersSchema()))
	return store
}

func resolveEntry(t *testing.T, ref constraint.Ref, kind core.ConflictKind) constraint.Entry {
	t.Helper()
	resolver := schema.NewResolver(map[string]*core.Schema{"users": usersSchema()})
	entry, err := constraint.Resolve(ref, kind, "users", "_id", resolver)
	require.NoError(t, err)
	return entry
}

func insertCtx(store core.Storage, onFail core.FailureHandler) *core.ValidateContext {
	return core.NewValidateContext("users", core.OperationInsert, "", store, usersSchema(), onFail, nil)
}

func patchCtx(store core.Storage, id string, onFail core.FailureHandler) *core.ValidateContext {
	return core.NewValidateContext("users", core.OperationPatch, id, store, usersSchema(), onFail, nil)
}

func TestCheck_InsertColumnConflict(t *testing.T) {
	store := newUsersStore(t)
	ctx := context.Background()
	_, err := store.Insert(ctx, "users", core.Document{"email": "ada@example.com"})
	require.NoError(t, err)

	entry := resolveEntry(t, constraint.Ref{Index: "by_email"}, core.ConflictKindColumn)
	checker := constraint.NewChecker()

	err = checker.Check(ctx, insertCtx(store, nil), entry, core.Document{"email": "ada@example.com"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrUniqueColumnConflict))
	assert.False(t, errors.Is(err, core.ErrUniqueRowConflict))

	var confErr *core.ConflictError
	require.ErrorAs(t, err, &confErr)
	assert.Equal(t, []string{"email"}, confErr.Result.Fields)
	assert.NotEmpty(t, confErr.Result.Existing.ID())

	// A different value passes.
	err = checker.Check(ctx, insertCtx(store, nil), entry, core.Document{"email": "grace@example.com"})
	assert.NoError(t, err)
}

func TestCheck_InsertCompositeConflict(t *testing.T) {
	store := newUsersStore(t)
	ctx := context.Background()
	_, err := store.Insert(ctx, "users", core.Document{"org": "acme", "name": "ada"})
	require.NoError(t, err)

	entry := resolveEntry(t, constraint.Ref{Index: "by_org_name"}, core.ConflictKindRow)
	checker := constraint.NewChecker()

	err = checker.Check(ctx, insertCtx(store, nil), entry, core.Document{"org": "acme", "name": "ada"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrUniqueRowConflict))

	var confErr *core.ConflictError
	require.ErrorAs(t, err, &confErr)
	assert.Equal(t, []string{"org", "name"}, confErr.Result.Fields)

	// Same org, different name: the tuple differs, no conflict.
	err = checker.Check(ctx, insertCtx(store, nil), entry, core.Document{"org": "acme", "name": "grace"})
	assert.NoError(t, err)
}

func TestCheck_PatchExcludesSelf(t *testing.T) {
	store := newUsersStore(t)
	ctx := context.Background()
	id, err := store.Insert(ctx, "users", core.Document{"email": "ada@example.com", "status": "active"})
	require.NoError(t, err)

	entry := resolveEntry(t, constraint.Ref{Index: "by_email"}, core.ConflictKindColumn)
	checker := constraint.NewChecker()

	// The patch does not touch email; the effective value is the
	// document's own, found through the index, and excluded as self.
	err = checker.Check(ctx, patchCtx(store, id, nil), entry, core.Document{"status": "inactive"})
	assert.NoError(t, err)

	// Re-asserting the same email explicitly is also not a conflict.
	err = checker.Check(ctx, patchCtx(store, id, nil), entry, core.Document{"email": "ada@example.com"})
	assert.NoError(t, err)
}

func TestCheck_PatchToForeignValueConflicts(t *testing.T) {
	store := newUsersStore(t)
	ctx := context.Background()
	_, err := store.Insert(ctx, "users", core.Document{"email": "ada@example.com"})
	require.NoError(t, err)
	id2, err := store.Insert(ctx, "users", core.Document{"email": "grace@example.com"})
	require.NoError(t, err)

	entry := resolveEntry(t, constraint.Ref{Index: "by_email"}, core.ConflictKindColumn)
	checker := constraint.NewChecker()

	err = checker.Check(ctx, patchCtx(store, id2, nil), entry, core.Document{"email": "ada@example.com"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrUniqueColumnConflict))
}

func TestCheck_NullishSkips(t *testing.T) {
	store := newUsersStore(t)
	ctx := context.Background()
	_, err := store.Insert(ctx, "users", core.Document{"email": "ada@example.com"})
	require.NoError(t, err)

	entry := resolveEntry(t, constraint.Ref{Index: "by_email"}, core.ConflictKindColumn)
	checker := constraint.NewChecker()

	// Absent and explicitly nil are equivalent: both skip the check.
	err = checker.Check(ctx, insertCtx(store, nil), entry, core.Document{"name": "no-email"})
	assert.NoError(t, err)
	err = checker.Check(ctx, insertCtx(store, nil), entry, core.Document{"email": nil})
	assert.NoError(t, err)
}

func TestCheck_IncludeNullishStillScans(t *testing.T) {
	store := newUsersStore(t)
	ctx := context.Background()

	entry := resolveEntry(t, constraint.Ref{Index: "by_email", IncludeNullish: true}, core.ConflictKindColumn)
	checker := constraint.NewChecker()

	// Nullish no longer short-circuits; the lookup runs and finds no
	// match because partial keys are never indexed.
	err := checker.Check(ctx, insertCtx(store, nil), entry, core.Document{"email": nil})
	assert.NoError(t, err)
}

func TestCheck_PartialIdentifierMatchIsConflict(t *testing.T) {
	store := newUsersStore(t)
	ctx := context.Background()
	_, err := store.Insert(ctx, "users", core.Document{"org": "acme", "name": "ada", "email": "ada@example.com"})
	require.NoError(t, err)
	id2, err := store.Insert(ctx, "users", core.Document{"org": "acme", "name": "grace", "email": "grace@example.com"})
	require.NoError(t, err)

	// Identifier fields beyond the id: a match agreeing on org but not
	// name is a foreign document, so moving onto its email conflicts.
	entry := resolveEntry(t, constraint.Ref{
		Index:            "by_email",
		IdentifierFields: []string{"org", "name"},
	}, core.ConflictKindColumn)
	checker := constraint.NewChecker()

	err = checker.Check(ctx, patchCtx(store, id2, nil), entry, core.Document{"email": "ada@example.com"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrUniqueColumnConflict))
}

func TestCheck_OnFailFiresBeforeError(t *testing.T) {
	store := newUsersStore(t)
	ctx := context.Background()
	_, err := store.Insert(ctx, "users", core.Document{"email": "ada@example.com"})
	require.NoError(t, err)

	entry := resolveEntry(t, constraint.Ref{Index: "by_email"}, core.ConflictKindColumn)
	checker := constraint.NewChecker()

	var reported *core.ConflictResult
	onFail := func(result core.ConflictResult) {
		reported = &result
	}
	err = checker.Check(ctx, insertCtx(store, onFail), entry, core.Document{"email": "ada@example.com"})
	require.Error(t, err)
	require.NotNil(t, reported)
	assert.Equal(t, core.ConflictKindColumn, reported.Kind)
	assert.Equal(t, []string{"email"}, reported.Fields)
}

func TestCheck_OnFailPanicIsRecovered(t *testing.T) {
	store := newUsersStore(t)
	ctx := context.Background()
	_, err := store.Insert(ctx, "users", core.Document{"email": "ada@example.com"})
	require.NoError(t, err)

	entry := resolveEntry(t, constraint.Ref{Index: "by_email"}, core.ConflictKindColumn)
	checker := constraint.NewChecker()

	onFail := func(core.ConflictResult) { panic("callback exploded") }
	err = checker.Check(ctx, insertCtx(store, onFail), entry, core.Document{"email": "ada@example.com"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrUniqueColumnConflict))
}
