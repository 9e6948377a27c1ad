package table

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-labs/docguard/internal/constraint"
	"github.com/strata-labs/docguard/internal/core"
	"github.com/strata-labs/docguard/internal/defaults"
	"github.com/strata-labs/docguard/internal/events"
	"github.com/strata-labs/docguard/internal/registry"
	"github.com/strata-labs/docguard/internal/storage"
)

func usersSchema() *core.Schema {
	return &core.Schema{
		TableName: "users",
		Indexes: []core.Index{
			{Name: "by_email", Fields: []string{"email"}},
		},
	}
}

func newUsersTable(t *testing.T, spec registry.BindSpec, queue core.EventQueue) (*TableImpl, core.Storage) {
	t.Helper()
	store := storage.NewMemoryStore(nil)
	require.NoError(t, store.RegisterSchema(spec.Schema))
	binding, err := registry.NewTableRegistry(nil, nil).Bind(context.Background(), spec)
	require.NoError(t, err)
	return NewTableImpl(binding, store, queue, nil), store
}

func TestInsert_AppliesDefaults(t *testing.T) {
	tbl, store := newUsersTable(t, registry.BindSpec{
		Table:    "users",
		Schema:   usersSchema(),
		Defaults: defaults.Static(core.Document{"status": "active"}),
	}, nil)
	ctx := context.Background()

	id, err := tbl.Insert(ctx, core.Document{"email": "ada@example.com"}, nil)
	require.NoError(t, err)

	doc, err := store.Get(ctx, "users", id)
	require.NoError(t, err)
	assert.Equal(t, "active", doc["status"])
	assert.Equal(t, "ada@example.com", doc["email"])

	// Caller fields win over defaults.
	id2, err := tbl.Insert(ctx, core.Document{"email": "grace@example.com", "status": "pending"}, nil)
	require.NoError(t, err)
	doc, err = store.Get(ctx, "users", id2)
	require.NoError(t, err)
	assert.Equal(t, "pending", doc["status"])
}

func TestInsert_ConflictAbortsBeforeCommit(t *testing.T) {
	queue := events.NewMemoryQueue(10)
	tbl, store := newUsersTable(t, registry.BindSpec{
		Table:         "users",
		Schema:        usersSchema(),
		UniqueColumns: []constraint.Ref{{Index: "by_email"}},
	}, queue)
	ctx := context.Background()

	_, err := tbl.Insert(ctx, core.Document{"email": "ada@example.com"}, nil)
	require.NoError(t, err)

	var reported *core.ConflictResult
	_, err = tbl.Insert(ctx, core.Document{"email": "ada@example.com"}, func(result core.ConflictResult) {
		reported = &result
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrUniqueColumnConflict))
	require.NotNil(t, reported)
	assert.Equal(t, []string{"email"}, reported.Fields)

	// Nothing committed: still exactly one document with the value.
	docs, err := store.ScanByIndex(ctx, "users", "by_email", []interface{}{"ada@example.com"})
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	// The conflict also went to the event channel.
	batch, err := queue.Dequeue(ctx, 10)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, "users", batch[0].Table)
	assert.Equal(t, core.OperationInsert, batch[0].Operation)
	assert.Equal(t, core.ConflictKindColumn, batch[0].Kind)
	assert.NotEmpty(t, batch[0].ExistingID)
}

func TestPatch_ProtectedColumn(t *testing.T) {
	tbl, store := newUsersTable(t, registry.BindSpec{
		Table:     "users",
		Schema:    usersSchema(),
		Protected: []string{"email"},
	}, nil)
	ctx := context.Background()

	id, err := tbl.Insert(ctx, core.Document{"email": "ada@example.com", "status": "active"}, nil)
	require.NoError(t, err)

	err = tbl.Patch(ctx, id, core.Document{"email": "other@example.com"}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrProtectedColumn))

	// The primary identifier is always protected.
	err = tbl.Patch(ctx, id, core.Document{"_id": "forged"}, nil)
	assert.True(t, errors.Is(err, core.ErrProtectedColumn))

	// The guard rejected before commit.
	doc, err := store.Get(ctx, "users", id)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", doc["email"])

	// Unprotected fields patch normally.
	require.NoError(t, tbl.Patch(ctx, id, core.Document{"status": "inactive"}, nil))
}

func TestPatchUnrestricted_BypassesGuardNotValidation(t *testing.T) {
	tbl, store := newUsersTable(t, registry.BindSpec{
		Table:         "users",
		Schema:        usersSchema(),
		UniqueColumns: []constraint.Ref{{Index: "by_email"}},
		Protected:     []string{"email"},
	}, nil)
	ctx := context.Background()

	id1, err := tbl.Insert(ctx, core.Document{"email": "ada@example.com"}, nil)
	require.NoError(t, err)
	id2, err := tbl.Insert(ctx, core.Document{"email": "grace@example.com"}, nil)
	require.NoError(t, err)

	// The guard no longer applies, and the write commits.
	require.NoError(t, tbl.PatchUnrestricted(ctx, id1, core.Document{"email": "lovelace@example.com"}, nil))
	doc, err := store.Get(ctx, "users", id1)
	require.NoError(t, err)
	assert.Equal(t, "lovelace@example.com", doc["email"])

	// Uniqueness still holds on the unrestricted path.
	err = tbl.PatchUnrestricted(ctx, id2, core.Document{"email": "lovelace@example.com"}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrUniqueColumnConflict))
}

func TestPatch_ConflictEventCarriesPatchOperation(t *testing.T) {
	queue := events.NewMemoryQueue(10)
	tbl, _ := newUsersTable(t, registry.BindSpec{
		Table:         "users",
		Schema:        usersSchema(),
		UniqueColumns: []constraint.Ref{{Index: "by_email"}},
	}, queue)
	ctx := context.Background()

	_, err := tbl.Insert(ctx, core.Document{"email": "ada@example.com"}, nil)
	require.NoError(t, err)
	id2, err := tbl.Insert(ctx, core.Document{"email": "grace@example.com"}, nil)
	require.NoError(t, err)

	err = tbl.Patch(ctx, id2, core.Document{"email": "ada@example.com"}, nil)
	require.Error(t, err)

	batch, err := queue.Dequeue(ctx, 10)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, core.OperationPatch, batch[0].Operation)
}

func TestNoConstraints_NoEnforcement(t *testing.T) {
	tbl, _ := newUsersTable(t, registry.BindSpec{
		Table:  "users",
		Schema: usersSchema(),
	}, nil)
	ctx := context.Background()

	_, err := tbl.Insert(ctx, core.Document{"email": "ada@example.com"}, nil)
	require.NoError(t, err)
	_, err = tbl.Insert(ctx, core.Document{"email": "ada@example.com"}, nil)
	assert.NoError(t, err)
}

func TestUserValidator_RunsAfterBuiltins(t *testing.T) {
	rejectAll := core.Validator{
		Name: "reject-all",
		OnInsert: func(ctx context.Context, vctx *core.ValidateContext, doc core.Document) (core.Document, error) {
			return nil, errors.New("user validator rejected")
		},
	}
	tbl, _ := newUsersTable(t, registry.BindSpec{
		Table:         "users",
		Schema:        usersSchema(),
		UniqueColumns: []constraint.Ref{{Index: "by_email"}},
		Validators:    []core.Validator{rejectAll},
	}, nil)
	ctx := context.Background()

	_, err := tbl.Insert(ctx, core.Document{"email": "ada@example.com"}, nil)
	require.NoError(t, err)

	// The duplicate fails on the built-in constraint before the user
	// validator runs.
	_, err = tbl.Insert(ctx, core.Document{"email": "ada@example.com"}, nil)
	assert.True(t, errors.Is(err, core.ErrUniqueColumnConflict))
}

func TestOperationArgumentErrors(t *testing.T) {
	tbl, _ := newUsersTable(t, registry.BindSpec{
		Table:  "users",
		Schema: usersSchema(),
	}, nil)
	ctx := context.Background()

	_, err := tbl.Insert(ctx, nil, nil)
	assert.Error(t, err)

	err = tbl.Patch(ctx, "", core.Document{"a": 1}, nil)
	assert.Error(t, err)

	id, err := tbl.Insert(ctx, core.Document{"email": "ada@example.com"}, nil)
	require.NoError(t, err)
	err = tbl.Patch(ctx, id, core.Document{}, nil)
	assert.Error(t, err)
}
