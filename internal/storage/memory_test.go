package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-labs/docguard/internal/core"
)

func memorySchema() *core.Schema {
	return &core.Schema{
		TableName: "users",
		Indexes: []core.Index{
			{Name: "by_email", Fields: []string{"email"}},
			{Name: "by_org_name", Fields: []string{"org", "name"}},
		},
	}
}

func TestMemoryStore_ScanCompositeValues(t *testing.T) {
	store := NewMemoryStore(nil)
	require.NoError(t, store.RegisterSchema(&core.Schema{
		TableName: "posts",
		Indexes:   []core.Index{{Name: "by_tags", Fields: []string{"tags"}}},
	}))
	ctx := context.Background()

	id, err := store.Insert(ctx, "posts", core.Document{"tags": []interface{}{"go", "db"}})
	require.NoError(t, err)
	_, err = store.Insert(ctx, "posts", core.Document{"tags": []interface{}{"go"}})
	require.NoError(t, err)

	// Slice-valued indexed fields compare by deep equality.
	docs, err := store.ScanByIndex(ctx, "posts", "by_tags", []interface{}{[]interface{}{"go", "db"}})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, id, docs[0].ID())

	docs, err = store.ScanByIndex(ctx, "posts", "by_tags", []interface{}{[]interface{}{"rust"}})
	require.NoError(t, err)
	assert.Empty(t, docs)

	// Map values work the same way.
	require.NoError(t, store.RegisterSchema(&core.Schema{
		TableName: "settings",
		Indexes:   []core.Index{{Name: "by_flags", Fields: []string{"flags"}}},
	}))
	_, err = store.Insert(ctx, "settings", core.Document{"flags": map[string]interface{}{"beta": true}})
	require.NoError(t, err)
	docs, err = store.ScanByIndex(ctx, "settings", "by_flags", []interface{}{map[string]interface{}{"beta": true}})
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestMemoryStore_InsertGet(t *testing.T) {
	store := NewMemoryStore(nil)
	require.NoError(t, store.RegisterSchema(memorySchema()))
	ctx := context.Background()

	id, err := store.Insert(ctx, "users", core.Document{"email": "ada@example.com"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	doc, err := store.Get(ctx, "users", id)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", doc["email"])
	assert.Equal(t, id, doc.ID())

	// The store hands out copies.
	doc["email"] = "mutated"
	again, err := store.Get(ctx, "users", id)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", again["email"])
}

func TestMemoryStore_GetNotFound(t *testing.T) {
	store := NewMemoryStore(nil)
	require.NoError(t, store.RegisterSchema(memorySchema()))

	_, err := store.Get(context.Background(), "users", "nope")
	assert.True(t, errors.Is(err, core.ErrDocumentNotFound))
}

func TestMemoryStore_Patch(t *testing.T) {
	store := NewMemoryStore(nil)
	require.NoError(t, store.RegisterSchema(memorySchema()))
	ctx := context.Background()

	id, err := store.Insert(ctx, "users", core.Document{"email": "ada@example.com", "status": "active"})
	require.NoError(t, err)

	require.NoError(t, store.Patch(ctx, "users", id, core.Document{"status": "inactive"}))
	doc, err := store.Get(ctx, "users", id)
	require.NoError(t, err)
	assert.Equal(t, "inactive", doc["status"])
	assert.Equal(t, "ada@example.com", doc["email"])

	err = store.Patch(ctx, "users", "nope", core.Document{"status": "x"})
	assert.True(t, errors.Is(err, core.ErrDocumentNotFound))
}

func TestMemoryStore_ScanByIndex(t *testing.T) {
	store := NewMemoryStore(nil)
	require.NoError(t, store.RegisterSchema(memorySchema()))
	ctx := context.Background()

	id1, err := store.Insert(ctx, "users", core.Document{"org": "acme", "name": "ada"})
	require.NoError(t, err)
	id2, err := store.Insert(ctx, "users", core.Document{"org": "acme", "name": "grace"})
	require.NoError(t, err)
	_, err = store.Insert(ctx, "users", core.Document{"org": "globex", "name": "ada"})
	require.NoError(t, err)

	// Full tuple.
	docs, err := store.ScanByIndex(ctx, "users", "by_org_name", []interface{}{"acme", "ada"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, id1, docs[0].ID())

	// Prefix binds the first field only, results in insertion order.
	docs, err = store.ScanByIndex(ctx, "users", "by_org_name", []interface{}{"acme"})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, id1, docs[0].ID())
	assert.Equal(t, id2, docs[1].ID())

	// No match.
	docs, err = store.ScanByIndex(ctx, "users", "by_org_name", []interface{}{"initech"})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestMemoryStore_ScanSkipsNullishFields(t *testing.T) {
	store := NewMemoryStore(nil)
	require.NoError(t, store.RegisterSchema(memorySchema()))
	ctx := context.Background()

	_, err := store.Insert(ctx, "users", core.Document{"name": "no-email"})
	require.NoError(t, err)
	_, err = store.Insert(ctx, "users", core.Document{"email": nil})
	require.NoError(t, err)

	docs, err := store.ScanByIndex(ctx, "users", "by_email", []interface{}{nil})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestMemoryStore_ScanNumericEquality(t *testing.T) {
	schema := &core.Schema{
		TableName: "orders",
		Indexes:   []core.Index{{Name: "by_amount", Fields: []string{"amount"}}},
	}
	store := NewMemoryStore(nil)
	require.NoError(t, store.RegisterSchema(schema))
	ctx := context.Background()

	id, err := store.Insert(ctx, "orders", core.Document{"amount": 42})
	require.NoError(t, err)

	// An int stored and a float queried (or vice versa, as after a JSON
	// round trip) compare equal.
	docs, err := store.ScanByIndex(ctx, "orders", "by_amount", []interface{}{float64(42)})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, id, docs[0].ID())
}

func TestMemoryStore_ScanArgumentErrors(t *testing.T) {
	store := NewMemoryStore(nil)
	require.NoError(t, store.RegisterSchema(memorySchema()))
	ctx := context.Background()

	_, err := store.ScanByIndex(ctx, "users", "by_missing", []interface{}{"x"})
	assert.Error(t, err)

	_, err = store.ScanByIndex(ctx, "users", "by_email", nil)
	assert.Error(t, err)

	_, err = store.ScanByIndex(ctx, "users", "by_email", []interface{}{"a", "b"})
	assert.Error(t, err)

	_, err = store.ScanByIndex(ctx, "unknown", "by_email", []interface{}{"a"})
	assert.Error(t, err)
}

func TestMemoryStore_CustomPrimaryKey(t *testing.T) {
	schema := &core.Schema{TableName: "things", PrimaryKey: "thing_id"}
	store := NewMemoryStore(nil)
	require.NoError(t, store.RegisterSchema(schema))
	ctx := context.Background()

	id, err := store.Insert(ctx, "things", core.Document{"kind": "widget"})
	require.NoError(t, err)

	doc, err := store.Get(ctx, "things", id)
	require.NoError(t, err)
	assert.Equal(t, id, doc["thing_id"])
}

func TestMemoryStore_Closed(t *testing.T) {
	store := NewMemoryStore(nil)
	require.NoError(t, store.RegisterSchema(memorySchema()))
	require.NoError(t, store.Close())

	_, err := store.Insert(context.Background(), "users", core.Document{})
	assert.Error(t, err)
	_, err = store.Get(context.Background(), "users", "id")
	assert.Error(t, err)
}
