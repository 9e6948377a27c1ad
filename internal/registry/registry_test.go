package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-labs/docguard/internal/constraint"
	"github.com/strata-labs/docguard/internal/core"
	"github.com/strata-labs/docguard/internal/defaults"
)

func bindSchema() *core.Schema {
	return &core.Schema{
		TableName: "users",
		Indexes: []core.Index{
			{Name: "by_email", Fields: []string{"email"}},
			{Name: "by_org_name", Fields: []string{"org", "name"}},
		},
	}
}

func TestBind_ChainOrder(t *testing.T) {
	r := NewTableRegistry(nil, nil)
	binding, err := r.Bind(context.Background(), BindSpec{
		Table:            "users",
		Schema:           bindSchema(),
		UniqueRows:       []constraint.Ref{{Index: "by_org_name"}},
		UniqueColumns:    []constraint.Ref{{Index: "by_email"}},
		Validators:       []core.Validator{{Name: "audit", OnInsert: passHook}},
		SchemaValidation: true,
	})
	require.NoError(t, err)

	names := make([]string, 0, len(binding.Chain()))
	for _, v := range binding.Chain() {
		names = append(names, v.Name)
	}
	assert.Equal(t, []string{
		"schema",
		"unique-row:by_org_name",
		"unique-column:by_email",
		"audit",
	}, names)
}

func passHook(ctx context.Context, vctx *core.ValidateContext, doc core.Document) (core.Document, error) {
	return doc, nil
}

func TestBind_UnknownIndexFailsEagerly(t *testing.T) {
	r := NewTableRegistry(nil, nil)
	_, err := r.Bind(context.Background(), BindSpec{
		Table:         "users",
		Schema:        bindSchema(),
		UniqueColumns: []constraint.Ref{{Index: "by_missing"}},
	})
	var confErr *core.ConfigurationError
	require.ErrorAs(t, err, &confErr)
	assert.Equal(t, "users", confErr.Table)
	assert.Equal(t, 0, r.Count())
}

func TestBind_DuplicateValidatorName(t *testing.T) {
	r := NewTableRegistry(nil, nil)
	_, err := r.Bind(context.Background(), BindSpec{
		Table:         "users",
		Schema:        bindSchema(),
		UniqueColumns: []constraint.Ref{{Index: "by_email"}},
		Validators: []core.Validator{
			{Name: "unique-column:by_email", OnInsert: passHook},
		},
	})
	var confErr *core.ConfigurationError
	require.ErrorAs(t, err, &confErr)
}

func TestBind_SpecValidation(t *testing.T) {
	r := NewTableRegistry(nil, nil)

	_, err := r.Bind(context.Background(), BindSpec{Schema: bindSchema()})
	assert.Error(t, err)

	_, err = r.Bind(context.Background(), BindSpec{Table: "users"})
	assert.Error(t, err)

	mismatched := bindSchema()
	mismatched.TableName = "other"
	_, err = r.Bind(context.Background(), BindSpec{Table: "users", Schema: mismatched})
	assert.Error(t, err)
}

func TestBinding_Protected(t *testing.T) {
	r := NewTableRegistry(nil, nil)
	binding, err := r.Bind(context.Background(), BindSpec{
		Table:     "users",
		Schema:    bindSchema(),
		Protected: []string{"email"},
	})
	require.NoError(t, err)

	assert.True(t, binding.IsProtected("email"))
	// The primary identifier is always protected.
	assert.True(t, binding.IsProtected("_id"))
	assert.False(t, binding.IsProtected("status"))
}

func TestBind_RebindPreservesCreationTime(t *testing.T) {
	r := NewTableRegistry(nil, nil)
	ctx := context.Background()

	first, err := r.Bind(ctx, BindSpec{Table: "users", Schema: bindSchema()})
	require.NoError(t, err)

	second, err := r.Bind(ctx, BindSpec{
		Table:    "users",
		Schema:   bindSchema(),
		Defaults: defaults.Static(core.Document{"status": "active"}),
	})
	require.NoError(t, err)

	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.False(t, second.Defaults.IsZero())
	assert.Equal(t, 1, r.Count())
}

func TestUnbind(t *testing.T) {
	r := NewTableRegistry(nil, nil)
	ctx := context.Background()

	_, err := r.Bind(ctx, BindSpec{Table: "users", Schema: bindSchema()})
	require.NoError(t, err)
	require.NoError(t, r.Unbind(ctx, "users"))

	_, err = r.Get("users")
	assert.Error(t, err)
	assert.Error(t, r.Unbind(ctx, "users"))
}

func TestBindHooks(t *testing.T) {
	hooks := NewHookManager()
	var bound, unbound []string
	hooks.Register(BindHookFunc{
		OnBindFunc: func(ctx context.Context, table string, schema *core.Schema) error {
			bound = append(bound, table)
			return nil
		},
		OnUnbindFunc: func(ctx context.Context, table string, schema *core.Schema) error {
			unbound = append(unbound, table)
			return nil
		},
	})

	r := NewTableRegistry(hooks, nil)
	ctx := context.Background()
	_, err := r.Bind(ctx, BindSpec{Table: "users", Schema: bindSchema()})
	require.NoError(t, err)
	require.NoError(t, r.Unbind(ctx, "users"))

	assert.Equal(t, []string{"users"}, bound)
	assert.Equal(t, []string{"users"}, unbound)
}

func TestBindHook_ErrorFailsBind(t *testing.T) {
	hooks := NewHookManager()
	sentinel := errors.New("hook rejected")
	hooks.Register(BindHookFunc{
		OnBindFunc: func(ctx context.Context, table string, schema *core.Schema) error {
			return sentinel
		},
	})

	r := NewTableRegistry(hooks, nil)
	_, err := r.Bind(context.Background(), BindSpec{Table: "users", Schema: bindSchema()})
	require.Error(t, err)
	assert.True(t, errors.Is(err, sentinel))
	assert.Equal(t, 0, r.Count())
}
