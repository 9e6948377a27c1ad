package constraint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/strata-labs/docguard/internal/core"
	"github.com/strata-labs/docguard/internal/schema"
)

func TestNormalize_Shorthand(t *testing.T) {
	ref, err := Normalize(Ref{Index: "by_email"}, "_id")
	require.NoError(t, err)
	assert.Equal(t, "by_email", ref.Index)
	assert.Equal(t, []string{"_id"}, ref.IdentifierFields)
	assert.False(t, ref.IncludeNullish)
}

func TestNormalize_Idempotent(t *testing.T) {
	ref := Ref{
		Index:            "by_org_name",
		IdentifierFields: []string{"org", "name"},
		IncludeNullish:   true,
	}
	once, err := Normalize(ref, "_id")
	require.NoError(t, err)
	twice, err := Normalize(once, "_id")
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestNormalize_CopiesIdentifierFields(t *testing.T) {
	fields := []string{"org"}
	ref, err := Normalize(Ref{Index: "by_org", IdentifierFields: fields}, "_id")
	require.NoError(t, err)

	fields[0] = "mutated"
	assert.Equal(t, []string{"org"}, ref.IdentifierFields)
}

func TestNormalize_Errors(t *testing.T) {
	_, err := Normalize(Ref{}, "_id")
	var confErr *core.ConfigurationError
	require.ErrorAs(t, err, &confErr)

	_, err = Normalize(Ref{Index: "by_email", IdentifierFields: []string{""}}, "_id")
	require.ErrorAs(t, err, &confErr)

	_, err = Normalize(Ref{Index: "by_email", IdentifierFields: []string{"a", "a"}}, "_id")
	require.ErrorAs(t, err, &confErr)
}

func TestRef_UnmarshalYAML(t *testing.T) {
	var shorthand struct {
		Refs []Ref `yaml:"refs"`
	}
	err := yaml.Unmarshal([]byte("refs:\n  - by_email\n"), &shorthand)
	require.NoError(t, err)
	require.Len(t, shorthand.Refs, 1)
	assert.Equal(t, Ref{Index: "by_email"}, shorthand.Refs[0])

	var expanded struct {
		Refs []Ref `yaml:"refs"`
	}
	err = yaml.Unmarshal([]byte(
		"refs:\n  - index: by_org_name\n    identifier_fields: [org, name]\n    include_nullish: true\n"), &expanded)
	require.NoError(t, err)
	require.Len(t, expanded.Refs, 1)
	assert.Equal(t, Ref{
		Index:            "by_org_name",
		IdentifierFields: []string{"org", "name"},
		IncludeNullish:   true,
	}, expanded.Refs[0])
}

func testResolver() *schema.Resolver {
	return schema.NewResolver(map[string]*core.Schema{
		"users": {
			TableName: "users",
			Indexes: []core.Index{
				{Name: "by_email", Fields: []string{"email"}},
				{Name: "by_org_name", Fields: []string{"org", "name"}},
			},
		},
	})
}

func TestResolve_RowConstraint(t *testing.T) {
	entry, err := Resolve(Ref{Index: "by_org_name"}, core.ConflictKindRow, "users", "_id", testResolver())
	require.NoError(t, err)
	assert.Equal(t, core.ConflictKindRow, entry.Kind)
	assert.Equal(t, []string{"org", "name"}, entry.Fields)
	assert.Equal(t, []string{"_id"}, entry.IdentifierFields)
}

func TestResolve_UnknownIndex(t *testing.T) {
	_, err := Resolve(Ref{Index: "by_missing"}, core.ConflictKindRow, "users", "_id", testResolver())
	var confErr *core.ConfigurationError
	require.ErrorAs(t, err, &confErr)
	assert.Equal(t, "users", confErr.Table)
}

func TestResolve_ColumnNeedsSingleFieldIndex(t *testing.T) {
	_, err := Resolve(Ref{Index: "by_org_name"}, core.ConflictKindColumn, "users", "_id", testResolver())
	var confErr *core.ConfigurationError
	require.ErrorAs(t, err, &confErr)

	entry, err := Resolve(Ref{Index: "by_email"}, core.ConflictKindColumn, "users", "_id", testResolver())
	require.NoError(t, err)
	assert.Equal(t, []string{"email"}, entry.Fields)
}

func TestEntry_ColumnName(t *testing.T) {
	assert.Equal(t, "email", Entry{Ref: Ref{Index: "by_email"}}.ColumnName())
	// No conventional prefix: the index name is the best available name.
	assert.Equal(t, "email_idx", Entry{Ref: Ref{Index: "email_idx"}}.ColumnName())
	// Degenerate name that is all prefix.
	assert.Equal(t, "by_", Entry{Ref: Ref{Index: "by_"}}.ColumnName())
}
