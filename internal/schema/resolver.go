// Package schema resolves index metadata and validates documents
// against declared table schemas.
package schema

import (
	"github.com/strata-labs/docguard/internal/core"
)

// Resolver answers "which fields compose this index" from schema
// metadata. It is a pure lookup with no state beyond the schema set it
// was built with.
type Resolver struct {
	schemas map[string]*core.Schema
}

// NewResolver creates a resolver over the given schemas, keyed by table
// name.
func NewResolver(schemas map[string]*core.Schema) *Resolver {
	if schemas == nil {
		schemas = make(map[string]*core.Schema)
	}
	return &Resolver{schemas: schemas}
}

// Schema returns the schema for a table, or a ConfigurationError if the
// table is unknown.
func (r *Resolver) Schema(table string) (*core.Schema, error) {
	s, ok := r.schemas[table]
	if !ok {
		return nil, core.NewConfigurationError(table, "table is not declared in schema metadata")
	}
	return s, nil
}

// Resolve returns the ordered field names composing the named index on
// the given table. Unknown table or index names are programmer errors
// surfaced as ConfigurationError; callers resolve all configured index
// names at bind time rather than per request.
func (r *Resolver) Resolve(table, indexName string) ([]string, error) {
	s, err := r.Schema(table)
	if err != nil {
		return nil, err
	}
	idx := s.IndexByName(indexName)
	if idx == nil {
		return nil, core.NewConfigurationError(table, "index %q is not declared", indexName)
	}
	if len(idx.Fields) == 0 {
		return nil, core.NewConfigurationError(table, "index %q has no fields", indexName)
	}
	fields := make([]string, len(idx.Fields))
	copy(fields, idx.Fields)
	return fields, nil
}
