// Package constraint implements uniqueness enforcement over secondary
// indexes: constraint entry normalization, the conflict-checking
// algorithm, and the built-in validators that plug it into the
// validation pipeline.
package constraint

import (
	"strings"

	"github.com/strata-labs/docguard/internal/core"
	"github.com/strata-labs/docguard/internal/schema"
)

// Ref is a constraint entry as it appears in configuration. The
// shorthand form supplies only the index name; the expanded form also
// names the identifier fields used for self-match detection and the
// nullish-participation flag.
type Ref struct {
	// Index is the name of the secondary index backing the constraint.
	Index string `yaml:"index" json:"index"`

	// IdentifierFields are the fields compared to decide whether an
	// index match is the document being patched. Empty means the
	// table's primary identifier field.
	IdentifierFields []string `yaml:"identifier_fields,omitempty" json:"identifier_fields,omitempty"`

	// IncludeNullish controls whether nullish effective values still
	// participate in existing-row lookups. Off by default, matching
	// secondary-index semantics where partial keys are not indexed.
	IncludeNullish bool `yaml:"include_nullish,omitempty" json:"include_nullish,omitempty"`
}

// UnmarshalYAML accepts both the shorthand form (a bare index name) and
// the expanded mapping form.
func (r *Ref) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var name string
	if err := unmarshal(&name); err == nil {
		*r = Ref{Index: name}
		return nil
	}
	type plain Ref
	var p plain
	if err := unmarshal(&p); err != nil {
		return err
	}
	*r = Ref(p)
	return nil
}

// Normalize expands a shorthand ref into the canonical form: identifier
// fields defaulted to the table's primary identifier, slices copied.
// It is a pure function and a fixed point: normalizing an already
// normalized ref yields an equal ref.
func Normalize(ref Ref, idKey string) (Ref, error) {
	if ref.Index == "" {
		return Ref{}, core.NewConfigurationError("", "constraint entry has no index name")
	}
	out := Ref{
		Index:          ref.Index,
		IncludeNullish: ref.IncludeNullish,
	}
	if len(ref.IdentifierFields) == 0 {
		out.IdentifierFields = []string{idKey}
	} else {
		out.IdentifierFields = make([]string, len(ref.IdentifierFields))
		copy(out.IdentifierFields, ref.IdentifierFields)
	}
	seen := make(map[string]struct{}, len(out.IdentifierFields))
	for _, f := range out.IdentifierFields {
		if f == "" {
			return Ref{}, core.NewConfigurationError("", "constraint entry %q has an empty identifier field", ref.Index)
		}
		if _, dup := seen[f]; dup {
			return Ref{}, core.NewConfigurationError("", "constraint entry %q repeats identifier field %q", ref.Index, f)
		}
		seen[f] = struct{}{}
	}
	return out, nil
}

// Entry is a normalized constraint ref with its index fields resolved.
// Entries are built once at bind time and immutable afterwards.
type Entry struct {
	Ref

	// Kind records which constraint variant configured this entry and
	// therefore which conflict error it raises.
	Kind core.ConflictKind

	// Fields are the resolved index fields, in declared order.
	Fields []string
}

// Resolve normalizes a ref and eagerly resolves its index fields
// against schema metadata, so misconfigured index names fail at bind
// time rather than on first use.
func Resolve(ref Ref, kind core.ConflictKind, table, idKey string, r *schema.Resolver) (Entry, error) {
	norm, err := Normalize(ref, idKey)
	if err != nil {
		return Entry{}, err
	}
	fields, err := r.Resolve(table, norm.Index)
	if err != nil {
		return Entry{}, err
	}
	if kind == core.ConflictKindColumn && len(fields) != 1 {
		return Entry{}, core.NewConfigurationError(table,
			"unique-column constraint %q needs a single-field index, index has %d fields", norm.Index, len(fields))
	}
	return Entry{Ref: norm, Kind: kind, Fields: fields}, nil
}

// indexNamePrefix is the conventional prefix of single-field index
// names ("by_email" indexes the "email" field).
const indexNamePrefix = "by_"

// ColumnName derives the semantic column name a single-column
// constraint reports in its error payload. Scan logic never uses it.
func (e Entry) ColumnName() string {
	if name := strings.TrimPrefix(e.Index, indexNamePrefix); name != "" {
		return name
	}
	return e.Index
}

// conflictFields returns the field names reported in a conflict payload
// for this entry.
func (e Entry) conflictFields() []string {
	if e.Kind == core.ConflictKindColumn {
		return []string{e.ColumnName()}
	}
	out := make([]string, len(e.Fields))
	copy(out, e.Fields)
	return out
}
