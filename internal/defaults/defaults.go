// Package defaults materializes per-table default values and merges
// them under caller-supplied fields on insert.
package defaults

import (
	"context"
	"fmt"

	"github.com/strata-labs/docguard/internal/core"
)

// Factory produces a fresh default-value set per call, so time-based or
// random defaults differ per insert. It may block; the orchestrator
// waits for it before validation starts.
type Factory func(ctx context.Context) (core.Document, error)

// Source is the sum type of default-value origins: a static document or
// a factory invoked fresh on every materialization. The zero Source
// yields no defaults.
type Source struct {
	static  core.Document
	factory Factory
}

// Static builds a source that always yields the given values.
func Static(values core.Document) Source {
	return Source{static: values}
}

// FromFactory builds a source that invokes fn on every call.
func FromFactory(fn Factory) Source {
	return Source{factory: fn}
}

// IsZero reports whether the source yields no defaults.
func (s Source) IsZero() bool {
	return s.static == nil && s.factory == nil
}

// resolve produces the default-value set for one call.
func (s Source) resolve(ctx context.Context) (core.Document, error) {
	switch {
	case s.factory != nil:
		values, err := s.factory(ctx)
		if err != nil {
			return nil, fmt.Errorf("defaults factory: %w", err)
		}
		return values, nil
	case s.static != nil:
		return s.static, nil
	default:
		return nil, nil
	}
}

// Materialize resolves the source and shallow-merges the resulting
// defaults under the caller-supplied document: any key present in the
// input wins, including keys explicitly set to nil. The input document
// is not mutated.
func Materialize(ctx context.Context, source Source, doc core.Document) (core.Document, error) {
	values, err := source.resolve(ctx)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return doc.Clone(), nil
	}
	out := make(core.Document, len(values)+len(doc))
	for k, v := range values {
		out[k] = v
	}
	for k, v := range doc {
		out[k] = v
	}
	return out, nil
}
