// Package registry manages per-table validation bindings and their
// configuration.
package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/strata-labs/docguard/internal/constraint"
	"github.com/strata-labs/docguard/internal/core"
	"github.com/strata-labs/docguard/internal/defaults"
	"github.com/strata-labs/docguard/internal/schema"
)

// BindSpec is everything needed to bind a table to the validation
// layer. Constraint refs are resolved eagerly during Bind; a bad index
// or table reference fails the bind, never a later request.
type BindSpec struct {
	// Table is the table name.
	Table string

	// Schema is the table's schema metadata. Required: index
	// resolution and the schema validator read it.
	Schema *core.Schema

	// UniqueRows configures composite uniqueness constraints.
	UniqueRows []constraint.Ref

	// UniqueColumns configures single-column uniqueness constraints.
	UniqueColumns []constraint.Ref

	// Validators are user-supplied validators, run after the built-in
	// ones in the given order.
	Validators []core.Validator

	// Defaults is the insert-time default-value source.
	Defaults defaults.Source

	// Protected lists columns ordinary patches must not touch. The
	// primary identifier field is always protected.
	Protected []string

	// SchemaValidation enables the built-in schema validator.
	SchemaValidation bool
}

// Binding is a table's resolved, immutable validation configuration.
// Bindings are assembled once at bind time and never mutated by
// request-path code.
type Binding struct {
	Table     string
	Schema    *core.Schema
	Defaults  defaults.Source
	CreatedAt time.Time
	UpdatedAt time.Time

	chain     []core.Validator
	protected map[string]struct{}
}

// Chain returns the full validator chain: built-ins first (unique-row,
// then unique-column), then user validators in configured order.
func (b *Binding) Chain() []core.Validator {
	return b.chain
}

// IsProtected reports whether ordinary patches may not touch the field.
func (b *Binding) IsProtected(field string) bool {
	if field == b.Schema.IDKey() {
		return true
	}
	_, ok := b.protected[field]
	return ok
}

// TableRegistry holds the bindings for all bound tables. All methods
// are safe for concurrent use.
type TableRegistry struct {
	mu       sync.RWMutex
	bindings map[string]*Binding
	hooks    *HookManager
	logger   *zap.Logger
}

// NewTableRegistry creates an empty registry.
func NewTableRegistry(hooks *HookManager, logger *zap.Logger) *TableRegistry {
	if hooks == nil {
		hooks = NewHookManager()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TableRegistry{
		bindings: make(map[string]*Binding),
		hooks:    hooks,
		logger:   logger,
	}
}

// Bind resolves a bind spec into a Binding and stores it. Rebinding a
// table replaces its configuration but preserves its creation time.
func (r *TableRegistry) Bind(ctx context.Context, spec BindSpec) (*Binding, error) {
	if spec.Table == "" {
		return nil, core.NewConfigurationError("", "table name cannot be empty")
	}
	if spec.Schema == nil {
		return nil, core.NewConfigurationError(spec.Table, "schema cannot be nil")
	}
	if spec.Schema.TableName != "" && spec.Schema.TableName != spec.Table {
		return nil, core.NewConfigurationError(spec.Table,
			"schema table name %q does not match bind target", spec.Schema.TableName)
	}

	binding, err := buildBinding(spec)
	if err != nil {
		return nil, err
	}

	if err := r.hooks.ExecuteBindHooks(ctx, spec.Table, spec.Schema); err != nil {
		return nil, fmt.Errorf("bind hook failed for table %q: %w", spec.Table, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	binding.CreatedAt = now
	binding.UpdatedAt = now
	if existing, ok := r.bindings[spec.Table]; ok {
		binding.CreatedAt = existing.CreatedAt
	}
	r.bindings[spec.Table] = binding

	r.logger.Info("table bound",
		zap.String("table", spec.Table),
		zap.Int("validators", len(binding.chain)))
	return binding, nil
}

// buildBinding resolves constraints and assembles the validator chain.
func buildBinding(spec BindSpec) (*Binding, error) {
	resolver := schema.NewResolver(map[string]*core.Schema{spec.Table: spec.Schema})
	idKey := spec.Schema.IDKey()

	rowEntries := make([]constraint.Entry, 0, len(spec.UniqueRows))
	for _, ref := range spec.UniqueRows {
		entry, err := constraint.Resolve(ref, core.ConflictKindRow, spec.Table, idKey, resolver)
		if err != nil {
			return nil, err
		}
		rowEntries = append(rowEntries, entry)
	}
	columnEntries := make([]constraint.Entry, 0, len(spec.UniqueColumns))
	for _, ref := range spec.UniqueColumns {
		entry, err := constraint.Resolve(ref, core.ConflictKindColumn, spec.Table, idKey, resolver)
		if err != nil {
			return nil, err
		}
		columnEntries = append(columnEntries, entry)
	}

	chain := make([]core.Validator, 0, 1+len(rowEntries)+len(columnEntries)+len(spec.Validators))
	if spec.SchemaValidation {
		chain = append(chain, schemaValidator(spec.Schema))
	}
	chain = append(chain, constraint.BuildValidators(rowEntries, columnEntries)...)

	seen := make(map[string]struct{}, len(chain)+len(spec.Validators))
	for _, v := range chain {
		seen[v.Name] = struct{}{}
	}
	for _, v := range spec.Validators {
		if v.Name == "" {
			return nil, core.NewConfigurationError(spec.Table, "validator has no name")
		}
		if _, dup := seen[v.Name]; dup {
			return nil, core.NewConfigurationError(spec.Table, "duplicate validator name %q", v.Name)
		}
		seen[v.Name] = struct{}{}
		chain = append(chain, v)
	}

	protected := make(map[string]struct{}, len(spec.Protected))
	for _, col := range spec.Protected {
		if col == "" {
			return nil, core.NewConfigurationError(spec.Table, "protected column name cannot be empty")
		}
		protected[col] = struct{}{}
	}

	return &Binding{
		Table:     spec.Table,
		Schema:    spec.Schema,
		Defaults:  spec.Defaults,
		chain:     chain,
		protected: protected,
	}, nil
}

// schemaValidator wraps the schema checker as the first built-in
// validator in the chain.
func schemaValidator(s *core.Schema) core.Validator {
	checker := schema.NewValidator(s)
	return core.Validator{
		Name: "schema",
		OnInsert: func(ctx context.Context, vctx *core.ValidateContext, doc core.Document) (core.Document, error) {
			if err := checker.ValidateDocument(doc); err != nil {
				return nil, err
			}
			return doc, nil
		},
		OnPatch: func(ctx context.Context, vctx *core.ValidateContext, doc core.Document) (core.Document, error) {
			if err := checker.ValidatePartial(doc); err != nil {
				return nil, err
			}
			return doc, nil
		},
	}
}

// Get returns the binding for a table.
func (r *TableRegistry) Get(table string) (*Binding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	binding, ok := r.bindings[table]
	if !ok {
		return nil, fmt.Errorf("table %q is not bound", table)
	}
	return binding, nil
}

// Unbind removes a table's binding.
func (r *TableRegistry) Unbind(ctx context.Context, table string) error {
	r.mu.Lock()
	binding, ok := r.bindings[table]
	if ok {
		delete(r.bindings, table)
	}
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("table %q is not bound", table)
	}
	if err := r.hooks.ExecuteUnbindHooks(ctx, table, binding.Schema); err != nil {
		return fmt.Errorf("unbind hook failed for table %q: %w", table, err)
	}
	r.logger.Info("table unbound", zap.String("table", table))
	return nil
}

// List returns the names of all bound tables.
func (r *TableRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.bindings))
	for name := range r.bindings {
		names = append(names, name)
	}
	return names
}

// Count returns the number of bound tables.
func (r *TableRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bindings)
}

// Hooks returns the hook manager associated with this registry.
func (r *TableRegistry) Hooks() *HookManager {
	return r.hooks
}
