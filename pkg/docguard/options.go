package docguard

import (
	"context"

	"go.uber.org/zap"
)

// ClientOption configures the client at construction time.
type ClientOption func(*clientOptions)

type clientOptions struct {
	logger *zap.Logger
}

// WithLogger sets the structured logger used by the client and
// everything it creates. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) ClientOption {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

// TableOption configures a table binding. Options layer over the
// declarative configuration for the same table: schemas and flags from
// options win, list-valued settings append.
type TableOption func(*bindOptions)

type bindOptions struct {
	schema           *Schema
	uniqueRows       []ConstraintRef
	uniqueColumns    []ConstraintRef
	validators       []Validator
	staticDefaults   Document
	defaultsFactory  func(ctx context.Context) (Document, error)
	protected        []string
	schemaValidation bool
}

// WithSchema sets the table's schema, overriding any declared in
// configuration.
func WithSchema(schema *Schema) TableOption {
	return func(o *bindOptions) {
		o.schema = schema
	}
}

// WithUniqueRows adds composite uniqueness constraints.
func WithUniqueRows(refs ...ConstraintRef) TableOption {
	return func(o *bindOptions) {
		o.uniqueRows = append(o.uniqueRows, refs...)
	}
}

// WithUniqueColumns adds single-column uniqueness constraints.
func WithUniqueColumns(refs ...ConstraintRef) TableOption {
	return func(o *bindOptions) {
		o.uniqueColumns = append(o.uniqueColumns, refs...)
	}
}

// WithValidator appends a user validator to the table's chain. User
// validators run after the built-in ones, in the order given.
func WithValidator(v Validator) TableOption {
	return func(o *bindOptions) {
		o.validators = append(o.validators, v)
	}
}

// WithDefaults sets static insert-time default values, merged under
// the caller's fields.
func WithDefaults(values Document) TableOption {
	return func(o *bindOptions) {
		o.staticDefaults = values
	}
}

// WithDefaultsFactory sets a factory invoked fresh on every insert to
// produce the default values. Takes precedence over static defaults.
func WithDefaultsFactory(fn func(ctx context.Context) (Document, error)) TableOption {
	return func(o *bindOptions) {
		o.defaultsFactory = fn
	}
}

// WithProtectedColumns marks columns that ordinary patches must not
// touch. The primary identifier field is always protected.
func WithProtectedColumns(columns ...string) TableOption {
	return func(o *bindOptions) {
		o.protected = append(o.protected, columns...)
	}
}

// WithSchemaValidation enables the built-in schema validator for the
// table.
func WithSchemaValidation() TableOption {
	return func(o *bindOptions) {
		o.schemaValidation = true
	}
}

// OpOption configures a single Insert or Patch call.
type OpOption func(*opOptions)

type opOptions struct {
	onFail func(ConflictResult)
}

// WithOnFail registers a callback invoked synchronously with the
// conflict details before a uniqueness error is returned. The error is
// returned regardless; a panicking callback is recovered and logged.
func WithOnFail(fn func(ConflictResult)) OpOption {
	return func(o *opOptions) {
		o.onFail = fn
	}
}
