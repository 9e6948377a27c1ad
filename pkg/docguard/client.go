package docguard

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/strata-labs/docguard/internal/client"
	"github.com/strata-labs/docguard/internal/defaults"
	"github.com/strata-labs/docguard/internal/registry"
)

// Client is the entry point of the validation layer.
//
// Typical usage:
//
//	client, _ := docguard.NewClient(config)
//	defer client.Close()
//
//	users, _ := client.Bind(ctx, "users",
//		docguard.WithUniqueColumns(docguard.ConstraintRef{Index: "by_email"}),
//		docguard.WithDefaults(docguard.Document{"status": "active"}),
//	)
//	client.Start(ctx) // background conflict-event publisher, if configured
//	defer client.Stop()
//
//	id, err := users.Insert(ctx, doc)
type Client interface {
	// Bind registers a table with the validation layer and returns its
	// handle. Options layer over the declarative configuration for the
	// same table; constraint references are resolved eagerly, so a bad
	// index name fails here rather than on first write.
	Bind(ctx context.Context, tableName string, opts ...TableOption) (Table, error)

	// Unbind removes a table's binding. Subsequent GetTable calls for
	// the table fail until it is bound again.
	Unbind(ctx context.Context, tableName string) error

	// GetTable retrieves the handle of a previously bound table.
	GetTable(tableName string) (Table, error)

	// Start launches the background conflict-event publisher, if the
	// configuration declares one. Non-blocking.
	Start(ctx context.Context) error

	// Stop gracefully stops the background publisher.
	Stop() error

	// IsRunning reports whether the background publisher is active.
	IsRunning() bool

	// Close stops background work and releases all resources.
	Close() error
}

// configProvider hands the configuration to the internal wiring as
// YAML, which keeps the internal packages off the public config type.
type configProvider struct {
	config *Config
}

func (cp *configProvider) GetYAML() ([]byte, error) {
	return yaml.Marshal(cp.config)
}

// clientWrapper adapts the internal client to the public interface.
type clientWrapper struct {
	mu     sync.RWMutex
	impl   *client.ClientImpl
	tables map[string]*tableWrapper
}

// NewClient creates a client from the provided configuration. Storage
// and the event channel are connected eagerly; an unreachable backend
// fails here.
func NewClient(config *Config, opts ...ClientOption) (Client, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	var options clientOptions
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = zap.NewNop()
	}

	impl, err := client.NewClientImpl(&configProvider{config: config}, options.logger)
	if err != nil {
		return nil, err
	}
	return &clientWrapper{
		impl:   impl,
		tables: make(map[string]*tableWrapper),
	}, nil
}

// Bind registers a table binding assembled from the table's declarative
// configuration plus the given options.
func (cw *clientWrapper) Bind(ctx context.Context, tableName string, opts ...TableOption) (Table, error) {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	var options bindOptions
	for _, opt := range opts {
		opt(&options)
	}

	tc := cw.impl.TableConfig(tableName)

	schema := options.schema
	if schema == nil {
		schema = registry.SchemaFromConfig(tableName, tc.Schema)
	}

	source := defaults.Source{}
	switch {
	case options.defaultsFactory != nil:
		source = defaults.FromFactory(defaults.Factory(options.defaultsFactory))
	case options.staticDefaults != nil:
		source = defaults.Static(options.staticDefaults)
	case len(tc.Defaults) > 0:
		source = defaults.Static(Document(tc.Defaults))
	}

	spec := registry.BindSpec{
		Table:            tableName,
		Schema:           schema,
		UniqueRows:       append(append([]ConstraintRef{}, tc.UniqueRows...), options.uniqueRows...),
		UniqueColumns:    append(append([]ConstraintRef{}, tc.UniqueColumns...), options.uniqueColumns...),
		Validators:       options.validators,
		Defaults:         source,
		Protected:        append(append([]string{}, tc.Protected...), options.protected...),
		SchemaValidation: tc.SchemaValidation || options.schemaValidation,
	}

	internalTable, err := cw.impl.Bind(ctx, spec)
	if err != nil {
		return nil, err
	}

	tw := &tableWrapper{impl: internalTable}
	cw.tables[tableName] = tw
	return tw, nil
}

// Unbind removes a table's binding.
func (cw *clientWrapper) Unbind(ctx context.Context, tableName string) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if err := cw.impl.Unbind(ctx, tableName); err != nil {
		return err
	}
	delete(cw.tables, tableName)
	return nil
}

// GetTable retrieves the handle of a bound table.
func (cw *clientWrapper) GetTable(tableName string) (Table, error) {
	cw.mu.RLock()
	if tw, ok := cw.tables[tableName]; ok {
		cw.mu.RUnlock()
		return tw, nil
	}
	cw.mu.RUnlock()

	internalTable, err := cw.impl.GetTable(tableName)
	if err != nil {
		return nil, err
	}
	return &tableWrapper{impl: internalTable}, nil
}

// Start launches the background conflict-event publisher.
func (cw *clientWrapper) Start(ctx context.Context) error {
	return cw.impl.Start(ctx)
}

// Stop stops the background publisher.
func (cw *clientWrapper) Stop() error {
	return cw.impl.Stop()
}

// IsRunning reports whether the background publisher is active.
func (cw *clientWrapper) IsRunning() bool {
	return cw.impl.IsRunning()
}

// Close stops background work and releases all resources.
func (cw *clientWrapper) Close() error {
	return cw.impl.Close()
}
