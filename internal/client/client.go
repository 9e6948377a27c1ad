// Package client wires configuration, storage, the table registry and
// the event channel into per-table orchestrators.
package client

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/strata-labs/docguard/internal/core"
	"github.com/strata-labs/docguard/internal/events"
	"github.com/strata-labs/docguard/internal/registry"
	"github.com/strata-labs/docguard/internal/storage"
	"github.com/strata-labs/docguard/internal/table"
)

// ConfigProvider supplies configuration as YAML. The public package
// implements it over its own config type, which keeps this package free
// of an import cycle.
type ConfigProvider interface {
	GetYAML() ([]byte, error)
}

// ClientImpl owns the shared infrastructure: one storage adapter, one
// table registry, and at most one conflict-event pipeline.
type ClientImpl struct {
	mu        sync.RWMutex
	configMgr *registry.ConfigManager
	storage   core.Storage
	registry  *registry.TableRegistry
	tables    map[string]*table.TableImpl

	eventQueue core.EventQueue
	eventSink  events.Sink
	publisher  *events.Publisher

	logger *zap.Logger
	closed bool
}

// NewClientImpl builds the client from the provided configuration.
// Storage and the event channel are created eagerly; a bad backend
// configuration fails here, not on first use.
func NewClientImpl(provider ConfigProvider, logger *zap.Logger) (*ClientImpl, error) {
	if provider == nil {
		return nil, fmt.Errorf("config provider cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	configMgr := registry.NewConfigManager()
	data, err := provider.GetYAML()
	if err != nil {
		return nil, fmt.Errorf("failed to get config: %w", err)
	}
	if err := configMgr.LoadFromYAML(data); err != nil {
		return nil, err
	}
	config := configMgr.GetConfig()

	store, err := storage.Create(config.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage: %w", err)
	}

	impl := &ClientImpl{
		configMgr: configMgr,
		storage:   store,
		registry:  registry.NewTableRegistry(nil, logger),
		tables:    make(map[string]*table.TableImpl),
		logger:    logger,
	}
	if err := impl.setupEvents(config.Events); err != nil {
		store.Close()
		return nil, err
	}
	return impl, nil
}

// setupEvents builds the conflict-event pipeline for the configured
// queue type. The write path always enqueues into a memory queue; in
// kafka mode a background publisher drains it into the broker.
func (c *ClientImpl) setupEvents(cfg registry.InternalEventsConfig) error {
	switch cfg.QueueType {
	case "", "none":
		return nil
	case "memory":
		c.eventQueue = events.NewMemoryQueue(cfg.BufferSize)
		return nil
	case "kafka":
		sink, err := events.NewKafkaSink(cfg.Kafka, c.logger)
		if err != nil {
			return fmt.Errorf("failed to create Kafka event sink: %w", err)
		}
		queue := events.NewMemoryQueue(cfg.BufferSize)
		c.eventQueue = queue
		c.eventSink = sink
		c.publisher = events.NewPublisher(queue, sink, events.PublisherConfig{
			PublishRate:  cfg.PublishRate,
			PollInterval: cfg.PollInterval,
		}, c.logger)
		return nil
	default:
		return fmt.Errorf("unsupported event queue type: %s", cfg.QueueType)
	}
}

// Bind registers a table binding and returns its orchestrator. The
// schema is registered with the storage adapter first so index scans
// work from the first insert.
func (c *ClientImpl) Bind(ctx context.Context, spec registry.BindSpec) (*table.TableImpl, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, fmt.Errorf("client is closed")
	}

	if spec.Schema != nil && spec.Schema.TableName == "" {
		// Copy before naming: the schema is the caller's value.
		named := *spec.Schema
		named.TableName = spec.Table
		spec.Schema = &named
	}
	binding, err := c.registry.Bind(ctx, spec)
	if err != nil {
		return nil, err
	}
	if err := c.storage.RegisterSchema(binding.Schema); err != nil {
		return nil, fmt.Errorf("failed to register schema for table %q: %w", spec.Table, err)
	}

	tbl := table.NewTableImpl(binding, c.storage, c.eventQueue, c.logger)
	c.tables[spec.Table] = tbl
	return tbl, nil
}

// Unbind removes a table binding. In-flight operations on the old
// orchestrator complete against the old configuration.
func (c *ClientImpl) Unbind(ctx context.Context, tableName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.tables[tableName]; !ok {
		return fmt.Errorf("table %q is not bound", tableName)
	}
	if err := c.registry.Unbind(ctx, tableName); err != nil {
		return err
	}
	delete(c.tables, tableName)
	return nil
}

// GetTable returns the orchestrator for a bound table.
func (c *ClientImpl) GetTable(tableName string) (*table.TableImpl, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tbl, ok := c.tables[tableName]
	if !ok {
		return nil, fmt.Errorf("table %q is not bound", tableName)
	}
	return tbl, nil
}

// TableConfig returns the declarative configuration for a table.
func (c *ClientImpl) TableConfig(tableName string) registry.InternalTableConfig {
	return c.configMgr.GetTableConfig(tableName)
}

// Registry exposes the table registry, e.g. for attaching bind hooks.
func (c *ClientImpl) Registry() *registry.TableRegistry {
	return c.registry
}

// Start launches the background event publisher, if one is configured.
func (c *ClientImpl) Start(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.publisher == nil {
		return nil
	}
	return c.publisher.Start(ctx)
}

// Stop stops the background event publisher, if one is running.
func (c *ClientImpl) Stop() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.publisher == nil {
		return nil
	}
	return c.publisher.Stop()
}

// IsRunning reports whether the event publisher is active.
func (c *ClientImpl) IsRunning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.publisher != nil && c.publisher.IsRunning()
}

// EventQueueSize returns the number of buffered conflict events.
func (c *ClientImpl) EventQueueSize() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.eventQueue == nil {
		return 0
	}
	return c.eventQueue.Size()
}

// Close stops the publisher and releases storage and queue resources.
func (c *ClientImpl) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	if c.publisher != nil {
		if err := c.publisher.Stop(); err != nil {
			c.logger.Warn("failed to stop event publisher", zap.Error(err))
		}
	}
	if c.eventQueue != nil {
		if err := c.eventQueue.Close(); err != nil {
			c.logger.Warn("failed to close event queue", zap.Error(err))
		}
	}
	if c.eventSink != nil {
		if err := c.eventSink.Close(); err != nil {
			c.logger.Warn("failed to close event sink", zap.Error(err))
		}
	}
	return c.storage.Close()
}
