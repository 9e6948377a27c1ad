// Package storage provides document-store adapters behind a strategy
// factory: memory, Redis, DynamoDB and MySQL.
package storage

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/strata-labs/docguard/internal/core"
	"github.com/strata-labs/docguard/internal/registry"
)

// Factory is the strategy interface for creating storage adapters.
// Each backend implements it and registers itself from init().
type Factory interface {
	// Create builds a storage adapter from the storage section of the
	// configuration.
	Create(config registry.InternalStorageConfig, logger *zap.Logger) (core.Storage, error)

	// Type returns the backend identifier (e.g. "redis", "mysql").
	Type() string
}

var (
	factoryRegistry = make(map[string]Factory)
	registryMutex   sync.RWMutex
)

// RegisterFactory registers a storage factory. Called from each
// backend's init(); panics on nil, empty type, or duplicates.
func RegisterFactory(factory Factory) {
	if factory == nil {
		panic("storage factory cannot be nil")
	}
	if factory.Type() == "" {
		panic("storage factory type cannot be empty")
	}
	registryMutex.Lock()
	defer registryMutex.Unlock()
	if _, exists := factoryRegistry[factory.Type()]; exists {
		panic(fmt.Sprintf("storage factory for type %q is already registered", factory.Type()))
	}
	factoryRegistry[factory.Type()] = factory
}

// Create builds a storage adapter using the factory registered for
// config.Type.
func Create(config registry.InternalStorageConfig, logger *zap.Logger) (core.Storage, error) {
	if config.Type == "" {
		return nil, fmt.Errorf("storage type is required")
	}
	registryMutex.RLock()
	factory, exists := factoryRegistry[config.Type]
	registryMutex.RUnlock()
	if !exists {
		return nil, fmt.Errorf("unsupported storage type: %s", config.Type)
	}
	return factory.Create(config, logger)
}

// RegisteredTypes returns the identifiers of all registered backends.
func RegisteredTypes() []string {
	registryMutex.RLock()
	defer registryMutex.RUnlock()
	types := make([]string, 0, len(factoryRegistry))
	for t := range factoryRegistry {
		types = append(types, t)
	}
	return types
}
