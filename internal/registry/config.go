package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/strata-labs/docguard/internal/core"
)

// ConfigValidator is the strategy interface for validating
// backend-specific storage configuration. Each storage backend
// registers its own validator from init().
type ConfigValidator interface {
	// Validate checks the storage section of the configuration.
	Validate(config *InternalConfig) error

	// Type returns the backend identifier this validator covers
	// (e.g. "redis", "mysql").
	Type() string
}

var (
	validatorRegistry      = make(map[string]ConfigValidator)
	validatorRegistryMutex sync.RWMutex
)

// RegisterValidator registers a storage config validator. Called from
// each backend's init(); panics on nil, empty type, or duplicates.
func RegisterValidator(v ConfigValidator) {
	if v == nil {
		panic("config validator cannot be nil")
	}
	if v.Type() == "" {
		panic("config validator type cannot be empty")
	}
	validatorRegistryMutex.Lock()
	defer validatorRegistryMutex.Unlock()
	if _, exists := validatorRegistry[v.Type()]; exists {
		panic(fmt.Sprintf("config validator for type %q is already registered", v.Type()))
	}
	validatorRegistry[v.Type()] = v
}

// GetValidator retrieves a registered validator by backend type.
func GetValidator(storageType string) (ConfigValidator, bool) {
	validatorRegistryMutex.RLock()
	defer validatorRegistryMutex.RUnlock()
	v, ok := validatorRegistry[storageType]
	return v, ok
}

// ConfigManager loads and holds the internal configuration.
type ConfigManager struct {
	config *InternalConfig
}

// NewConfigManager creates a manager holding the default configuration.
func NewConfigManager() *ConfigManager {
	return &ConfigManager{config: DefaultInternalConfig()}
}

// DefaultInternalConfig returns a configuration with sensible defaults:
// in-memory storage, no event channel, no tables.
func DefaultInternalConfig() *InternalConfig {
	return &InternalConfig{
		Storage: InternalStorageConfig{
			Type: "memory",
			Redis: InternalRedisConfig{
				Endpoints:    []string{"localhost:6379"},
				PoolSize:     10,
				MinIdleConns: 5,
				DialTimeout:  5 * time.Second,
				ReadTimeout:  3 * time.Second,
				WriteTimeout: 3 * time.Second,
			},
			MySQL: InternalMySQLConfig{
				Host:              "localhost",
				Port:              3306,
				MaxOpenConns:      25,
				MaxIdleConns:      5,
				ConnMaxLifetime:   5 * time.Minute,
				ConnectionTimeout: 10 * time.Second,
			},
		},
		Events: InternalEventsConfig{
			QueueType:    "none",
			BufferSize:   10000,
			PublishRate:  50,
			PollInterval: 100 * time.Millisecond,
			Kafka: InternalKafkaConfig{
				Brokers:      []string{"localhost:9092"},
				Topic:        "docguard-conflicts",
				BatchSize:    100,
				BatchTimeout: 10 * time.Millisecond,
				WriteTimeout: 10 * time.Second,
				RequiredAcks: -1,
			},
		},
		Tables: make(map[string]InternalTableConfig),
	}
}

// LoadFromFile loads configuration from a YAML or JSON file, chosen by
// extension.
func (cm *ConfigManager) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return cm.LoadFromYAML(data)
	case ".json":
		return cm.LoadFromJSON(data)
	default:
		return fmt.Errorf("unsupported config file format: %s (supported: .yaml, .yml, .json)", filepath.Ext(path))
	}
}

// LoadFromYAML loads configuration from YAML data over the defaults.
func (cm *ConfigManager) LoadFromYAML(data []byte) error {
	config := DefaultInternalConfig()
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}
	if err := cm.validateConfig(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cm.config = config
	return nil
}

// LoadFromJSON loads configuration from JSON data over the defaults.
func (cm *ConfigManager) LoadFromJSON(data []byte) error {
	config := DefaultInternalConfig()
	if len(data) > 0 {
		if err := json.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse JSON config: %w", err)
		}
	}
	if err := cm.validateConfig(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cm.config = config
	return nil
}

// LoadFromEnv loads storage and event settings from environment
// variables of the form DOCGUARD_<SECTION>_<KEY>. Table configuration
// is structural and only loads from files or code.
func (cm *ConfigManager) LoadFromEnv() error {
	config := DefaultInternalConfig()

	if val := os.Getenv("DOCGUARD_STORAGE_TYPE"); val != "" {
		config.Storage.Type = val
	}
	if val := os.Getenv("DOCGUARD_STORAGE_NAMESPACE"); val != "" {
		config.Storage.Namespace = val
	}
	if val := os.Getenv("DOCGUARD_REDIS_ENDPOINTS"); val != "" {
		config.Storage.Redis.Endpoints = strings.Split(val, ",")
	}
	if val := os.Getenv("DOCGUARD_REDIS_PASSWORD"); val != "" {
		config.Storage.Redis.Password = val
	}
	if val := os.Getenv("DOCGUARD_REDIS_DB"); val != "" {
		if db, err := strconv.Atoi(val); err == nil {
			config.Storage.Redis.DB = db
		}
	}
	if val := os.Getenv("DOCGUARD_DYNAMODB_REGION"); val != "" {
		config.Storage.DynamoDB.Region = val
	}
	if val := os.Getenv("DOCGUARD_DYNAMODB_TABLE"); val != "" {
		config.Storage.DynamoDB.TableName = val
	}
	if val := os.Getenv("DOCGUARD_DYNAMODB_ENDPOINT"); val != "" {
		config.Storage.DynamoDB.Endpoint = val
	}
	if val := os.Getenv("DOCGUARD_MYSQL_HOST"); val != "" {
		config.Storage.MySQL.Host = val
	}
	if val := os.Getenv("DOCGUARD_MYSQL_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			config.Storage.MySQL.Port = port
		}
	}
	if val := os.Getenv("DOCGUARD_MYSQL_DATABASE"); val != "" {
		config.Storage.MySQL.Database = val
	}
	if val := os.Getenv("DOCGUARD_MYSQL_USERNAME"); val != "" {
		config.Storage.MySQL.Username = val
	}
	if val := os.Getenv("DOCGUARD_MYSQL_PASSWORD"); val != "" {
		config.Storage.MySQL.Password = val
	}
	if val := os.Getenv("DOCGUARD_EVENTS_QUEUE_TYPE"); val != "" {
		config.Events.QueueType = val
	}
	if val := os.Getenv("DOCGUARD_EVENTS_PUBLISH_RATE"); val != "" {
		if rate, err := strconv.Atoi(val); err == nil {
			config.Events.PublishRate = rate
		}
	}
	if val := os.Getenv("DOCGUARD_EVENTS_KAFKA_BROKERS"); val != "" {
		config.Events.Kafka.Brokers = strings.Split(val, ",")
	}
	if val := os.Getenv("DOCGUARD_EVENTS_KAFKA_TOPIC"); val != "" {
		config.Events.Kafka.Topic = val
	}

	if err := cm.validateConfig(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cm.config = config
	return nil
}

// GetConfig returns the current internal configuration.
func (cm *ConfigManager) GetConfig() *InternalConfig {
	return cm.config
}

// GetTableConfig returns the declarative configuration for a table, or
// the zero value if none was declared.
func (cm *ConfigManager) GetTableConfig(table string) InternalTableConfig {
	return cm.config.Tables[table]
}

// validateConfig validates the loaded configuration. Storage backends
// are validated through the strategy registry; table sections are
// validated structurally (constraint resolution happens at bind time).
func (cm *ConfigManager) validateConfig(config *InternalConfig) error {
	if config.Storage.Type == "" {
		return fmt.Errorf("storage.type is required")
	}
	validator, ok := GetValidator(config.Storage.Type)
	if !ok {
		return fmt.Errorf("unsupported storage type: %s", config.Storage.Type)
	}
	if err := validator.Validate(config); err != nil {
		return fmt.Errorf("storage validation failed: %w", err)
	}

	switch config.Events.QueueType {
	case "", "none", "memory":
	case "kafka":
		if len(config.Events.Kafka.Brokers) == 0 {
			return fmt.Errorf("events.kafka.brokers is required when queue_type is 'kafka'")
		}
		if config.Events.Kafka.Topic == "" {
			return fmt.Errorf("events.kafka.topic is required when queue_type is 'kafka'")
		}
	default:
		return fmt.Errorf("events.queue_type must be 'none', 'memory', or 'kafka'")
	}
	if config.Events.BufferSize < 0 {
		return fmt.Errorf("events.buffer_size must be non-negative")
	}
	if config.Events.PublishRate < 0 {
		return fmt.Errorf("events.publish_rate must be non-negative")
	}

	for table, tc := range config.Tables {
		if err := validateTableConfig(table, tc); err != nil {
			return err
		}
	}
	return nil
}

// validateTableConfig performs the structural checks possible before
// bind time.
func validateTableConfig(table string, tc InternalTableConfig) error {
	if tc.Schema != nil {
		seen := make(map[string]struct{}, len(tc.Schema.Indexes))
		for _, idx := range tc.Schema.Indexes {
			if idx.Name == "" {
				return core.NewConfigurationError(table, "index has no name")
			}
			if len(idx.Fields) == 0 {
				return core.NewConfigurationError(table, "index %q has no fields", idx.Name)
			}
			if _, dup := seen[idx.Name]; dup {
				return core.NewConfigurationError(table, "duplicate index name %q", idx.Name)
			}
			seen[idx.Name] = struct{}{}
		}
	}
	for _, ref := range tc.UniqueRows {
		if ref.Index == "" {
			return core.NewConfigurationError(table, "unique_rows entry has no index name")
		}
	}
	for _, ref := range tc.UniqueColumns {
		if ref.Index == "" {
			return core.NewConfigurationError(table, "unique_columns entry has no index name")
		}
	}
	return nil
}

// SchemaFromConfig converts a declared schema into core metadata.
func SchemaFromConfig(table string, sc *InternalSchemaConfig) *core.Schema {
	if sc == nil {
		return &core.Schema{TableName: table}
	}
	s := &core.Schema{
		TableName:  table,
		PrimaryKey: sc.PrimaryKey,
	}
	for _, c := range sc.Columns {
		s.Columns = append(s.Columns, core.Column{Name: c.Name, Type: c.Type, Nullable: c.Nullable})
	}
	for _, idx := range sc.Indexes {
		fields := make([]string, len(idx.Fields))
		copy(fields, idx.Fields)
		s.Indexes = append(s.Indexes, core.Index{Name: idx.Name, Fields: fields})
	}
	return s
}
