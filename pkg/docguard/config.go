package docguard

import (
	"time"
)

// Config is the root configuration for the docguard client.
type Config struct {
	// Storage selects and configures the document-store backend.
	Storage StorageConfig `yaml:"storage" json:"storage"`

	// Events configures the optional conflict-event channel.
	Events EventsConfig `yaml:"events" json:"events"`

	// Tables contains declarative per-table validation configuration.
	// Code-only concerns (defaults factories, validator plugins) attach
	// through bind options instead.
	Tables map[string]TableConfig `yaml:"tables,omitempty" json:"tables,omitempty"`
}

// StorageConfig selects and configures the document-store backend.
type StorageConfig struct {
	// Type specifies the storage backend: "memory", "redis", "dynamodb"
	// or "mysql".
	Type string `yaml:"type" json:"type"`

	// Namespace is an optional key prefix shared by all tables, for
	// backends whose keyspace is flat.
	Namespace string `yaml:"namespace,omitempty" json:"namespace,omitempty"`

	Redis    RedisConfig    `yaml:"redis,omitempty" json:"redis,omitempty"`
	DynamoDB DynamoDBConfig `yaml:"dynamodb,omitempty" json:"dynamodb,omitempty"`
	MySQL    MySQLConfig    `yaml:"mysql,omitempty" json:"mysql,omitempty"`
}

// RedisConfig contains Redis-specific configuration.
type RedisConfig struct {
	// Endpoints is a list of Redis endpoints. The first one is used.
	Endpoints []string `yaml:"endpoints" json:"endpoints"`

	// Password is the authentication password for Redis.
	Password string `yaml:"password,omitempty" json:"password,omitempty"`

	// DB is the Redis database number (0-15).
	DB int `yaml:"db,omitempty" json:"db,omitempty"`

	// PoolSize is the connection pool size.
	PoolSize int `yaml:"pool_size,omitempty" json:"pool_size,omitempty"`

	// MinIdleConns is the minimum number of idle connections.
	MinIdleConns int `yaml:"min_idle_conns,omitempty" json:"min_idle_conns,omitempty"`

	// DialTimeout is the timeout for establishing connections.
	DialTimeout time.Duration `yaml:"dial_timeout,omitempty" json:"dial_timeout,omitempty"`

	// ReadTimeout is the timeout for read operations.
	ReadTimeout time.Duration `yaml:"read_timeout,omitempty" json:"read_timeout,omitempty"`

	// WriteTimeout is the timeout for write operations.
	WriteTimeout time.Duration `yaml:"write_timeout,omitempty" json:"write_timeout,omitempty"`
}

// DynamoDBConfig contains DynamoDB-specific configuration.
type DynamoDBConfig struct {
	// Region is the AWS region.
	Region string `yaml:"region" json:"region"`

	// TableName is the DynamoDB table holding all documents and index
	// items.
	TableName string `yaml:"table_name" json:"table_name"`

	// Endpoint overrides the service endpoint, e.g. for LocalStack.
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`

	// AccessKeyID and SecretAccessKey override the default credential
	// chain when both are set.
	AccessKeyID     string `yaml:"access_key_id,omitempty" json:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" json:"secret_access_key,omitempty"`
}

// MySQLConfig contains MySQL-specific configuration.
type MySQLConfig struct {
	// Host is the database host address.
	Host string `yaml:"host" json:"host"`

	// Port is the database port number.
	Port int `yaml:"port" json:"port"`

	// Database is the database name.
	Database string `yaml:"database" json:"database"`

	// Username is the database username.
	Username string `yaml:"username" json:"username"`

	// Password is the database password.
	Password string `yaml:"password,omitempty" json:"password,omitempty"`

	// MaxOpenConns is the maximum number of open connections.
	MaxOpenConns int `yaml:"max_open_conns,omitempty" json:"max_open_conns,omitempty"`

	// MaxIdleConns is the maximum number of idle connections.
	MaxIdleConns int `yaml:"max_idle_conns,omitempty" json:"max_idle_conns,omitempty"`

	// ConnMaxLifetime is the maximum amount of time a connection may be
	// reused.
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime,omitempty" json:"conn_max_lifetime,omitempty"`

	// ConnectionTimeout is the timeout for establishing connections.
	ConnectionTimeout time.Duration `yaml:"connection_timeout,omitempty" json:"connection_timeout,omitempty"`
}

// EventsConfig configures the conflict-event channel. Rejected writes
// are published as events to the configured queue; delivery is best
// effort and never affects the operation outcome.
type EventsConfig struct {
	// QueueType selects the event channel: "none" (default), "memory"
	// or "kafka".
	QueueType string `yaml:"queue_type" json:"queue_type"`

	// BufferSize is the in-memory event buffer capacity.
	BufferSize int `yaml:"buffer_size,omitempty" json:"buffer_size,omitempty"`

	// PublishRate limits Kafka publishes per second.
	PublishRate int `yaml:"publish_rate,omitempty" json:"publish_rate,omitempty"`

	// PollInterval is how often the publisher checks an empty queue.
	PollInterval time.Duration `yaml:"poll_interval,omitempty" json:"poll_interval,omitempty"`

	Kafka KafkaConfig `yaml:"kafka,omitempty" json:"kafka,omitempty"`
}

// KafkaConfig contains configuration for the Kafka event sink.
type KafkaConfig struct {
	// Brokers is a list of Kafka broker addresses.
	Brokers []string `yaml:"brokers" json:"brokers"`

	// Topic is the topic conflict events are published to.
	Topic string `yaml:"topic" json:"topic"`

	// BatchSize is the producer batch size.
	BatchSize int `yaml:"batch_size,omitempty" json:"batch_size,omitempty"`

	// BatchTimeout is the producer batching timeout.
	BatchTimeout time.Duration `yaml:"batch_timeout,omitempty" json:"batch_timeout,omitempty"`

	// WriteTimeout is the timeout for writing messages.
	WriteTimeout time.Duration `yaml:"write_timeout,omitempty" json:"write_timeout,omitempty"`

	// RequiredAcks is the number of acknowledgments required (0, 1, or
	// -1 for all).
	RequiredAcks int `yaml:"required_acks,omitempty" json:"required_acks,omitempty"`
}

// TableConfig is a table's declarative validation configuration.
type TableConfig struct {
	// Schema declares the table's columns and secondary indexes.
	Schema *SchemaConfig `yaml:"schema,omitempty" json:"schema,omitempty"`

	// UniqueRows configures composite uniqueness constraints. Entries
	// may be bare index names or expanded mappings.
	UniqueRows []ConstraintRef `yaml:"unique_rows,omitempty" json:"unique_rows,omitempty"`

	// UniqueColumns configures single-column uniqueness constraints.
	UniqueColumns []ConstraintRef `yaml:"unique_columns,omitempty" json:"unique_columns,omitempty"`

	// Protected lists columns ordinary patches must not touch.
	Protected []string `yaml:"protected,omitempty" json:"protected,omitempty"`

	// Defaults are static insert-time default values.
	Defaults map[string]interface{} `yaml:"defaults,omitempty" json:"defaults,omitempty"`

	// SchemaValidation enables the built-in schema validator.
	SchemaValidation bool `yaml:"schema_validation,omitempty" json:"schema_validation,omitempty"`
}

// SchemaConfig declares a table schema in configuration.
type SchemaConfig struct {
	// PrimaryKey is the primary identifier field. Defaults to "_id".
	PrimaryKey string `yaml:"primary_key,omitempty" json:"primary_key,omitempty"`

	// Columns declares the table's columns.
	Columns []ColumnConfig `yaml:"columns,omitempty" json:"columns,omitempty"`

	// Indexes declares the table's secondary indexes.
	Indexes []IndexConfig `yaml:"indexes,omitempty" json:"indexes,omitempty"`
}

// ColumnConfig declares one column.
type ColumnConfig struct {
	Name     string `yaml:"name" json:"name"`
	Type     string `yaml:"type,omitempty" json:"type,omitempty"`
	Nullable bool   `yaml:"nullable,omitempty" json:"nullable,omitempty"`
}

// IndexConfig declares one secondary index.
type IndexConfig struct {
	Name   string   `yaml:"name" json:"name"`
	Fields []string `yaml:"fields" json:"fields"`
}

// DefaultConfig returns a configuration with sensible defaults:
// in-memory storage and no event channel.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Type: "memory",
			Redis: RedisConfig{
				Endpoints:    []string{"localhost:6379"},
				PoolSize:     10,
				MinIdleConns: 5,
				DialTimeout:  5 * time.Second,
				ReadTimeout:  3 * time.Second,
				WriteTimeout: 3 * time.Second,
			},
			MySQL: MySQLConfig{
				Host:              "localhost",
				Port:              3306,
				MaxOpenConns:      25,
				MaxIdleConns:      5,
				ConnMaxLifetime:   5 * time.Minute,
				ConnectionTimeout: 10 * time.Second,
			},
		},
		Events: EventsConfig{
			QueueType:    "none",
			BufferSize:   10000,
			PublishRate:  50,
			PollInterval: 100 * time.Millisecond,
			Kafka: KafkaConfig{
				Brokers:      []string{"localhost:9092"},
				Topic:        "docguard-conflicts",
				BatchSize:    100,
				BatchTimeout: 10 * time.Millisecond,
				WriteTimeout: 10 * time.Second,
				RequiredAcks: -1,
			},
		},
		Tables: make(map[string]TableConfig),
	}
}
