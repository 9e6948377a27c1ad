package registry

import (
	"time"

	"github.com/strata-labs/docguard/internal/constraint"
)

// InternalConfig is the internal configuration structure. It mirrors
// the public config type to avoid import cycles between the public
// package and the internal wiring.
type InternalConfig struct {
	Storage InternalStorageConfig           `yaml:"storage" json:"storage"`
	Events  InternalEventsConfig            `yaml:"events" json:"events"`
	Tables  map[string]InternalTableConfig  `yaml:"tables,omitempty" json:"tables,omitempty"`
}

// InternalStorageConfig selects and configures the document-store
// backend. Backends register their own config validators; see the
// storage package.
type InternalStorageConfig struct {
	Type      string                  `yaml:"type" json:"type"`
	Namespace string                  `yaml:"namespace,omitempty" json:"namespace,omitempty"`
	Redis     InternalRedisConfig     `yaml:"redis,omitempty" json:"redis,omitempty"`
	DynamoDB  InternalDynamoDBConfig  `yaml:"dynamodb,omitempty" json:"dynamodb,omitempty"`
	MySQL     InternalMySQLConfig     `yaml:"mysql,omitempty" json:"mysql,omitempty"`
}

// InternalRedisConfig contains Redis-specific configuration.
type InternalRedisConfig struct {
	Endpoints    []string      `yaml:"endpoints" json:"endpoints"`
	Password     string        `yaml:"password,omitempty" json:"password,omitempty"`
	DB           int           `yaml:"db,omitempty" json:"db,omitempty"`
	PoolSize     int           `yaml:"pool_size,omitempty" json:"pool_size,omitempty"`
	MinIdleConns int           `yaml:"min_idle_conns,omitempty" json:"min_idle_conns,omitempty"`
	DialTimeout  time.Duration `yaml:"dial_timeout,omitempty" json:"dial_timeout,omitempty"`
	ReadTimeout  time.Duration `yaml:"read_timeout,omitempty" json:"read_timeout,omitempty"`
	WriteTimeout time.Duration `yaml:"write_timeout,omitempty" json:"write_timeout,omitempty"`
}

// InternalDynamoDBConfig contains DynamoDB-specific configuration.
type InternalDynamoDBConfig struct {
	Region          string `yaml:"region" json:"region"`
	TableName       string `yaml:"table_name" json:"table_name"`
	Endpoint        string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" json:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" json:"secret_access_key,omitempty"`
}

// InternalMySQLConfig contains MySQL-specific configuration.
type InternalMySQLConfig struct {
	Host              string        `yaml:"host" json:"host"`
	Port              int           `yaml:"port" json:"port"`
	Database          string        `yaml:"database" json:"database"`
	Username          string        `yaml:"username" json:"username"`
	Password          string        `yaml:"password,omitempty" json:"password,omitempty"`
	MaxOpenConns      int           `yaml:"max_open_conns,omitempty" json:"max_open_conns,omitempty"`
	MaxIdleConns      int           `yaml:"max_idle_conns,omitempty" json:"max_idle_conns,omitempty"`
	ConnMaxLifetime   time.Duration `yaml:"conn_max_lifetime,omitempty" json:"conn_max_lifetime,omitempty"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout,omitempty" json:"connection_timeout,omitempty"`
}

// InternalEventsConfig configures the conflict-event side channel.
type InternalEventsConfig struct {
	// QueueType selects the event queue backend: "none", "memory" or
	// "kafka".
	QueueType string `yaml:"queue_type" json:"queue_type"`

	// BufferSize is the memory queue capacity.
	BufferSize int `yaml:"buffer_size,omitempty" json:"buffer_size,omitempty"`

	// PublishRate limits Kafka publishes per second.
	PublishRate int `yaml:"publish_rate,omitempty" json:"publish_rate,omitempty"`

	// PollInterval is how often the publisher checks an empty queue.
	PollInterval time.Duration `yaml:"poll_interval,omitempty" json:"poll_interval,omitempty"`

	Kafka InternalKafkaConfig `yaml:"kafka,omitempty" json:"kafka,omitempty"`
}

// InternalKafkaConfig contains Kafka-specific configuration.
type InternalKafkaConfig struct {
	Brokers      []string      `yaml:"brokers" json:"brokers"`
	Topic        string        `yaml:"topic" json:"topic"`
	BatchSize    int           `yaml:"batch_size,omitempty" json:"batch_size,omitempty"`
	BatchTimeout time.Duration `yaml:"batch_timeout,omitempty" json:"batch_timeout,omitempty"`
	WriteTimeout time.Duration `yaml:"write_timeout,omitempty" json:"write_timeout,omitempty"`
	RequiredAcks int           `yaml:"required_acks,omitempty" json:"required_acks,omitempty"`
}

// InternalTableConfig is a table's declarative validation
// configuration. Factory-based defaults and user validators are code
// and attach through bind options instead.
type InternalTableConfig struct {
	Schema           *InternalSchemaConfig  `yaml:"schema,omitempty" json:"schema,omitempty"`
	UniqueRows       []constraint.Ref       `yaml:"unique_rows,omitempty" json:"unique_rows,omitempty"`
	UniqueColumns    []constraint.Ref       `yaml:"unique_columns,omitempty" json:"unique_columns,omitempty"`
	Protected        []string               `yaml:"protected,omitempty" json:"protected,omitempty"`
	Defaults         map[string]interface{} `yaml:"defaults,omitempty" json:"defaults,omitempty"`
	SchemaValidation bool                   `yaml:"schema_validation,omitempty" json:"schema_validation,omitempty"`
}

// InternalSchemaConfig declares a table schema in configuration.
type InternalSchemaConfig struct {
	PrimaryKey string                 `yaml:"primary_key,omitempty" json:"primary_key,omitempty"`
	Columns    []InternalColumnConfig `yaml:"columns,omitempty" json:"columns,omitempty"`
	Indexes    []InternalIndexConfig  `yaml:"indexes,omitempty" json:"indexes,omitempty"`
}

// InternalColumnConfig declares a column in configuration.
type InternalColumnConfig struct {
	Name     string `yaml:"name" json:"name"`
	Type     string `yaml:"type,omitempty" json:"type,omitempty"`
	Nullable bool   `yaml:"nullable,omitempty" json:"nullable,omitempty"`
}

// InternalIndexConfig declares a secondary index in configuration.
type InternalIndexConfig struct {
	Name   string   `yaml:"name" json:"name"`
	Fields []string `yaml:"fields" json:"fields"`
}
