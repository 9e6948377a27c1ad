package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/strata-labs/docguard/internal/core"
	"github.com/strata-labs/docguard/internal/registry"
)

const (
	// valueSep separates encoded field values inside an index member.
	valueSep = "\x1f"

	// idSep separates the encoded tuple from the document id. It sorts
	// below valueSep so full-tuple ranges never swallow longer tuples.
	idSep = "\x1e"
)

// RedisStore implements core.Storage on Redis. Documents live as JSON
// strings under "ns:doc:table:id"; each secondary index is one sorted
// set whose members encode the indexed tuple followed by the document
// id, so equality and prefix scans are lexicographic range queries.
type RedisStore struct {
	client    *redis.Client
	namespace string
	mu        sync.RWMutex
	schemas   map[string]*core.Schema
	closed    bool
	logger    *zap.Logger
}

// NewRedisStore creates a Redis-backed document store and verifies the
// connection.
func NewRedisStore(opts *redis.Options, namespace string, logger *zap.Logger) (*RedisStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := redis.NewClient(opts)

	dialTimeout := opts.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{
		client:    client,
		namespace: namespace,
		schemas:   make(map[string]*core.Schema),
		logger:    logger,
	}, nil
}

// NewRedisStoreWithClient wraps an existing client. Used by tests
// running against miniredis.
func NewRedisStoreWithClient(client *redis.Client, namespace string, logger *zap.Logger) *RedisStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{
		client:    client,
		namespace: namespace,
		schemas:   make(map[string]*core.Schema),
		logger:    logger,
	}
}

// RegisterSchema records the schema used to maintain index sets.
func (r *RedisStore) RegisterSchema(schema *core.Schema) error {
	if schema == nil || schema.TableName == "" {
		return fmt.Errorf("schema with a table name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas[schema.TableName] = schema
	return nil
}

func (r *RedisStore) schema(table string) (*core.Schema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	schema, ok := r.schemas[table]
	if !ok {
		return nil, fmt.Errorf("no schema registered for table %q", table)
	}
	return schema, nil
}

func (r *RedisStore) docKey(table, id string) string {
	return fmt.Sprintf("%sdoc:%s:%s", r.prefix(), table, id)
}

func (r *RedisStore) indexKey(table, index string) string {
	return fmt.Sprintf("%sidx:%s:%s", r.prefix(), table, index)
}

func (r *RedisStore) prefix() string {
	if r.namespace == "" {
		return ""
	}
	return r.namespace + ":"
}

// Insert stores the document and registers it in every index whose
// fields it fully populates.
func (r *RedisStore) Insert(ctx context.Context, table string, doc core.Document) (string, error) {
	if r.isClosed() {
		return "", fmt.Errorf("store is closed")
	}
	schema, err := r.schema(table)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	stored := doc.Clone()
	if stored == nil {
		stored = core.Document{}
	}
	stored[schema.IDKey()] = id

	payload, err := json.Marshal(stored)
	if err != nil {
		return "", fmt.Errorf("failed to marshal document: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.docKey(table, id), payload, 0)
	for _, idx := range schema.Indexes {
		member, ok, err := indexMember(stored, idx.Fields, id)
		if err != nil {
			return "", err
		}
		if ok {
			pipe.ZAdd(ctx, r.indexKey(table, idx.Name), redis.Z{Score: 0, Member: member})
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to insert document: %w", err)
	}
	return id, nil
}

// Get retrieves a document by id.
func (r *RedisStore) Get(ctx context.Context, table string, id string) (core.Document, error) {
	if r.isClosed() {
		return nil, fmt.Errorf("store is closed")
	}
	payload, err := r.client.Get(ctx, r.docKey(table, id)).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("%w: table %q id %q", core.ErrDocumentNotFound, table, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	var doc core.Document
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	return doc, nil
}

// Patch merges the partial update into the stored document and moves
// its index memberships from the old tuples to the new ones.
func (r *RedisStore) Patch(ctx context.Context, table string, id string, partial core.Document) error {
	if r.isClosed() {
		return fmt.Errorf("store is closed")
	}
	schema, err := r.schema(table)
	if err != nil {
		return err
	}
	current, err := r.Get(ctx, table, id)
	if err != nil {
		return err
	}

	merged := current.Clone()
	for k, v := range partial {
		merged[k] = v
	}
	payload, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.docKey(table, id), payload, 0)
	for _, idx := range schema.Indexes {
		oldMember, hadOld, err := indexMember(current, idx.Fields, id)
		if err != nil {
			return err
		}
		newMember, hasNew, err := indexMember(merged, idx.Fields, id)
		if err != nil {
			return err
		}
		if hadOld && (!hasNew || oldMember != newMember) {
			pipe.ZRem(ctx, r.indexKey(table, idx.Name), oldMember)
		}
		if hasNew && (!hadOld || oldMember != newMember) {
			pipe.ZAdd(ctx, r.indexKey(table, idx.Name), redis.Z{Score: 0, Member: newMember})
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to patch document: %w", err)
	}
	return nil
}

// ScanByIndex answers an equality scan with a lexicographic range over
// the index's sorted set, then fetches the matching documents.
func (r *RedisStore) ScanByIndex(ctx context.Context, table, indexName string, values []interface{}) ([]core.Document, error) {
	if r.isClosed() {
		return nil, fmt.Errorf("store is closed")
	}
	schema, err := r.schema(table)
	if err != nil {
		return nil, err
	}
	idx := schema.IndexByName(indexName)
	if idx == nil {
		return nil, fmt.Errorf("no index %q on table %q", indexName, table)
	}
	if len(values) == 0 || len(values) > len(idx.Fields) {
		return nil, fmt.Errorf("index %q scan needs 1..%d values, got %d", indexName, len(idx.Fields), len(values))
	}

	parts := make([]string, len(values))
	for i, v := range values {
		enc, err := encodeIndexValue(v)
		if err != nil {
			return nil, err
		}
		parts[i] = enc
	}
	prefix := strings.Join(parts, valueSep)
	if len(values) == len(idx.Fields) {
		prefix += idSep
	} else {
		prefix += valueSep
	}

	members, err := r.client.ZRangeByLex(ctx, r.indexKey(table, indexName), &redis.ZRangeBy{
		Min: "[" + prefix,
		Max: "[" + prefix + "\xff",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to scan index %q: %w", indexName, err)
	}

	docs := make([]core.Document, 0, len(members))
	for _, member := range members {
		pos := strings.LastIndex(member, idSep)
		if pos < 0 {
			continue
		}
		doc, err := r.Get(ctx, table, member[pos+len(idSep):])
		if err != nil {
			// Index entry outlived its document; skip it.
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Close closes the connection to Redis.
func (r *RedisStore) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.client.Close()
}

func (r *RedisStore) isClosed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

// indexMember encodes a document's tuple for one index, returning
// ok=false when any indexed field is nullish (partial keys are not
// indexed).
func indexMember(doc core.Document, fields []string, id string) (string, bool, error) {
	parts := make([]string, len(fields))
	for i, field := range fields {
		v, present := doc[field]
		if core.IsNullish(v, present) {
			return "", false, nil
		}
		enc, err := encodeIndexValue(v)
		if err != nil {
			return "", false, err
		}
		parts[i] = enc
	}
	return strings.Join(parts, valueSep) + idSep + id, true, nil
}

// encodeIndexValue canonicalizes a field value for index membership.
// JSON is canonical across the int/float distinction, so values written
// by a caller and values read back from stored JSON encode identically.
func encodeIndexValue(v interface{}) (string, error) {
	enc, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode index value: %w", err)
	}
	return string(enc), nil
}

// RedisFactory creates Redis stores through the strategy registry.
type RedisFactory struct{}

// Type returns the backend identifier.
func (f *RedisFactory) Type() string { return "redis" }

// Create builds a Redis store from the storage configuration.
func (f *RedisFactory) Create(config registry.InternalStorageConfig, logger *zap.Logger) (core.Storage, error) {
	rc := config.Redis
	opts := &redis.Options{
		Addr:         rc.Endpoints[0],
		Password:     rc.Password,
		DB:           rc.DB,
		PoolSize:     rc.PoolSize,
		MinIdleConns: rc.MinIdleConns,
		DialTimeout:  rc.DialTimeout,
		ReadTimeout:  rc.ReadTimeout,
		WriteTimeout: rc.WriteTimeout,
	}
	store, err := NewRedisStore(opts, config.Namespace, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis store: %w", err)
	}
	return store, nil
}

// redisConfigValidator validates the Redis storage section.
type redisConfigValidator struct{}

func (v *redisConfigValidator) Type() string { return "redis" }

func (v *redisConfigValidator) Validate(config *registry.InternalConfig) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}
	rc := config.Storage.Redis
	if len(rc.Endpoints) == 0 {
		return fmt.Errorf("at least one endpoint is required for Redis")
	}
	if rc.DB < 0 || rc.DB > 15 {
		return fmt.Errorf("Redis DB must be between 0 and 15, got: %d", rc.DB)
	}
	if rc.PoolSize <= 0 {
		return fmt.Errorf("pool_size must be greater than 0, got: %d", rc.PoolSize)
	}
	if rc.MinIdleConns < 0 {
		return fmt.Errorf("min_idle_conns must be non-negative, got: %d", rc.MinIdleConns)
	}
	return nil
}

func init() {
	RegisterFactory(&RedisFactory{})
	registry.RegisterValidator(&redisConfigValidator{})
}
