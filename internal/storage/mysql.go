package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/strata-labs/docguard/internal/core"
	"github.com/strata-labs/docguard/internal/registry"
)

// MySQLStore implements core.Storage on MySQL. Each table maps to a
// SQL table of (id, doc JSON, seq) rows; index scans translate to
// JSON_EXTRACT comparisons against JSON-encoded parameters, so values
// compare canonically regardless of the caller's Go types.
type MySQLStore struct {
	db      *sql.DB
	mu      sync.RWMutex
	schemas map[string]*core.Schema
	closed  bool
	logger  *zap.Logger
}

// NewMySQLStore opens a connection pool and verifies connectivity.
func NewMySQLStore(cfg registry.InternalMySQLConfig, logger *zap.Logger) (*MySQLStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dsnCfg := mysql.NewConfig()
	dsnCfg.User = cfg.Username
	dsnCfg.Passwd = cfg.Password
	dsnCfg.Net = "tcp"
	dsnCfg.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	dsnCfg.DBName = cfg.Database
	dsnCfg.ParseTime = true
	if cfg.ConnectionTimeout > 0 {
		dsnCfg.Timeout = cfg.ConnectionTimeout
	}

	db, err := sql.Open("mysql", dsnCfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
	}

	return &MySQLStore{
		db:      db,
		schemas: make(map[string]*core.Schema),
		logger:  logger,
	}, nil
}

// NewMySQLStoreWithDB wraps an existing handle. Used by tests running
// against sqlmock.
func NewMySQLStoreWithDB(db *sql.DB, logger *zap.Logger) *MySQLStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MySQLStore{
		db:      db,
		schemas: make(map[string]*core.Schema),
		logger:  logger,
	}
}

// RegisterSchema records the schema and creates the backing SQL table
// if it does not exist.
func (s *MySQLStore) RegisterSchema(schema *core.Schema) error {
	if schema == nil || schema.TableName == "" {
		return fmt.Errorf("schema with a table name is required")
	}
	ident, err := quoteIdent(schema.TableName)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.schemas[schema.TableName] = schema
	s.mu.Unlock()

	ddl := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (id VARCHAR(36) NOT NULL PRIMARY KEY, doc JSON NOT NULL, seq BIGINT NOT NULL AUTO_INCREMENT, UNIQUE KEY (seq))",
		ident)
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("failed to create table %q: %w", schema.TableName, err)
	}
	return nil
}

func (s *MySQLStore) schema(table string) (*core.Schema, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	schema, ok := s.schemas[table]
	if !ok {
		return nil, fmt.Errorf("no schema registered for table %q", table)
	}
	return schema, nil
}

// Insert stores a new document under a generated id.
func (s *MySQLStore) Insert(ctx context.Context, table string, doc core.Document) (string, error) {
	if s.isClosed() {
		return "", fmt.Errorf("store is closed")
	}
	schema, err := s.schema(table)
	if err != nil {
		return "", err
	}
	ident, err := quoteIdent(table)
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

	query := fmt.Sprintf("INSERT INTO %s (id, doc) VALUES (?, ?)", ident)
	if _, err := s.db.ExecContext(ctx, query, id, payload); err != nil {
		return "", fmt.Errorf("failed to insert document: %w", err)
	}
	return id, nil
}

// Get retrieves a document by id.
func (s *MySQLStore) Get(ctx context.Context, table string, id string) (core.Document, error) {
	if s.isClosed() {
		return nil, fmt.Errorf("store is closed")
	}
	ident, err := quoteIdent(table)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT doc FROM %s WHERE id = ?", ident)
	var payload []byte
	err = s.db.QueryRowContext(ctx, query, id).Scan(&payload)
	if err == sql.ErrNoRows {
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

// Patch merges the partial update into the stored document inside a
// transaction, holding a row lock across the read-merge-write.
func (s *MySQLStore) Patch(ctx context.Context, table string, id string, partial core.Document) error {
	if s.isClosed() {
		return fmt.Errorf("store is closed")
	}
	ident, err := quoteIdent(table)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var payload []byte
	query := fmt.Sprintf("SELECT doc FROM %s WHERE id = ? FOR UPDATE", ident)
	err = tx.QueryRowContext(ctx, query, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: table %q id %q", core.ErrDocumentNotFound, table, id)
	}
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	var doc core.Document
	if err := json.Unmarshal(payload, &doc); err != nil {
		return fmt.Errorf("failed to unmarshal document: %w", err)
	}
	for k, v := range partial {
		doc[k] = v
	}
	merged, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	update := fmt.Sprintf("UPDATE %s SET doc = ? WHERE id = ?", ident)
	if _, err := tx.ExecContext(ctx, update, merged, id); err != nil {
		return fmt.Errorf("failed to patch document: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit patch: %w", err)
	}
	return nil
}

// ScanByIndex translates an equality scan into JSON_EXTRACT
// comparisons over the declared index fields, in insertion order.
func (s *MySQLStore) ScanByIndex(ctx context.Context, table, indexName string, values []interface{}) ([]core.Document, error) {
	if s.isClosed() {
		return nil, fmt.Errorf("store is closed")
	}
	schema, err := s.schema(table)
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
	ident, err := quoteIdent(table)
	if err != nil {
		return nil, err
	}

	conds := make([]string, len(values))
	args := make([]interface{}, 0, 2*len(values))
	for i, v := range values {
		enc, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to encode index value: %w", err)
		}
		conds[i] = "JSON_EXTRACT(doc, ?) = CAST(? AS JSON)"
		args = append(args, jsonPath(idx.Fields[i]), string(enc))
	}
	query := fmt.Sprintf("SELECT doc FROM %s WHERE %s ORDER BY seq", ident, strings.Join(conds, " AND "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to scan index %q: %w", indexName, err)
	}
	defer rows.Close()

	var docs []core.Document
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to read scan row: %w", err)
		}
		var doc core.Document
		if err := json.Unmarshal(payload, &doc); err != nil {
			return nil, fmt.Errorf("failed to unmarshal document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan index %q: %w", indexName, err)
	}
	return docs, nil
}

// Close closes the connection pool.
func (s *MySQLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *MySQLStore) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// jsonPath builds a quoted JSON path expression for a field name.
func jsonPath(field string) string {
	return `$."` + strings.ReplaceAll(field, `"`, `\"`) + `"`
}

// quoteIdent backtick-quotes a SQL identifier, rejecting names the
// quoting cannot make safe.
func quoteIdent(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, "`\x00") {
		return "", fmt.Errorf("invalid SQL identifier: %q", name)
	}
	return "`" + name + "`", nil
}

// MySQLFactory creates MySQL stores through the strategy registry.
type MySQLFactory struct{}

// Type returns the backend identifier.
func (f *MySQLFactory) Type() string { return "mysql" }

// Create builds a MySQL store from the storage configuration.
func (f *MySQLFactory) Create(config registry.InternalStorageConfig, logger *zap.Logger) (core.Storage, error) {
	store, err := NewMySQLStore(config.MySQL, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create MySQL store: %w", err)
	}
	return store, nil
}

// mysqlConfigValidator validates the MySQL storage section.
type mysqlConfigValidator struct{}

func (v *mysqlConfigValidator) Type() string { return "mysql" }

func (v *mysqlConfigValidator) Validate(config *registry.InternalConfig) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}
	mc := config.Storage.MySQL
	if mc.Host == "" {
		return fmt.Errorf("host is required for MySQL")
	}
	if mc.Port <= 0 || mc.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got: %d", mc.Port)
	}
	if mc.Database == "" {
		return fmt.Errorf("database is required for MySQL")
	}
	if mc.Username == "" {
		return fmt.Errorf("username is required for MySQL")
	}
	return nil
}

func init() {
	RegisterFactory(&MySQLFactory{})
	registry.RegisterValidator(&mysqlConfigValidator{})
}
