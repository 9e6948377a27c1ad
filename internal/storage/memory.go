package storage

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/strata-labs/docguard/internal/core"
	"github.com/strata-labs/docguard/internal/registry"
)

// MemoryStore is an in-process document store with real secondary-index
// scan semantics. It is the reference adapter and the default backend
// for tests.
type MemoryStore struct {
	mu      sync.RWMutex
	schemas map[string]*core.Schema
	tables  map[string]map[string]memoryRow
	seq     uint64
	closed  bool
	logger  *zap.Logger
}

// memoryRow pairs a stored document with its insertion sequence, which
// gives scans a stable order.
type memoryRow struct {
	doc core.Document
	seq uint64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryStore{
		schemas: make(map[string]*core.Schema),
		tables:  make(map[string]map[string]memoryRow),
		logger:  logger,
	}
}

// RegisterSchema records the schema used to answer index scans.
func (m *MemoryStore) RegisterSchema(schema *core.Schema) error {
	if schema == nil || schema.TableName == "" {
		return fmt.Errorf("schema with a table name is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schemas[schema.TableName] = schema
	if _, ok := m.tables[schema.TableName]; !ok {
		m.tables[schema.TableName] = make(map[string]memoryRow)
	}
	return nil
}

// Insert stores a new document under a generated id.
func (m *MemoryStore) Insert(ctx context.Context, table string, doc core.Document) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return "", fmt.Errorf("store is closed")
	}
	rows, ok := m.tables[table]
	if !ok {
		rows = make(map[string]memoryRow)
		m.tables[table] = rows
	}

	idKey := m.idKeyLocked(table)
	id := uuid.NewString()
	stored := doc.Clone()
	if stored == nil {
		stored = core.Document{}
	}
	stored[idKey] = id

	m.seq++
	rows[id] = memoryRow{doc: stored, seq: m.seq}
	return id, nil
}

// Get retrieves a document by id.
func (m *MemoryStore) Get(ctx context.Context, table string, id string) (core.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, fmt.Errorf("store is closed")
	}
	row, ok := m.tables[table][id]
	if !ok {
		return nil, fmt.Errorf("%w: table %q id %q", core.ErrDocumentNotFound, table, id)
	}
	return row.doc.Clone(), nil
}

// Patch overwrites the fields present in partial on the stored
// document.
func (m *MemoryStore) Patch(ctx context.Context, table string, id string, partial core.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("store is closed")
	}
	rows := m.tables[table]
	row, ok := rows[id]
	if !ok {
		return fmt.Errorf("%w: table %q id %q", core.ErrDocumentNotFound, table, id)
	}
	doc := row.doc.Clone()
	for k, v := range partial {
		doc[k] = v
	}
	rows[id] = memoryRow{doc: doc, seq: row.seq}
	return nil
}

// ScanByIndex returns the documents whose indexed fields equal the
// given values, in insertion order. The values bind a prefix of the
// index's declared fields.
func (m *MemoryStore) ScanByIndex(ctx context.Context, table, indexName string, values []interface{}) ([]core.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, fmt.Errorf("store is closed")
	}
	schema, ok := m.schemas[table]
	if !ok {
		return nil, fmt.Errorf("no schema registered for table %q", table)
	}
	idx := schema.IndexByName(indexName)
	if idx == nil {
		return nil, fmt.Errorf("no index %q on table %q", indexName, table)
	}
	if len(values) == 0 || len(values) > len(idx.Fields) {
		return nil, fmt.Errorf("index %q scan needs 1..%d values, got %d", indexName, len(idx.Fields), len(values))
	}

	matched := make([]memoryRow, 0)
	for _, row := range m.tables[table] {
		if indexMatch(row.doc, idx.Fields, values) {
			matched = append(matched, row)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].seq < matched[j].seq })

	out := make([]core.Document, len(matched))
	for i, row := range matched {
		out[i] = row.doc.Clone()
	}
	return out, nil
}

// Close marks the store closed.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// idKeyLocked returns the table's primary identifier field name.
func (m *MemoryStore) idKeyLocked(table string) string {
	if schema, ok := m.schemas[table]; ok {
		return schema.IDKey()
	}
	return core.IDField
}

// indexMatch reports whether the document's indexed fields equal the
// bound values. An absent field never matches: partial keys are not
// indexed.
func indexMatch(doc core.Document, fields []string, values []interface{}) bool {
	for i, v := range values {
		dv, ok := doc[fields[i]]
		if !ok || dv == nil {
			return false
		}
		if !looseEqual(dv, v) {
			return false
		}
	}
	return true
}

// looseEqual compares index values, treating integer and float
// renditions of the same number as equal so that documents read back
// through JSON-based adapters compare consistently. Composite values
// (slices, maps) compare by deep equality.
func looseEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == b
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta == tb && ta.Comparable() {
		return a == b
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// MemoryFactory creates memory stores through the strategy registry.
type MemoryFactory struct{}

// Type returns the backend identifier.
func (f *MemoryFactory) Type() string { return "memory" }

// Create builds a memory store; the configuration carries nothing the
// backend needs.
func (f *MemoryFactory) Create(config registry.InternalStorageConfig, logger *zap.Logger) (core.Storage, error) {
	return NewMemoryStore(logger), nil
}

// memoryConfigValidator accepts any storage section for the memory
// backend.
type memoryConfigValidator struct{}

func (v *memoryConfigValidator) Type() string { return "memory" }

func (v *memoryConfigValidator) Validate(config *registry.InternalConfig) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}
	return nil
}

func init() {
	RegisterFactory(&MemoryFactory{})
	registry.RegisterValidator(&memoryConfigValidator{})
}
