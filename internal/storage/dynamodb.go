package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/strata-labs/docguard/internal/core"
	"github.com/strata-labs/docguard/internal/registry"
)

// DynamoStore implements core.Storage on a single DynamoDB table with a
// composite primary key (pk, sk):
//
//	document item:  pk = "doc#<table>"          sk = <id>
//	index item:     pk = "idx#<table>#<index>"  sk = <tuple><idSep><id>
//
// Equality and prefix scans become Query calls with begins_with on sk.
type DynamoStore struct {
	client    *dynamodb.Client
	tableName string
	mu        sync.RWMutex
	schemas   map[string]*core.Schema
	closed    bool
	logger    *zap.Logger
}

// NewDynamoStore creates a DynamoDB-backed document store.
func NewDynamoStore(cfg registry.InternalDynamoDBConfig, logger *zap.Logger) (*DynamoStore, error) {
	if cfg.Region == "" {
		return nil, fmt.Errorf("region is required")
	}
	if cfg.TableName == "" {
		return nil, fmt.Errorf("table name is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}

	var clientOptions []func(*dynamodb.Options)
	if cfg.Endpoint != "" {
		// Custom endpoint, e.g. LocalStack.
		clientOptions = append(clientOptions, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	return &DynamoStore{
		client:    dynamodb.NewFromConfig(awsCfg, clientOptions...),
		tableName: cfg.TableName,
		schemas:   make(map[string]*core.Schema),
		logger:    logger,
	}, nil
}

// RegisterSchema records the schema used to maintain index items.
func (d *DynamoStore) RegisterSchema(schema *core.Schema) error {
	if schema == nil || schema.TableName == "" {
		return fmt.Errorf("schema with a table name is required")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.schemas[schema.TableName] = schema
	return nil
}

func (d *DynamoStore) schema(table string) (*core.Schema, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	schema, ok := d.schemas[table]
	if !ok {
		return nil, fmt.Errorf("no schema registered for table %q", table)
	}
	return schema, nil
}

func docPK(table string) string        { return "doc#" + table }
func idxPK(table, index string) string { return "idx#" + table + "#" + index }

func keyAttr(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: pk},
		"sk": &types.AttributeValueMemberS{Value: sk},
	}
}

// Insert stores the document item plus one index item per index whose
// fields the document fully populates, in a single transaction.
func (d *DynamoStore) Insert(ctx context.Context, table string, doc core.Document) (string, error) {
	if d.isClosed() {
		return "", fmt.Errorf("store is closed")
	}
	schema, err := d.schema(table)
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

	writes := []types.TransactWriteItem{{
		Put: &types.Put{
			TableName: aws.String(d.tableName),
			Item: map[string]types.AttributeValue{
				"pk":  &types.AttributeValueMemberS{Value: docPK(table)},
				"sk":  &types.AttributeValueMemberS{Value: id},
				"doc": &types.AttributeValueMemberS{Value: string(payload)},
			},
		},
	}}
	for _, idx := range schema.Indexes {
		member, ok, err := indexMember(stored, idx.Fields, id)
		if err != nil {
			return "", err
		}
		if !ok {
			continue
		}
		writes = append(writes, types.TransactWriteItem{
			Put: &types.Put{
				TableName: aws.String(d.tableName),
				Item: map[string]types.AttributeValue{
					"pk":  &types.AttributeValueMemberS{Value: idxPK(table, idx.Name)},
					"sk":  &types.AttributeValueMemberS{Value: member},
					"ref": &types.AttributeValueMemberS{Value: id},
				},
			},
		})
	}

	_, err = d.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: writes})
	if err != nil {
		return "", fmt.Errorf("failed to insert document: %w", err)
	}
	return id, nil
}

// Get retrieves a document by id.
func (d *DynamoStore) Get(ctx context.Context, table string, id string) (core.Document, error) {
	if d.isClosed() {
		return nil, fmt.Errorf("store is closed")
	}
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key:       keyAttr(docPK(table), id),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("%w: table %q id %q", core.ErrDocumentNotFound, table, id)
	}
	attr, ok := out.Item["doc"].(*types.AttributeValueMemberS)
	if !ok {
		return nil, fmt.Errorf("malformed document item for table %q id %q", table, id)
	}
	var doc core.Document
	if err := json.Unmarshal([]byte(attr.Value), &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	return doc, nil
}

// Patch merges the partial update and moves index items from the old
// tuples to the new ones in a single transaction.
func (d *DynamoStore) Patch(ctx context.Context, table string, id string, partial core.Document) error {
	if d.isClosed() {
		return fmt.Errorf("store is closed")
	}
	schema, err := d.schema(table)
	if err != nil {
		return err
	}
	current, err := d.Get(ctx, table, id)
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

	writes := []types.TransactWriteItem{{
		Put: &types.Put{
			TableName: aws.String(d.tableName),
			Item: map[string]types.AttributeValue{
				"pk":  &types.AttributeValueMemberS{Value: docPK(table)},
				"sk":  &types.AttributeValueMemberS{Value: id},
				"doc": &types.AttributeValueMemberS{Value: string(payload)},
			},
		},
	}}
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
			writes = append(writes, types.TransactWriteItem{
				Delete: &types.Delete{
					TableName: aws.String(d.tableName),
					Key:       keyAttr(idxPK(table, idx.Name), oldMember),
				},
			})
		}
		if hasNew && (!hadOld || oldMember != newMember) {
			writes = append(writes, types.TransactWriteItem{
				Put: &types.Put{
					TableName: aws.String(d.tableName),
					Item: map[string]types.AttributeValue{
						"pk":  &types.AttributeValueMemberS{Value: idxPK(table, idx.Name)},
						"sk":  &types.AttributeValueMemberS{Value: newMember},
						"ref": &types.AttributeValueMemberS{Value: id},
					},
				},
			})
		}
	}

	_, err = d.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: writes})
	if err != nil {
		return fmt.Errorf("failed to patch document: %w", err)
	}
	return nil
}

// ScanByIndex answers an equality scan with a Query on the index
// partition, using begins_with over the encoded tuple.
func (d *DynamoStore) ScanByIndex(ctx context.Context, table, indexName string, values []interface{}) ([]core.Document, error) {
	if d.isClosed() {
		return nil, fmt.Errorf("store is closed")
	}
	schema, err := d.schema(table)
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

	out, err := d.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(d.tableName),
		KeyConditionExpression: aws.String("pk = :pk AND begins_with(sk, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: idxPK(table, indexName)},
			":prefix": &types.AttributeValueMemberS{Value: prefix},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan index %q: %w", indexName, err)
	}

	docs := make([]core.Document, 0, len(out.Items))
	for _, item := range out.Items {
		ref, ok := item["ref"].(*types.AttributeValueMemberS)
		if !ok {
			continue
		}
		doc, err := d.Get(ctx, table, ref.Value)
		if err != nil {
			// Index item outlived its document; skip it.
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Close marks the store closed. The SDK client holds no connection
// state that needs releasing.
func (d *DynamoStore) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *DynamoStore) isClosed() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.closed
}

// DynamoFactory creates DynamoDB stores through the strategy registry.
type DynamoFactory struct{}

// Type returns the backend identifier.
func (f *DynamoFactory) Type() string { return "dynamodb" }

// Create builds a DynamoDB store from the storage configuration.
func (f *DynamoFactory) Create(config registry.InternalStorageConfig, logger *zap.Logger) (core.Storage, error) {
	store, err := NewDynamoStore(config.DynamoDB, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create DynamoDB store: %w", err)
	}
	return store, nil
}

// dynamoConfigValidator validates the DynamoDB storage section.
type dynamoConfigValidator struct{}

func (v *dynamoConfigValidator) Type() string { return "dynamodb" }

func (v *dynamoConfigValidator) Validate(config *registry.InternalConfig) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}
	dc := config.Storage.DynamoDB
	if dc.Region == "" {
		return fmt.Errorf("region is required for DynamoDB")
	}
	if dc.TableName == "" {
		return fmt.Errorf("table_name is required for DynamoDB")
	}
	return nil
}

func init() {
	RegisterFactory(&DynamoFactory{})
	registry.RegisterValidator(&dynamoConfigValidator{})
}
