package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/strata-labs/docguard/internal/core"
	"github.com/strata-labs/docguard/internal/registry"
)

// Sink is where the publisher delivers drained events.
type Sink interface {
	// Publish delivers one event. The publisher retries nothing; a
	// failed event is logged and dropped.
	Publish(ctx context.Context, event *core.ConflictEvent) error

	// Close releases the sink's resources.
	Close() error
}

// KafkaSink publishes conflict events to a Kafka topic, keyed by table
// name so a table's conflicts land on one partition in order.
type KafkaSink struct {
	writer *kafka.Writer
	topic  string
	mu     sync.RWMutex
	closed bool
	logger *zap.Logger
}

// NewKafkaSink creates a Kafka-backed event sink.
func NewKafkaSink(cfg registry.InternalKafkaConfig, logger *zap.Logger) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one Kafka broker is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("Kafka topic is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		MaxAttempts:  3,
		Async:        false,
	}

	logger.Info("Kafka event sink initialized",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.Topic))

	return &KafkaSink{
		writer: writer,
		topic:  cfg.Topic,
		logger: logger,
	}, nil
}

// Publish writes one event to the topic.
func (s *KafkaSink) Publish(ctx context.Context, event *core.ConflictEvent) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrQueueClosed
	}
	s.mu.RUnlock()

	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal conflict event: %w", err)
	}

	message := kafka.Message{
		Key:   []byte(event.Table),
		Value: payload,
		Time:  event.Timestamp,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(string(event.Kind))},
			{Key: "table", Value: []byte(event.Table)},
		},
	}
	if err := s.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("failed to write message to Kafka: %w", err)
	}
	return nil
}

// Close closes the Kafka writer.
func (s *KafkaSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.writer.Close()
}
