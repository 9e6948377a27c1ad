package core

import (
	"context"
	"time"
)

// ConflictEvent is the record published to the event channel when a
// uniqueness constraint rejects a write. Events are a monitoring side
// channel; delivery is best effort and never influences the outcome of
// the operation that produced them.
type ConflictEvent struct {
	// Table is the table the rejected write targeted.
	Table string `json:"table"`

	// Operation is the kind of write that was rejected.
	Operation OperationType `json:"operation"`

	// Kind identifies which constraint variant rejected it.
	Kind ConflictKind `json:"kind"`

	// Fields are the conflicting field names.
	Fields []string `json:"fields"`

	// ExistingID is the id of the document already holding the values.
	ExistingID string `json:"existing_id"`

	// Timestamp is when the conflict was detected.
	Timestamp time.Time `json:"timestamp"`
}

// EventQueue buffers conflict events for asynchronous consumption.
// Implementations exist for memory (channel-backed) and Kafka.
type EventQueue interface {
	// Enqueue adds an event to the queue.
	Enqueue(ctx context.Context, event *ConflictEvent) error

	// Dequeue retrieves up to batchSize events in FIFO order. Returns
	// an empty slice when none are available.
	Dequeue(ctx context.Context, batchSize int) ([]*ConflictEvent, error)

	// Size returns the current number of buffered events.
	Size() int

	// Close closes the queue and prevents further enqueuing.
	Close() error
}
