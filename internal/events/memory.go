// Package events carries conflict notifications out of the write path:
// queues buffer them, the publisher drains a queue into a sink at a
// controlled rate.
package events

import (
	"context"
	"errors"
	"sync"

	"github.com/strata-labs/docguard/internal/core"
)

var (
	// ErrQueueClosed is returned when enqueuing to a closed queue.
	ErrQueueClosed = errors.New("event queue is closed")

	// ErrQueueFull is returned when the memory queue buffer is full.
	ErrQueueFull = errors.New("event queue is full")
)

// MemoryQueue implements core.EventQueue on a buffered channel. It is
// the default queue, and the staging buffer in front of the Kafka
// publisher.
type MemoryQueue struct {
	queue  chan *core.ConflictEvent
	mu     sync.RWMutex
	closed bool
}

// NewMemoryQueue creates an in-memory event queue holding at most
// bufferSize events.
func NewMemoryQueue(bufferSize int) *MemoryQueue {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	return &MemoryQueue{
		queue: make(chan *core.ConflictEvent, bufferSize),
	}
}

// Enqueue adds an event to the queue. A full buffer drops the event
// with ErrQueueFull rather than blocking the write path.
func (q *MemoryQueue) Enqueue(ctx context.Context, event *core.ConflictEvent) error {
	if event == nil {
		return errors.New("event cannot be nil")
	}
	// The read lock is held across the send so Close cannot close the
	// channel between the flag check and the select.
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.queue <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

// Dequeue retrieves up to batchSize events in FIFO order without
// blocking.
func (q *MemoryQueue) Dequeue(ctx context.Context, batchSize int) ([]*core.ConflictEvent, error) {
	if batchSize <= 0 {
		batchSize = 100
	}
	events := make([]*core.ConflictEvent, 0, batchSize)
	for i := 0; i < batchSize; i++ {
		select {
		case event := <-q.queue:
			if event == nil {
				// Channel closed.
				return events, nil
			}
			events = append(events, event)
		case <-ctx.Done():
			return events, ctx.Err()
		default:
			return events, nil
		}
	}
	return events, nil
}

// Size returns the number of buffered events.
func (q *MemoryQueue) Size() int {
	return len(q.queue)
}

// Close closes the queue and prevents further enqueuing.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	close(q.queue)
	return nil
}
