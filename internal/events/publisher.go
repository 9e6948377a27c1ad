package events

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/strata-labs/docguard/internal/core"
)

// PublisherConfig controls the drain loop.
type PublisherConfig struct {
	// PublishRate is the maximum number of sink publishes per second.
	PublishRate int

	// BatchSize is how many events to dequeue at once.
	BatchSize int

	// PollInterval is how often to check an empty queue.
	PollInterval time.Duration
}

// DefaultPublisherConfig returns sensible defaults.
func DefaultPublisherConfig() PublisherConfig {
	return PublisherConfig{
		PublishRate:  50,
		BatchSize:    10,
		PollInterval: 100 * time.Millisecond,
	}
}

// Publisher drains a conflict-event queue into a sink at a controlled
// rate, so a burst of conflicts never floods the downstream broker.
type Publisher struct {
	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	queue  core.EventQueue
	sink   Sink
	config PublisherConfig
	logger *zap.Logger
}

// NewPublisher creates a publisher draining queue into sink.
func NewPublisher(queue core.EventQueue, sink Sink, config PublisherConfig, logger *zap.Logger) *Publisher {
	defaults := DefaultPublisherConfig()
	if config.PublishRate <= 0 {
		config.PublishRate = defaults.PublishRate
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		queue:  queue,
		sink:   sink,
		config: config,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins the drain goroutine. Non-blocking; call Stop to shut
// down gracefully.
func (p *Publisher) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	// Fresh channels so a stopped publisher can restart.
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.run(ctx)
	p.logger.Info("conflict-event publisher started",
		zap.Int("publish_rate", p.config.PublishRate))
	return nil
}

// Stop stops the publisher and waits for the drain loop to exit.
func (p *Publisher) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.mu.Unlock()

	close(p.stopCh)
	<-p.doneCh
	p.logger.Info("conflict-event publisher stopped")
	return nil
}

// IsRunning reports whether the drain loop is active.
func (p *Publisher) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

// QueueSize returns the number of events waiting in the queue.
func (p *Publisher) QueueSize() int {
	if p.queue == nil {
		return 0
	}
	return p.queue.Size()
}

func (p *Publisher) run(ctx context.Context) {
	defer close(p.doneCh)

	limiter := rate.NewLimiter(rate.Limit(p.config.PublishRate), 1)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		default:
			if p.queue.Size() == 0 {
				time.Sleep(p.config.PollInterval)
				continue
			}

			batch, err := p.queue.Dequeue(ctx, p.config.BatchSize)
			if err != nil {
				p.logger.Warn("failed to dequeue conflict events", zap.Error(err))
				continue
			}

			for _, event := range batch {
				if event == nil {
					continue
				}
				if err := limiter.Wait(ctx); err != nil {
					return
				}
				if err := p.sink.Publish(ctx, event); err != nil {
					// Best effort: log and drop.
					p.logger.Warn("failed to publish conflict event",
						zap.String("table", event.Table),
						zap.Error(err))
				}
			}
		}
	}
}
