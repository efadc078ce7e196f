package orchestrator

import (
	"context"
	"sync"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/pkg/kafka"
)

// Processor runs a pool of Kafka consumers in the same consumer group.
// Partition assignment spreads jobs across the pool; each consumer commits
// only after its chunk is persisted, so a crash mid-chunk replays the
// message and the job claim resumes it.
type Processor struct {
	consumers []*kafka.Consumer
	logger    ectologger.Logger
	mu        sync.RWMutex
	running   bool
}

// NewProcessor creates the consumer pool for the jobs topic
func NewProcessor(cfg config.Config, executor *Executor, logger ectologger.Logger) *Processor {
	workers := cfg.KafkaWorkerCount
	if workers < 1 {
		workers = 1
	}

	consumers := make([]*kafka.Consumer, workers)
	for i := range consumers {
		consumers[i] = kafka.NewConsumer(cfg, logger, executor.HandleMessage)
	}

	return &Processor{
		consumers: consumers,
		logger:    logger,
	}
}

// Start launches every consumer in the pool
func (p *Processor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}

	for _, c := range p.consumers {
		if err := c.Start(ctx); err != nil {
			return err
		}
	}
	p.running = true

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"workers": len(p.consumers),
	}).Info("Job processor started")
	return nil
}

// Stop drains and closes every consumer
func (p *Processor) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return nil
	}

	var firstErr error
	for _, c := range p.consumers {
		if err := c.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	p.running = false

	p.logger.Info("Job processor stopped")
	return firstErr
}

// Health reports whether the pool is running and its consumers are healthy
func (p *Processor) Health() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.running {
		return false
	}
	for _, c := range p.consumers {
		if !c.Health() {
			return false
		}
	}
	return true
}
