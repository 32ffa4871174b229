// Package worker runs notification jobs in-process on a bounded set of
// goroutines. It is the queue-less counterpart of the RabbitMQ consumers:
// the same handlers run here, with the same no-retry policy.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"accessdesk/pkg/metrics"
	"accessdesk/pkg/mq"
	"accessdesk/pkg/trace"

	"go.uber.org/zap"
)

var (
	ErrQueueFull = errors.New("worker queue is full")
	ErrStopped   = errors.New("worker pool is stopped")
)

type job struct {
	ctx        context.Context
	routingKey string
	body       json.RawMessage
}

type Pool struct {
	handlers map[string]mq.MessageHandler
	jobs     chan job
	workers  int
	logger   *zap.Logger

	mu      sync.RWMutex
	stopped bool
	running sync.WaitGroup
	pending sync.WaitGroup
}

func NewPool(workers, queueSize int, logger *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Pool{
		handlers: make(map[string]mq.MessageHandler),
		jobs:     make(chan job, queueSize),
		workers:  workers,
		logger:   logger,
	}
}

// Register binds a handler to a routing key. Call before Start.
func (p *Pool) Register(routingKey string, h mq.MessageHandler) {
	p.handlers[routingKey] = h
}

func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.running.Add(1)
		go func() {
			defer p.running.Done()
			for j := range p.jobs {
				p.run(j)
			}
		}()
	}
	p.logger.Info("Worker pool started", zap.Int("workers", p.workers), zap.Int("queue_size", cap(p.jobs)))
}

// Emit queues a job without blocking. The job keeps the caller's trace id but
// not its cancellation, so it survives the HTTP request that produced it.
func (p *Pool) Emit(ctx context.Context, routingKey, aggregateID string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", routingKey, err)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrStopped
	}

	p.pending.Add(1)
	select {
	case p.jobs <- job{ctx: trace.Detach(ctx), routingKey: routingKey, body: body}:
		return nil
	default:
		p.pending.Done()
		p.logger.Error("Worker queue full, dropping job",
			zap.String("routing_key", routingKey),
			zap.String("aggregate_id", aggregateID),
		)
		return ErrQueueFull
	}
}

// Wait blocks until every queued job has finished.
func (p *Pool) Wait() {
	p.pending.Wait()
}

// Stop drains the queue and waits for workers to exit.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()
	p.running.Wait()
}

func (p *Pool) run(j job) {
	defer p.pending.Done()
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Job panic recovered",
				zap.String("routing_key", j.routingKey),
				zap.Any("panic", r),
			)
		}
	}()

	h, ok := p.handlers[j.routingKey]
	if !ok {
		p.logger.Warn("No handler registered", zap.String("routing_key", j.routingKey))
		return
	}

	if err := h(j.ctx, j.body); err != nil {
		p.logger.Error("Job failed",
			zap.String("routing_key", j.routingKey),
			zap.String("trace_id", trace.FromContext(j.ctx)),
			zap.Error(err),
		)
		return
	}
	metrics.RecordJobLatency(j.routingKey, time.Since(start))
}
