// Package worker drains the notification queue and hands each message to a
// delivery sink.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/eventmatch/internal/domain/model"
	"github.com/okian/eventmatch/pkg/logger"
	"github.com/okian/eventmatch/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	workerShutdownTimeout   = 5 * time.Second
	poolShutdownTimeout     = 30 * time.Second
)

// Message is what workers read off the queue.
type Message = model.Notification

// Deliverer sends a single notification.
type Deliverer interface {
	Deliver(ctx context.Context, n model.Notification) error
}

// Queue defines how workers receive messages.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Message
}

// Worker processes messages from a queue.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker.
	Shutdown(ctx context.Context) error
}

// Counters accumulates delivery outcomes across workers.
type Counters struct {
	delivered atomic.Int64
	failed    atomic.Int64
}

// Delivered returns the number of successful deliveries.
func (c *Counters) Delivered() int64 { return c.delivered.Load() }

// Failed returns the number of failed deliveries.
func (c *Counters) Failed() int64 { return c.failed.Load() }

// InMemoryWorker implements Worker for delivering notifications.
type InMemoryWorker struct {
	queue     Queue
	deliverer Deliverer
	name      string
	timeout   time.Duration
	counters  *Counters
	active    *atomic.Int64

	shutdown chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	logger logger.Logger
}

func (w *InMemoryWorker) signal() {
	w.stopOnce.Do(func() { close(w.shutdown) })
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, deliverer Deliverer, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     queue,
		deliverer: deliverer,
		name:      "worker",
		counters:  &Counters{},
		active:    &atomic.Int64{},
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Get().Named("worker"),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	messages := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case m, ok := <-messages:
			if !ok {
				return
			}
			if err := w.process(ctx, m); err != nil {
				w.logger.Error(ctx, "delivery failed",
					logger.String("notification_id", m.ID),
					logger.Int64("user_id", m.UserID),
					logger.Int64("event_id", m.Event.ID),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown stops the worker without waiting for the queue to drain.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.signal()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) process(ctx context.Context, m Message) error { //nolint:gocritic // hugeParam: Message is passed by value for channel semantics
	start := time.Now()
	metrics.UpdateWorkerActiveCount(int(w.active.Add(1)))
	defer func() {
		metrics.UpdateWorkerActiveCount(int(w.active.Add(-1)))
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	dctx := ctx
	if w.timeout > 0 {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	if err := w.deliverer.Deliver(dctx, m); err != nil {
		w.counters.failed.Add(1)
		metrics.RecordNotificationFailed()
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "delivery_error")
		return fmt.Errorf("deliver notification %s: %w", m.ID, err)
	}

	w.counters.delivered.Add(1)
	metrics.RecordNotificationDelivered()
	w.logger.Debug(ctx, "delivered",
		logger.String("notification_id", m.ID),
		logger.Duration("took", time.Since(start)),
	)
	return nil
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers   []*InMemoryWorker
	queue     Queue
	deliverer Deliverer
	counters  *Counters
	started   atomic.Bool

	logger logger.Logger
}

// NewPool creates a new worker pool. A non-positive count picks a default
// based on the CPU count.
func NewPool(workerCount int, queue Queue, deliverer Deliverer, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	pool := &Pool{
		workers:   make([]*InMemoryWorker, workerCount),
		queue:     queue,
		deliverer: deliverer,
		counters:  &Counters{},
		logger:    logger.Get().Named("worker-pool"),
	}

	active := &atomic.Int64{}
	for i := 0; i < workerCount; i++ {
		workerOpts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		w := NewInMemoryWorker(queue, deliverer, workerOpts...)
		w.counters = pool.counters
		w.active = active
		pool.workers[i] = w
	}

	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerActiveCount(0)

	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Counters returns the shared delivery counters.
func (p *Pool) Counters() *Counters { return p.counters }

// Start starts all workers in the pool. Calling it twice is a no-op.
func (p *Pool) Start(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Wait blocks until every worker has returned or ctx ends.
func (p *Pool) Wait(ctx context.Context) error {
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-ctx.Done():
			p.logger.Warn(ctx, "worker did not stop in time", logger.Int("worker_id", i))
			return ctx.Err()
		}
	}
	return nil
}

// Stop signals every worker to return immediately and waits briefly for them.
func (p *Pool) Stop() {
	if !p.started.Load() {
		return
	}
	for _, w := range p.workers {
		w.signal()
	}
	for _, w := range p.workers {
		select {
		case <-w.done:
		case <-time.After(workerShutdownTimeout):
		}
	}
}

// Shutdown closes the queue, lets workers drain what is already queued and
// then stops them. Workers still busy when ctx (capped at a pool timeout)
// ends are told to stop.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	if !p.started.Load() {
		return nil
	}
	if err := p.Wait(shutdownCtx); err != nil {
		for _, w := range p.workers {
			w.signal()
		}
		return fmt.Errorf("pool shutdown: %w", err)
	}
	return nil
}
