package async

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Pool is a fixed set of workers draining a bounded task queue.
type Pool struct {
	name    string
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Task
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.RWMutex
	closed bool
}

var _ Queue = (*Pool)(nil)

type Option func(*Pool)

func WithWorkers(n int) Option {
	return func(q *Pool) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *Pool) {
		if n > 0 {
			q.ch = make(chan Task, n)
		}
	}
}
func WithTaskTimeout(d time.Duration) Option {
	return func(q *Pool) {
		if d > 0 {
			q.timeout = d
		}
	}
}
func WithName(name string) Option {
	return func(q *Pool) {
		if name != "" {
			q.name = name
		}
	}
}

func NewPool(logger *slog.Logger, opts ...Option) *Pool {
	q := &Pool{
		name:    "pool",
		logger:  logger,
		workers: 4,
		timeout: time.Minute,
		ch:      make(chan Task, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.logger = q.logger.With("pool", q.name)
	q.start()
	return q
}

func (q *Pool) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("worker started", "worker_id", workerID)

				for task := range q.ch {
					ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
					q.run(ctx, workerID, task)
					cancel()
				}

				q.logger.Debug("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *Pool) run(ctx context.Context, workerID int, task Task) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("task panicked", "worker_id", workerID, "panic", r)
		}
	}()
	task(ctx)
}

// Submit queues task, blocking while the queue is full until ctx is done.
func (q *Pool) Submit(ctx context.Context, task Task) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrPoolClosed
	}
	select {
	case q.ch <- task:
		return nil
	default:
	}
	q.logger.Warn("queue full, applying backpressure")
	select {
	case q.ch <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting tasks and waits for queued ones to finish.
func (q *Pool) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Debug("queue drained, shutdown complete")
	}
}
