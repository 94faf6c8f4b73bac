package async

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// FetchFunc loads one snapshot of the polled resource.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Observer is one registered wait. Observe is called once per registration with the
// snapshot of a tick; returning true registers the observer for the next tick.
type Observer[T any] interface {
	Observe(snapshot T) (again bool)
	// Abandoned observers are dropped without being called.
	Abandoned() bool
}

// Poller turns a list endpoint into notifications: while observers are registered it
// fetches once per interval and hands the snapshot to every observer registered
// before the fetch. It fetches nothing while no one is waiting.
type Poller[T any] struct {
	fetch    FetchFunc[T]
	logger   *slog.Logger
	interval time.Duration
	pool     *Pool
	ownPool  bool

	pending atomic.Pointer[[]Observer[T]]
	last    atomic.Pointer[T]
	fetches atomic.Int64
	closed  atomic.Bool

	startOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
}

type PollerOption func(*pollerOptions)

type pollerOptions struct {
	interval time.Duration
	pool     *Pool
}

// WithInterval sets the tick interval. Defaults to 2s.
func WithInterval(d time.Duration) PollerOption {
	return func(o *pollerOptions) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WithDispatcher runs observer callbacks on pool instead of a pool owned by the poller.
func WithDispatcher(pool *Pool) PollerOption {
	return func(o *pollerOptions) { o.pool = pool }
}

func NewPoller[T any](fetch FetchFunc[T], logger *slog.Logger, opts ...PollerOption) *Poller[T] {
	o := pollerOptions{interval: 2 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}
	p := &Poller[T]{
		fetch:    fetch,
		logger:   logger,
		interval: o.interval,
		pool:     o.pool,
		done:     make(chan struct{}),
	}
	if p.pool == nil {
		p.pool = NewPool(logger, WithName("poller"), WithWorkers(4))
		p.ownPool = true
	}
	p.ctx, p.cancel = context.WithCancel(context.Background())
	return p
}

// ObserveOnce registers o for the next tick and starts the loop on first use.
func (p *Poller[T]) ObserveOnce(o Observer[T]) error {
	if p.closed.Load() {
		return ErrPollerClosed
	}
	for {
		old := p.pending.Load()
		var next []Observer[T]
		if old != nil {
			next = make([]Observer[T], len(*old), len(*old)+1)
			copy(next, *old)
		}
		next = append(next, o)
		if p.pending.CompareAndSwap(old, &next) {
			break
		}
	}
	p.startOnce.Do(func() { go p.loop() })
	return nil
}

// Last returns the most recent snapshot, if any fetch has succeeded yet.
func (p *Poller[T]) Last() (T, bool) {
	if v := p.last.Load(); v != nil {
		return *v, true
	}
	var zero T
	return zero, false
}

// Fetches reports how many fetches the poller has issued.
func (p *Poller[T]) Fetches() int64 { return p.fetches.Load() }

// Pending reports how many observers wait for the next tick.
func (p *Poller[T]) Pending() int {
	if v := p.pending.Load(); v != nil {
		return len(*v)
	}
	return 0
}

func (p *Poller[T]) loop() {
	defer close(p.done)
	p.logger.Info("poller started", "interval", p.interval.String())

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		p.tick(p.ctx)
		select {
		case <-p.ctx.Done():
			p.logger.Info("poller stopped")
			return
		case <-ticker.C:
		}
	}
}

func (p *Poller[T]) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("poll tick panicked", "panic", r)
		}
	}()

	swapped := p.pending.Swap(nil)
	if swapped == nil || len(*swapped) == 0 {
		return
	}
	observers := make([]Observer[T], 0, len(*swapped))
	for _, o := range *swapped {
		if !o.Abandoned() {
			observers = append(observers, o)
		}
	}
	if len(observers) == 0 {
		return
	}

	p.fetches.Add(1)
	start := time.Now()
	snapshot, err := p.fetch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.logger.Warn("poll fetch failed", "observers", len(observers), "elapsed_ms", time.Since(start).Milliseconds(), "error", err)
		for _, o := range observers {
			p.requeue(o)
		}
		return
	}
	p.last.Store(&snapshot)
	p.logger.Debug("poll fetched", "observers", len(observers), "elapsed_ms", time.Since(start).Milliseconds())

	for _, o := range observers {
		if err := p.pool.Submit(ctx, p.dispatch(o, snapshot)); err != nil {
			p.logger.Warn("observer dropped", "error", err)
		}
	}
}

func (p *Poller[T]) dispatch(o Observer[T], snapshot T) Task {
	return func(context.Context) {
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("observer panicked", "panic", r)
			}
		}()
		if o.Observe(snapshot) {
			p.requeue(o)
		}
	}
}

func (p *Poller[T]) requeue(o Observer[T]) {
	if err := p.ObserveOnce(o); err != nil {
		p.logger.Debug("observer not requeued", "error", err)
	}
}

// Close stops the loop and waits for dispatched observers to return.
func (p *Poller[T]) Close(ctx context.Context) {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	p.cancel()
	p.startOnce.Do(func() { close(p.done) })
	select {
	case <-p.done:
	case <-ctx.Done():
		p.logger.Warn("poller close interrupted by context")
	}
	if p.ownPool {
		p.pool.Shutdown(ctx)
	}
}
