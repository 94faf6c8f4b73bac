package async

import (
	"context"
	"fmt"
	"sync"
)

// Flight coalesces concurrent calls for the same key into one producer run.
//
// An entry lives until its producer has finished and the last caller waiting on it
// has left, so callers arriving while others still wait share the same result.
// The producer runs on a context detached from the callers: a caller giving up
// stops waiting but never cancels work other callers depend on.
type Flight[V any] struct {
	mu    sync.Mutex
	calls map[string]*call[V]
}

type call[V any] struct {
	done     chan struct{}
	val      V
	err      error
	waiters  int
	finished bool
}

// Do returns the result of producer for key, starting it only if no run is registered.
func (f *Flight[V]) Do(ctx context.Context, key string, producer func(context.Context) (V, error)) (V, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = make(map[string]*call[V])
	}
	c, ok := f.calls[key]
	if !ok {
		c = &call[V]{done: make(chan struct{})}
		f.calls[key] = c
		go f.run(context.WithoutCancel(ctx), key, c, producer)
	}
	c.waiters++
	f.mu.Unlock()

	defer f.leave(key, c)

	select {
	case <-c.done:
		return c.val, c.err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

func (f *Flight[V]) run(ctx context.Context, key string, c *call[V], producer func(context.Context) (V, error)) {
	defer func() {
		if r := recover(); r != nil {
			c.err = fmt.Errorf("async: producer for %q panicked: %v", key, r)
		}
		f.mu.Lock()
		c.finished = true
		if c.waiters == 0 {
			f.forget(key, c)
		}
		f.mu.Unlock()
		close(c.done)
	}()
	c.val, c.err = producer(ctx)
}

func (f *Flight[V]) leave(key string, c *call[V]) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.waiters--
	if c.waiters == 0 && c.finished {
		f.forget(key, c)
	}
}

func (f *Flight[V]) forget(key string, c *call[V]) {
	if f.calls[key] == c {
		delete(f.calls, key)
	}
}

// Waiters reports how many callers currently wait on key.
func (f *Flight[V]) Waiters(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.calls[key]; ok {
		return c.waiters
	}
	return 0
}

// Len reports how many keys are registered.
func (f *Flight[V]) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}
