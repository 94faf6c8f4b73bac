package async_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/nagabus/internal/async"
)

// waitFor resolves once the snapshot reaches target.
type waitFor struct {
	target    int
	calls     atomic.Int32
	found     chan int
	abandoned atomic.Bool
	once      sync.Once
}

func newWaitFor(target int) *waitFor {
	return &waitFor{target: target, found: make(chan int, 1)}
}

func (w *waitFor) Observe(snapshot int) bool {
	w.calls.Add(1)
	if snapshot >= w.target {
		w.once.Do(func() { w.found <- snapshot })
		return false
	}
	return true
}

func (w *waitFor) Abandoned() bool { return w.abandoned.Load() }

type panicky struct{}

func (panicky) Observe(int) bool { panic("observer bug") }
func (panicky) Abandoned() bool  { return false }

func counter() (async.FetchFunc[int], *atomic.Int32) {
	var n atomic.Int32
	return func(context.Context) (int, error) {
		return int(n.Add(1)), nil
	}, &n
}

func TestPoller_IdleTicksDoNotFetch(t *testing.T) {
	fetch, n := counter()
	p := async.NewPoller(fetch, discard(), async.WithInterval(5*time.Millisecond))
	defer p.Close(context.Background())

	w := newWaitFor(1)
	require.NoError(t, p.ObserveOnce(w))
	require.Equal(t, 1, <-w.found)

	time.Sleep(50 * time.Millisecond)
	require.EqualValues(t, 1, n.Load())
	require.EqualValues(t, 1, p.Fetches())
}

func TestPoller_OneFetchPerTickForManyObservers(t *testing.T) {
	fetch, n := counter()
	p := async.NewPoller(fetch, discard(), async.WithInterval(5*time.Millisecond))
	defer p.Close(context.Background())

	waiters := make([]*waitFor, 20)
	for i := range waiters {
		waiters[i] = newWaitFor(3)
		require.NoError(t, p.ObserveOnce(waiters[i]))
	}
	for _, w := range waiters {
		select {
		case v := <-w.found:
			require.GreaterOrEqual(t, v, 3)
		case <-time.After(2 * time.Second):
			t.Fatal("observer never resolved")
		}
	}
	// observers re-register each tick, yet every tick issues exactly one fetch
	require.LessOrEqual(t, n.Load(), int32(4))

	snap, ok := p.Last()
	require.True(t, ok)
	require.GreaterOrEqual(t, snap, 3)
}

func TestPoller_FetchErrorsDoNotStopTheLoop(t *testing.T) {
	var n atomic.Int32
	fetch := func(context.Context) (int, error) {
		if n.Add(1) <= 2 {
			return 0, errors.New("naga unavailable")
		}
		return 10, nil
	}
	p := async.NewPoller(fetch, discard(), async.WithInterval(5*time.Millisecond))
	defer p.Close(context.Background())

	w := newWaitFor(1)
	require.NoError(t, p.ObserveOnce(w))
	select {
	case v := <-w.found:
		require.Equal(t, 10, v)
	case <-time.After(2 * time.Second):
		t.Fatal("observer never resolved")
	}
	require.EqualValues(t, 1, w.calls.Load())
}

func TestPoller_PanickingObserverIsIsolated(t *testing.T) {
	fetch, _ := counter()
	p := async.NewPoller(fetch, discard(), async.WithInterval(5*time.Millisecond))
	defer p.Close(context.Background())

	require.NoError(t, p.ObserveOnce(panicky{}))
	w := newWaitFor(2)
	require.NoError(t, p.ObserveOnce(w))
	select {
	case <-w.found:
	case <-time.After(2 * time.Second):
		t.Fatal("observer never resolved")
	}
}

func TestPoller_AbandonedObserversAreDropped(t *testing.T) {
	fetch, n := counter()
	p := async.NewPoller(fetch, discard(), async.WithInterval(5*time.Millisecond))
	defer p.Close(context.Background())

	w := newWaitFor(1000)
	require.NoError(t, p.ObserveOnce(w))
	require.Eventually(t, func() bool { return w.calls.Load() >= 1 }, time.Second, time.Millisecond)

	w.abandoned.Store(true)
	time.Sleep(30 * time.Millisecond)
	fetched := n.Load()
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, fetched, n.Load())
	require.Zero(t, p.Pending())
}

func TestPoller_ClosedRejectsObservers(t *testing.T) {
	fetch, _ := counter()
	p := async.NewPoller(fetch, discard())
	p.Close(context.Background())
	require.ErrorIs(t, p.ObserveOnce(newWaitFor(1)), async.ErrPollerClosed)
}
