package orders

import (
	"github.com/joseph-ayodele/nagabus/internal/async"
	"github.com/joseph-ayodele/nagabus/internal/naga"
)

// reportWaiter waits for the report of one order. It stays registered until the
// report shows up or its deadline passes.
type reportWaiter struct {
	haihuID string
	model   naga.ModelType
	done    <-chan struct{}
	result  chan naga.Report
}

var _ async.Observer[naga.OrderReportList] = (*reportWaiter)(nil)

func (w *reportWaiter) Observe(l naga.OrderReportList) bool {
	if r, ok := l.FindReport(w.haihuID, w.model); ok {
		select {
		case w.result <- r:
		default:
		}
		return false
	}
	return !w.Abandoned()
}

func (w *reportWaiter) Abandoned() bool {
	select {
	case <-w.done:
		return true
	default:
		return false
	}
}

type ackResult struct {
	haihuID string
	ok      bool
}

// ackWaiter looks for a freshly placed order for a bounded number of polls.
// attempts is only touched from Observe, which the poller never runs concurrently
// for one registration.
type ackWaiter struct {
	match    func(naga.OrderReportList) (string, bool)
	attempts int
	done     <-chan struct{}
	result   chan ackResult
}

var _ async.Observer[naga.OrderReportList] = (*ackWaiter)(nil)

func (w *ackWaiter) Observe(l naga.OrderReportList) bool {
	if id, ok := w.match(l); ok {
		w.result <- ackResult{haihuID: id, ok: true}
		return false
	}
	w.attempts--
	if w.attempts <= 0 {
		w.result <- ackResult{}
		return false
	}
	return !w.Abandoned()
}

func (w *ackWaiter) Abandoned() bool {
	select {
	case <-w.done:
		return true
	default:
		return false
	}
}
