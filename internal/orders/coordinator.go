package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/joseph-ayodele/nagabus/internal/common"
	"github.com/joseph-ayodele/nagabus/internal/entity"
	"github.com/joseph-ayodele/nagabus/internal/naga"
	"github.com/joseph-ayodele/nagabus/internal/repository"
)

// submission describes one order the coordinator may have to place.
type submission struct {
	class      Class
	key        repository.OrderKey
	customerID string
	costNP     int64
	staleAfter time.Duration
	segment    *entity.MajsoulSegment
	model      naga.ModelType
	// seat, when set, selects the report view returned to this caller.
	seat *int
	// place submits the order upstream and returns its haihu id once NAGA lists it.
	place func(ctx context.Context) (string, error)
}

// submitOrAwait returns the report for sub, placing the order only if no live record exists.
func (s *Service) submitOrAwait(ctx context.Context, sub submission) (Result, error) {
	existing, err := s.orders.GetExisting(ctx, sub.key, sub.staleAfter)
	if err != nil {
		return Result{}, err
	}
	if existing != nil && !existing.Pending() {
		return s.cached(ctx, sub, existing)
	}

	originated := false
	if existing == nil {
		existing, originated, err = s.placeLocked(ctx, sub)
		if err != nil {
			return Result{}, err
		}
		if !existing.Pending() {
			return s.cached(ctx, sub, existing)
		}
	}
	if !originated {
		s.logger.InfoContext(ctx, "found processing order", "key", sub.key.String(), "haihu_id", existing.HaihuID)
	}

	report, err := s.awaitReport(ctx, existing.HaihuID, sub.model)
	if err != nil {
		return Result{}, err
	}
	if !originated {
		return sub.result(existing.HaihuID, report, 0), nil
	}

	raw, err := json.Marshal(report)
	if err != nil {
		return Result{}, common.WrapError(err, "encode report")
	}
	// the report is paid for; record it even if the caller stopped waiting
	mctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	err = s.orders.MarkDone(mctx, existing.HaihuID, existing.ModelType, raw)
	switch {
	case errors.Is(err, repository.ErrOrderNotPending):
		// evicted while we waited: NAGA charged the account but no usage row records it
		s.logger.WarnContext(ctx, "paid order not recorded as done", "key", sub.key.String(), "haihu_id", existing.HaihuID,
			"customer_id", sub.customerID, "cost_np", sub.costNP, "error", err)
	case err != nil:
		return Result{}, err
	}
	return sub.result(existing.HaihuID, report, sub.costNP), nil
}

func (sub submission) result(haihuID string, report naga.Report, cost int64) Result {
	if sub.seat != nil {
		report.Seat = *sub.seat
	}
	return Result{HaihuID: haihuID, Report: report, CostNP: cost}
}

// placeLocked re-checks and places the order under the class lock. The lock is
// released before the caller starts waiting for the report.
func (s *Service) placeLocked(ctx context.Context, sub submission) (*entity.Order, bool, error) {
	lock := s.classLock(sub.class)
	if err := lock.Acquire(ctx, 1); err != nil {
		return nil, false, err
	}
	defer lock.Release(1)

	existing, err := s.orders.GetExisting(ctx, sub.key, sub.staleAfter)
	if err != nil || existing != nil {
		return existing, false, err
	}

	s.logger.InfoContext(ctx, "placing order", "key", sub.key.String(), "source", sub.class.Source, "model_type", sub.class.ModelType)
	haihuID, err := sub.place(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "order placement failed", "key", sub.key.String(), "error", err)
		return nil, false, err
	}
	created, err := s.orders.Create(ctx, repository.NewOrder{
		HaihuID:    haihuID,
		ModelType:  sub.key.ModelType,
		Source:     sub.class.Source,
		CustomerID: sub.customerID,
		CostNP:     sub.costNP,
		Segment:    sub.segment,
	})
	if err != nil {
		return nil, false, err
	}
	return created, true, nil
}

func (s *Service) cached(ctx context.Context, sub submission, o *entity.Order) (Result, error) {
	var report naga.Report
	if err := json.Unmarshal(o.Report, &report); err != nil {
		return Result{}, common.NewAppError("CORRUPT_REPORT", "stored report of "+o.HaihuID+" is unreadable", err)
	}
	s.logger.InfoContext(ctx, "found existing report", "key", sub.key.String(), "haihu_id", o.HaihuID)
	return sub.result(o.HaihuID, report, 0), nil
}

// awaitReport waits until the report of haihuID made by model appears in the polled list.
func (s *Service) awaitReport(ctx context.Context, haihuID string, model naga.ModelType) (naga.Report, error) {
	if snap, ok := s.poller.Last(); ok {
		if r, ok := snap.FindReport(haihuID, model); ok {
			return r, nil
		}
	}

	wctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	w := &reportWaiter{haihuID: haihuID, model: model, done: wctx.Done(), result: make(chan naga.Report, 1)}
	if err := s.poller.ObserveOnce(w); err != nil {
		return naga.Report{}, err
	}
	select {
	case r := <-w.result:
		return r, nil
	case <-wctx.Done():
		return naga.Report{}, s.waitError(ctx, wctx, "report of "+haihuID)
	}
}

// awaitAck waits for match to find a newly placed order in the polled list.
func (s *Service) awaitAck(ctx context.Context, what string, match func(naga.OrderReportList) (string, bool)) (string, error) {
	wctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	w := &ackWaiter{match: match, attempts: s.cfg.AckAttempts, done: wctx.Done(), result: make(chan ackResult, 1)}
	if err := s.poller.ObserveOnce(w); err != nil {
		return "", err
	}
	select {
	case r := <-w.result:
		if !r.ok {
			return "", common.NewAppError("ORDER_FAILED", fmt.Sprintf("%s did not show up in the order list", what), common.ErrUpstreamRejected)
		}
		return r.haihuID, nil
	case <-wctx.Done():
		return "", s.waitError(ctx, wctx, "acknowledgement of "+what)
	}
}

// waitError reports our own deadline as a timeout and passes the caller's cancellation through.
func (s *Service) waitError(parent, wctx context.Context, what string) error {
	if err := parent.Err(); err != nil {
		return err
	}
	if errors.Is(wctx.Err(), context.DeadlineExceeded) {
		return common.NewAppError("TIMEOUT", fmt.Sprintf("%s not ready after %s", what, s.cfg.Timeout), common.ErrTimeout)
	}
	return wctx.Err()
}

// claim marks a custom haihu id as taken. It fails if the id was claimed already.
func (s *Service) claim(haihuID string) bool {
	s.claimedMu.Lock()
	defer s.claimedMu.Unlock()
	now := s.now()
	for id, at := range s.claimed {
		if now.Sub(at) > 10*time.Minute {
			delete(s.claimed, id)
		}
	}
	if _, ok := s.claimed[haihuID]; ok {
		return false
	}
	s.claimed[haihuID] = now
	return true
}

// customMatcher finds the custom order placed at submittedAt: newest first, with a
// timestamp inside the skew window, the same rule and model, and not claimed before.
func (s *Service) customMatcher(submittedAt time.Time, rule naga.GameRule, model naga.ModelType) func(naga.OrderReportList) (string, bool) {
	return func(l naga.OrderReportList) (string, bool) {
		for _, o := range l.Orders {
			at, ok := naga.ParseCustomHaihuTime(o.HaihuID)
			if !ok || o.Rule != rule || o.Model.Type != model {
				continue
			}
			if d := at.Sub(submittedAt); d <= -s.cfg.ClockSkew || d >= s.cfg.ClockSkew {
				continue
			}
			if s.claim(o.HaihuID) {
				return o.HaihuID, true
			}
		}
		return "", false
	}
}
