package orders

import (
	"context"

	"github.com/joseph-ayodele/nagabus/internal/common"
	"github.com/joseph-ayodele/nagabus/internal/entity"
	"github.com/joseph-ayodele/nagabus/internal/naga"
)

func validMonth(year, month int) error {
	v := common.NewValidator()
	v.Field("year", year, common.InRange(2000, 9999))
	v.Field("month", month, common.InRange(1, 12))
	return v.Error()
}

// MonthlyUsage sums the cost of completed orders per customer over a JST month,
// most expensive first.
func (s *Service) MonthlyUsage(ctx context.Context, year, month int) ([]entity.UsageStat, error) {
	if err := validMonth(year, month); err != nil {
		return nil, err
	}
	begin, end := naga.MonthRange(year, month)
	return s.orders.UsageByCustomer(ctx, begin, end)
}

// CompletedOrders lists the completed orders of a JST month.
func (s *Service) CompletedOrders(ctx context.Context, year, month int) ([]entity.Order, error) {
	if err := validMonth(year, month); err != nil {
		return nil, err
	}
	begin, end := naga.MonthRange(year, month)
	return s.orders.ListCompletedInRange(ctx, begin, end)
}

// RemainingBudget is the monthly budget minus what the current JST month has used, never negative.
func (s *Service) RemainingBudget(ctx context.Context) (int64, error) {
	now := s.now().In(naga.JST)
	stats, err := s.MonthlyUsage(ctx, now.Year(), int(now.Month()))
	if err != nil {
		return 0, err
	}
	left := s.cfg.MonthlyBudget
	for _, st := range stats {
		left -= st.CostNP
	}
	return max(left, 0), nil
}
