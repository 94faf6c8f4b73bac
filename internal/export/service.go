package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/nagabus/internal/entity"
	"github.com/joseph-ayodele/nagabus/internal/naga"
)

// Source supplies the month data an export is built from.
type Source interface {
	MonthlyUsage(ctx context.Context, year, month int) ([]entity.UsageStat, error)
	CompletedOrders(ctx context.Context, year, month int) ([]entity.Order, error)
}

// Service renders monthly usage as XLSX workbooks.
type Service struct {
	src    Source
	logger *slog.Logger
}

func NewService(src Source, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{src: src, logger: logger}
}

const (
	UsageSheet  = "Usage"
	OrdersSheet = "Orders"
)

// UsageXLSX returns a workbook with the per-customer totals of a JST month on the
// Usage sheet and every completed order of that month on the Orders sheet.
func (s *Service) UsageXLSX(ctx context.Context, year, month int) ([]byte, error) {
	start := time.Now()

	stats, err := s.src.MonthlyUsage(ctx, year, month)
	if err != nil {
		return nil, fmt.Errorf("query usage: %w", err)
	}
	orders, err := s.src.CompletedOrders(ctx, year, month)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName("Sheet1", UsageSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(OrdersSheet); err != nil {
		return nil, err
	}

	writeRow(f, UsageSheet, 1, "Rank", "Customer", "NP")
	var total int64
	for i, st := range stats {
		writeRow(f, UsageSheet, i+2, i+1, st.CustomerID, st.CostNP)
		total += st.CostNP
	}
	writeRow(f, UsageSheet, len(stats)+2, "", "Total", total)
	_ = f.SetColWidth(UsageSheet, "B", "B", 24)

	writeRow(f, OrdersSheet, 1, "Created (JST)", "Customer", "Source", "Model", "Haihu ID", "Round", "NP")
	for i, o := range orders {
		round := ""
		if o.Segment != nil {
			round = fmt.Sprintf("%s %d-%d", o.Segment.PaipuUUID, o.Segment.Kyoku, o.Segment.Honba)
		}
		writeRow(f, OrdersSheet, i+2,
			o.CreatedAt.In(naga.JST).Format("2006-01-02 15:04:05"),
			o.CustomerID, string(o.Source), o.ModelType, o.HaihuID, round, o.CostNP)
	}
	_ = f.SetColWidth(OrdersSheet, "A", "A", 20)
	_ = f.SetColWidth(OrdersSheet, "B", "B", 24)
	_ = f.SetColWidth(OrdersSheet, "E", "F", 48)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"year", year,
		"month", month,
		"customers", len(stats),
		"orders", len(orders),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values ...any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}
