package export_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/nagabus/constants"
	"github.com/joseph-ayodele/nagabus/internal/entity"
	"github.com/joseph-ayodele/nagabus/internal/export"
)

type stubSource struct {
	stats  []entity.UsageStat
	orders []entity.Order
	err    error
}

func (s stubSource) MonthlyUsage(context.Context, int, int) ([]entity.UsageStat, error) {
	return s.stats, s.err
}

func (s stubSource) CompletedOrders(context.Context, int, int) ([]entity.Order, error) {
	return s.orders, s.err
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestUsageXLSX(t *testing.T) {
	created := time.Date(2024, 5, 10, 3, 0, 0, 0, time.UTC)
	src := stubSource{
		stats: []entity.UsageStat{{CustomerID: "bob", CostNP: 50}, {CustomerID: "alice", CostNP: 20}},
		orders: []entity.Order{
			{HaihuID: "2024051012gm-0009-0000-abcdef12", ModelType: "nishiki", Source: constants.SourceTenhou, CustomerID: "bob", CostNP: 50, CreatedAt: created},
			{
				HaihuID: "custom_haihu_2024-05-10T12:00:00_ABC", ModelType: "nishiki", Source: constants.SourceMajsoul,
				CustomerID: "alice", CostNP: 10, CreatedAt: created,
				Segment: &entity.MajsoulSegment{PaipuUUID: "240510-uuid", Kyoku: 4, Honba: 1},
			},
		},
	}
	b, err := export.NewService(src, discard()).UsageXLSX(t.Context(), 2024, 5)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer f.Close()
	require.Equal(t, []string{export.UsageSheet, export.OrdersSheet}, f.GetSheetList())

	usage, err := f.GetRows(export.UsageSheet)
	require.NoError(t, err)
	require.Equal(t, [][]string{
		{"Rank", "Customer", "NP"},
		{"1", "bob", "50"},
		{"2", "alice", "20"},
		{"", "Total", "70"},
	}, usage)

	orders, err := f.GetRows(export.OrdersSheet)
	require.NoError(t, err)
	require.Len(t, orders, 3)
	require.Equal(t, "2024-05-10 12:00:00", orders[1][0])
	require.Equal(t, "TENHOU", orders[1][2])
	require.Equal(t, "240510-uuid 4-1", orders[2][5])
}

func TestUsageXLSX_SourceError(t *testing.T) {
	boom := errors.New("boom")
	_, err := export.NewService(stubSource{err: boom}, discard()).UsageXLSX(t.Context(), 2024, 5)
	require.ErrorIs(t, err, boom)
}
