package repository

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"entgo.io/ent/dialect"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/nagabus/constants"
	"github.com/joseph-ayodele/nagabus/internal/entity"
)

func TestEvict_KeepsOrderCompletedSinceLookup(t *testing.T) {
	ctx := t.Context()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := Open(ctx, Config{DSN: ":memory:"}, logger)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(ctx))

	start := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	now := start
	repo := NewOrderRepository(db, logger, WithClock(func() time.Time { return now })).(*orderRepo)

	seg := &entity.MajsoulSegment{PaipuUUID: "240510-aaaa", Kyoku: 2, Honba: 1}
	key := OrderKey{ModelType: "nishiki", Segment: seg}
	_, err = repo.Create(ctx, NewOrder{
		HaihuID:    "custom_haihu_1",
		ModelType:  "nishiki",
		Source:     constants.SourceMajsoul,
		CustomerID: "alice",
		CostNP:     10,
		Segment:    seg,
	})
	require.NoError(t, err)

	// snapshot taken by a lookup, then the order completes before the eviction runs
	stale, err := repo.find(ctx, db.drv, key)
	require.NoError(t, err)
	now = start.Add(time.Minute)
	require.NoError(t, repo.MarkDone(ctx, "custom_haihu_1", "nishiki", json.RawMessage(`{"report_id":"r"}`)))

	err = db.withTx(ctx, func(tx dialect.Tx) error {
		return repo.evict(ctx, tx, stale, time.Hour)
	})
	require.NoError(t, err)

	got, err := repo.GetExisting(ctx, key, time.Second)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, constants.OrderStatusDone, got.Status)
	require.Equal(t, seg, got.Segment)
}
