package orders_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/joseph-ayodele/nagabus/internal/common"
	"github.com/joseph-ayodele/nagabus/internal/naga"
	"github.com/joseph-ayodele/nagabus/internal/orders"
	"github.com/joseph-ayodele/nagabus/internal/paipu"
	"github.com/joseph-ayodele/nagabus/internal/repository"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	paipuUUID  = "240510-0a1b2c3d-4e5f-6a7b-8c9d-0e1f2a3b4c5d"
	replayLink = "https://game.maj-soul.com/1/?paipu=" + paipuUUID + "_a12345678_2"
	tenhouLink = "https://tenhou.net/0/?log=2024051012gm-0009-0000-abcdef12&tw=2"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func round(kyoku, honba int) []any {
	return []any{[]int{kyoku, honba, 0}, []int{25000, 25000, 25000, 25000}, []int{51}, []int{}}
}

func record(names []string, rounds ...[]any) []byte {
	b, _ := json.Marshal(map[string]any{
		"title": []string{"友人戦", "2024/05/10"},
		"name":  names,
		"rule":  map[string]any{"disp": "四人南", "aka": 1},
		"log":   rounds,
	})
	return b
}

// stubDownloader serves one record for every id.
type stubDownloader struct {
	raw   []byte
	calls atomic.Int64
}

func (d *stubDownloader) Download(context.Context, string) ([]byte, error) {
	d.calls.Add(1)
	return d.raw, nil
}

// silentClient accepts custom uploads that never show up in the order list.
type silentClient struct{ *naga.FakeClient }

func (silentClient) AnalyzeCustom(context.Context, naga.CustomRequest) error { return nil }

type fixture struct {
	svc      *orders.Service
	fake     *naga.FakeClient
	db       *repository.DB
	settings repository.SettingsRepository
	dl       *stubDownloader
}

func setup(t *testing.T, raw []byte, cfg orders.Config, wrap func(*naga.FakeClient) naga.Client) *fixture {
	t.Helper()
	logger := discard()
	db, err := repository.Open(t.Context(), repository.Config{DSN: ":memory:"}, logger)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(t.Context()))

	fake := naga.NewFakeClient(50*time.Millisecond, logger)
	var client naga.Client = fake
	if wrap != nil {
		client = wrap(fake)
	}
	dl := &stubDownloader{raw: raw}
	settings := repository.NewSettingsRepository(db, logger)
	docs := paipu.NewService(repository.NewPaipuRepository(db, logger), dl, logger)
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 10 * time.Millisecond
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	svc := orders.NewService(client, repository.NewOrderRepository(db, logger), settings, docs, cfg, logger)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		svc.Close(ctx)
		_ = fake.Close()
		db.Close()
	})
	return &fixture{svc: svc, fake: fake, db: db, settings: settings, dl: dl}
}

var fourPlayers = []string{"A", "B", "C", "D"}

func TestAnalyzeMajsoul_ConcurrentCallersShareOneOrder(t *testing.T) {
	f := setup(t, record(fourPlayers, round(0, 0), round(1, 0)), orders.Config{}, nil)

	var wg sync.WaitGroup
	results := make([]orders.Result, 2)
	errs := make([]error, 2)
	for i, customer := range []string{"alice", "bob"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = f.svc.AnalyzeMajsoul(t.Context(), orders.MajsoulRequest{
				Ref:        replayLink,
				Round:      paipu.Exact(1, 0),
				CustomerID: customer,
			})
		}()
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	require.Equal(t, results[0].HaihuID, results[1].HaihuID)
	require.Equal(t, results[0].Report.ReportID, results[1].Report.ReportID)
	require.Equal(t, int64(10), results[0].CostNP+results[1].CostNP)
	require.Equal(t, int64(1), f.fake.Submissions())
	require.Equal(t, int64(1), f.dl.calls.Load())
	require.Contains(t, results[0].URL(), results[0].Report.ReportID)

	// a later request is served from the database at no cost
	again, err := f.svc.AnalyzeMajsoul(t.Context(), orders.MajsoulRequest{
		Ref:        paipuUUID,
		Round:      paipu.Selector{Kyoku: 1},
		CustomerID: "carol",
	})
	require.NoError(t, err)
	require.Equal(t, results[0].HaihuID, again.HaihuID)
	require.Zero(t, again.CostNP)
	require.Equal(t, int64(1), f.fake.Submissions())
}

func TestAnalyzeMajsoul_DifferentRoundsAreSeparateOrders(t *testing.T) {
	f := setup(t, record(fourPlayers, round(0, 0), round(1, 0)), orders.Config{}, nil)

	first, err := f.svc.AnalyzeMajsoul(t.Context(), orders.MajsoulRequest{Ref: paipuUUID, Round: paipu.Exact(0, 0), CustomerID: "alice"})
	require.NoError(t, err)
	second, err := f.svc.AnalyzeMajsoul(t.Context(), orders.MajsoulRequest{Ref: paipuUUID, Round: paipu.Exact(1, 0), CustomerID: "alice"})
	require.NoError(t, err)

	require.NotEqual(t, first.HaihuID, second.HaihuID)
	require.Equal(t, int64(10), first.CostNP)
	require.Equal(t, int64(10), second.CostNP)
	require.Equal(t, int64(2), f.fake.Submissions())
}

func TestAnalyzeMajsoul_RejectsBadInput(t *testing.T) {
	t.Run("ambiguous round", func(t *testing.T) {
		f := setup(t, record(fourPlayers, round(0, 0), round(0, 1)), orders.Config{}, nil)
		_, err := f.svc.AnalyzeMajsoul(t.Context(), orders.MajsoulRequest{Ref: paipuUUID, Round: paipu.Selector{Kyoku: 0}, CustomerID: "alice"})
		require.ErrorIs(t, err, common.ErrAmbiguousSelection)
		var sel *paipu.SelectionError
		require.ErrorAs(t, err, &sel)
		require.Len(t, sel.Available, 2)
	})

	t.Run("three players", func(t *testing.T) {
		f := setup(t, record([]string{"A", "B", "C"}, round(0, 0)), orders.Config{}, nil)
		_, err := f.svc.AnalyzeMajsoul(t.Context(), orders.MajsoulRequest{Ref: paipuUUID, Round: paipu.Exact(0, 0), CustomerID: "alice"})
		require.ErrorIs(t, err, common.ErrUnsupportedInput)
	})

	t.Run("model of the other rule", func(t *testing.T) {
		f := setup(t, record(fourPlayers, round(0, 0)), orders.Config{}, nil)
		model := naga.ModelType(7)
		_, err := f.svc.AnalyzeMajsoul(t.Context(), orders.MajsoulRequest{Ref: paipuUUID, Round: paipu.Exact(0, 0), CustomerID: "alice", Model: &model})
		require.ErrorIs(t, err, common.ErrInvalidInput)
	})

	t.Run("missing customer", func(t *testing.T) {
		f := setup(t, record(fourPlayers, round(0, 0)), orders.Config{}, nil)
		_, err := f.svc.AnalyzeMajsoul(t.Context(), orders.MajsoulRequest{Ref: paipuUUID, Round: paipu.Exact(0, 0)})
		require.ErrorIs(t, err, common.ErrInvalidInput)
		require.Zero(t, f.fake.Submissions())
	})
}

func TestAnalyzeMajsoul_CustomerFromContext(t *testing.T) {
	f := setup(t, record(fourPlayers, round(0, 0)), orders.Config{}, nil)
	ctx := common.WithCustomerID(t.Context(), "dave")

	res, err := f.svc.AnalyzeMajsoul(ctx, orders.MajsoulRequest{Ref: paipuUUID, Round: paipu.Exact(0, 0)})
	require.NoError(t, err)
	require.Equal(t, int64(10), res.CostNP)

	now := time.Now().In(naga.JST)
	usage, err := f.svc.MonthlyUsage(t.Context(), now.Year(), int(now.Month()))
	require.NoError(t, err)
	require.Len(t, usage, 1)
	require.Equal(t, "dave", usage[0].CustomerID)
}

func TestAnalyzeMajsoul_UnacknowledgedUploadFails(t *testing.T) {
	f := setup(t, record(fourPlayers, round(0, 0)), orders.Config{AckAttempts: 2}, func(c *naga.FakeClient) naga.Client {
		return silentClient{c}
	})

	_, err := f.svc.AnalyzeMajsoul(t.Context(), orders.MajsoulRequest{Ref: paipuUUID, Round: paipu.Exact(0, 0), CustomerID: "alice"})
	require.ErrorIs(t, err, common.ErrUpstreamRejected)

	now := time.Now().In(naga.JST)
	done, err := f.svc.CompletedOrders(t.Context(), now.Year(), int(now.Month()))
	require.NoError(t, err)
	require.Empty(t, done)
}

func TestAnalyzeTenhou(t *testing.T) {
	f := setup(t, nil, orders.Config{MonthlyBudget: 100}, nil)

	res, err := f.svc.AnalyzeTenhou(t.Context(), orders.TenhouRequest{Ref: tenhouLink, CustomerID: "bob"})
	require.NoError(t, err)
	require.Equal(t, "2024051012gm-0009-0000-abcdef12", res.HaihuID)
	require.Equal(t, int64(50), res.CostNP)
	require.Equal(t, 2, res.Report.Seat)

	left, err := f.svc.RemainingBudget(t.Context())
	require.NoError(t, err)
	require.Equal(t, int64(50), left)

	seat := 1
	again, err := f.svc.AnalyzeTenhou(t.Context(), orders.TenhouRequest{Ref: "2024051012gm-0009-0000-abcdef12", Seat: &seat, CustomerID: "alice"})
	require.NoError(t, err)
	require.Zero(t, again.CostNP)
	require.Equal(t, int64(1), f.fake.Submissions())
	require.Equal(t, 1, again.Report.Seat)
	require.True(t, strings.HasSuffix(again.URL(), "tw=1"), again.URL())
	require.Equal(t, res.Report.ReportID, again.Report.ReportID)
}

func TestAnalyzeTenhou_ModelsAreSeparateOrders(t *testing.T) {
	f := setup(t, nil, orders.Config{}, nil)

	first, err := f.svc.AnalyzeTenhou(t.Context(), orders.TenhouRequest{Ref: tenhouLink, CustomerID: "bob"})
	require.NoError(t, err)
	require.Equal(t, naga.Nishiki, first.Report.Model.Type)

	omega := naga.Omega
	second, err := f.svc.AnalyzeTenhou(t.Context(), orders.TenhouRequest{Ref: tenhouLink, CustomerID: "bob", Model: &omega})
	require.NoError(t, err)
	require.Equal(t, int64(50), second.CostNP)
	require.Equal(t, naga.Omega, second.Report.Model.Type)
	require.NotEqual(t, first.Report.ReportID, second.Report.ReportID)
	require.Equal(t, int64(2), f.fake.Submissions())

	// each model keeps its own stored report
	cached, err := f.svc.AnalyzeTenhou(t.Context(), orders.TenhouRequest{Ref: tenhouLink, CustomerID: "carol"})
	require.NoError(t, err)
	require.Zero(t, cached.CostNP)
	require.Equal(t, first.Report.ReportID, cached.Report.ReportID)
}

func TestAnalyzeTenhou_Rejected(t *testing.T) {
	f := setup(t, nil, orders.Config{}, nil)
	f.fake.SetTenhouRejection("log not found")

	_, err := f.svc.AnalyzeTenhou(t.Context(), orders.TenhouRequest{Ref: tenhouLink, CustomerID: "bob"})
	require.ErrorIs(t, err, common.ErrUpstreamRejected)
	require.Contains(t, err.Error(), "log not found")

	// nothing was recorded, so a retry places the order
	f.fake.SetTenhouRejection("")
	res, err := f.svc.AnalyzeTenhou(t.Context(), orders.TenhouRequest{Ref: tenhouLink, CustomerID: "bob"})
	require.NoError(t, err)
	require.Equal(t, int64(50), res.CostNP)
}

func TestAnalyzeTenhou_BadSeat(t *testing.T) {
	f := setup(t, nil, orders.Config{}, nil)
	seat := 4
	_, err := f.svc.AnalyzeTenhou(t.Context(), orders.TenhouRequest{Ref: tenhouLink, Seat: &seat, CustomerID: "bob"})
	require.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestAnalyze_TimesOutWithoutReport(t *testing.T) {
	f := setup(t, nil, orders.Config{Timeout: 200 * time.Millisecond}, nil)
	f.fake.SetDelay(time.Hour)

	_, err := f.svc.AnalyzeTenhou(t.Context(), orders.TenhouRequest{Ref: tenhouLink, CustomerID: "bob"})
	require.ErrorIs(t, err, common.ErrTimeout)
}

func TestAnalyze_CallerCancellation(t *testing.T) {
	f := setup(t, nil, orders.Config{}, nil)
	f.fake.SetDelay(time.Hour)

	ctx, cancel := context.WithTimeout(t.Context(), 150*time.Millisecond)
	defer cancel()
	_, err := f.svc.AnalyzeTenhou(ctx, orders.TenhouRequest{Ref: tenhouLink, CustomerID: "bob"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, common.ErrTimeout)
}

func TestMonthlyUsage_ValidatesMonth(t *testing.T) {
	f := setup(t, nil, orders.Config{}, nil)
	_, err := f.svc.MonthlyUsage(t.Context(), 2024, 13)
	require.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestCredentials(t *testing.T) {
	f := setup(t, nil, orders.Config{}, nil)

	err := f.svc.SetCredentials(t.Context(), map[string]string{common.CookieSession: "s"})
	require.ErrorIs(t, err, common.ErrInvalidInput)

	loaded, err := f.svc.LoadCredentials(t.Context(), map[string]string{"csrftoken": "env"})
	require.NoError(t, err)
	require.Equal(t, "env", loaded["csrftoken"])

	cookies := map[string]string{common.CookieCSRFToken: "t", common.CookieSession: "s"}
	require.NoError(t, f.svc.SetCredentials(t.Context(), cookies))
	require.Equal(t, cookies, f.fake.Cookies())

	f.fake.SetCookies(nil)
	loaded, err = f.svc.LoadCredentials(t.Context(), map[string]string{"csrftoken": "env"})
	require.NoError(t, err)
	require.Equal(t, cookies, loaded)
	require.Equal(t, cookies, f.fake.Cookies())
}

// evictedRepo behaves as if every order was evicted before its report arrived.
type evictedRepo struct{ repository.OrderRepository }

func (evictedRepo) MarkDone(_ context.Context, haihuID, modelType string, _ json.RawMessage) error {
	return fmt.Errorf("%w: %s/%s", repository.ErrOrderNotPending, haihuID, modelType)
}

func TestAnalyzeTenhou_OrderEvictedWhileWaiting(t *testing.T) {
	logger := discard()
	db, err := repository.Open(t.Context(), repository.Config{DSN: ":memory:"}, logger)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(t.Context()))
	fake := naga.NewFakeClient(20*time.Millisecond, logger)
	settings := repository.NewSettingsRepository(db, logger)
	docs := paipu.NewService(repository.NewPaipuRepository(db, logger), &stubDownloader{}, logger)
	repo := evictedRepo{repository.NewOrderRepository(db, logger)}
	svc := orders.NewService(fake, repo, settings, docs, orders.Config{PollInterval: 10 * time.Millisecond, Timeout: 5 * time.Second}, logger)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		svc.Close(ctx)
		_ = fake.Close()
		db.Close()
	})

	// the report was paid for, so the caller still gets it
	res, err := svc.AnalyzeTenhou(t.Context(), orders.TenhouRequest{Ref: tenhouLink, CustomerID: "bob"})
	require.NoError(t, err)
	require.Equal(t, int64(50), res.CostNP)
	require.NotEmpty(t, res.Report.ReportID)
}
