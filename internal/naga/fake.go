package naga

import (
	"context"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// FakeClient is an in-memory NAGA. Orders show up in the list as soon as they are
// submitted and their reports appear after a fixed delay.
type FakeClient struct {
	logger *slog.Logger
	now    func() time.Time

	mu        sync.Mutex
	delay     time.Duration
	reports   []fakeEntry[Report]
	orders    []fakeEntry[Order]
	timers    []*time.Timer
	cookies   map[string]string
	submitErr error
	listErr   error
	rejection string
	closed    bool

	submissions atomic.Int64
	listCalls   atomic.Int64
}

type fakeEntry[T any] struct {
	at    time.Time
	value T
}

var _ Client = (*FakeClient)(nil)

func NewFakeClient(delay time.Duration, logger *slog.Logger) *FakeClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &FakeClient{logger: logger, now: time.Now, delay: delay, cookies: map[string]string{}}
}

func (f *FakeClient) OrderReportList(ctx context.Context, year, month int) (OrderReportList, error) {
	f.listCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return OrderReportList{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return OrderReportList{}, f.listErr
	}
	begin, end := MonthRange(year, month)
	in := func(t time.Time) bool { return !t.Before(begin) && t.Before(end) }

	out := OrderReportList{Reports: []Report{}, Orders: []Order{}}
	for _, r := range f.reports {
		if in(r.at) {
			out.Reports = append(out.Reports, r.value)
		}
	}
	for _, o := range f.orders {
		if in(o.at) {
			out.Orders = append(out.Orders, o.value)
		}
	}
	return out, nil
}

func (f *FakeClient) AnalyzeCustom(ctx context.Context, req CustomRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return f.submitErr
	}
	f.submissions.Add(1)
	f.place(CustomHaihuID(f.now()), req.Seat, req.Rule, req.ModelType)
	return nil
}

func (f *FakeClient) AnalyzeTenhou(ctx context.Context, req TenhouRequest) (AnalyzeResult, error) {
	if err := ctx.Err(); err != nil {
		return AnalyzeResult{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return AnalyzeResult{}, f.submitErr
	}
	if f.rejection != "" {
		return AnalyzeResult{Status: 400, Msg: f.rejection}, nil
	}
	f.submissions.Add(1)
	f.place(req.HaihuID, req.Seat, Hanchan, req.ModelType)
	return AnalyzeResult{Status: 200, Msg: "ok"}, nil
}

// place records an order and schedules its report. f.mu must be held.
func (f *FakeClient) place(haihuID string, seat int, rule GameRule, modelType ModelType) {
	at := f.now()
	model := Model{Major: 2, Minor: 0, Type: modelType}
	order := Order{HaihuID: haihuID, Status: OrderAnalyzing, Model: model, Rule: rule}
	f.orders = append([]fakeEntry[Order]{{at: at, value: order}}, f.orders...)
	f.logger.Info("fake naga order inserted", "haihu_id", haihuID)

	report := Report{
		HaihuID:  haihuID,
		Players:  []ReportPlayer{{"AI", 0}, {"AI", 0}, {"AI", 0}, {"AI", 0}},
		ReportID: uuid.NewString(),
		Seat:     seat,
		Model:    model,
		Rule:     rule,
	}
	f.timers = append(f.timers, time.AfterFunc(f.delay, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.closed {
			return
		}
		f.reports = append([]fakeEntry[Report]{{at: at, value: report}}, f.reports...)
		for i := range f.orders {
			if f.orders[i].value.HaihuID == haihuID {
				f.orders[i].value.Status = OrderOK
			}
		}
		f.logger.Info("fake naga report inserted", "haihu_id", haihuID, "report_id", report.ReportID)
	}))
}

// AddOrder puts an order into the list without a report, as another account user would.
func (f *FakeClient) AddOrder(o Order, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append([]fakeEntry[Order]{{at: at, value: o}}, f.orders...)
}

func (f *FakeClient) SetCookies(cookies map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cookies = maps.Clone(cookies)
}

// Cookies returns the cookies last installed.
func (f *FakeClient) Cookies() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return maps.Clone(f.cookies)
}

// SetSubmitError makes every submission fail with err until reset with nil.
func (f *FakeClient) SetSubmitError(err error) {
	f.mu.Lock()
	f.submitErr = err
	f.mu.Unlock()
}

// SetListError makes every list call fail with err until reset with nil.
func (f *FakeClient) SetListError(err error) {
	f.mu.Lock()
	f.listErr = err
	f.mu.Unlock()
}

// SetTenhouRejection makes tenhou submissions answer with a business failure carrying msg.
func (f *FakeClient) SetTenhouRejection(msg string) {
	f.mu.Lock()
	f.rejection = msg
	f.mu.Unlock()
}

// SetDelay changes how long reports of future submissions take.
func (f *FakeClient) SetDelay(d time.Duration) {
	f.mu.Lock()
	f.delay = d
	f.mu.Unlock()
}

// Submissions counts accepted submissions.
func (f *FakeClient) Submissions() int64 { return f.submissions.Load() }

// ListCalls counts list calls, including failed ones.
func (f *FakeClient) ListCalls() int64 { return f.listCalls.Load() }

func (f *FakeClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	for _, t := range f.timers {
		t.Stop()
	}
	f.timers = nil
	return nil
}
