package orders

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/joseph-ayodele/nagabus/constants"
	"github.com/joseph-ayodele/nagabus/internal/async"
	"github.com/joseph-ayodele/nagabus/internal/common"
	"github.com/joseph-ayodele/nagabus/internal/naga"
	"github.com/joseph-ayodele/nagabus/internal/paipu"
	"github.com/joseph-ayodele/nagabus/internal/repository"
)

type Config struct {
	// Timeout bounds how long a caller waits for a report.
	Timeout time.Duration
	// PollInterval is the period of the shared order list poll.
	PollInterval time.Duration
	// AckAttempts is how many polls may pass before a submission that never shows up counts as failed.
	AckAttempts int
	// ClockSkew is the tolerance between our clock and the time embedded in custom haihu ids.
	ClockSkew time.Duration
	// MonthlyBudget is the NP the account may spend per JST month.
	MonthlyBudget int64
}

// FromAppConfig copies the coordinator settings of the application config.
func FromAppConfig(c common.NagaConfig) Config {
	return Config{
		Timeout:       c.Timeout,
		PollInterval:  c.PollInterval,
		AckAttempts:   c.AckAttempts,
		ClockSkew:     c.ClockSkew,
		MonthlyBudget: c.MonthlyBudget,
	}
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 600 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.AckAttempts <= 0 {
		c.AckAttempts = 3
	}
	if c.ClockSkew <= 0 {
		c.ClockSkew = 30 * time.Second
	}
	return c
}

// Class groups orders that share a submission lock.
type Class struct {
	Source    constants.OrderSource
	ModelType string
}

// Result is the outcome of an analysis request. CostNP is charged to the caller; it
// is zero unless this call placed the order.
type Result struct {
	HaihuID string
	Report  naga.Report
	CostNP  int64
}

// URL is the public report page.
func (r Result) URL() string { return naga.ReportURL(r.Report.ReportID, r.Report.Seat) }

// Service coordinates paid NAGA orders: each distinct order is placed at most once,
// concurrent callers share its report, and the placing caller alone pays for it.
type Service struct {
	client   naga.Client
	orders   repository.OrderRepository
	settings repository.SettingsRepository
	paipu    *paipu.Service
	poller   *async.Poller[naga.OrderReportList]
	cfg      Config

	dispatcher *async.Pool
	logger     *slog.Logger
	now        func() time.Time

	locksMu sync.Mutex
	locks   map[Class]*semaphore.Weighted

	claimedMu sync.Mutex
	claimed   map[string]time.Time
}

type Option func(*Service)

// WithClock overrides the time source used for month boundaries and ack matching.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithDispatcher runs poll observers on pool.
func WithDispatcher(pool *async.Pool) Option {
	return func(s *Service) { s.dispatcher = pool }
}

func NewService(
	client naga.Client,
	orders repository.OrderRepository,
	settings repository.SettingsRepository,
	docs *paipu.Service,
	cfg Config,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		client:   client,
		orders:   orders,
		settings: settings,
		paipu:    docs,
		cfg:      cfg.withDefaults(),
		logger:   logger,
		now:      time.Now,
		locks:    make(map[Class]*semaphore.Weighted),
		claimed:  make(map[string]time.Time),
	}
	for _, o := range opts {
		o(s)
	}
	pollerOpts := []async.PollerOption{async.WithInterval(s.cfg.PollInterval)}
	if s.dispatcher != nil {
		pollerOpts = append(pollerOpts, async.WithDispatcher(s.dispatcher))
	}
	s.poller = async.NewPoller(s.fetchRecent, logger.With("component", "order_poller"), pollerOpts...)
	return s
}

// Close stops the order list poll.
func (s *Service) Close(ctx context.Context) {
	s.poller.Close(ctx)
}

// fetchRecent loads the order list of the current and previous JST month.
func (s *Service) fetchRecent(ctx context.Context) (naga.OrderReportList, error) {
	now := s.now().In(naga.JST)
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, naga.JST)
	prev := first.AddDate(0, -1, 0)

	var current, previous naga.OrderReportList
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		current, err = s.client.OrderReportList(gctx, first.Year(), int(first.Month()))
		return err
	})
	g.Go(func() error {
		var err error
		previous, err = s.client.OrderReportList(gctx, prev.Year(), int(prev.Month()))
		return err
	})
	if err := g.Wait(); err != nil {
		return naga.OrderReportList{}, err
	}
	return current.Merge(previous), nil
}

func (s *Service) classLock(c Class) *semaphore.Weighted {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[c]
	if !ok {
		l = semaphore.NewWeighted(1)
		s.locks[c] = l
	}
	return l
}
