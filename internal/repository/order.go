package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/nagabus/constants"
	"github.com/joseph-ayodele/nagabus/internal/common"
	"github.com/joseph-ayodele/nagabus/internal/entity"
)

// OrderKey identifies an order within its class. Majsoul orders are looked up by
// Segment because their haihu id is only known after submission.
type OrderKey struct {
	HaihuID   string
	ModelType string
	Segment   *entity.MajsoulSegment
}

func (k OrderKey) String() string {
	if k.Segment != nil {
		return fmt.Sprintf("%s/%d/%d/%s", k.Segment.PaipuUUID, k.Segment.Kyoku, k.Segment.Honba, k.ModelType)
	}
	return k.HaihuID + "/" + k.ModelType
}

// NewOrder is the input of OrderRepository.Create.
type NewOrder struct {
	HaihuID    string
	ModelType  string
	Source     constants.OrderSource
	CustomerID string
	CostNP     int64
	Segment    *entity.MajsoulSegment
}

// ErrOrderNotPending is returned by MarkDone when no pending order matches, because
// it was completed already or evicted in the meantime.
var ErrOrderNotPending = errors.New("order not pending")

type OrderRepository interface {
	// GetExisting returns the live order for key, or nil. A pending order older than
	// staleAfter is deleted together with its segment row and reported as absent.
	GetExisting(ctx context.Context, key OrderKey, staleAfter time.Duration) (*entity.Order, error)
	Create(ctx context.Context, in NewOrder) (*entity.Order, error)
	MarkDone(ctx context.Context, haihuID, modelType string, report json.RawMessage) error
	ListCompletedInRange(ctx context.Context, begin, end time.Time) ([]entity.Order, error)
	UsageByCustomer(ctx context.Context, begin, end time.Time) ([]entity.UsageStat, error)
}

type orderRepo struct {
	db  *DB
	log *slog.Logger
	now func() time.Time
}

type OrderOption func(*orderRepo)

// WithClock overrides the time source used for timestamps and staleness.
func WithClock(now func() time.Time) OrderOption {
	return func(r *orderRepo) {
		if now != nil {
			r.now = now
		}
	}
}

func NewOrderRepository(db *DB, log *slog.Logger, opts ...OrderOption) OrderRepository {
	r := &orderRepo{db: db, log: log, now: time.Now}
	for _, o := range opts {
		o(r)
	}
	return r
}

var orderColumns = []string{"id", "haihu_id", "model_type", "source", "customer_id", "cost_np", "status", "report", "created_at", "updated_at"}

type orderRow struct {
	entity.Order
	report    sql.NullString
	createdAt int64
	updatedAt int64
	paipuUUID sql.NullString
	kyoku     sql.NullInt64
	honba     sql.NullInt64
}

func (o *orderRow) dest() []any {
	return []any{&o.ID, &o.HaihuID, &o.ModelType, &o.Source, &o.CustomerID, &o.CostNP, &o.Status, &o.report, &o.createdAt, &o.updatedAt}
}

func (o *orderRow) finish() entity.Order {
	out := o.Order
	if o.report.Valid {
		out.Report = json.RawMessage(o.report.String)
	}
	out.CreatedAt = fromMillis(o.createdAt)
	out.UpdatedAt = fromMillis(o.updatedAt)
	if o.paipuUUID.Valid {
		out.Segment = &entity.MajsoulSegment{
			PaipuUUID: o.paipuUUID.String,
			Kyoku:     int(o.kyoku.Int64),
			Honba:     int(o.honba.Int64),
		}
	}
	return out
}

func (r *orderRepo) selectOrders(b *entsql.DialectBuilder) (*entsql.Selector, *entsql.SelectTable, *entsql.SelectTable) {
	t1 := b.Table(ordersTable).As("o")
	t2 := b.Table(majsoulOrdersTable).As("m")
	cols := make([]string, 0, len(orderColumns)+3)
	for _, c := range orderColumns {
		cols = append(cols, t1.C(c))
	}
	cols = append(cols, t2.C("paipu_uuid"), t2.C("kyoku"), t2.C("honba"))
	s := b.Select(cols...).From(t1).LeftJoin(t2).On(t1.C("id"), t2.C("order_id"))
	return s, t1, t2
}

func scanOrders(dst *[]entity.Order) func(*entsql.Rows) error {
	return func(rows *entsql.Rows) error {
		var row orderRow
		if err := rows.Scan(append(row.dest(), &row.paipuUUID, &row.kyoku, &row.honba)...); err != nil {
			return err
		}
		*dst = append(*dst, row.finish())
		return nil
	}
}

func (r *orderRepo) find(ctx context.Context, conn dialect.ExecQuerier, key OrderKey) (*entity.Order, error) {
	b := entsql.Dialect(r.db.Dialect())
	s, t1, t2 := r.selectOrders(b)
	if key.Segment != nil {
		s.Where(entsql.And(
			entsql.EQ(t2.C("paipu_uuid"), key.Segment.PaipuUUID),
			entsql.EQ(t2.C("kyoku"), key.Segment.Kyoku),
			entsql.EQ(t2.C("honba"), key.Segment.Honba),
			entsql.EQ(t2.C("model_type"), key.ModelType),
		))
	} else {
		s.Where(entsql.And(
			entsql.EQ(t1.C("haihu_id"), key.HaihuID),
			entsql.EQ(t1.C("model_type"), key.ModelType),
		))
	}
	q, args := s.Limit(1).Query()
	var out []entity.Order
	if err := query(ctx, conn, q, args, scanOrders(&out)); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

func (r *orderRepo) GetExisting(ctx context.Context, key OrderKey, staleAfter time.Duration) (*entity.Order, error) {
	var found *entity.Order
	err := r.db.withTx(ctx, func(tx dialect.Tx) error {
		o, err := r.find(ctx, tx, key)
		if err != nil || o == nil {
			return err
		}
		age := r.now().Sub(o.UpdatedAt)
		if !o.Pending() || age < staleAfter {
			found = o
			return nil
		}
		return r.evict(ctx, tx, o, age)
	})
	if err != nil {
		r.log.Error("order lookup failed", "key", key.String(), "err", err)
		return nil, err
	}
	return found, nil
}

// evict removes a stale pending order. The parent delete is conditioned on the
// observed updated_at so concurrent evictions of the same row delete it once, and
// the segment row is only removed together with its parent.
func (r *orderRepo) evict(ctx context.Context, tx dialect.Tx, o *entity.Order, age time.Duration) error {
	b := entsql.Dialect(r.db.Dialect())
	q, args := b.Delete(ordersTable).Where(entsql.And(
		entsql.EQ("id", o.ID),
		entsql.EQ("status", string(constants.OrderStatusPending)),
		entsql.EQ("updated_at", toMillis(o.UpdatedAt)),
	)).Query()
	n, err := exec(ctx, tx, q, args)
	if err != nil {
		return err
	}
	if n == 0 {
		r.log.Debug("stale order changed before eviction", "order_id", o.ID, "haihu_id", o.HaihuID)
		return nil
	}
	q, args = b.Delete(majsoulOrdersTable).Where(entsql.EQ("order_id", o.ID)).Query()
	if _, err := exec(ctx, tx, q, args); err != nil {
		return err
	}
	r.log.Info("stale order evicted", "order_id", o.ID, "haihu_id", o.HaihuID, "model_type", o.ModelType, "age", age.String())
	return nil
}

func (r *orderRepo) Create(ctx context.Context, in NewOrder) (*entity.Order, error) {
	v := common.NewValidator()
	v.Field("haihu_id", in.HaihuID, common.Required)
	v.Field("model_type", in.ModelType, common.Required)
	v.Field("customer_id", in.CustomerID, common.Required)
	if err := v.Error(); err != nil {
		return nil, err
	}

	now := r.now()
	var created *entity.Order
	err := r.db.withTx(ctx, func(tx dialect.Tx) error {
		b := entsql.Dialect(r.db.Dialect())
		q, args := b.Insert(ordersTable).
			Columns("haihu_id", "model_type", "source", "customer_id", "cost_np", "status", "created_at", "updated_at").
			Values(in.HaihuID, in.ModelType, string(in.Source), in.CustomerID, in.CostNP,
				string(constants.OrderStatusPending), toMillis(now), toMillis(now)).
			Query()
		if _, err := exec(ctx, tx, q, args); err != nil {
			return err
		}
		o, err := r.find(ctx, tx, OrderKey{HaihuID: in.HaihuID, ModelType: in.ModelType})
		if err != nil {
			return err
		}
		if o == nil {
			return fmt.Errorf("%w: order %s vanished after insert", common.ErrDatabase, in.HaihuID)
		}
		if in.Segment != nil {
			q, args = b.Insert(majsoulOrdersTable).
				Columns("order_id", "paipu_uuid", "kyoku", "honba", "model_type").
				Values(o.ID, in.Segment.PaipuUUID, in.Segment.Kyoku, in.Segment.Honba, in.ModelType).
				Query()
			if _, err := exec(ctx, tx, q, args); err != nil {
				return err
			}
			seg := *in.Segment
			o.Segment = &seg
		}
		created = o
		return nil
	})
	if err != nil {
		r.log.Error("order create failed", "haihu_id", in.HaihuID, "model_type", in.ModelType, "err", err)
		return nil, err
	}
	r.log.Info("order created", "order_id", created.ID, "haihu_id", created.HaihuID, "source", created.Source, "customer_id", created.CustomerID, "cost_np", created.CostNP)
	return created, nil
}

func (r *orderRepo) MarkDone(ctx context.Context, haihuID, modelType string, report json.RawMessage) error {
	var n int64
	err := r.db.withTx(ctx, func(tx dialect.Tx) error {
		q, args := entsql.Dialect(r.db.Dialect()).Update(ordersTable).
			Set("status", string(constants.OrderStatusDone)).
			Set("report", string(report)).
			Set("updated_at", toMillis(r.now())).
			Where(entsql.And(
				entsql.EQ("haihu_id", haihuID),
				entsql.EQ("model_type", modelType),
				entsql.EQ("status", string(constants.OrderStatusPending)),
			)).
			Query()
		var err error
		n, err = exec(ctx, tx, q, args)
		return err
	})
	if err != nil {
		r.log.Error("order mark done failed", "haihu_id", haihuID, "err", err)
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s/%s", ErrOrderNotPending, haihuID, modelType)
	}
	r.log.Info("order done", "haihu_id", haihuID, "model_type", modelType)
	return nil
}

func (r *orderRepo) ListCompletedInRange(ctx context.Context, begin, end time.Time) ([]entity.Order, error) {
	b := entsql.Dialect(r.db.Dialect())
	s, t1, _ := r.selectOrders(b)
	q, args := s.Where(entsql.And(
		entsql.EQ(t1.C("status"), string(constants.OrderStatusDone)),
		entsql.GTE(t1.C("created_at"), toMillis(begin)),
		entsql.LT(t1.C("created_at"), toMillis(end)),
	)).OrderBy(t1.C("created_at"), t1.C("id")).Query()

	out := make([]entity.Order, 0)
	if err := query(ctx, r.db.drv, q, args, scanOrders(&out)); err != nil {
		r.log.Error("list completed orders failed", "err", err)
		return nil, err
	}
	return out, nil
}

func (r *orderRepo) UsageByCustomer(ctx context.Context, begin, end time.Time) ([]entity.UsageStat, error) {
	b := entsql.Dialect(r.db.Dialect())
	t := b.Table(ordersTable)
	q, args := b.Select(t.C("customer_id"), entsql.Sum(t.C("cost_np"))).
		From(t).
		Where(entsql.And(
			entsql.EQ(t.C("status"), string(constants.OrderStatusDone)),
			entsql.GTE(t.C("created_at"), toMillis(begin)),
			entsql.LT(t.C("created_at"), toMillis(end)),
		)).
		GroupBy(t.C("customer_id")).
		Query()

	out := make([]entity.UsageStat, 0)
	err := query(ctx, r.db.drv, q, args, func(rows *entsql.Rows) error {
		var s entity.UsageStat
		if err := rows.Scan(&s.CustomerID, &s.CostNP); err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	if err != nil {
		r.log.Error("usage aggregation failed", "err", err)
		return nil, err
	}
	slices.SortStableFunc(out, func(x, y entity.UsageStat) int {
		if x.CostNP != y.CostNP {
			if x.CostNP > y.CostNP {
				return -1
			}
			return 1
		}
		return strings.Compare(x.CustomerID, y.CustomerID)
	})
	return out, nil
}
