package server

import (
	"context"
	"log/slog"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/nagabus/internal/common"
	"github.com/joseph-ayodele/nagabus/internal/export"
	"github.com/joseph-ayodele/nagabus/internal/naga"
	"github.com/joseph-ayodele/nagabus/internal/orders"
	"github.com/joseph-ayodele/nagabus/internal/paipu"
)

type AnalysisServer struct {
	orders *orders.Service
	export *export.Service
	logger *slog.Logger
}

var _ AnalysisServiceServer = (*AnalysisServer)(nil)

func NewAnalysisServer(svc *orders.Service, exp *export.Service, logger *slog.Logger) *AnalysisServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalysisServer{orders: svc, export: exp, logger: logger}
}

func resultStruct(r orders.Result) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"haihu_id":  r.HaihuID,
		"report_id": r.Report.ReportID,
		"seat":      r.Report.Seat,
		"url":       r.URL(),
		"cost_np":   r.CostNP,
	})
}

// parseModel accepts a model name of either rule or a number; the rule check happens
// once the game is known.
func parseModel(in *structpb.Struct) (*naga.ModelType, error) {
	raw := stringField(in, "model")
	if raw == "" {
		n, err := intField(in, "model")
		if err != nil || n == nil {
			return nil, err
		}
		m := naga.ModelType(*n)
		return &m, nil
	}
	for _, rule := range []naga.GameRule{naga.Hanchan, naga.Tonpuu} {
		if m, err := naga.ParseModel(rule, raw); err == nil {
			return &m, nil
		}
	}
	return nil, common.InvalidInputf("unknown model %q", raw)
}

// AnalyzeMajsoul takes {ref, round, customer_id?, model?} and answers
// {haihu_id, report_id, seat, url, cost_np}.
func (s *AnalysisServer) AnalyzeMajsoul(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	round, err := paipu.ParseSelector(stringField(in, "round"))
	if err != nil {
		return nil, err
	}
	model, err := parseModel(in)
	if err != nil {
		return nil, err
	}
	res, err := s.orders.AnalyzeMajsoul(ctx, orders.MajsoulRequest{
		Ref:        stringField(in, "ref"),
		Round:      round,
		CustomerID: stringField(in, "customer_id"),
		Model:      model,
	})
	if err != nil {
		return nil, err
	}
	return resultStruct(res)
}

// AnalyzeTenhou takes {ref, seat?, customer_id?, model?} and answers like AnalyzeMajsoul.
func (s *AnalysisServer) AnalyzeTenhou(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	seat, err := intField(in, "seat")
	if err != nil {
		return nil, err
	}
	var model *naga.ModelType
	if raw := stringField(in, "model"); raw != "" {
		m, err := naga.ParseModel(naga.Hanchan, raw)
		if err != nil {
			return nil, common.InvalidInputf("%v", err)
		}
		model = &m
	} else if model, err = parseModel(in); err != nil {
		return nil, err
	}
	res, err := s.orders.AnalyzeTenhou(ctx, orders.TenhouRequest{
		Ref:        stringField(in, "ref"),
		Seat:       seat,
		CustomerID: stringField(in, "customer_id"),
		Model:      model,
	})
	if err != nil {
		return nil, err
	}
	return resultStruct(res)
}

// MonthlyUsage takes {year, month} and answers {usage: [{customer_id, cost_np}], total_np}.
func (s *AnalysisServer) MonthlyUsage(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	year, month, err := yearMonth(in)
	if err != nil {
		return nil, err
	}
	stats, err := s.orders.MonthlyUsage(ctx, year, month)
	if err != nil {
		return nil, err
	}
	rows := make([]any, 0, len(stats))
	var total int64
	for _, st := range stats {
		rows = append(rows, map[string]any{"customer_id": st.CustomerID, "cost_np": st.CostNP})
		total += st.CostNP
	}
	return structpb.NewStruct(map[string]any{"usage": rows, "total_np": total})
}

// RemainingBudget answers {remaining_np}.
func (s *AnalysisServer) RemainingBudget(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	left, err := s.orders.RemainingBudget(ctx)
	if err != nil {
		return nil, err
	}
	return structpb.NewStruct(map[string]any{"remaining_np": left})
}

// SetCredentials takes {cookies: {name: value}} or {cookie_header: "a=b; c=d"}.
func (s *AnalysisServer) SetCredentials(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	cookies := stringMap(in, "cookies")
	if header := stringField(in, "cookie_header"); header != "" {
		cookies = common.ParseCookies(header)
	}
	if err := s.orders.SetCredentials(ctx, cookies); err != nil {
		return nil, err
	}
	return &structpb.Struct{}, nil
}

// ExportUsage takes {year, month} and answers {xlsx} holding the base64 workbook.
func (s *AnalysisServer) ExportUsage(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	year, month, err := yearMonth(in)
	if err != nil {
		return nil, err
	}
	xlsx, err := s.export.UsageXLSX(ctx, year, month)
	if err != nil {
		return nil, err
	}
	return structpb.NewStruct(map[string]any{"xlsx": xlsx})
}

func yearMonth(in *structpb.Struct) (int, int, error) {
	year, err := requiredInt(in, "year")
	if err != nil {
		return 0, 0, err
	}
	month, err := requiredInt(in, "month")
	if err != nil {
		return 0, 0, err
	}
	return year, month, nil
}
