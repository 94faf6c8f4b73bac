package orders

import (
	"context"
	"encoding/json"

	"github.com/joseph-ayodele/nagabus/constants"
	"github.com/joseph-ayodele/nagabus/internal/common"
	"github.com/joseph-ayodele/nagabus/internal/entity"
	"github.com/joseph-ayodele/nagabus/internal/naga"
	"github.com/joseph-ayodele/nagabus/internal/paipu"
	"github.com/joseph-ayodele/nagabus/internal/repository"
)

// MajsoulRequest asks for the analysis of one round of a Majsoul replay.
type MajsoulRequest struct {
	// Ref is a replay link or id.
	Ref        string
	Round      paipu.Selector
	CustomerID string
	// Model defaults to nishiki for hanchan and sigma for tonpuu games.
	Model *naga.ModelType
}

// TenhouRequest asks for the analysis of a whole tenhou.net game.
type TenhouRequest struct {
	// Ref is a tenhou.net log link or a bare log id.
	Ref string
	// Seat overrides the seat given by the link.
	Seat       *int
	CustomerID string
	Model      *naga.ModelType
}

func customer(ctx context.Context, id string) string {
	if id != "" {
		return id
	}
	return common.CustomerIDFromContext(ctx)
}

// AnalyzeMajsoul analyses one round of a Majsoul replay as a custom game.
func (s *Service) AnalyzeMajsoul(ctx context.Context, req MajsoulRequest) (Result, error) {
	customerID := customer(ctx, req.CustomerID)
	v := common.NewValidator()
	v.Field("customer_id", customerID, common.Required)
	v.Field("ref", req.Ref, common.Required)
	if err := v.Error(); err != nil {
		return Result{}, err
	}
	paipuUUID, err := paipu.ParseMajsoulRef(req.Ref)
	if err != nil {
		return Result{}, err
	}
	doc, err := s.paipu.Get(ctx, paipuUUID)
	if err != nil {
		return Result{}, err
	}
	if n := len(doc.Players()); n != 4 {
		return Result{}, common.UnsupportedInputf("only four-player games can be analysed, replay has %d players", n)
	}

	rule := doc.GameRule()
	model := naga.DefaultModel(rule)
	if req.Model != nil {
		model = *req.Model
	}
	if !model.Valid(rule) {
		return Result{}, common.InvalidInputf("model %d does not exist for %s games", model, rule)
	}

	idx, round, err := doc.Select(req.Round)
	if err != nil {
		return Result{}, err
	}
	seg, err := doc.Segment(idx)
	if err != nil {
		return Result{}, common.WrapError(err, "cut round")
	}
	data, err := json.Marshal([]*paipu.Document{seg})
	if err != nil {
		return Result{}, common.WrapError(err, "encode round")
	}

	modelName := naga.ModelName(rule, model)
	segment := &entity.MajsoulSegment{PaipuUUID: paipuUUID, Kyoku: round.Kyoku, Honba: *round.Honba}
	return s.submitOrAwait(ctx, submission{
		class:      Class{Source: constants.SourceMajsoul, ModelType: modelName},
		key:        repository.OrderKey{ModelType: modelName, Segment: segment},
		customerID: customerID,
		costNP:     constants.MajsoulCostNP,
		staleAfter: constants.StaleAfter(constants.SourceMajsoul),
		segment:    segment,
		model:      model,
		place: func(ctx context.Context) (string, error) {
			submittedAt := s.now()
			err := s.client.AnalyzeCustom(ctx, naga.CustomRequest{Data: data, Seat: 0, Rule: rule, ModelType: model})
			if err != nil {
				return "", err
			}
			return s.awaitAck(ctx, "custom order for "+paipuUUID+" "+round.String(), s.customMatcher(submittedAt, rule, model))
		},
	})
}

// AnalyzeTenhou analyses a tenhou.net game by its log id.
func (s *Service) AnalyzeTenhou(ctx context.Context, req TenhouRequest) (Result, error) {
	customerID := customer(ctx, req.CustomerID)
	v := common.NewValidator()
	v.Field("customer_id", customerID, common.Required)
	v.Field("ref", req.Ref, common.Required)
	if req.Seat != nil {
		v.Field("seat", *req.Seat, common.InRange(0, 3))
	}
	if err := v.Error(); err != nil {
		return Result{}, err
	}
	haihuID, seat, err := naga.ParseTenhouRef(req.Ref)
	if err != nil {
		return Result{}, err
	}
	if req.Seat != nil {
		seat = *req.Seat
	}
	model := naga.DefaultModel(naga.Hanchan)
	if req.Model != nil {
		model = *req.Model
	}
	if !model.Valid(naga.Hanchan) {
		return Result{}, common.InvalidInputf("model %d does not exist for tenhou games", model)
	}

	modelName := naga.ModelName(naga.Hanchan, model)
	return s.submitOrAwait(ctx, submission{
		class:      Class{Source: constants.SourceTenhou, ModelType: modelName},
		key:        repository.OrderKey{HaihuID: haihuID, ModelType: modelName},
		customerID: customerID,
		costNP:     constants.TenhouCostNP,
		staleAfter: constants.StaleAfter(constants.SourceTenhou),
		model:      model,
		seat:       &seat,
		place: func(ctx context.Context) (string, error) {
			res, err := s.client.AnalyzeTenhou(ctx, naga.TenhouRequest{HaihuID: haihuID, Seat: seat, ModelType: model})
			if err != nil {
				return "", err
			}
			if !res.Accepted() {
				return "", common.UpstreamRejected(res.Msg)
			}
			return s.awaitAck(ctx, "tenhou order "+haihuID, func(l naga.OrderReportList) (string, bool) {
				return haihuID, l.HasOrder(haihuID, model)
			})
		},
	})
}
