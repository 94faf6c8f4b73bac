package naga

import (
	"context"
	"encoding/json"
)

// CustomRequest uploads a game record in tenhou.net/6 JSON form.
type CustomRequest struct {
	Data      json.RawMessage
	Seat      int
	Rule      GameRule
	ModelType ModelType
}

// TenhouRequest asks NAGA to analyse a tenhou.net log by id.
type TenhouRequest struct {
	HaihuID   string
	Seat      int
	ModelType ModelType
}

// AnalyzeResult is the business-level answer of the url analyse endpoint.
type AnalyzeResult struct {
	Status int    `json:"status"`
	Msg    string `json:"msg"`
}

// Accepted reports whether NAGA took the order.
func (r AnalyzeResult) Accepted() bool { return r.Status == 200 }

// Client is the capability the coordinator needs from NAGA.
//
// Implementations return errors wrapping common.ErrInvalidCredentials when the session
// cookies are rejected and common.ErrTransientNetwork for transport failures.
type Client interface {
	OrderReportList(ctx context.Context, year, month int) (OrderReportList, error)
	// AnalyzeCustom submits an uploaded game. NAGA does not answer with the new order's id.
	AnalyzeCustom(ctx context.Context, req CustomRequest) error
	AnalyzeTenhou(ctx context.Context, req TenhouRequest) (AnalyzeResult, error)
	SetCookies(cookies map[string]string)
	Close() error
}
