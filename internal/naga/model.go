package naga

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// GameRule is the game length NAGA analyses for.
type GameRule int

const (
	Hanchan GameRule = 0
	Tonpuu  GameRule = 1
)

func (r GameRule) String() string {
	if r == Tonpuu {
		return "tonpuu"
	}
	return "hanchan"
}

// ModelType is the NAGA player model. Its meaning depends on the GameRule.
type ModelType int

// Hanchan models.
const (
	Omega    ModelType = 0
	Gamma    ModelType = 1
	Nishiki  ModelType = 2
	Hibakari ModelType = 3
	Kagashi  ModelType = 4
)

// Tonpuu models.
const (
	Nu    ModelType = 0
	Sigma ModelType = 1
)

var (
	hanchanModels = []string{"omega", "gamma", "nishiki", "hibakari", "kagashi"}
	tonpuuModels  = []string{"nu", "sigma"}
)

// DefaultModel is the model used when the caller does not ask for one.
func DefaultModel(rule GameRule) ModelType {
	if rule == Tonpuu {
		return Sigma
	}
	return Nishiki
}

// ModelName returns the display name of m under rule.
func ModelName(rule GameRule, m ModelType) string {
	names := hanchanModels
	if rule == Tonpuu {
		names = tonpuuModels
	}
	if int(m) >= 0 && int(m) < len(names) {
		return names[m]
	}
	return strconv.Itoa(int(m))
}

// ParseModel accepts a model name or its numeric value.
func ParseModel(rule GameRule, s string) (ModelType, error) {
	names := hanchanModels
	if rule == Tonpuu {
		names = tonpuuModels
	}
	for i, n := range names {
		if n == s {
			return ModelType(i), nil
		}
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 && n < len(names) {
		return ModelType(n), nil
	}
	return 0, fmt.Errorf("unknown %s model %q", rule, s)
}

// Valid reports whether m exists for rule.
func (m ModelType) Valid(rule GameRule) bool {
	if rule == Tonpuu {
		return m >= 0 && int(m) < len(tonpuuModels)
	}
	return m >= 0 && int(m) < len(hanchanModels)
}

// OrderStatus is the analysis state NAGA reports for an order.
type OrderStatus int

const (
	OrderOK        OrderStatus = 0
	OrderAnalyzing OrderStatus = 1
)

type Model struct {
	Major int       `json:"major"`
	Minor int       `json:"minor"`
	Type  ModelType `json:"type"`
}

type ReportPlayer struct {
	Nickname string `json:"nickname"`
	Pt       int    `json:"pt"`
}

type Report struct {
	HaihuID  string         `json:"haihu_id"`
	Players  []ReportPlayer `json:"players"`
	ReportID string         `json:"report_id"`
	Seat     int            `json:"seat"`
	Model    Model          `json:"model"`
	Rule     GameRule       `json:"rule"`
}

type Order struct {
	HaihuID string      `json:"haihu_id"`
	Status  OrderStatus `json:"status"`
	Model   Model       `json:"model"`
	Rule    GameRule    `json:"rule"`
}

// OrderReportList is one page of the account's orders and finished reports, newest first.
type OrderReportList struct {
	Reports []Report `json:"report"`
	Orders  []Order  `json:"order"`
}

// FindReport returns the report of haihuID made by model. A tenhou game may be
// listed with one report per model.
func (l OrderReportList) FindReport(haihuID string, model ModelType) (Report, bool) {
	for _, r := range l.Reports {
		if r.HaihuID == haihuID && r.Model.Type == model {
			return r, true
		}
	}
	return Report{}, false
}

// HasOrder reports whether an order of haihuID by model appears among the orders.
func (l OrderReportList) HasOrder(haihuID string, model ModelType) bool {
	for _, o := range l.Orders {
		if o.HaihuID == haihuID && o.Model.Type == model {
			return true
		}
	}
	return false
}

// Merge appends the entries of other after those of l.
func (l OrderReportList) Merge(other OrderReportList) OrderReportList {
	return OrderReportList{
		Reports: append(append(make([]Report, 0, len(l.Reports)+len(other.Reports)), l.Reports...), other.Reports...),
		Orders:  append(append(make([]Order, 0, len(l.Orders)+len(other.Orders)), l.Orders...), other.Orders...),
	}
}

// The list endpoint encodes entries as positional arrays; objects are accepted as well.

func (m *Model) UnmarshalJSON(b []byte) error {
	type plain Model
	if !isArray(b) {
		return json.Unmarshal(b, (*plain)(m))
	}
	return decodeTuple(b, &m.Major, &m.Minor, &m.Type)
}

func (p *ReportPlayer) UnmarshalJSON(b []byte) error {
	type plain ReportPlayer
	if !isArray(b) {
		return json.Unmarshal(b, (*plain)(p))
	}
	return decodeTuple(b, &p.Nickname, &p.Pt)
}

func (r *Report) UnmarshalJSON(b []byte) error {
	type plain Report
	if !isArray(b) {
		return json.Unmarshal(b, (*plain)(r))
	}
	return decodeTuple(b, &r.HaihuID, &r.Players, &r.ReportID, &r.Seat, &r.Model, &r.Rule)
}

func (o *Order) UnmarshalJSON(b []byte) error {
	type plain Order
	if !isArray(b) {
		return json.Unmarshal(b, (*plain)(o))
	}
	return decodeTuple(b, &o.HaihuID, &o.Status, &o.Model, &o.Rule)
}

func isArray(b []byte) bool {
	b = bytes.TrimSpace(b)
	return len(b) > 0 && b[0] == '['
}

func decodeTuple(b []byte, fields ...any) error {
	var items []json.RawMessage
	if err := json.Unmarshal(b, &items); err != nil {
		return err
	}
	if len(items) < len(fields) {
		return fmt.Errorf("naga: expected %d fields, got %d", len(fields), len(items))
	}
	for i, f := range fields {
		if err := json.Unmarshal(items[i], f); err != nil {
			return fmt.Errorf("naga: field %d: %w", i, err)
		}
	}
	return nil
}
