package entity

import (
	"encoding/json"
	"time"

	"github.com/joseph-ayodele/nagabus/constants"
)

// Order is one paid analysis request for data transfer between layers.
type Order struct {
	ID         int64                 `json:"id"`
	HaihuID    string                `json:"haihu_id"`
	ModelType  string                `json:"model_type"`
	Source     constants.OrderSource `json:"source"`
	CustomerID string                `json:"customer_id"`
	CostNP     int64                 `json:"cost_np"`
	Status     constants.OrderStatus `json:"status"`
	Report     json.RawMessage       `json:"report,omitempty"`
	CreatedAt  time.Time             `json:"created_at"`
	UpdatedAt  time.Time             `json:"updated_at"`
	Segment    *MajsoulSegment       `json:"segment,omitempty"`
}

// Pending reports whether the order still awaits its report.
func (o *Order) Pending() bool {
	return o.Status == constants.OrderStatusPending
}

// MajsoulSegment identifies the round of a Majsoul game record that an order covers.
type MajsoulSegment struct {
	PaipuUUID string `json:"paipu_uuid"`
	Kyoku     int    `json:"kyoku"`
	Honba     int    `json:"honba"`
}

// UsageStat is the cost a customer accrued over a period.
type UsageStat struct {
	CustomerID string `json:"customer_id"`
	CostNP     int64  `json:"cost_np"`
}
