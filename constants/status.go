package constants

import "time"

// OrderStatus is the canonical status for rows in naga_orders.
type OrderStatus string

// Stable values (store these exact strings in DB).
const (
	OrderStatusPending OrderStatus = "PENDING" // submitted, report not observed yet
	OrderStatusDone    OrderStatus = "DONE"    // report stored
)

// OrderSource tells which submission flow produced an order.
type OrderSource string

const (
	SourceTenhou  OrderSource = "TENHOU"
	SourceMajsoul OrderSource = "MAJSOUL"
)

// Declared prices in NP.
const (
	MajsoulCostNP = 10
	TenhouCostNP  = 50
)

// A pending order older than this is presumed lost upstream and may be ordered again.
const (
	MajsoulStaleAfter = 90 * time.Second
	TenhouStaleAfter  = 300 * time.Second
)

// StaleAfter returns the staleness threshold for orders of the given source.
func StaleAfter(src OrderSource) time.Duration {
	if src == SourceTenhou {
		return TenhouStaleAfter
	}
	return MajsoulStaleAfter
}
