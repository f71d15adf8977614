// Package events defines the real-time event catalogue and the broadcaster
// contract. Events are fire-and-forget: a broadcast failure never fails the
// business operation that produced it.
package events

import (
	"context"
	"time"
)

// Event names, matching what devices subscribe to.
const (
	OrderUpdate          = "order:update"
	StockChange          = "stock:change"
	SaleComplete         = "sale:complete"
	TableStatusChange    = "table:status_change"
	MovementCreate       = "movement:create"
	ShiftChange          = "shift:change"
	SalesHandover        = "sales:handover"
	SalesTransfer        = "sales:transfer"
	SalesLinked          = "sales:linked"
	KitchenUpdate        = "kitchen:update"
	CreditPayment        = "credit:payment"
	CreditCustomerUpdate = "credit:customer_update"
	SyncRequired         = "sync:required"
)

// Event is the wire envelope. Payloads are flat maps; the server stamps the
// emit time so devices can order events regardless of delivery lag.
type Event struct {
	Name      string                 `json:"event"`
	Payload   map[string]interface{} `json:"payload"`
	Timestamp time.Time              `json:"timestamp"`
}

// Broadcaster fans events out to connected devices.
type Broadcaster interface {
	Emit(ctx context.Context, name string, payload map[string]interface{})
}
