package models

import "time"

const (
	EventTableReserved       = "table.reserved"
	EventTableReleased       = "table.released"
	EventTableUpdated        = "table.updated"
	EventOrderCreated        = "order.created"
	EventOrderStatusChanged  = "order.status_changed"
	EventOrderCancelled      = "order.cancelled"
	EventPaymentProcessed    = "payment.processed"
	EventPaymentRefunded     = "payment.refunded"
	EventMenuItemPriceChange = "menu.price_changed"
)

// DomainEvent is the envelope written to the event stream after a mutation commits.
type DomainEvent struct {
	EventID    string      `json:"event_id"`
	Type       string      `json:"type"`
	Key        string      `json:"key"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}
