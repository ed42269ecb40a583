package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Payment struct {
	bun.BaseModel `bun:"table:payments,alias:p"`

	PaymentID     int64      `bun:"payment_id,pk,autoincrement" json:"paymentId"`
	PaymentTime   time.Time  `bun:"payment_time,notnull" json:"paymentTime"`
	PaymentMethod string     `bun:"payment_method,notnull" json:"paymentMethod"`
	AmountPaid    float64    `bun:"amount_paid,notnull" json:"amountPaid"`
	IsRefunded    bool       `bun:"is_refunded,notnull" json:"isRefunded"`
	RefundedAt    *time.Time `bun:"refunded_at" json:"refundedAt,omitempty"`

	OrderIDs []int64 `bun:"-" json:"orderIds,omitempty"`
}

// PaymentOrder links a payment to one of the orders it settles.
type PaymentOrder struct {
	bun.BaseModel `bun:"table:payment_orders,alias:po"`

	PaymentOrderID int64 `bun:"payment_order_id,pk,autoincrement" json:"paymentOrderId"`
	PaymentID      int64 `bun:"payment_id,notnull,unique:payment_order" json:"paymentId"`
	OrderID        int64 `bun:"order_id,notnull,unique:payment_order" json:"orderId"`
}

type ProcessPaymentRequest struct {
	OrderIDs      []int64   `json:"orderIds"`
	PaymentTime   time.Time `json:"paymentTime"`
	PaymentMethod string    `json:"paymentMethod"`
	AmountPaid    float64   `json:"amountPaid"`
}
