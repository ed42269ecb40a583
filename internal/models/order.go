package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "Pending"
	OrderStatusCompleted OrderStatus = "Completed"
	OrderStatusCancelled OrderStatus = "Cancelled"
)

// orderTransitions lists the legal next states. Completed and Cancelled are terminal.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusCompleted, OrderStatusCancelled},
	OrderStatusCompleted: nil,
	OrderStatusCancelled: nil,
}

// ParseOrderStatus accepts the three known statuses, case-insensitively.
func ParseOrderStatus(s string) (OrderStatus, error) {
	for status := range orderTransitions {
		if strings.EqualFold(strings.TrimSpace(s), string(status)) {
			return status, nil
		}
	}
	return "", fmt.Errorf("unknown order status %q", s)
}

func (s OrderStatus) IsTerminal() bool {
	return len(orderTransitions[s]) == 0
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Order struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	OrderID     int64       `bun:"order_id,pk,autoincrement" json:"orderId"`
	TableID     int64       `bun:"table_id,notnull" json:"tableId"`
	TableNumber int         `bun:"table_number,notnull" json:"tableNumber"`
	OrderTime   time.Time   `bun:"order_time,notnull" json:"orderTime"`
	TotalPrice  float64     `bun:"total_price,notnull" json:"totalPrice"`
	QuotedPrice *float64    `bun:"quoted_price" json:"quotedPrice,omitempty"`
	OrderStatus OrderStatus `bun:"order_status,notnull" json:"orderStatus"`
	ItemName    string      `bun:"item_name" json:"itemName,omitempty"`
	Quantity    int         `bun:"quantity" json:"quantity,omitempty"`
}

// AmountDue is the quoted override when one was set, otherwise the total derived from items.
func (o Order) AmountDue() float64 {
	if o.QuotedPrice != nil {
		return *o.QuotedPrice
	}
	return o.TotalPrice
}

type CreateOrderRequest struct {
	TableNumber int    `json:"tableNumber"`
	ItemName    string `json:"itemName,omitempty"`
	Quantity    int    `json:"quantity,omitempty"`
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status"`
}

type UpdateTotalPriceRequest struct {
	TotalPrice float64 `json:"totalPrice"`
}
