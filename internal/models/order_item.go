package models

import "github.com/uptrace/bun"

// OrderItem is a line of an order. ItemPrice is the menu price copied at insertion and
// never re-derived, so later menu price changes leave historical orders untouched.
type OrderItem struct {
	bun.BaseModel `bun:"table:order_items,alias:oi"`

	OrderItemID int64   `bun:"order_item_id,pk,autoincrement" json:"orderItemId"`
	OrderID     int64   `bun:"order_id,notnull" json:"orderId"`
	MenuItemID  int64   `bun:"menu_item_id,notnull" json:"menuItemId"`
	Quantity    int     `bun:"quantity,notnull" json:"quantity"`
	ItemPrice   float64 `bun:"item_price,notnull" json:"itemPrice"`
}

func (i OrderItem) LineTotal() float64 {
	return float64(i.Quantity) * i.ItemPrice
}

type AddOrderItemRequest struct {
	OrderID    int64 `json:"orderId"`
	MenuItemID int64 `json:"menuItemId"`
	Quantity   int   `json:"quantity"`
}

type UpdateOrderItemRequest struct {
	MenuItemID int64 `json:"menuItemId"`
	Quantity   int   `json:"quantity"`
}
