package models

import (
	"math"

	"github.com/uptrace/bun"
)

type MenuItem struct {
	bun.BaseModel `bun:"table:menu_items,alias:mi"`

	MenuItemID  int64   `bun:"menu_item_id,pk,autoincrement" json:"menuItemId"`
	Name        string  `bun:"name,notnull" json:"name"`
	Description string  `bun:"description" json:"description"`
	Price       float64 `bun:"price,notnull" json:"price"`
	Category    string  `bun:"category" json:"category"`
	IsAvailable bool    `bun:"is_available,notnull" json:"isAvailable"`
	ImageURL    string  `bun:"image_url" json:"imageUrl"`
}

type AddMenuItemRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Category    string  `json:"category"`
	ImageURL    string  `json:"imageUrl"`
}

// RoundMoney rounds to whole cents so sums of float prices compare reliably.
func RoundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}
