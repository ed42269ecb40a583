package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	TableStatusAvailable = "Available"
	TableStatusOccupied  = "Occupied"
)

type Table struct {
	bun.BaseModel `bun:"table:tables,alias:t"`

	TableID     int64     `bun:"table_id,pk,autoincrement" json:"tableId"`
	TableNumber int       `bun:"table_number,notnull,unique" json:"tableNumber"`
	Capacity    int       `bun:"capacity,notnull" json:"capacity"`
	IsAvailable bool      `bun:"is_available,notnull" json:"isAvailable"`
	QrCode      string    `bun:"qr_code,notnull" json:"qrCode"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"createdAt"`
}

// Status projects IsAvailable onto the two table states.
func (t Table) Status() string {
	if t.IsAvailable {
		return TableStatusAvailable
	}
	return TableStatusOccupied
}

type AddTableRequest struct {
	TableNumber int `json:"tableNumber"`
	Capacity    int `json:"capacity"`
}

type UpdateTableRequest struct {
	Capacity    int  `json:"capacity"`
	IsAvailable bool `json:"isAvailable"`
}
