package db

import (
	"context"

	"restaurant-pos/internal/apperr"
	"restaurant-pos/internal/database"
	"restaurant-pos/internal/models"

	"github.com/uptrace/bun"
)

// DB reads and writes tables. Inside InTx, Bun is the transaction.
type DB struct {
	Bun  bun.IDB
	root *bun.DB
}

func New(bunDB *bun.DB) *DB {
	return &DB{Bun: bunDB, root: bunDB}
}

// InTx runs fn against a transaction-scoped DB. Nested calls join the outer transaction.
func (d *DB) InTx(ctx context.Context, fn func(ctx context.Context, tx *DB) error) error {
	if _, ok := d.Bun.(bun.Tx); ok {
		return fn(ctx, d)
	}
	return database.RunInTx(ctx, d.root, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &DB{Bun: tx, root: d.root})
	})
}

// ---------------- TABLES ----------------

// CreateTable inserts t. A taken table number is a Conflict.
func (d *DB) CreateTable(ctx context.Context, t *models.Table) error {
	_, err := d.Bun.NewInsert().Model(t).Exec(ctx)
	if database.IsUniqueViolation(err) {
		return apperr.Conflict("table number %d already exists", t.TableNumber)
	}
	if err != nil {
		return apperr.Internal("insert table", err)
	}
	return nil
}

func (d *DB) GetTableByNumber(ctx context.Context, tableNumber int) (*models.Table, error) {
	var t models.Table
	err := d.Bun.NewSelect().
		Model(&t).
		Where("table_number = ?", tableNumber).
		Limit(1).
		Scan(ctx)
	if database.IsNoRows(err) {
		return nil, apperr.NotFound("table %d not found", tableNumber)
	}
	if err != nil {
		return nil, apperr.Internal("select table", err)
	}
	return &t, nil
}

func (d *DB) GetTableByID(ctx context.Context, id int64) (*models.Table, error) {
	var t models.Table
	err := d.Bun.NewSelect().
		Model(&t).
		Where("table_id = ?", id).
		Limit(1).
		Scan(ctx)
	if database.IsNoRows(err) {
		return nil, apperr.NotFound("table with id %d not found", id)
	}
	if err != nil {
		return nil, apperr.Internal("select table", err)
	}
	return &t, nil
}

func (d *DB) GetAllTables(ctx context.Context) ([]models.Table, error) {
	tables := []models.Table{}
	err := d.Bun.NewSelect().
		Model(&tables).
		Order("table_number ASC").
		Scan(ctx)
	if err != nil {
		return nil, apperr.Internal("select tables", err)
	}
	return tables, nil
}

func (d *DB) CountTables(ctx context.Context) (int, error) {
	n, err := d.Bun.NewSelect().Model((*models.Table)(nil)).Count(ctx)
	if err != nil {
		return 0, apperr.Internal("count tables", err)
	}
	return n, nil
}

// SetAvailability flips is_available from `from` to `to` only if the row is still in
// `from`. It reports whether a row changed.
func (d *DB) SetAvailability(ctx context.Context, tableNumber int, from, to bool) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Table)(nil)).
		Set("is_available = ?", to).
		Where("table_number = ?", tableNumber).
		Where("is_available = ?", from).
		Exec(ctx)
	if err != nil {
		return false, apperr.Internal("update table availability", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperr.Internal("update table availability", err)
	}
	return n == 1, nil
}

// UpdateTable overwrites capacity and availability.
func (d *DB) UpdateTable(ctx context.Context, tableNumber, capacity int, isAvailable bool) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.Table)(nil)).
		Set("capacity = ?", capacity).
		Set("is_available = ?", isAvailable).
		Where("table_number = ?", tableNumber).
		Exec(ctx)
	if err != nil {
		return apperr.Internal("update table", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("table %d not found", tableNumber)
	}
	return nil
}

func (d *DB) DeleteTable(ctx context.Context, tableNumber int) error {
	res, err := d.Bun.NewDelete().
		Model((*models.Table)(nil)).
		Where("table_number = ?", tableNumber).
		Exec(ctx)
	if err != nil {
		return apperr.Internal("delete table", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("table %d not found", tableNumber)
	}
	return nil
}

// ---------------- ORDERS BY TABLE ----------------

func (d *DB) GetOrdersByTableNumber(ctx context.Context, tableNumber int) ([]models.Order, error) {
	orders := []models.Order{}
	err := d.Bun.NewSelect().
		Model(&orders).
		Where("table_number = ?", tableNumber).
		Order("order_time DESC", "order_id DESC").
		Scan(ctx)
	if err != nil {
		return nil, apperr.Internal("select orders by table", err)
	}
	return orders, nil
}

// GetCurrentOrder returns the newest Pending order of the table.
func (d *DB) GetCurrentOrder(ctx context.Context, tableNumber int) (*models.Order, error) {
	var o models.Order
	err := d.Bun.NewSelect().
		Model(&o).
		Where("table_number = ?", tableNumber).
		Where("order_status = ?", models.OrderStatusPending).
		Order("order_time DESC", "order_id DESC").
		Limit(1).
		Scan(ctx)
	if database.IsNoRows(err) {
		return nil, apperr.NotFound("table %d has no pending order", tableNumber)
	}
	if err != nil {
		return nil, apperr.Internal("select current order", err)
	}
	return &o, nil
}
