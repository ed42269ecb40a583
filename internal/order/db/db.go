package db

import (
	"context"

	"restaurant-pos/internal/apperr"
	"restaurant-pos/internal/database"
	"restaurant-pos/internal/models"

	"github.com/uptrace/bun"
)

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

// ---------------- ORDERS ----------------

// CreateOrder → insert new order
func (d *DB) CreateOrder(ctx context.Context, order *models.Order) error {
	if _, err := d.Bun.NewInsert().Model(order).Exec(ctx); err != nil {
		return apperr.Internal("insert order", err)
	}
	return nil
}

// GetOrderByID → fetch one order by its ID
func (d *DB) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("order_id = ?", id).
		Limit(1).
		Scan(ctx)
	if database.IsNoRows(err) {
		return nil, apperr.NotFound("order %d not found", id)
	}
	if err != nil {
		return nil, apperr.Internal("select order", err)
	}
	return &order, nil
}

func (d *DB) listOrders(ctx context.Context, where string, order []string, args ...interface{}) ([]models.Order, error) {
	orders := []models.Order{}
	q := d.Bun.NewSelect().Model(&orders).Order(order...)
	if where != "" {
		q = q.Where(where, args...)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, apperr.Internal("select orders", err)
	}
	return orders, nil
}

func (d *DB) GetAllOrders(ctx context.Context) ([]models.Order, error) {
	return d.listOrders(ctx, "", []string{"order_id ASC"})
}

func (d *DB) GetOrdersByTableNumber(ctx context.Context, tableNumber int) ([]models.Order, error) {
	return d.listOrders(ctx, "table_number = ?", []string{"order_time DESC", "order_id DESC"}, tableNumber)
}

func (d *DB) GetPendingOrders(ctx context.Context) ([]models.Order, error) {
	return d.listOrders(ctx, "order_status = ?", []string{"order_time ASC", "order_id ASC"}, models.OrderStatusPending)
}

// GetMostRecentOrderForTable returns nil, nil when the table has no orders.
func (d *DB) GetMostRecentOrderForTable(ctx context.Context, tableNumber int) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("table_number = ?", tableNumber).
		Order("order_time DESC", "order_id DESC").
		Limit(1).
		Scan(ctx)
	if database.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Internal("select most recent order", err)
	}
	return &order, nil
}

// UpdateStatus moves the order from `from` to `to` only if it is still in `from`.
func (d *DB) UpdateStatus(ctx context.Context, id int64, from, to models.OrderStatus) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("order_status = ?", to).
		Where("order_id = ?", id).
		Where("order_status = ?", from).
		Exec(ctx)
	if err != nil {
		return false, apperr.Internal("update order status", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperr.Internal("update order status", err)
	}
	return n == 1, nil
}

func (d *DB) SetQuotedPrice(ctx context.Context, id int64, price float64) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("quoted_price = ?", price).
		Where("order_id = ?", id).
		Exec(ctx)
	if err != nil {
		return apperr.Internal("update quoted price", err)
	}
	return nil
}

func (d *DB) SetTotalPrice(ctx context.Context, id int64, total float64) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("total_price = ?", total).
		Where("order_id = ?", id).
		Exec(ctx)
	if err != nil {
		return apperr.Internal("update total price", err)
	}
	return nil
}

// DeleteOrder → delete an order and its items
func (d *DB) DeleteOrder(ctx context.Context, id int64) error {
	_, err := d.Bun.NewDelete().
		Model((*models.OrderItem)(nil)).
		Where("order_id = ?", id).
		Exec(ctx)
	if err != nil {
		return apperr.Internal("delete order items", err)
	}
	_, err = d.Bun.NewDelete().
		Model((*models.Order)(nil)).
		Where("order_id = ?", id).
		Exec(ctx)
	if database.IsForeignKeyViolation(err) {
		return apperr.Conflict("order %d is still referenced by a payment", id)
	}
	if err != nil {
		return apperr.Internal("delete order", err)
	}
	return nil
}

// HasPaymentHistory reports whether any payment, refunded or not, links the order.
func (d *DB) HasPaymentHistory(ctx context.Context, orderID int64) (bool, error) {
	exists, err := d.Bun.NewSelect().
		Model((*models.PaymentOrder)(nil)).
		Where("order_id = ?", orderID).
		Exists(ctx)
	if err != nil {
		return false, apperr.Internal("check order payments", err)
	}
	return exists, nil
}

// ---------------- LOOKUPS ----------------

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

func (d *DB) GetMenuItemByID(ctx context.Context, id int64) (*models.MenuItem, error) {
	var item models.MenuItem
	err := d.Bun.NewSelect().
		Model(&item).
		Where("menu_item_id = ?", id).
		Limit(1).
		Scan(ctx)
	if database.IsNoRows(err) {
		return nil, apperr.NotFound("menu item %d not found", id)
	}
	if err != nil {
		return nil, apperr.Internal("select menu item", err)
	}
	return &item, nil
}

// ---------------- ORDER ITEMS ----------------

func (d *DB) CreateOrderItem(ctx context.Context, item *models.OrderItem) error {
	_, err := d.Bun.NewInsert().Model(item).Exec(ctx)
	if database.IsForeignKeyViolation(err) {
		return apperr.Conflict("menu item %d or order %d no longer exists", item.MenuItemID, item.OrderID)
	}
	if err != nil {
		return apperr.Internal("insert order item", err)
	}
	return nil
}

func (d *DB) GetOrderItemByID(ctx context.Context, id int64) (*models.OrderItem, error) {
	var item models.OrderItem
	err := d.Bun.NewSelect().
		Model(&item).
		Where("order_item_id = ?", id).
		Limit(1).
		Scan(ctx)
	if database.IsNoRows(err) {
		return nil, apperr.NotFound("order item %d not found", id)
	}
	if err != nil {
		return nil, apperr.Internal("select order item", err)
	}
	return &item, nil
}

func (d *DB) listItems(ctx context.Context, where string, args ...interface{}) ([]models.OrderItem, error) {
	items := []models.OrderItem{}
	q := d.Bun.NewSelect().Model(&items).Order("order_item_id ASC")
	if where != "" {
		q = q.Where(where, args...)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, apperr.Internal("select order items", err)
	}
	return items, nil
}

func (d *DB) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	return d.listItems(ctx, "order_id = ?", orderID)
}

func (d *DB) GetOrderItemsByMenuItemID(ctx context.Context, menuItemID int64) ([]models.OrderItem, error) {
	return d.listItems(ctx, "menu_item_id = ?", menuItemID)
}

func (d *DB) GetAllOrderItems(ctx context.Context) ([]models.OrderItem, error) {
	return d.listItems(ctx, "")
}

func (d *DB) OrderItemExists(ctx context.Context, id int64) (bool, error) {
	exists, err := d.Bun.NewSelect().
		Model((*models.OrderItem)(nil)).
		Where("order_item_id = ?", id).
		Exists(ctx)
	if err != nil {
		return false, apperr.Internal("check order item", err)
	}
	return exists, nil
}

// UpdateOrderItem rewrites the mutable columns of an order line.
func (d *DB) UpdateOrderItem(ctx context.Context, item *models.OrderItem) error {
	_, err := d.Bun.NewUpdate().
		Model(item).
		Column("menu_item_id", "quantity", "item_price").
		WherePK().
		Exec(ctx)
	if database.IsForeignKeyViolation(err) {
		return apperr.Conflict("menu item %d no longer exists", item.MenuItemID)
	}
	if err != nil {
		return apperr.Internal("update order item", err)
	}
	return nil
}

func (d *DB) DeleteOrderItem(ctx context.Context, id int64) error {
	_, err := d.Bun.NewDelete().
		Model((*models.OrderItem)(nil)).
		Where("order_item_id = ?", id).
		Exec(ctx)
	if err != nil {
		return apperr.Internal("delete order item", err)
	}
	return nil
}
