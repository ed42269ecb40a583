package db

import (
	"context"
	"time"

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

// ---------------- PAYMENTS ----------------

func (d *DB) SavePayment(ctx context.Context, payment *models.Payment) error {
	if _, err := d.Bun.NewInsert().Model(payment).Exec(ctx); err != nil {
		return apperr.Internal("insert payment", err)
	}
	return nil
}

func (d *DB) GetPayment(ctx context.Context, id int64) (*models.Payment, error) {
	var payment models.Payment
	err := d.Bun.NewSelect().
		Model(&payment).
		Where("payment_id = ?", id).
		Limit(1).
		Scan(ctx)
	if database.IsNoRows(err) {
		return nil, apperr.NotFound("payment %d not found", id)
	}
	if err != nil {
		return nil, apperr.Internal("select payment", err)
	}
	return &payment, nil
}

func (d *DB) ListPayments(ctx context.Context) ([]models.Payment, error) {
	payments := []models.Payment{}
	err := d.Bun.NewSelect().
		Model(&payments).
		Order("payment_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, apperr.Internal("select payments", err)
	}
	return payments, nil
}

// MarkRefunded flips is_refunded once. It reports false if the payment was already refunded.
func (d *DB) MarkRefunded(ctx context.Context, id int64, at time.Time) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Payment)(nil)).
		Set("is_refunded = ?", true).
		Set("refunded_at = ?", at).
		Where("payment_id = ?", id).
		Where("is_refunded = ?", false).
		Exec(ctx)
	if err != nil {
		return false, apperr.Internal("refund payment", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperr.Internal("refund payment", err)
	}
	return n == 1, nil
}

// ---------------- LINKS ----------------

// LinkOrder records that the payment settles the order.
func (d *DB) LinkOrder(ctx context.Context, paymentID, orderID int64) error {
	_, err := d.Bun.NewInsert().
		Model(&models.PaymentOrder{PaymentID: paymentID, OrderID: orderID}).
		Exec(ctx)
	if database.IsUniqueViolation(err) {
		return apperr.Conflict("order %d is already linked to payment %d", orderID, paymentID)
	}
	if err != nil {
		return apperr.Internal("insert payment order", err)
	}
	return nil
}

// OrderIDsFor returns the linked order ids of each payment, in link order.
func (d *DB) OrderIDsFor(ctx context.Context, paymentIDs ...int64) (map[int64][]int64, error) {
	out := make(map[int64][]int64, len(paymentIDs))
	if len(paymentIDs) == 0 {
		return out, nil
	}
	var links []models.PaymentOrder
	err := d.Bun.NewSelect().
		Model(&links).
		Where("payment_id IN (?)", bun.In(paymentIDs)).
		Order("payment_order_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, apperr.Internal("select payment orders", err)
	}
	for _, l := range links {
		out[l.PaymentID] = append(out[l.PaymentID], l.OrderID)
	}
	return out, nil
}

func (d *DB) CountLinks(ctx context.Context) (int, error) {
	n, err := d.Bun.NewSelect().Model((*models.PaymentOrder)(nil)).Count(ctx)
	if err != nil {
		return 0, apperr.Internal("count payment orders", err)
	}
	return n, nil
}

// ---------------- ORDERS ----------------

func (d *DB) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
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

// IsOrderSettled reports whether a payment that was not refunded already covers the order.
func (d *DB) IsOrderSettled(ctx context.Context, orderID int64) (bool, error) {
	exists, err := d.Bun.NewSelect().
		Model((*models.PaymentOrder)(nil)).
		Join("JOIN payments AS p ON p.payment_id = po.payment_id").
		Where("po.order_id = ?", orderID).
		Where("p.is_refunded = ?", false).
		Exists(ctx)
	if err != nil {
		return false, apperr.Internal("check order settlement", err)
	}
	return exists, nil
}
