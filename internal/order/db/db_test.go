package db_test

import (
	"context"
	"testing"
	"time"

	"restaurant-pos/internal/apperr"
	"restaurant-pos/internal/database"
	"restaurant-pos/internal/models"
	"restaurant-pos/internal/order/db"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func setupTestDB(t *testing.T) (*db.DB, *bun.DB) {
	bunDB, err := database.OpenSQLite("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, database.CreateSchema(context.Background(), bunDB))
	t.Cleanup(func() { bunDB.Close() })
	return db.New(bunDB), bunDB
}

func insertOrder(t *testing.T, orderDB *db.DB, status models.OrderStatus) *models.Order {
	o := &models.Order{TableID: 1, TableNumber: 1, OrderTime: time.Now().UTC(), OrderStatus: status}
	require.NoError(t, orderDB.CreateOrder(context.Background(), o))
	return o
}

func insertMenuItem(t *testing.T, bunDB *bun.DB) int64 {
	m := &models.MenuItem{Name: "Bread", Price: 2, IsAvailable: true}
	_, err := bunDB.NewInsert().Model(m).Exec(context.Background())
	require.NoError(t, err)
	return m.MenuItemID
}

func TestGetOrderByID(t *testing.T) {
	orderDB, _ := setupTestDB(t)
	o := insertOrder(t, orderDB, models.OrderStatusPending)

	got, err := orderDB.GetOrderByID(context.Background(), o.OrderID)
	require.NoError(t, err)
	assert.Equal(t, o.OrderID, got.OrderID)
	assert.Nil(t, got.QuotedPrice)

	_, err = orderDB.GetOrderByID(context.Background(), o.OrderID+100)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestUpdateStatus_CompareAndSet(t *testing.T) {
	orderDB, _ := setupTestDB(t)
	ctx := context.Background()
	o := insertOrder(t, orderDB, models.OrderStatusPending)

	ok, err := orderDB.UpdateStatus(ctx, o.OrderID, models.OrderStatusPending, models.OrderStatusCompleted)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = orderDB.UpdateStatus(ctx, o.OrderID, models.OrderStatusPending, models.OrderStatusCancelled)
	require.NoError(t, err)
	assert.False(t, ok, "stale expected status must not match")

	got, err := orderDB.GetOrderByID(ctx, o.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, got.OrderStatus)
}

func TestSetQuotedPrice(t *testing.T) {
	orderDB, _ := setupTestDB(t)
	ctx := context.Background()
	o := insertOrder(t, orderDB, models.OrderStatusPending)

	require.NoError(t, orderDB.SetQuotedPrice(ctx, o.OrderID, 42.5))
	got, err := orderDB.GetOrderByID(ctx, o.OrderID)
	require.NoError(t, err)
	require.NotNil(t, got.QuotedPrice)
	assert.Equal(t, 42.5, *got.QuotedPrice)
}

func TestDeleteOrder_RemovesItems(t *testing.T) {
	orderDB, bunDB := setupTestDB(t)
	ctx := context.Background()
	o := insertOrder(t, orderDB, models.OrderStatusPending)
	keep := insertOrder(t, orderDB, models.OrderStatusPending)
	menuItemID := insertMenuItem(t, bunDB)

	for _, orderID := range []int64{o.OrderID, o.OrderID, keep.OrderID} {
		require.NoError(t, orderDB.CreateOrderItem(ctx, &models.OrderItem{OrderID: orderID, MenuItemID: menuItemID, Quantity: 1, ItemPrice: 2}))
	}

	require.NoError(t, orderDB.InTx(ctx, func(ctx context.Context, tx *db.DB) error {
		return tx.DeleteOrder(ctx, o.OrderID)
	}))

	n, err := bunDB.NewSelect().Model((*models.OrderItem)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	items, err := orderDB.GetOrderItemsByOrderID(ctx, keep.OrderID)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestHasPaymentHistory_IncludesRefunded(t *testing.T) {
	orderDB, bunDB := setupTestDB(t)
	ctx := context.Background()
	o := insertOrder(t, orderDB, models.OrderStatusPending)

	paid, err := orderDB.HasPaymentHistory(ctx, o.OrderID)
	require.NoError(t, err)
	assert.False(t, paid)

	p := &models.Payment{PaymentTime: time.Now().UTC(), PaymentMethod: "Cash", AmountPaid: 5}
	_, err = bunDB.NewInsert().Model(p).Exec(ctx)
	require.NoError(t, err)
	_, err = bunDB.NewInsert().Model(&models.PaymentOrder{PaymentID: p.PaymentID, OrderID: o.OrderID}).Exec(ctx)
	require.NoError(t, err)

	paid, err = orderDB.HasPaymentHistory(ctx, o.OrderID)
	require.NoError(t, err)
	assert.True(t, paid)

	_, err = bunDB.NewUpdate().Model((*models.Payment)(nil)).Set("is_refunded = ?", true).Where("payment_id = ?", p.PaymentID).Exec(ctx)
	require.NoError(t, err)

	paid, err = orderDB.HasPaymentHistory(ctx, o.OrderID)
	require.NoError(t, err)
	assert.True(t, paid)

	// Deleting anyway is refused by the payment link, not a server error.
	err = orderDB.InTx(ctx, func(ctx context.Context, tx *db.DB) error {
		return tx.DeleteOrder(ctx, o.OrderID)
	})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestCreateOrderItem_MissingMenuItemIsConflict(t *testing.T) {
	orderDB, _ := setupTestDB(t)
	ctx := context.Background()
	o := insertOrder(t, orderDB, models.OrderStatusPending)

	err := orderDB.CreateOrderItem(ctx, &models.OrderItem{OrderID: o.OrderID, MenuItemID: 999, Quantity: 1, ItemPrice: 2})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestInTx_NestedCallJoinsOuterTransaction(t *testing.T) {
	orderDB, _ := setupTestDB(t)
	ctx := context.Background()

	err := orderDB.InTx(ctx, func(ctx context.Context, tx *db.DB) error {
		return tx.InTx(ctx, func(ctx context.Context, inner *db.DB) error {
			assert.Same(t, tx, inner)
			return inner.CreateOrder(ctx, &models.Order{TableID: 1, TableNumber: 1, OrderTime: time.Now().UTC(), OrderStatus: models.OrderStatusPending})
		})
	})
	require.NoError(t, err)

	all, err := orderDB.GetAllOrders(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestOrderItemQueries(t *testing.T) {
	orderDB, bunDB := setupTestDB(t)
	ctx := context.Background()
	o := insertOrder(t, orderDB, models.OrderStatusPending)
	menuItemID := insertMenuItem(t, bunDB)

	item := &models.OrderItem{OrderID: o.OrderID, MenuItemID: menuItemID, Quantity: 2, ItemPrice: 4}
	require.NoError(t, orderDB.CreateOrderItem(ctx, item))

	exists, err := orderDB.OrderItemExists(ctx, item.OrderItemID)
	require.NoError(t, err)
	assert.True(t, exists)

	byMenu, err := orderDB.GetOrderItemsByMenuItemID(ctx, menuItemID)
	require.NoError(t, err)
	assert.Len(t, byMenu, 1)

	item.Quantity = 5
	require.NoError(t, orderDB.UpdateOrderItem(ctx, item))
	got, err := orderDB.GetOrderItemByID(ctx, item.OrderItemID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Quantity)

	require.NoError(t, orderDB.DeleteOrderItem(ctx, item.OrderItemID))
	_, err = orderDB.GetOrderItemByID(ctx, item.OrderItemID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}
