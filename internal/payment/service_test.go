package payment_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"restaurant-pos/internal/apperr"
	"restaurant-pos/internal/cache"
	"restaurant-pos/internal/database"
	"restaurant-pos/internal/lock"
	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/models"
	"restaurant-pos/internal/order"
	orderdb "restaurant-pos/internal/order/db"
	"restaurant-pos/internal/payment"
	"restaurant-pos/internal/payment/db"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event models.DomainEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func setupService(t *testing.T) (*payment.Service, *bun.DB, *MockPublisher) {
	bunDB, err := database.OpenSQLite("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, database.CreateSchema(context.Background(), bunDB))
	t.Cleanup(func() { bunDB.Close() })

	publisher := &MockPublisher{}
	publisher.On("Publish", mock.Anything, mock.Anything).Return(nil).Maybe()
	return payment.NewService(db.New(bunDB), lock.NewKeyedMutex(), publisher, logger.Discard()), bunDB, publisher
}

func seedOrder(t *testing.T, bunDB *bun.DB, total float64, status models.OrderStatus) *models.Order {
	o := &models.Order{
		TableID:     1,
		TableNumber: 1,
		OrderTime:   time.Now().UTC(),
		TotalPrice:  total,
		OrderStatus: status,
	}
	_, err := bunDB.NewInsert().Model(o).Exec(context.Background())
	require.NoError(t, err)
	return o
}

func counts(t *testing.T, bunDB *bun.DB) (payments, links int) {
	ctx := context.Background()
	payments, err := bunDB.NewSelect().Model((*models.Payment)(nil)).Count(ctx)
	require.NoError(t, err)
	links, err = bunDB.NewSelect().Model((*models.PaymentOrder)(nil)).Count(ctx)
	require.NoError(t, err)
	return payments, links
}

func TestProcessPayment_LinksEveryOrder(t *testing.T) {
	svc, bunDB, publisher := setupService(t)
	a := seedOrder(t, bunDB, 20, models.OrderStatusCompleted)
	b := seedOrder(t, bunDB, 15.5, models.OrderStatusPending)

	p, err := svc.ProcessPayment(context.Background(), models.ProcessPaymentRequest{
		OrderIDs:      []int64{a.OrderID, b.OrderID},
		PaymentMethod: "Card",
		AmountPaid:    35.5,
	})
	require.NoError(t, err)
	assert.NotZero(t, p.PaymentID)
	assert.False(t, p.PaymentTime.IsZero())
	assert.Equal(t, []int64{a.OrderID, b.OrderID}, p.OrderIDs)

	nPayments, nLinks := counts(t, bunDB)
	assert.Equal(t, 1, nPayments)
	assert.Equal(t, 2, nLinks)

	got, err := svc.GetPaymentByID(context.Background(), p.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, []int64{a.OrderID, b.OrderID}, got.OrderIDs)
	assert.Equal(t, "Card", got.PaymentMethod)

	publisher.AssertCalled(t, "Publish", mock.Anything, mock.MatchedBy(func(e models.DomainEvent) bool {
		return e.Type == models.EventPaymentProcessed
	}))
}

func TestProcessPayment_KeepsGivenTime(t *testing.T) {
	svc, bunDB, _ := setupService(t)
	o := seedOrder(t, bunDB, 5, models.OrderStatusPending)
	at := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

	p, err := svc.ProcessPayment(context.Background(), models.ProcessPaymentRequest{
		OrderIDs: []int64{o.OrderID}, PaymentTime: at, PaymentMethod: "Cash", AmountPaid: 5,
	})
	require.NoError(t, err)
	assert.True(t, at.Equal(p.PaymentTime))
}

func TestProcessPayment_MissingOrderRollsBack(t *testing.T) {
	svc, bunDB, publisher := setupService(t)
	a := seedOrder(t, bunDB, 10, models.OrderStatusPending)
	b := seedOrder(t, bunDB, 10, models.OrderStatusPending)

	_, err := svc.ProcessPayment(context.Background(), models.ProcessPaymentRequest{
		OrderIDs:      []int64{a.OrderID, 9999, b.OrderID},
		PaymentMethod: "Card",
		AmountPaid:    100,
	})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	nPayments, nLinks := counts(t, bunDB)
	assert.Equal(t, 0, nPayments)
	assert.Equal(t, 0, nLinks)
	publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestProcessPayment_Underpaid(t *testing.T) {
	svc, bunDB, _ := setupService(t)
	o := seedOrder(t, bunDB, 30, models.OrderStatusPending)

	_, err := svc.ProcessPayment(context.Background(), models.ProcessPaymentRequest{
		OrderIDs: []int64{o.OrderID}, PaymentMethod: "Card", AmountPaid: 29.99,
	})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	nPayments, nLinks := counts(t, bunDB)
	assert.Equal(t, 0, nPayments)
	assert.Equal(t, 0, nLinks)
}

func TestProcessPayment_UsesQuotedPrice(t *testing.T) {
	svc, bunDB, _ := setupService(t)
	o := seedOrder(t, bunDB, 30, models.OrderStatusPending)
	quoted := 25.0
	_, err := bunDB.NewUpdate().Model((*models.Order)(nil)).
		Set("quoted_price = ?", quoted).
		Where("order_id = ?", o.OrderID).
		Exec(context.Background())
	require.NoError(t, err)

	_, err = svc.ProcessPayment(context.Background(), models.ProcessPaymentRequest{
		OrderIDs: []int64{o.OrderID}, PaymentMethod: "Card", AmountPaid: 25,
	})
	assert.NoError(t, err)
}

func TestProcessPayment_RejectsCancelledAndSettled(t *testing.T) {
	svc, bunDB, _ := setupService(t)
	ctx := context.Background()
	cancelled := seedOrder(t, bunDB, 10, models.OrderStatusCancelled)
	o := seedOrder(t, bunDB, 10, models.OrderStatusPending)

	_, err := svc.ProcessPayment(ctx, models.ProcessPaymentRequest{
		OrderIDs: []int64{cancelled.OrderID}, PaymentMethod: "Card", AmountPaid: 10,
	})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	first, err := svc.ProcessPayment(ctx, models.ProcessPaymentRequest{
		OrderIDs: []int64{o.OrderID}, PaymentMethod: "Card", AmountPaid: 10,
	})
	require.NoError(t, err)

	_, err = svc.ProcessPayment(ctx, models.ProcessPaymentRequest{
		OrderIDs: []int64{o.OrderID}, PaymentMethod: "Cash", AmountPaid: 10,
	})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	// a refunded payment no longer settles the order
	_, err = svc.RefundPayment(ctx, first.PaymentID)
	require.NoError(t, err)
	_, err = svc.ProcessPayment(ctx, models.ProcessPaymentRequest{
		OrderIDs: []int64{o.OrderID}, PaymentMethod: "Cash", AmountPaid: 10,
	})
	assert.NoError(t, err)
}

func TestProcessPayment_Validation(t *testing.T) {
	svc, bunDB, _ := setupService(t)
	o := seedOrder(t, bunDB, 10, models.OrderStatusPending)

	cases := map[string]models.ProcessPaymentRequest{
		"no orders":       {PaymentMethod: "Card", AmountPaid: 10},
		"duplicate ids":   {OrderIDs: []int64{o.OrderID, o.OrderID}, PaymentMethod: "Card", AmountPaid: 20},
		"missing method":  {OrderIDs: []int64{o.OrderID}, PaymentMethod: "  ", AmountPaid: 10},
		"negative amount": {OrderIDs: []int64{o.OrderID}, PaymentMethod: "Card", AmountPaid: -1},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ProcessPayment(context.Background(), req)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		})
	}

	nPayments, _ := counts(t, bunDB)
	assert.Equal(t, 0, nPayments)
}

func TestProcessPayment_ConcurrentSettlesOnce(t *testing.T) {
	svc, bunDB, _ := setupService(t)
	o := seedOrder(t, bunDB, 10, models.OrderStatusPending)

	const attempts = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ProcessPayment(context.Background(), models.ProcessPaymentRequest{
				OrderIDs: []int64{o.OrderID}, PaymentMethod: "Card", AmountPaid: 10,
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	_, nLinks := counts(t, bunDB)
	assert.Equal(t, 1, nLinks)
}

func TestRefundPayment(t *testing.T) {
	svc, bunDB, publisher := setupService(t)
	ctx := context.Background()
	o := seedOrder(t, bunDB, 10, models.OrderStatusCompleted)

	p, err := svc.ProcessPayment(ctx, models.ProcessPaymentRequest{
		OrderIDs: []int64{o.OrderID}, PaymentMethod: "Card", AmountPaid: 12,
	})
	require.NoError(t, err)

	refunded, err := svc.RefundPayment(ctx, p.PaymentID)
	require.NoError(t, err)
	assert.True(t, refunded.IsRefunded)
	require.NotNil(t, refunded.RefundedAt)
	assert.Equal(t, []int64{o.OrderID}, refunded.OrderIDs)

	_, err = svc.RefundPayment(ctx, p.PaymentID)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	_, err = svc.RefundPayment(ctx, 4242)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	publisher.AssertCalled(t, "Publish", mock.Anything, mock.MatchedBy(func(e models.DomainEvent) bool {
		return e.Type == models.EventPaymentRefunded
	}))
}

func TestRefundedOrderCannotBeCancelled(t *testing.T) {
	svc, bunDB, publisher := setupService(t)
	ctx := context.Background()
	o := seedOrder(t, bunDB, 10, models.OrderStatusPending)
	orders := order.NewOrderService(orderdb.New(bunDB), nil, nil, publisher, logger.Discard(), cache.Expiration{})

	p, err := svc.ProcessPayment(ctx, models.ProcessPaymentRequest{
		OrderIDs: []int64{o.OrderID}, PaymentMethod: "Cash", AmountPaid: 10,
	})
	require.NoError(t, err)
	_, err = svc.RefundPayment(ctx, p.PaymentID)
	require.NoError(t, err)

	err = orders.CancelOrder(ctx, o.OrderID)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	_, err = orders.GetOrderByID(ctx, o.OrderID)
	require.NoError(t, err)
	got, err := svc.GetPaymentByID(ctx, p.PaymentID)
	require.NoError(t, err)
	assert.True(t, got.IsRefunded)
	assert.Equal(t, []int64{o.OrderID}, got.OrderIDs)
}

func TestGetPayments(t *testing.T) {
	svc, bunDB, _ := setupService(t)
	ctx := context.Background()

	all, err := svc.GetAllPayments(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	a := seedOrder(t, bunDB, 10, models.OrderStatusPending)
	b := seedOrder(t, bunDB, 20, models.OrderStatusPending)
	_, err = svc.ProcessPayment(ctx, models.ProcessPaymentRequest{OrderIDs: []int64{a.OrderID}, PaymentMethod: "Cash", AmountPaid: 10})
	require.NoError(t, err)
	_, err = svc.ProcessPayment(ctx, models.ProcessPaymentRequest{OrderIDs: []int64{b.OrderID}, PaymentMethod: "Card", AmountPaid: 20})
	require.NoError(t, err)

	all, err = svc.GetAllPayments(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, []int64{a.OrderID}, all[0].OrderIDs)
	assert.Equal(t, []int64{b.OrderID}, all[1].OrderIDs)

	_, err = svc.GetPaymentByID(ctx, 999)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}
