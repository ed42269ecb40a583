package order

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"restaurant-pos/internal/apperr"
	"restaurant-pos/internal/cache"
	"restaurant-pos/internal/kafka"
	"restaurant-pos/internal/lock"
	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/metrics"
	"restaurant-pos/internal/models"
	"restaurant-pos/internal/order/db"
)

type EventPublisher interface {
	Publish(ctx context.Context, event models.DomainEvent) error
}

// OrderService drives orders through Pending -> Completed | Cancelled and keeps each
// order's derived total in step with its items. Mutations of one order are serialized
// through Locker on the order key; the payment service takes the same keys.
type OrderService struct {
	DB     *db.DB
	Cache  cache.Cache
	Locker lock.Locker
	Events EventPublisher
	Log    *logger.Logger
	exp    cache.Expiration
	now    func() time.Time
}

func NewOrderService(store *db.DB, c cache.Cache, locker lock.Locker, events EventPublisher, log *logger.Logger, exp cache.Expiration) *OrderService {
	if c == nil {
		c = cache.Noop{}
	}
	if locker == nil {
		locker = lock.NewKeyedMutex()
	}
	return &OrderService{
		DB:     store,
		Cache:  c,
		Locker: locker,
		Events: events,
		Log:    log,
		exp:    exp,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ---------------- ORDERS ----------------

// CreateOrder opens a Pending order at an existing table. The order time is the server's.
func (s *OrderService) CreateOrder(ctx context.Context, req models.CreateOrderRequest) (*models.Order, error) {
	if req.Quantity < 0 {
		return nil, apperr.Validation("quantity must not be negative, got %d", req.Quantity)
	}

	var order *models.Order
	err := s.DB.InTx(ctx, func(ctx context.Context, tx *db.DB) error {
		table, err := tx.GetTableByNumber(ctx, req.TableNumber)
		if err != nil {
			return err
		}
		order = &models.Order{
			TableID:     table.TableID,
			TableNumber: table.TableNumber,
			OrderTime:   s.now(),
			OrderStatus: models.OrderStatusPending,
			ItemName:    req.ItemName,
			Quantity:    req.Quantity,
		}
		return tx.CreateOrder(ctx, order)
	})
	if err != nil {
		s.Log.Warn("ORDER", fmt.Sprintf("Failed to create order for table %d: %v", req.TableNumber, err))
		return nil, err
	}

	s.Log.LogOrder("CREATE", order.OrderID, fmt.Sprintf("table %d", order.TableNumber))
	s.invalidate(ctx, cache.PrefixOrder)
	s.publish(ctx, models.EventOrderCreated, order.OrderID, order)
	return order, nil
}

func (s *OrderService) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	return cache.Fetch(ctx, s.Cache, cache.OrderByID(id), s.exp, func(ctx context.Context) (*models.Order, error) {
		return s.DB.GetOrderByID(ctx, id)
	})
}

func (s *OrderService) GetAllOrders(ctx context.Context) ([]models.Order, error) {
	return cache.Fetch(ctx, s.Cache, cache.KeyAllOrders, s.exp, s.DB.GetAllOrders)
}

func (s *OrderService) GetOrdersByTableNumber(ctx context.Context, tableNumber int) ([]models.Order, error) {
	return cache.Fetch(ctx, s.Cache, cache.OrdersByTable(tableNumber), s.exp, func(ctx context.Context) ([]models.Order, error) {
		return s.DB.GetOrdersByTableNumber(ctx, tableNumber)
	})
}

// GetMostRecentOrderForTable returns nil without error when the table has no orders.
func (s *OrderService) GetMostRecentOrderForTable(ctx context.Context, tableNumber int) (*models.Order, error) {
	return s.DB.GetMostRecentOrderForTable(ctx, tableNumber)
}

func (s *OrderService) GetPendingOrders(ctx context.Context) ([]models.Order, error) {
	return s.DB.GetPendingOrders(ctx)
}

// UpdateStatus applies a status change. Only Pending -> Completed and Pending -> Cancelled
// are legal; everything else, including unknown names, is a Validation error.
func (s *OrderService) UpdateStatus(ctx context.Context, id int64, status string) (*models.Order, error) {
	next, err := models.ParseOrderStatus(status)
	if err != nil {
		return nil, apperr.Validation("%v", err)
	}

	var order *models.Order
	var prev models.OrderStatus
	err = s.withOrderLock(ctx, id, func(ctx context.Context, tx *db.DB) error {
		current, err := tx.GetOrderByID(ctx, id)
		if err != nil {
			return err
		}
		if !current.OrderStatus.CanTransitionTo(next) {
			return apperr.Validation("order %d cannot move from %s to %s", id, current.OrderStatus, next)
		}
		ok, err := tx.UpdateStatus(ctx, id, current.OrderStatus, next)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Conflict("order %d changed concurrently", id)
		}
		prev = current.OrderStatus
		current.OrderStatus = next
		order = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.OrderTransitions.WithLabelValues(string(next)).Inc()
	s.Log.LogOrder("STATUS", id, fmt.Sprintf("%s -> %s", prev, next))
	s.invalidate(ctx, cache.PrefixOrder)
	s.publish(ctx, models.EventOrderStatusChanged, id, map[string]interface{}{
		"orderId": id,
		"from":    prev,
		"to":      next,
	})
	return order, nil
}

// UpdateTotalPrice records a quoted price that overrides the total derived from items
// when the order is settled. Only Pending orders accept a quote.
func (s *OrderService) UpdateTotalPrice(ctx context.Context, id int64, price float64) (*models.Order, error) {
	if price < 0 {
		return nil, apperr.Validation("price must not be negative, got %.2f", price)
	}

	var order *models.Order
	err := s.withOrderLock(ctx, id, func(ctx context.Context, tx *db.DB) error {
		current, err := tx.GetOrderByID(ctx, id)
		if err != nil {
			return err
		}
		if current.OrderStatus != models.OrderStatusPending {
			return apperr.Validation("order %d is %s; its price can no longer change", id, current.OrderStatus)
		}
		if err := tx.SetQuotedPrice(ctx, id, price); err != nil {
			return err
		}
		current.QuotedPrice = &price
		order = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Log.LogOrder("PRICE", id, fmt.Sprintf("quoted %.2f", price))
	s.invalidate(ctx, cache.PrefixOrder)
	return order, nil
}

// CancelOrder deletes the order and its items together. An order any payment ever
// covered cannot be cancelled, even after a refund; the payment record keeps it.
func (s *OrderService) CancelOrder(ctx context.Context, id int64) error {
	err := s.withOrderLock(ctx, id, func(ctx context.Context, tx *db.DB) error {
		if _, err := tx.GetOrderByID(ctx, id); err != nil {
			return err
		}
		paid, err := tx.HasPaymentHistory(ctx, id)
		if err != nil {
			return err
		}
		if paid {
			return apperr.Conflict("order %d has payment history and cannot be cancelled", id)
		}
		return tx.DeleteOrder(ctx, id)
	})
	if err != nil {
		return err
	}

	s.Log.LogOrder("CANCEL", id, "order and items deleted")
	s.invalidate(ctx, cache.PrefixOrder, cache.PrefixOrderItem)
	s.publish(ctx, models.EventOrderCancelled, id, map[string]interface{}{"orderId": id})
	return nil
}

// ---------------- HELPERS ----------------

// withOrderLock holds the order's lock for the duration of one transaction.
func (s *OrderService) withOrderLock(ctx context.Context, orderID int64, fn func(ctx context.Context, tx *db.DB) error) error {
	unlock, err := s.Locker.Lock(ctx, lock.OrderKey(orderID))
	if err != nil {
		return apperr.Internal("acquire order lock", err)
	}
	defer unlock()
	return s.DB.InTx(ctx, fn)
}

// recomputeTotal re-derives total_price from the order's items.
func recomputeTotal(ctx context.Context, tx *db.DB, orderID int64) (float64, error) {
	items, err := tx.GetOrderItemsByOrderID(ctx, orderID)
	if err != nil {
		return 0, err
	}
	total := sumItems(items)
	return total, tx.SetTotalPrice(ctx, orderID, total)
}

func sumItems(items []models.OrderItem) float64 {
	total := 0.0
	for _, item := range items {
		total += item.LineTotal()
	}
	return models.RoundMoney(total)
}

func (s *OrderService) invalidate(ctx context.Context, prefixes ...string) {
	for _, prefix := range prefixes {
		if err := s.Cache.InvalidatePrefix(ctx, prefix); err != nil {
			s.Log.Warn("CACHE", fmt.Sprintf("Failed to invalidate %s: %v", prefix, err))
		}
	}
}

func (s *OrderService) publish(ctx context.Context, eventType string, orderID int64, payload interface{}) {
	if s.Events == nil {
		return
	}
	key := strconv.FormatInt(orderID, 10)
	if err := s.Events.Publish(ctx, kafka.NewEvent(eventType, key, payload)); err != nil {
		s.Log.Warn("KAFKA", fmt.Sprintf("Failed to publish %s for order %d: %v", eventType, orderID, err))
	}
}
