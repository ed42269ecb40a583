package payment

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"restaurant-pos/internal/apperr"
	"restaurant-pos/internal/kafka"
	"restaurant-pos/internal/lock"
	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/metrics"
	"restaurant-pos/internal/models"
	"restaurant-pos/internal/payment/db"
)

type EventPublisher interface {
	Publish(ctx context.Context, event models.DomainEvent) error
}

// Service records payments and the orders they settle. A payment and all of its order
// links are written in one transaction: either every link exists or none does.
type Service struct {
	DB     *db.DB
	Locker lock.Locker
	Events EventPublisher
	Log    *logger.Logger
	now    func() time.Time
}

func NewService(store *db.DB, locker lock.Locker, events EventPublisher, log *logger.Logger) *Service {
	if locker == nil {
		locker = lock.NewKeyedMutex()
	}
	return &Service{
		DB:     store,
		Locker: locker,
		Events: events,
		Log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func validatePayment(req models.ProcessPaymentRequest) error {
	if len(req.OrderIDs) == 0 {
		return apperr.Validation("a payment must settle at least one order")
	}
	seen := make(map[int64]bool, len(req.OrderIDs))
	for _, id := range req.OrderIDs {
		if seen[id] {
			return apperr.Validation("order %d is listed twice", id)
		}
		seen[id] = true
	}
	if strings.TrimSpace(req.PaymentMethod) == "" {
		return apperr.Validation("payment method is required")
	}
	if req.AmountPaid < 0 {
		return apperr.Validation("amount paid must not be negative, got %.2f", req.AmountPaid)
	}
	return nil
}

// ProcessPayment creates the payment and links it to every listed order. Each order must
// exist, must not be Cancelled and must not already be covered by a live payment, and the
// amount paid must cover the sum of what the orders owe. Any failure leaves no trace.
func (s *Service) ProcessPayment(ctx context.Context, req models.ProcessPaymentRequest) (*models.Payment, error) {
	if err := validatePayment(req); err != nil {
		return nil, err
	}

	paymentTime := req.PaymentTime
	if paymentTime.IsZero() {
		paymentTime = s.now()
	}

	keys := make([]string, len(req.OrderIDs))
	for i, id := range req.OrderIDs {
		keys[i] = lock.OrderKey(id)
	}
	unlock, err := lock.LockAll(ctx, s.Locker, keys)
	if err != nil {
		return nil, apperr.Internal("acquire order locks", err)
	}
	defer unlock()

	payment := &models.Payment{
		PaymentTime:   paymentTime.UTC(),
		PaymentMethod: strings.TrimSpace(req.PaymentMethod),
		AmountPaid:    req.AmountPaid,
	}
	err = s.DB.InTx(ctx, func(ctx context.Context, tx *db.DB) error {
		if err := tx.SavePayment(ctx, payment); err != nil {
			return err
		}

		due := 0.0
		for _, orderID := range req.OrderIDs {
			order, err := tx.GetOrder(ctx, orderID)
			if err != nil {
				return err
			}
			if order.OrderStatus == models.OrderStatusCancelled {
				return apperr.Conflict("order %d is cancelled", orderID)
			}
			settled, err := tx.IsOrderSettled(ctx, orderID)
			if err != nil {
				return err
			}
			if settled {
				return apperr.Conflict("order %d is already paid", orderID)
			}
			if err := tx.LinkOrder(ctx, payment.PaymentID, orderID); err != nil {
				return err
			}
			due += order.AmountDue()
		}

		if models.RoundMoney(payment.AmountPaid) < models.RoundMoney(due) {
			return apperr.Validation("amount paid %.2f does not cover %.2f due", payment.AmountPaid, due)
		}
		return nil
	})
	if err != nil {
		metrics.Payments.WithLabelValues("process", "rejected").Inc()
		s.Log.Warn("PAYMENT", fmt.Sprintf("Payment for orders %v rolled back: %v", req.OrderIDs, err))
		return nil, err
	}

	payment.OrderIDs = append([]int64(nil), req.OrderIDs...)
	metrics.Payments.WithLabelValues("process", "applied").Inc()
	s.Log.LogPayment("PROCESS", payment.PaymentID, fmt.Sprintf("%.2f via %s for orders %v", payment.AmountPaid, payment.PaymentMethod, payment.OrderIDs))
	s.publish(ctx, models.EventPaymentProcessed, payment)
	return payment, nil
}

// RefundPayment marks the payment refunded. Refunding twice is a Conflict.
func (s *Service) RefundPayment(ctx context.Context, id int64) (*models.Payment, error) {
	unlock, err := s.Locker.Lock(ctx, lock.PaymentKey(id))
	if err != nil {
		return nil, apperr.Internal("acquire payment lock", err)
	}
	defer unlock()

	var payment *models.Payment
	err = s.DB.InTx(ctx, func(ctx context.Context, tx *db.DB) error {
		p, err := tx.GetPayment(ctx, id)
		if err != nil {
			return err
		}
		at := s.now()
		ok, err := tx.MarkRefunded(ctx, id, at)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Conflict("payment %d is already refunded", id)
		}
		p.IsRefunded = true
		p.RefundedAt = &at
		links, err := tx.OrderIDsFor(ctx, id)
		if err != nil {
			return err
		}
		p.OrderIDs = links[id]
		payment = p
		return nil
	})
	if err != nil {
		metrics.Payments.WithLabelValues("refund", "rejected").Inc()
		return nil, err
	}

	metrics.Payments.WithLabelValues("refund", "applied").Inc()
	s.Log.LogPayment("REFUND", id, "refunded")
	s.publish(ctx, models.EventPaymentRefunded, payment)
	return payment, nil
}

// GetPaymentByID returns the payment with the ids of the orders it settles.
func (s *Service) GetPaymentByID(ctx context.Context, id int64) (*models.Payment, error) {
	p, err := s.DB.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	links, err := s.DB.OrderIDsFor(ctx, id)
	if err != nil {
		return nil, err
	}
	p.OrderIDs = links[id]
	return p, nil
}

func (s *Service) GetAllPayments(ctx context.Context) ([]models.Payment, error) {
	payments, err := s.DB.ListPayments(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(payments))
	for i, p := range payments {
		ids[i] = p.PaymentID
	}
	links, err := s.DB.OrderIDsFor(ctx, ids...)
	if err != nil {
		return nil, err
	}
	for i := range payments {
		payments[i].OrderIDs = links[payments[i].PaymentID]
	}
	return payments, nil
}

func (s *Service) publish(ctx context.Context, eventType string, payment *models.Payment) {
	if s.Events == nil {
		return
	}
	key := strconv.FormatInt(payment.PaymentID, 10)
	if err := s.Events.Publish(ctx, kafka.NewEvent(eventType, key, payment)); err != nil {
		s.Log.Warn("KAFKA", fmt.Sprintf("Failed to publish %s for payment %s: %v", eventType, key, err))
	}
}
