package table

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
	"restaurant-pos/internal/table/db"
	"restaurant-pos/internal/utils"
)

type EventPublisher interface {
	Publish(ctx context.Context, event models.DomainEvent) error
}

type Options struct {
	Expiration cache.Expiration
	QRBaseURL  string
}

// Service owns the table lifecycle: Available <-> Occupied through Reserve and Release.
// Transitions for one table number are serialized by Locker and applied with a
// compare-and-set UPDATE, so at most one concurrent Reserve wins.
type Service struct {
	DB     *db.DB
	Cache  cache.Cache
	Locker lock.Locker
	Events EventPublisher
	Log    *logger.Logger
	opts   Options
}

func NewService(store *db.DB, c cache.Cache, locker lock.Locker, events EventPublisher, log *logger.Logger, opts Options) *Service {
	if c == nil {
		c = cache.Noop{}
	}
	if locker == nil {
		locker = lock.NewKeyedMutex()
	}
	return &Service{DB: store, Cache: c, Locker: locker, Events: events, Log: log, opts: opts}
}

// ---------------- COMMANDS ----------------

// AddTable creates an Available table with its QR code content. A taken number is a
// Conflict and leaves the store unchanged.
func (s *Service) AddTable(ctx context.Context, req models.AddTableRequest) (*models.Table, error) {
	if req.TableNumber <= 0 {
		return nil, apperr.Validation("table number must be positive, got %d", req.TableNumber)
	}
	if req.Capacity <= 0 {
		return nil, apperr.Validation("capacity must be positive, got %d", req.Capacity)
	}

	t := &models.Table{
		TableNumber: req.TableNumber,
		Capacity:    req.Capacity,
		IsAvailable: true,
		QrCode:      utils.TableQRContent(s.opts.QRBaseURL, req.TableNumber),
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.DB.CreateTable(ctx, t); err != nil {
		s.Log.LogTable("ADD_FAILED", req.TableNumber, err.Error())
		return nil, err
	}

	s.Log.LogTable("ADD", t.TableNumber, fmt.Sprintf("capacity %d", t.Capacity))
	s.invalidate(ctx)
	s.publish(ctx, models.EventTableUpdated, t)
	return t, nil
}

// Reserve moves an Available table to Occupied. It returns false, with no error, when the
// table is already Occupied.
func (s *Service) Reserve(ctx context.Context, tableNumber int) (bool, error) {
	return s.transition(ctx, "reserve", tableNumber, true, false, models.EventTableReserved)
}

// Release moves an Occupied table back to Available. It returns false when the table is
// already Available.
func (s *Service) Release(ctx context.Context, tableNumber int) (bool, error) {
	return s.transition(ctx, "release", tableNumber, false, true, models.EventTableReleased)
}

func (s *Service) transition(ctx context.Context, action string, tableNumber int, from, to bool, eventType string) (bool, error) {
	unlock, err := s.Locker.Lock(ctx, lock.TableKey(tableNumber))
	if err != nil {
		return false, apperr.Internal("acquire table lock", err)
	}
	defer unlock()

	changed, err := s.DB.SetAvailability(ctx, tableNumber, from, to)
	if err != nil {
		return false, err
	}
	if !changed {
		// Either the table is missing or it is already in the target state.
		if _, err := s.DB.GetTableByNumber(ctx, tableNumber); err != nil {
			return false, err
		}
		metrics.TableTransitions.WithLabelValues(action, "rejected").Inc()
		s.Log.LogTable(actionLabel(action)+"_REJECTED", tableNumber, "table is not in the expected state")
		return false, nil
	}

	metrics.TableTransitions.WithLabelValues(action, "applied").Inc()
	s.Log.LogTable(actionLabel(action), tableNumber, "applied")
	s.invalidate(ctx)
	s.publish(ctx, eventType, map[string]interface{}{
		"tableNumber": tableNumber,
		"isAvailable": to,
	})
	return true, nil
}

// UpdateTable is an administrative override of capacity and availability. It does not
// go through the Reserve/Release state machine.
func (s *Service) UpdateTable(ctx context.Context, tableNumber int, req models.UpdateTableRequest) (*models.Table, error) {
	if req.Capacity <= 0 {
		return nil, apperr.Validation("capacity must be positive, got %d", req.Capacity)
	}

	unlock, err := s.Locker.Lock(ctx, lock.TableKey(tableNumber))
	if err != nil {
		return nil, apperr.Internal("acquire table lock", err)
	}
	defer unlock()

	var updated *models.Table
	err = s.DB.InTx(ctx, func(ctx context.Context, tx *db.DB) error {
		if err := tx.UpdateTable(ctx, tableNumber, req.Capacity, req.IsAvailable); err != nil {
			return err
		}
		t, err := tx.GetTableByNumber(ctx, tableNumber)
		updated = t
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Log.LogTable("UPDATE", tableNumber, fmt.Sprintf("capacity %d, available %t", req.Capacity, req.IsAvailable))
	s.invalidate(ctx)
	s.publish(ctx, models.EventTableUpdated, updated)
	return updated, nil
}

// DeleteTable removes the table. Orders placed at it are kept.
func (s *Service) DeleteTable(ctx context.Context, tableNumber int) error {
	unlock, err := s.Locker.Lock(ctx, lock.TableKey(tableNumber))
	if err != nil {
		return apperr.Internal("acquire table lock", err)
	}
	defer unlock()

	if err := s.DB.DeleteTable(ctx, tableNumber); err != nil {
		return err
	}
	s.Log.LogTable("DELETE", tableNumber, "removed")
	s.invalidate(ctx)
	s.publish(ctx, models.EventTableUpdated, map[string]interface{}{
		"tableNumber": tableNumber,
		"deleted":     true,
	})
	return nil
}

// ---------------- QUERIES ----------------

func (s *Service) CheckAvailability(ctx context.Context, tableNumber int) (bool, error) {
	t, err := s.DB.GetTableByNumber(ctx, tableNumber)
	if err != nil {
		return false, err
	}
	return t.IsAvailable, nil
}

// GetStatus returns "Available" or "Occupied".
func (s *Service) GetStatus(ctx context.Context, tableNumber int) (string, error) {
	t, err := s.DB.GetTableByNumber(ctx, tableNumber)
	if err != nil {
		return "", err
	}
	return t.Status(), nil
}

func (s *Service) GetTableByNumber(ctx context.Context, tableNumber int) (*models.Table, error) {
	return s.DB.GetTableByNumber(ctx, tableNumber)
}

func (s *Service) GetTableByID(ctx context.Context, id int64) (*models.Table, error) {
	return cache.Fetch(ctx, s.Cache, cache.TableByID(id), s.opts.Expiration, func(ctx context.Context) (*models.Table, error) {
		return s.DB.GetTableByID(ctx, id)
	})
}

func (s *Service) GetAllTables(ctx context.Context) ([]models.Table, error) {
	return cache.Fetch(ctx, s.Cache, cache.KeyAllTables, s.opts.Expiration, s.DB.GetAllTables)
}

func (s *Service) GetOrdersByTable(ctx context.Context, tableNumber int) ([]models.Order, error) {
	return cache.Fetch(ctx, s.Cache, cache.OrdersByTable(tableNumber), s.opts.Expiration, func(ctx context.Context) ([]models.Order, error) {
		return s.DB.GetOrdersByTableNumber(ctx, tableNumber)
	})
}

// GetCurrentOrder returns the table's newest Pending order, NotFound when there is none.
func (s *Service) GetCurrentOrder(ctx context.Context, tableNumber int) (*models.Order, error) {
	if _, err := s.DB.GetTableByNumber(ctx, tableNumber); err != nil {
		return nil, err
	}
	return s.DB.GetCurrentOrder(ctx, tableNumber)
}

// ---------------- SIDE EFFECTS ----------------

func (s *Service) invalidate(ctx context.Context) {
	if err := s.Cache.InvalidatePrefix(ctx, cache.PrefixTable); err != nil {
		s.Log.Warn("CACHE", fmt.Sprintf("Failed to invalidate %s: %v", cache.PrefixTable, err))
	}
}

func (s *Service) publish(ctx context.Context, eventType string, payload interface{}) {
	if s.Events == nil {
		return
	}
	key := ""
	switch p := payload.(type) {
	case *models.Table:
		key = strconv.Itoa(p.TableNumber)
	case map[string]interface{}:
		key = fmt.Sprint(p["tableNumber"])
	}
	if err := s.Events.Publish(ctx, kafka.NewEvent(eventType, key, payload)); err != nil {
		s.Log.Warn("KAFKA", fmt.Sprintf("Failed to publish %s for table %s: %v", eventType, key, err))
	}
}

func actionLabel(action string) string {
	if action == "reserve" {
		return "RESERVE"
	}
	return "RELEASE"
}
