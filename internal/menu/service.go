package menu

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"restaurant-pos/internal/apperr"
	"restaurant-pos/internal/cache"
	"restaurant-pos/internal/kafka"
	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/menu/db"
	"restaurant-pos/internal/models"
)

type EventPublisher interface {
	Publish(ctx context.Context, event models.DomainEvent) error
}

// Service manages the menu catalog. Reads go through Cache; every write drops the
// whole menu namespace once it has committed.
type Service struct {
	DB     *db.DB
	Cache  cache.Cache
	Events EventPublisher
	Log    *logger.Logger
	exp    cache.Expiration
}

func NewService(store *db.DB, c cache.Cache, events EventPublisher, log *logger.Logger, exp cache.Expiration) *Service {
	if c == nil {
		c = cache.Noop{}
	}
	return &Service{DB: store, Cache: c, Events: events, Log: log, exp: exp}
}

func (s *Service) AddMenuItem(ctx context.Context, req models.AddMenuItemRequest) (*models.MenuItem, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperr.Validation("menu item name is required")
	}
	if req.Price < 0 {
		return nil, apperr.Validation("price must not be negative, got %.2f", req.Price)
	}

	item := &models.MenuItem{
		Name:        name,
		Description: req.Description,
		Price:       req.Price,
		Category:    strings.TrimSpace(req.Category),
		IsAvailable: true,
		ImageURL:    req.ImageURL,
	}
	if err := s.DB.CreateMenuItem(ctx, item); err != nil {
		return nil, err
	}
	s.Log.LogMenu("ADD", item.MenuItemID, item.Name)
	s.invalidate(ctx)
	return item, nil
}

// ---------------- QUERIES ----------------

func (s *Service) GetMenuItemByID(ctx context.Context, id int64) (*models.MenuItem, error) {
	return cache.Fetch(ctx, s.Cache, cache.MenuItemByID(id), s.exp, func(ctx context.Context) (*models.MenuItem, error) {
		return s.DB.GetMenuItemByID(ctx, id)
	})
}

func (s *Service) GetAllMenuItems(ctx context.Context) ([]models.MenuItem, error) {
	return cache.Fetch(ctx, s.Cache, cache.KeyAllMenuItems, s.exp, s.DB.GetAllMenuItems)
}

func (s *Service) GetAvailableMenuItems(ctx context.Context) ([]models.MenuItem, error) {
	return cache.Fetch(ctx, s.Cache, cache.KeyAvailableMenuItems, s.exp, s.DB.GetAvailableMenuItems)
}

func (s *Service) GetMenuItemsByCategory(ctx context.Context, category string) ([]models.MenuItem, error) {
	return cache.Fetch(ctx, s.Cache, cache.MenuItemsByCategory(category), s.exp, func(ctx context.Context) ([]models.MenuItem, error) {
		return s.DB.GetMenuItemsByCategory(ctx, category)
	})
}

// ---------------- UPDATES ----------------

func (s *Service) UpdateName(ctx context.Context, id int64, name string) (*models.MenuItem, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("menu item name is required")
	}
	return s.update(ctx, id, "name", name)
}

func (s *Service) UpdateDescription(ctx context.Context, id int64, description string) (*models.MenuItem, error) {
	return s.update(ctx, id, "description", description)
}

func (s *Service) UpdateCategory(ctx context.Context, id int64, category string) (*models.MenuItem, error) {
	return s.update(ctx, id, "category", strings.TrimSpace(category))
}

// UpdatePrice changes the list price. Existing order items keep the price they were
// added at.
func (s *Service) UpdatePrice(ctx context.Context, id int64, price float64) (*models.MenuItem, error) {
	if price < 0 {
		return nil, apperr.Validation("price must not be negative, got %.2f", price)
	}
	item, err := s.update(ctx, id, "price", price)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, models.EventMenuItemPriceChange, item)
	return item, nil
}

func (s *Service) ToggleAvailability(ctx context.Context, id int64) (*models.MenuItem, error) {
	var item *models.MenuItem
	err := s.DB.InTx(ctx, func(ctx context.Context, tx *db.DB) error {
		if err := tx.ToggleAvailability(ctx, id); err != nil {
			return err
		}
		var err error
		item, err = tx.GetMenuItemByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.Log.LogMenu("TOGGLE", id, fmt.Sprintf("available=%t", item.IsAvailable))
	s.invalidate(ctx)
	return item, nil
}

func (s *Service) update(ctx context.Context, id int64, column string, value interface{}) (*models.MenuItem, error) {
	var item *models.MenuItem
	err := s.DB.InTx(ctx, func(ctx context.Context, tx *db.DB) error {
		if err := tx.SetColumn(ctx, id, column, value); err != nil {
			return err
		}
		var err error
		item, err = tx.GetMenuItemByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.Log.LogMenu("UPDATE", id, fmt.Sprintf("%s=%v", column, value))
	s.invalidate(ctx)
	return item, nil
}

// DeleteMenuItem removes an item no order line refers to. Referenced items are a Conflict;
// toggle them unavailable instead.
func (s *Service) DeleteMenuItem(ctx context.Context, id int64) error {
	err := s.DB.InTx(ctx, func(ctx context.Context, tx *db.DB) error {
		if _, err := tx.GetMenuItemByID(ctx, id); err != nil {
			return err
		}
		refs, err := tx.CountReferences(ctx, id)
		if err != nil {
			return err
		}
		if refs > 0 {
			return apperr.Conflict("menu item %d is referenced by %d order items", id, refs)
		}
		return tx.DeleteMenuItem(ctx, id)
	})
	if err != nil {
		return err
	}
	s.Log.LogMenu("DELETE", id, "removed")
	s.invalidate(ctx)
	return nil
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.Cache.InvalidatePrefix(ctx, cache.PrefixMenu); err != nil {
		s.Log.Warn("CACHE", fmt.Sprintf("Failed to invalidate %s: %v", cache.PrefixMenu, err))
	}
}

func (s *Service) publish(ctx context.Context, eventType string, item *models.MenuItem) {
	if s.Events == nil {
		return
	}
	key := strconv.FormatInt(item.MenuItemID, 10)
	if err := s.Events.Publish(ctx, kafka.NewEvent(eventType, key, item)); err != nil {
		s.Log.Warn("KAFKA", fmt.Sprintf("Failed to publish %s for menu item %s: %v", eventType, key, err))
	}
}
