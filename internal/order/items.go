package order

import (
	"context"
	"fmt"

	"restaurant-pos/internal/apperr"
	"restaurant-pos/internal/cache"
	"restaurant-pos/internal/models"
	"restaurant-pos/internal/order/db"
)

// ---------------- ORDER ITEMS ----------------

// AddOrderItem adds a line to a Pending order. The menu item's current price is copied
// onto the line and the order total is recomputed in the same transaction.
func (s *OrderService) AddOrderItem(ctx context.Context, req models.AddOrderItemRequest) (*models.OrderItem, error) {
	if req.Quantity <= 0 {
		return nil, apperr.Validation("quantity must be positive, got %d", req.Quantity)
	}

	var item *models.OrderItem
	err := s.withOrderLock(ctx, req.OrderID, func(ctx context.Context, tx *db.DB) error {
		if err := requirePending(ctx, tx, req.OrderID); err != nil {
			return err
		}
		menuItem, err := orderableMenuItem(ctx, tx, req.MenuItemID)
		if err != nil {
			return err
		}
		item = &models.OrderItem{
			OrderID:    req.OrderID,
			MenuItemID: menuItem.MenuItemID,
			Quantity:   req.Quantity,
			ItemPrice:  menuItem.Price,
		}
		if err := tx.CreateOrderItem(ctx, item); err != nil {
			return err
		}
		_, err = recomputeTotal(ctx, tx, req.OrderID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Log.LogOrder("ADD_ITEM", req.OrderID, fmt.Sprintf("menu item %d x%d @ %.2f", item.MenuItemID, item.Quantity, item.ItemPrice))
	s.invalidate(ctx, cache.PrefixOrder, cache.PrefixOrderItem)
	return item, nil
}

// UpdateOrderItemQuantity changes the quantity and keeps the price snapshot.
func (s *OrderService) UpdateOrderItemQuantity(ctx context.Context, id int64, quantity int) (*models.OrderItem, error) {
	if quantity <= 0 {
		return nil, apperr.Validation("quantity must be positive, got %d", quantity)
	}
	return s.mutateItem(ctx, id, "UPDATE_ITEM", func(ctx context.Context, tx *db.DB, item *models.OrderItem) error {
		item.Quantity = quantity
		return tx.UpdateOrderItem(ctx, item)
	})
}

// UpdateOrderItemDetails points the line at a (possibly different) menu item, taking a new
// price snapshot, and sets the quantity.
func (s *OrderService) UpdateOrderItemDetails(ctx context.Context, id int64, req models.UpdateOrderItemRequest) (*models.OrderItem, error) {
	if req.Quantity <= 0 {
		return nil, apperr.Validation("quantity must be positive, got %d", req.Quantity)
	}
	return s.mutateItem(ctx, id, "UPDATE_ITEM", func(ctx context.Context, tx *db.DB, item *models.OrderItem) error {
		menuItem, err := orderableMenuItem(ctx, tx, req.MenuItemID)
		if err != nil {
			return err
		}
		item.MenuItemID = menuItem.MenuItemID
		item.ItemPrice = menuItem.Price
		item.Quantity = req.Quantity
		return tx.UpdateOrderItem(ctx, item)
	})
}

func (s *OrderService) DeleteOrderItem(ctx context.Context, id int64) error {
	_, err := s.mutateItem(ctx, id, "DELETE_ITEM", func(ctx context.Context, tx *db.DB, item *models.OrderItem) error {
		return tx.DeleteOrderItem(ctx, item.OrderItemID)
	})
	return err
}

// mutateItem locks the owning order, checks it is Pending, applies fn and recomputes the
// order total, all in one transaction.
func (s *OrderService) mutateItem(ctx context.Context, id int64, action string, fn func(ctx context.Context, tx *db.DB, item *models.OrderItem) error) (*models.OrderItem, error) {
	existing, err := s.DB.GetOrderItemByID(ctx, id)
	if err != nil {
		return nil, err
	}
	orderID := existing.OrderID

	var item *models.OrderItem
	err = s.withOrderLock(ctx, orderID, func(ctx context.Context, tx *db.DB) error {
		current, err := tx.GetOrderItemByID(ctx, id)
		if err != nil {
			return err
		}
		if current.OrderID != orderID {
			return apperr.Conflict("order item %d moved to another order", id)
		}
		if err := requirePending(ctx, tx, orderID); err != nil {
			return err
		}
		if err := fn(ctx, tx, current); err != nil {
			return err
		}
		item = current
		_, err = recomputeTotal(ctx, tx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Log.LogOrder(action, orderID, fmt.Sprintf("order item %d", id))
	s.invalidate(ctx, cache.PrefixOrder, cache.PrefixOrderItem)
	return item, nil
}

func requirePending(ctx context.Context, tx *db.DB, orderID int64) error {
	order, err := tx.GetOrderByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.OrderStatus != models.OrderStatusPending {
		return apperr.Validation("order %d is %s; its items can no longer change", orderID, order.OrderStatus)
	}
	return nil
}

func orderableMenuItem(ctx context.Context, tx *db.DB, menuItemID int64) (*models.MenuItem, error) {
	menuItem, err := tx.GetMenuItemByID(ctx, menuItemID)
	if err != nil {
		return nil, err
	}
	if !menuItem.IsAvailable {
		return nil, apperr.Validation("menu item %d is not available", menuItemID)
	}
	return menuItem, nil
}

func (s *OrderService) GetOrderItemByID(ctx context.Context, id int64) (*models.OrderItem, error) {
	return cache.Fetch(ctx, s.Cache, cache.OrderItemByID(id), s.exp, func(ctx context.Context) (*models.OrderItem, error) {
		return s.DB.GetOrderItemByID(ctx, id)
	})
}

// GetOrderItemsByOrderID lists an order's lines; NotFound when the order does not exist.
func (s *OrderService) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	return cache.Fetch(ctx, s.Cache, cache.OrderItemsByOrder(orderID), s.exp, func(ctx context.Context) ([]models.OrderItem, error) {
		if _, err := s.DB.GetOrderByID(ctx, orderID); err != nil {
			return nil, err
		}
		return s.DB.GetOrderItemsByOrderID(ctx, orderID)
	})
}

func (s *OrderService) GetOrderItemsByMenuItemID(ctx context.Context, menuItemID int64) ([]models.OrderItem, error) {
	return s.DB.GetOrderItemsByMenuItemID(ctx, menuItemID)
}

func (s *OrderService) GetAllOrderItems(ctx context.Context) ([]models.OrderItem, error) {
	return s.DB.GetAllOrderItems(ctx)
}

func (s *OrderService) OrderItemExists(ctx context.Context, id int64) (bool, error) {
	return s.DB.OrderItemExists(ctx, id)
}

// GetTotalPriceForOrder sums quantity x snapshot price over the order's items.
func (s *OrderService) GetTotalPriceForOrder(ctx context.Context, orderID int64) (float64, error) {
	items, err := s.GetOrderItemsByOrderID(ctx, orderID)
	if err != nil {
		return 0, err
	}
	return sumItems(items), nil
}
