package api

import (
	"net/http"

	"restaurant-pos/internal/models"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) registerOrderItemRoutes(r chi.Router) {
	r.Route("/OrderItem", func(r chi.Router) {
		r.Post("/", h.AddOrderItem)
		r.Get("/all", h.GetAllOrderItems)
		r.Get("/{id}", h.GetOrderItemByID)
		r.Get("/by-item/{id}", h.GetOrderItemsByMenuItemID)
		r.Get("/by-order/{orderId}", h.GetOrderItemsByOrderID)
		r.Get("/total-price/{orderId}", h.GetTotalPriceForOrder)
		r.Get("/exists/{id}", h.OrderItemExists)
		r.Put("/update-details/{id}", h.UpdateOrderItemDetails)
		r.Put("/update-quantity/{id}", h.UpdateOrderItemQuantity)
		r.Delete("/{id}", h.DeleteOrderItem)
	})
}

func (h *Handler) AddOrderItem(w http.ResponseWriter, r *http.Request) {
	var req models.AddOrderItemRequest
	if err := decodeBody(r, &req); err != nil {
		h.badRequest(w, "Invalid request body", err.Error())
		return
	}
	item, err := h.Orders.AddOrderItem(r.Context(), req)
	if err != nil {
		h.fail(w, r, "Could not add order item", err)
		return
	}
	h.ok(w, http.StatusCreated, "Order item added", item)
}

func (h *Handler) GetAllOrderItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.Orders.GetAllOrderItems(r.Context())
	if err != nil {
		h.fail(w, r, "Could not list order items", err)
		return
	}
	h.ok(w, http.StatusOK, "Order items retrieved", items)
}

func (h *Handler) GetOrderItemByID(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		h.badRequest(w, "Invalid order item id", err.Error())
		return
	}
	item, err := h.Orders.GetOrderItemByID(r.Context(), id)
	if err != nil {
		h.fail(w, r, "Could not get order item", err)
		return
	}
	h.ok(w, http.StatusOK, "Order item retrieved", item)
}

func (h *Handler) GetOrderItemsByMenuItemID(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		h.badRequest(w, "Invalid menu item id", err.Error())
		return
	}
	items, err := h.Orders.GetOrderItemsByMenuItemID(r.Context(), id)
	if err != nil {
		h.fail(w, r, "Could not list order items", err)
		return
	}
	h.ok(w, http.StatusOK, "Order items retrieved", items)
}

func (h *Handler) GetOrderItemsByOrderID(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "orderId")
	if err != nil {
		h.badRequest(w, "Invalid order id", err.Error())
		return
	}
	items, err := h.Orders.GetOrderItemsByOrderID(r.Context(), id)
	if err != nil {
		h.fail(w, r, "Could not list order items", err)
		return
	}
	h.ok(w, http.StatusOK, "Order items retrieved", items)
}

func (h *Handler) GetTotalPriceForOrder(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "orderId")
	if err != nil {
		h.badRequest(w, "Invalid order id", err.Error())
		return
	}
	total, err := h.Orders.GetTotalPriceForOrder(r.Context(), id)
	if err != nil {
		h.fail(w, r, "Could not compute order total", err)
		return
	}
	h.ok(w, http.StatusOK, "Order total retrieved", total)
}

func (h *Handler) OrderItemExists(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		h.badRequest(w, "Invalid order item id", err.Error())
		return
	}
	exists, err := h.Orders.OrderItemExists(r.Context(), id)
	if err != nil {
		h.fail(w, r, "Could not check order item", err)
		return
	}
	h.ok(w, http.StatusOK, "Order item checked", exists)
}

func (h *Handler) UpdateOrderItemDetails(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		h.badRequest(w, "Invalid order item id", err.Error())
		return
	}
	var req models.UpdateOrderItemRequest
	if err := decodeBody(r, &req); err != nil {
		h.badRequest(w, "Invalid request body", err.Error())
		return
	}
	item, err := h.Orders.UpdateOrderItemDetails(r.Context(), id, req)
	if err != nil {
		h.fail(w, r, "Could not update order item", err)
		return
	}
	h.ok(w, http.StatusOK, "Order item updated", item)
}

func (h *Handler) UpdateOrderItemQuantity(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		h.badRequest(w, "Invalid order item id", err.Error())
		return
	}
	var quantity int
	if err := decodeScalar(r, "quantity", &quantity); err != nil {
		h.badRequest(w, "Invalid request body", err.Error())
		return
	}
	item, err := h.Orders.UpdateOrderItemQuantity(r.Context(), id, quantity)
	if err != nil {
		h.fail(w, r, "Could not update order item quantity", err)
		return
	}
	h.ok(w, http.StatusOK, "Order item quantity updated", item)
}

func (h *Handler) DeleteOrderItem(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		h.badRequest(w, "Invalid order item id", err.Error())
		return
	}
	if err := h.Orders.DeleteOrderItem(r.Context(), id); err != nil {
		h.fail(w, r, "Could not delete order item", err)
		return
	}
	h.ok(w, http.StatusOK, "Order item deleted", nil)
}
