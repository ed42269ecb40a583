package api

import (
	"net/http"

	"restaurant-pos/internal/models"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) registerOrderRoutes(r chi.Router) {
	r.Route("/Order", func(r chi.Router) {
		r.Post("/", h.CreateOrder)
		r.Get("/", h.GetAllOrders)
		r.Get("/pending", h.GetPendingOrders)
		r.Get("/table/{tableNumber}", h.GetOrdersByTableNumber)
		r.Get("/mostRecent/{tableNumber}", h.GetMostRecentOrderForTable)
		r.Get("/{orderId}", h.GetOrderByID)
		r.Put("/{orderId}/status", h.UpdateOrderStatus)
		r.Put("/{orderId}/price", h.UpdateTotalPrice)
		r.Delete("/{orderId}", h.CancelOrder)
	})
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req models.CreateOrderRequest
	if err := decodeBody(r, &req); err != nil {
		h.badRequest(w, "Invalid request body", err.Error())
		return
	}
	order, err := h.Orders.CreateOrder(r.Context(), req)
	if err != nil {
		h.fail(w, r, "Could not create order", err)
		return
	}
	h.ok(w, http.StatusCreated, "Order created", order)
}

func (h *Handler) GetAllOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Orders.GetAllOrders(r.Context())
	if err != nil {
		h.fail(w, r, "Could not list orders", err)
		return
	}
	h.ok(w, http.StatusOK, "Orders retrieved", orders)
}

func (h *Handler) GetPendingOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Orders.GetPendingOrders(r.Context())
	if err != nil {
		h.fail(w, r, "Could not list pending orders", err)
		return
	}
	h.ok(w, http.StatusOK, "Pending orders retrieved", orders)
}

func (h *Handler) GetOrdersByTableNumber(w http.ResponseWriter, r *http.Request) {
	n, err := intParam(r, "tableNumber")
	if err != nil {
		h.badRequest(w, "Invalid table number", err.Error())
		return
	}
	orders, err := h.Orders.GetOrdersByTableNumber(r.Context(), n)
	if err != nil {
		h.fail(w, r, "Could not list orders for table", err)
		return
	}
	h.ok(w, http.StatusOK, "Orders retrieved", orders)
}

// GetMostRecentOrderForTable answers with null data when the table has no orders.
func (h *Handler) GetMostRecentOrderForTable(w http.ResponseWriter, r *http.Request) {
	n, err := intParam(r, "tableNumber")
	if err != nil {
		h.badRequest(w, "Invalid table number", err.Error())
		return
	}
	order, err := h.Orders.GetMostRecentOrderForTable(r.Context(), n)
	if err != nil {
		h.fail(w, r, "Could not get most recent order", err)
		return
	}
	h.ok(w, http.StatusOK, "Most recent order retrieved", order)
}

func (h *Handler) GetOrderByID(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "orderId")
	if err != nil {
		h.badRequest(w, "Invalid order id", err.Error())
		return
	}
	order, err := h.Orders.GetOrderByID(r.Context(), id)
	if err != nil {
		h.fail(w, r, "Could not get order", err)
		return
	}
	h.ok(w, http.StatusOK, "Order retrieved", order)
}

func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "orderId")
	if err != nil {
		h.badRequest(w, "Invalid order id", err.Error())
		return
	}
	var status string
	if err := decodeScalar(r, "status", &status); err != nil {
		h.badRequest(w, "Invalid request body", err.Error())
		return
	}
	order, err := h.Orders.UpdateStatus(r.Context(), id, status)
	if err != nil {
		h.fail(w, r, "Could not update order status", err)
		return
	}
	h.ok(w, http.StatusOK, "Order status updated", order)
}

func (h *Handler) UpdateTotalPrice(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "orderId")
	if err != nil {
		h.badRequest(w, "Invalid order id", err.Error())
		return
	}
	var price float64
	if err := decodeScalar(r, "totalPrice", &price); err != nil {
		h.badRequest(w, "Invalid request body", err.Error())
		return
	}
	order, err := h.Orders.UpdateTotalPrice(r.Context(), id, price)
	if err != nil {
		h.fail(w, r, "Could not update order price", err)
		return
	}
	h.ok(w, http.StatusOK, "Order price updated", order)
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "orderId")
	if err != nil {
		h.badRequest(w, "Invalid order id", err.Error())
		return
	}
	if err := h.Orders.CancelOrder(r.Context(), id); err != nil {
		h.fail(w, r, "Could not cancel order", err)
		return
	}
	h.ok(w, http.StatusOK, "Order cancelled", nil)
}
