package api

import (
	"context"
	"fmt"
	"net/http"

	"restaurant-pos/internal/models"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) registerTableRoutes(r chi.Router) {
	r.Route("/Table", func(r chi.Router) {
		r.Post("/AddTable", h.AddTable)
		r.Get("/GetAllTables", h.GetAllTables)
		r.Get("/GetTableById/{tableId}", h.GetTableByID)
		r.Get("/CheckAvailability/{tableNumber}", h.CheckAvailability)
		r.Get("/GetTableStatus/{tableNumber}", h.GetTableStatus)
		r.Get("/GetCurrentOrder/{tableNumber}", h.GetCurrentOrder)
		r.Get("/GetOrdersByTable/{tableNumber}", h.GetOrdersByTable)
		r.Post("/ReserveTable/{tableNumber}", h.ReserveTable)
		r.Post("/ReleaseTable/{tableNumber}", h.ReleaseTable)
		r.Put("/UpdateTable/{tableNumber}", h.UpdateTable)
		r.Delete("/DeleteTable/{tableNumber}", h.DeleteTable)
	})
}

func (h *Handler) AddTable(w http.ResponseWriter, r *http.Request) {
	var req models.AddTableRequest
	if err := decodeBody(r, &req); err != nil {
		h.badRequest(w, "Invalid request body", err.Error())
		return
	}
	table, err := h.Tables.AddTable(r.Context(), req)
	if err != nil {
		h.fail(w, r, "Could not add table", err)
		return
	}
	h.ok(w, http.StatusCreated, "Table added", table)
}

func (h *Handler) GetAllTables(w http.ResponseWriter, r *http.Request) {
	tables, err := h.Tables.GetAllTables(r.Context())
	if err != nil {
		h.fail(w, r, "Could not list tables", err)
		return
	}
	h.ok(w, http.StatusOK, "Tables retrieved", tables)
}

func (h *Handler) GetTableByID(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "tableId")
	if err != nil {
		h.badRequest(w, "Invalid table id", err.Error())
		return
	}
	table, err := h.Tables.GetTableByID(r.Context(), id)
	if err != nil {
		h.fail(w, r, "Could not get table", err)
		return
	}
	h.ok(w, http.StatusOK, "Table retrieved", table)
}

func (h *Handler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	n, err := intParam(r, "tableNumber")
	if err != nil {
		h.badRequest(w, "Invalid table number", err.Error())
		return
	}
	available, err := h.Tables.CheckAvailability(r.Context(), n)
	if err != nil {
		h.fail(w, r, "Could not check availability", err)
		return
	}
	h.ok(w, http.StatusOK, "Availability retrieved", available)
}

func (h *Handler) GetTableStatus(w http.ResponseWriter, r *http.Request) {
	n, err := intParam(r, "tableNumber")
	if err != nil {
		h.badRequest(w, "Invalid table number", err.Error())
		return
	}
	status, err := h.Tables.GetStatus(r.Context(), n)
	if err != nil {
		h.fail(w, r, "Could not get table status", err)
		return
	}
	h.ok(w, http.StatusOK, "Status retrieved", status)
}

func (h *Handler) GetCurrentOrder(w http.ResponseWriter, r *http.Request) {
	n, err := intParam(r, "tableNumber")
	if err != nil {
		h.badRequest(w, "Invalid table number", err.Error())
		return
	}
	order, err := h.Tables.GetCurrentOrder(r.Context(), n)
	if err != nil {
		h.fail(w, r, "No current order for this table", err)
		return
	}
	h.ok(w, http.StatusOK, "Current order retrieved", order)
}

func (h *Handler) GetOrdersByTable(w http.ResponseWriter, r *http.Request) {
	n, err := intParam(r, "tableNumber")
	if err != nil {
		h.badRequest(w, "Invalid table number", err.Error())
		return
	}
	orders, err := h.Tables.GetOrdersByTable(r.Context(), n)
	if err != nil {
		h.fail(w, r, "Could not list orders for table", err)
		return
	}
	h.ok(w, http.StatusOK, "Orders retrieved", orders)
}

func (h *Handler) ReserveTable(w http.ResponseWriter, r *http.Request) {
	h.transitionTable(w, r, "reserve", h.Tables.Reserve)
}

func (h *Handler) ReleaseTable(w http.ResponseWriter, r *http.Request) {
	h.transitionTable(w, r, "release", h.Tables.Release)
}

// transitionTable answers 400 when the table exists but is already in the target state.
func (h *Handler) transitionTable(w http.ResponseWriter, r *http.Request, action string,
	fn func(ctx context.Context, n int) (bool, error)) {
	n, err := intParam(r, "tableNumber")
	if err != nil {
		h.badRequest(w, "Invalid table number", err.Error())
		return
	}
	changed, err := fn(r.Context(), n)
	if err != nil {
		h.fail(w, r, fmt.Sprintf("Could not %s table", action), err)
		return
	}
	if !changed {
		h.badRequest(w, fmt.Sprintf("Could not %s table", action), fmt.Sprintf("table %d is not in a state that allows %s", n, action))
		return
	}
	h.ok(w, http.StatusOK, fmt.Sprintf("Table %d %sd", n, action), true)
}

func (h *Handler) UpdateTable(w http.ResponseWriter, r *http.Request) {
	n, err := intParam(r, "tableNumber")
	if err != nil {
		h.badRequest(w, "Invalid table number", err.Error())
		return
	}
	var req models.UpdateTableRequest
	if err := decodeBody(r, &req); err != nil {
		h.badRequest(w, "Invalid request body", err.Error())
		return
	}
	table, err := h.Tables.UpdateTable(r.Context(), n, req)
	if err != nil {
		h.fail(w, r, "Could not update table", err)
		return
	}
	h.ok(w, http.StatusOK, "Table updated", table)
}

func (h *Handler) DeleteTable(w http.ResponseWriter, r *http.Request) {
	n, err := intParam(r, "tableNumber")
	if err != nil {
		h.badRequest(w, "Invalid table number", err.Error())
		return
	}
	if err := h.Tables.DeleteTable(r.Context(), n); err != nil {
		h.fail(w, r, "Could not delete table", err)
		return
	}
	h.ok(w, http.StatusOK, "Table deleted", nil)
}
