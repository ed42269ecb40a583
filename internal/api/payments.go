package api

import (
	"net/http"

	"restaurant-pos/internal/models"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) registerPaymentRoutes(r chi.Router) {
	r.Route("/Payment", func(r chi.Router) {
		r.Post("/", h.ProcessPayment)
		r.Get("/", h.GetAllPayments)
		r.Get("/{id}", h.GetPaymentByID)
		r.Post("/refund/{id}", h.RefundPayment)
	})
}

func (h *Handler) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	var req models.ProcessPaymentRequest
	if err := decodeBody(r, &req); err != nil {
		h.badRequest(w, "Invalid request body", err.Error())
		return
	}
	p, err := h.Payments.ProcessPayment(r.Context(), req)
	if err != nil {
		h.fail(w, r, "Payment was not recorded", err)
		return
	}
	h.ok(w, http.StatusCreated, "Payment recorded", p)
}

func (h *Handler) GetAllPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.Payments.GetAllPayments(r.Context())
	if err != nil {
		h.fail(w, r, "Could not list payments", err)
		return
	}
	h.ok(w, http.StatusOK, "Payments retrieved", payments)
}

func (h *Handler) GetPaymentByID(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		h.badRequest(w, "Invalid payment id", err.Error())
		return
	}
	p, err := h.Payments.GetPaymentByID(r.Context(), id)
	if err != nil {
		h.fail(w, r, "Could not get payment", err)
		return
	}
	h.ok(w, http.StatusOK, "Payment retrieved", p)
}

func (h *Handler) RefundPayment(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		h.badRequest(w, "Invalid payment id", err.Error())
		return
	}
	p, err := h.Payments.RefundPayment(r.Context(), id)
	if err != nil {
		h.fail(w, r, "Could not refund payment", err)
		return
	}
	h.ok(w, http.StatusOK, "Payment refunded", p)
}
