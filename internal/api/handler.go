package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/menu"
	"restaurant-pos/internal/metrics"
	"restaurant-pos/internal/order"
	"restaurant-pos/internal/payment"
	"restaurant-pos/internal/table"
	"restaurant-pos/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Handler exposes the managers over HTTP. Every endpoint answers with utils.APIResponse.
type Handler struct {
	Tables   *table.Service
	Orders   *order.OrderService
	Menu     *menu.Service
	Payments *payment.Service
	Logger   *logger.Logger
}

func NewHandler(tables *table.Service, orders *order.OrderService, menuSvc *menu.Service, payments *payment.Service, log *logger.Logger) *Handler {
	return &Handler{
		Tables:   tables,
		Orders:   orders,
		Menu:     menuSvc,
		Payments: payments,
		Logger:   log,
	}
}

// Router builds the full route tree. requestTimeout bounds each request's context; zero
// disables it.
func (h *Handler) Router(requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(h.accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("healthy", nil))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		if requestTimeout > 0 {
			r.Use(middleware.Timeout(requestTimeout))
		}
		h.registerTableRoutes(r)
		h.registerOrderRoutes(r)
		h.registerOrderItemRoutes(r)
		h.registerMenuItemRoutes(r)
		h.registerPaymentRoutes(r)
	})
	return r
}

func (h *Handler) ok(w http.ResponseWriter, code int, message string, data interface{}) {
	utils.WriteJSON(w, code, utils.SuccessResponse(message, data))
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, message string, err error) {
	resp, code := utils.FromError(message, err)
	if code >= http.StatusInternalServerError {
		h.Logger.Error("API", fmt.Sprintf("%s %s: %s: %v", r.Method, r.URL.Path, message, err))
	}
	utils.WriteJSON(w, code, resp)
}

func (h *Handler) badRequest(w http.ResponseWriter, message, detail string) {
	utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse(utils.StatusBadRequest, message, detail))
}

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func int64Param(r *http.Request, name string) (int64, error) {
	v, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return v, nil
}

func intParam(r *http.Request, name string) (int, error) {
	v, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return v, nil
}

// decodeScalar reads a body that is either a bare JSON value ("Completed", 12.5) or an
// object carrying it under field ({"status": "Completed"}).
func decodeScalar(r *http.Request, field string, v interface{}) error {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return err
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return err
		}
		inner, ok := obj[field]
		if !ok {
			return fmt.Errorf("missing field %q", field)
		}
		trimmed = inner
	}
	return json.Unmarshal(trimmed, v)
}
