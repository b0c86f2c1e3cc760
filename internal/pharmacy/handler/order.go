package handler

import (
	"net/http"

	"github.com/pharmacy/pharmacy-backend/internal/pharmacy/repository"
	"github.com/pharmacy/pharmacy-backend/internal/pharmacy/service"
	"github.com/pharmacy/pharmacy-backend/pkg/errors"
	"github.com/pharmacy/pharmacy-backend/pkg/httputil"
	"github.com/pharmacy/pharmacy-backend/pkg/logger"
)

// OrderHandler handles order endpoints
type OrderHandler struct {
	service *service.OrderService
	logger  *logger.Logger
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(svc *service.OrderService, log *logger.Logger) *OrderHandler {
	return &OrderHandler{
		service: svc,
		logger:  log,
	}
}

// Place places a new order, or amends the order named by the body's id
func (h *OrderHandler) Place(w http.ResponseWriter, r *http.Request) {
	var req service.PlaceOrderRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	order, err := h.service.PlaceOrder(r.Context(), req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, order)
}

// Amend re-validates and overwrites an existing order
func (h *OrderHandler) Amend(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.URLParamInt64(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req service.PlaceOrderRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	order, err := h.service.AmendOrder(r.Context(), id, req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, order)
}

// Get gets an order by ID
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.URLParamInt64(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	order, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, order)
}

// List lists orders filtered by query parameters
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := orderFilter(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	orders, err := h.service.ListOrders(r.Context(), filter)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	if orders == nil {
		orders = []*repository.Order{}
	}

	httputil.JSONWithMeta(w, http.StatusOK, orders, &httputil.Meta{Total: int64(len(orders))})
}

func orderFilter(r *http.Request) (repository.OrderFilter, error) {
	var (
		filter repository.OrderFilter
		err    error
	)

	params := []struct {
		name string
		dst  **int64
	}{
		{"customer_id", &filter.CustomerID},
		{"employee_id", &filter.EmployeeID},
		{"pharmacy_id", &filter.PharmacyID},
		{"medication_id", &filter.MedicationID},
	}
	for _, p := range params {
		if *p.dst, err = httputil.QueryInt64(r, p.name); err != nil {
			return filter, err
		}
	}

	if raw := r.URL.Query().Get("status"); raw != "" {
		status := repository.OrderStatus(raw)
		if !status.Valid() {
			return filter, errors.Validation(map[string]string{"status": "must be one of: NEW, COMPLETED, CANCELLED"})
		}
		filter.Status = &status
	}

	if filter.OrderDate, err = httputil.QueryDate(r, "order_date"); err != nil {
		return filter, err
	}

	return filter, nil
}
