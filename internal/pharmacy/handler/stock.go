package handler

import (
	"net/http"

	"github.com/pharmacy/pharmacy-backend/internal/pharmacy/service"
	"github.com/pharmacy/pharmacy-backend/pkg/httputil"
	"github.com/pharmacy/pharmacy-backend/pkg/logger"
)

// StockHandler handles stock administration endpoints
type StockHandler struct {
	service *service.StockService
	logger  *logger.Logger
}

// NewStockHandler creates a new stock handler
func NewStockHandler(svc *service.StockService, log *logger.Logger) *StockHandler {
	return &StockHandler{
		service: svc,
		logger:  log,
	}
}

// AddOrUpdate adds quantity of a medication to a pharmacy
func (h *StockHandler) AddOrUpdate(w http.ResponseWriter, r *http.Request) {
	pharmacyID, err := httputil.URLParamInt64(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req service.AddStockRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	stock, err := h.service.AddOrUpdate(r.Context(), pharmacyID, req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, stock)
}

// Remove removes a medication from a pharmacy
func (h *StockHandler) Remove(w http.ResponseWriter, r *http.Request) {
	pharmacyID, err := httputil.URLParamInt64(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}
	medicationID, err := httputil.URLParamInt64(r, "medicationId")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.service.Remove(r.Context(), pharmacyID, medicationID); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}
