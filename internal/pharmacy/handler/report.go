package handler

import (
	"net/http"

	"github.com/pharmacy/pharmacy-backend/internal/pharmacy/repository"
	"github.com/pharmacy/pharmacy-backend/internal/pharmacy/service"
	"github.com/pharmacy/pharmacy-backend/pkg/errors"
	"github.com/pharmacy/pharmacy-backend/pkg/httputil"
	"github.com/pharmacy/pharmacy-backend/pkg/logger"
)

// ReportHandler handles report endpoints
type ReportHandler struct {
	service *service.ReportService
	logger  *logger.Logger
}

// NewReportHandler creates a new report handler
func NewReportHandler(svc *service.ReportService, log *logger.Logger) *ReportHandler {
	return &ReportHandler{
		service: svc,
		logger:  log,
	}
}

// MedicationsByPharmacy lists the medications stocked at a pharmacy
func (h *ReportHandler) MedicationsByPharmacy(w http.ResponseWriter, r *http.Request) {
	pharmacyID, err := httputil.URLParamInt64(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	items, err := h.service.MedicationsByPharmacy(r.Context(), pharmacyID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	writeStock(w, items)
}

// OutOfStock lists the medications a pharmacy has run out of
func (h *ReportHandler) OutOfStock(w http.ResponseWriter, r *http.Request) {
	pharmacyID, err := httputil.URLParamInt64(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	items, err := h.service.OutOfStockByPharmacy(r.Context(), pharmacyID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	writeStock(w, items)
}

// OrderTotals sums orders between start_date and end_date, inclusive
func (h *ReportHandler) OrderTotals(w http.ResponseWriter, r *http.Request) {
	start, err := httputil.QueryDate(r, "start_date")
	if err != nil {
		httputil.Error(w, err)
		return
	}
	end, err := httputil.QueryDate(r, "end_date")
	if err != nil {
		httputil.Error(w, err)
		return
	}
	if start == nil || end == nil {
		httputil.Error(w, errors.BadRequest("start_date and end_date are required"))
		return
	}

	report, err := h.service.OrderTotals(r.Context(), *start, *end)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, report)
}

// OrdersByCustomerPhone lists the orders of a customer
func (h *ReportHandler) OrdersByCustomerPhone(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.OrdersByCustomerPhone(r.Context(), r.URL.Query().Get("phone"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	if orders == nil {
		orders = []*repository.Order{}
	}

	httputil.JSONWithMeta(w, http.StatusOK, orders, &httputil.Meta{Total: int64(len(orders))})
}

func writeStock(w http.ResponseWriter, items []*repository.MedicationStock) {
	if items == nil {
		items = []*repository.MedicationStock{}
	}
	httputil.JSONWithMeta(w, http.StatusOK, items, &httputil.Meta{Total: int64(len(items))})
}
