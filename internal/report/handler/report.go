package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pharmacy/pharmacy-backend/internal/report/service"
	"github.com/pharmacy/pharmacy-backend/pkg/httputil"
	"github.com/pharmacy/pharmacy-backend/pkg/logger"
)

// ReportHandler handles report usage endpoints
type ReportHandler struct {
	recorder *service.Recorder
	logger   *logger.Logger
}

// NewReportHandler creates a new report handler
func NewReportHandler(recorder *service.Recorder, log *logger.Logger) *ReportHandler {
	return &ReportHandler{
		recorder: recorder,
		logger:   log,
	}
}

// Mount registers the report routes
func (h *ReportHandler) Mount(r chi.Router) {
	r.Route("/report", func(r chi.Router) {
		r.Post("/record", h.Record)
		r.Get("/requests", h.List)
		r.Get("/requests/{name}", h.Get)
	})
}

// Record counts one use of the report named by the reportName query parameter
func (h *ReportHandler) Record(w http.ResponseWriter, r *http.Request) {
	rr, err := h.recorder.Record(r.Context(), r.URL.Query().Get("reportName"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, rr)
}

// List returns every report usage counter
func (h *ReportHandler) List(w http.ResponseWriter, r *http.Request) {
	rows, err := h.recorder.List(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, rows, &httputil.Meta{Total: int64(len(rows))})
}

// Get returns the usage counter of one report
func (h *ReportHandler) Get(w http.ResponseWriter, r *http.Request) {
	rr, err := h.recorder.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, rr)
}
