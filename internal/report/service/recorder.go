package service

import (
	"context"
	"strings"
	"time"

	"github.com/pharmacy/pharmacy-backend/internal/report/repository"
	"github.com/pharmacy/pharmacy-backend/pkg/errors"
	"github.com/pharmacy/pharmacy-backend/pkg/logger"
)

// Known report types
const (
	ReportMedications           = "MEDICATIONS"
	ReportTotalOrders           = "TOTAL_ORDERS"
	ReportCustomerOrders        = "CUSTOMER_ORDERS"
	ReportOutOfStockMedications = "OUT_OF_STOCK_MEDICATIONS"
)

var knownReports = map[string]struct{}{
	ReportMedications:           {},
	ReportTotalOrders:           {},
	ReportCustomerOrders:        {},
	ReportOutOfStockMedications: {},
}

// UsageStore persists report usage counters
type UsageStore interface {
	Increment(ctx context.Context, name string, at time.Time) (*repository.ReportRequest, error)
	GetByName(ctx context.Context, name string) (*repository.ReportRequest, error)
	List(ctx context.Context) ([]*repository.ReportRequest, error)
}

// Recorder counts how often each report is requested
type Recorder struct {
	store  UsageStore
	now    func() time.Time
	logger *logger.Logger
}

// NewRecorder creates a new report usage recorder
func NewRecorder(store UsageStore, log *logger.Logger) *Recorder {
	return &Recorder{
		store:  store,
		now:    time.Now,
		logger: log.WithComponent("report-recorder"),
	}
}

// WithClock overrides the time source
func (r *Recorder) WithClock(now func() time.Time) *Recorder {
	r.now = now
	return r
}

// Record counts one use of reportType at the current time
func (r *Recorder) Record(ctx context.Context, reportType string) (*repository.ReportRequest, error) {
	return r.RecordAt(ctx, reportType, r.now())
}

// RecordAt counts one use of reportType at the given time. Events from the
// bus carry their own request time.
func (r *Recorder) RecordAt(ctx context.Context, reportType string, at time.Time) (*repository.ReportRequest, error) {
	name, err := normalize(reportType)
	if err != nil {
		return nil, err
	}

	rr, err := r.store.Increment(ctx, name, at.UTC())
	if err != nil {
		return nil, err
	}

	r.logger.Debug().
		Str("report", name).
		Int64("count", rr.RequestCount).
		Msg("report request recorded")

	return rr, nil
}

// Get returns the counter of one report type
func (r *Recorder) Get(ctx context.Context, reportType string) (*repository.ReportRequest, error) {
	name, err := normalize(reportType)
	if err != nil {
		return nil, err
	}
	return r.store.GetByName(ctx, name)
}

// List returns every counter
func (r *Recorder) List(ctx context.Context) ([]*repository.ReportRequest, error) {
	return r.store.List(ctx)
}

func normalize(reportType string) (string, error) {
	name := strings.ToUpper(strings.TrimSpace(reportType))
	if name == "" {
		return "", errors.Validation(map[string]string{"reportName": "is required"})
	}
	if _, ok := knownReports[name]; !ok {
		return "", errors.Validation(map[string]string{"reportName": "unknown report type " + reportType})
	}
	return name, nil
}
