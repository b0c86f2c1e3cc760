package service

import (
	"context"
	"time"

	"github.com/pharmacy/pharmacy-backend/internal/pharmacy/events"
	"github.com/pharmacy/pharmacy-backend/internal/pharmacy/repository"
	"github.com/pharmacy/pharmacy-backend/pkg/errors"
	"github.com/pharmacy/pharmacy-backend/pkg/logger"
)

// Report types counted by the report service
const (
	ReportMedications           = "MEDICATIONS"
	ReportTotalOrders           = "TOTAL_ORDERS"
	ReportCustomerOrders        = "CUSTOMER_ORDERS"
	ReportOutOfStockMedications = "OUT_OF_STOCK_MEDICATIONS"
)

// ReportTypes lists every known report type
var ReportTypes = []string{
	ReportMedications,
	ReportTotalOrders,
	ReportCustomerOrders,
	ReportOutOfStockMedications,
}

// OrderTotalsReport is the totals of orders between two dates, inclusive
type OrderTotalsReport struct {
	StartDate     string  `json:"start_date"`
	EndDate       string  `json:"end_date"`
	TotalQuantity int64   `json:"total_quantity"`
	TotalAmount   float64 `json:"total_amount"`
}

// ReportService answers report queries. Every query first records one use of
// its report type with the report service.
type ReportService struct {
	stock  StockStore
	orders OrderStore
	events *events.PharmacyEventPublisher
	now    func() time.Time
	logger *logger.Logger
}

// NewReportService creates a new report service
func NewReportService(stock StockStore, orders OrderStore, ev *events.PharmacyEventPublisher, log *logger.Logger) *ReportService {
	return &ReportService{
		stock:  stock,
		orders: orders,
		events: ev,
		now:    time.Now,
		logger: log.WithComponent("report-service"),
	}
}

// MedicationsByPharmacy lists the medications stocked at a pharmacy
func (s *ReportService) MedicationsByPharmacy(ctx context.Context, pharmacyID int64) ([]*repository.MedicationStock, error) {
	s.record(ctx, ReportMedications)
	return s.stock.ListByPharmacy(ctx, pharmacyID)
}

// OutOfStockByPharmacy lists the medications of a pharmacy with zero quantity
func (s *ReportService) OutOfStockByPharmacy(ctx context.Context, pharmacyID int64) ([]*repository.MedicationStock, error) {
	s.record(ctx, ReportOutOfStockMedications)
	return s.stock.ListOutOfStock(ctx, pharmacyID)
}

// OrdersByCustomerPhone lists the orders of the customer with the given phone
func (s *ReportService) OrdersByCustomerPhone(ctx context.Context, phone string) ([]*repository.Order, error) {
	if phone == "" {
		return nil, errors.Validation(map[string]string{"phone": "is required"})
	}
	s.record(ctx, ReportCustomerOrders)
	return s.orders.ListByCustomerPhone(ctx, phone)
}

// OrderTotals sums orders placed from the start of start to the end of end
func (s *ReportService) OrderTotals(ctx context.Context, start, end time.Time) (*OrderTotalsReport, error) {
	from := startOfDay(start)
	to := startOfDay(end).AddDate(0, 0, 1)
	if !to.After(from) {
		return nil, errors.Validation(map[string]string{"end_date": "must not be before start_date"})
	}

	s.record(ctx, ReportTotalOrders)
	totals, err := s.orders.Totals(ctx, from, to)
	if err != nil {
		return nil, err
	}

	return &OrderTotalsReport{
		StartDate:     from.Format(time.DateOnly),
		EndDate:       startOfDay(end).Format(time.DateOnly),
		TotalQuantity: totals.TotalQuantity,
		TotalAmount:   totals.TotalAmount,
	}, nil
}

func (s *ReportService) record(ctx context.Context, reportType string) {
	s.logger.Ctx(ctx).Debug().Str("report_type", reportType).Msg("report requested")
	s.events.PublishReportRequested(ctx, reportType, s.now().UTC())
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
