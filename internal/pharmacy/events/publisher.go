package events

import (
	"context"
	"time"

	"github.com/pharmacy/pharmacy-backend/internal/pharmacy/repository"
	"github.com/pharmacy/pharmacy-backend/pkg/logger"
	"github.com/pharmacy/pharmacy-backend/pkg/messaging"
)

// Publisher is satisfied by *messaging.Publisher
type Publisher interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// PharmacyEventPublisher publishes pharmacy domain events and report usage requests.
// A nil *PharmacyEventPublisher is valid and publishes nothing.
type PharmacyEventPublisher struct {
	pharmacy Publisher
	reports  Publisher
	logger   *logger.Logger
}

// New creates a publisher from already declared exchange publishers
func New(pharmacy, reports Publisher, log *logger.Logger) *PharmacyEventPublisher {
	return &PharmacyEventPublisher{
		pharmacy: pharmacy,
		reports:  reports,
		logger:   log,
	}
}

// NewPharmacyEventPublisher declares the pharmacy and report exchanges on rmq
func NewPharmacyEventPublisher(rmq *messaging.RabbitMQ, source string, log *logger.Logger) (*PharmacyEventPublisher, error) {
	pharmacy, err := messaging.NewPublisher(rmq, messaging.ExchangePharmacyEvents, source, log)
	if err != nil {
		return nil, err
	}

	reports, err := messaging.NewPublisher(rmq, messaging.ExchangeReportEvents, source, log)
	if err != nil {
		return nil, err
	}

	return New(pharmacy, reports, log), nil
}

// PublishOrderPlaced publishes a committed order
func (p *PharmacyEventPublisher) PublishOrderPlaced(ctx context.Context, order *repository.Order, amended bool) {
	if p == nil {
		return
	}

	data := messaging.OrderPlacedEvent{
		OrderID:      order.ID,
		CustomerID:   order.CustomerID,
		EmployeeID:   order.EmployeeID,
		PharmacyID:   order.PharmacyID,
		MedicationID: order.MedicationID,
		Quantity:     order.Quantity,
		TotalAmount:  order.TotalAmount,
		OrderDate:    order.OrderDate,
		Status:       string(order.Status),
		Amended:      amended,
	}

	if err := p.pharmacy.Publish(ctx, messaging.EventOrderPlaced, data); err != nil {
		p.logger.Ctx(ctx).Error().Err(err).Int64("order_id", order.ID).Msg("failed to publish order placed event")
	}
}

// PublishStockLow publishes the low-stock items of one pharmacy
func (p *PharmacyEventPublisher) PublishStockLow(ctx context.Context, pharmacyID int64, threshold int, items []*repository.MedicationStock) {
	if p == nil {
		return
	}

	data := messaging.StockLowEvent{
		PharmacyID: pharmacyID,
		Threshold:  threshold,
		Items:      make([]messaging.LowStockItem, 0, len(items)),
	}
	for _, item := range items {
		data.Items = append(data.Items, messaging.LowStockItem{
			MedicationID: item.MedicationID,
			Name:         item.Name,
			Quantity:     item.Quantity,
		})
	}

	if err := p.pharmacy.Publish(ctx, messaging.EventStockLow, data); err != nil {
		p.logger.Ctx(ctx).Error().Err(err).Int64("pharmacy_id", pharmacyID).Msg("failed to publish stock low event")
	}
}

// PublishStockUpdated publishes an administrative stock change
func (p *PharmacyEventPublisher) PublishStockUpdated(ctx context.Context, stock *repository.StockAssociation, removed bool) {
	if p == nil {
		return
	}

	data := messaging.StockUpdatedEvent{
		PharmacyID:   stock.PharmacyID,
		MedicationID: stock.MedicationID,
		Quantity:     stock.Quantity,
		Removed:      removed,
	}

	if err := p.pharmacy.Publish(ctx, messaging.EventStockUpdated, data); err != nil {
		p.logger.Ctx(ctx).Error().Err(err).
			Int64("pharmacy_id", stock.PharmacyID).
			Int64("medication_id", stock.MedicationID).
			Msg("failed to publish stock updated event")
	}
}

// PublishReportRequested asks the report service to count one use of a report.
// Delivery is best effort.
func (p *PharmacyEventPublisher) PublishReportRequested(ctx context.Context, reportName string, at time.Time) {
	if p == nil {
		return
	}

	data := messaging.ReportRequestedEvent{
		ReportName:  reportName,
		RequestedAt: at,
	}

	if err := p.reports.Publish(ctx, messaging.EventReportRequest, data); err != nil {
		p.logger.Ctx(ctx).Warn().Err(err).Str("report_name", reportName).Msg("failed to record report usage")
	}
}
