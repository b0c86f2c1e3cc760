package service

import (
	"context"

	"github.com/pharmacy/pharmacy-backend/internal/pharmacy/events"
	"github.com/pharmacy/pharmacy-backend/internal/pharmacy/repository"
	"github.com/pharmacy/pharmacy-backend/pkg/errors"
	"github.com/pharmacy/pharmacy-backend/pkg/logger"
)

// AddStockRequest adds units of a medication to a pharmacy
type AddStockRequest struct {
	MedicationID int64 `json:"medication_id" validate:"required,gt=0"`
	Quantity     int   `json:"quantity" validate:"gte=0"`
}

// StockService administers stock associations
type StockService struct {
	stores Stores
	events *events.PharmacyEventPublisher
	logger *logger.Logger
}

// NewStockService creates a new stock service
func NewStockService(stores Stores, ev *events.PharmacyEventPublisher, log *logger.Logger) *StockService {
	return &StockService{
		stores: stores,
		events: ev,
		logger: log.WithComponent("stock-service"),
	}
}

// AddOrUpdate creates the association or adds req.Quantity to it
func (s *StockService) AddOrUpdate(ctx context.Context, pharmacyID int64, req AddStockRequest) (*repository.StockAssociation, error) {
	if req.Quantity < 0 {
		return nil, errors.Validation(map[string]string{"quantity": "must be at least 0"})
	}
	if _, err := s.stores.Pharmacies.GetByID(ctx, pharmacyID); err != nil {
		return nil, referenceError(err, "pharmacy", pharmacyID)
	}
	if _, err := s.stores.Medications.GetByID(ctx, req.MedicationID); err != nil {
		return nil, referenceError(err, "medication", req.MedicationID)
	}

	stock, err := s.stores.Stock.AddOrUpdate(ctx, pharmacyID, req.MedicationID, req.Quantity)
	if err != nil {
		return nil, err
	}

	s.logger.Ctx(ctx).Info().
		Int64("pharmacy_id", pharmacyID).
		Int64("medication_id", req.MedicationID).
		Int("added", req.Quantity).
		Int("quantity", stock.Quantity).
		Msg("stock updated")

	s.events.PublishStockUpdated(ctx, stock, false)
	return stock, nil
}

// Remove deletes a medication from a pharmacy's stock
func (s *StockService) Remove(ctx context.Context, pharmacyID, medicationID int64) error {
	if err := s.stores.Stock.Delete(ctx, pharmacyID, medicationID); err != nil {
		return err
	}

	s.logger.Ctx(ctx).Info().Int64("pharmacy_id", pharmacyID).Int64("medication_id", medicationID).Msg("stock removed")
	s.events.PublishStockUpdated(ctx, &repository.StockAssociation{
		PharmacyID:   pharmacyID,
		MedicationID: medicationID,
	}, true)
	return nil
}
