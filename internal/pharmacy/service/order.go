package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/pharmacy/pharmacy-backend/internal/pharmacy/events"
	"github.com/pharmacy/pharmacy-backend/internal/pharmacy/repository"
	"github.com/pharmacy/pharmacy-backend/pkg/config"
	"github.com/pharmacy/pharmacy-backend/pkg/errors"
	"github.com/pharmacy/pharmacy-backend/pkg/logger"
)

// PlaceOrderRequest is a proposed order. A non-nil ID naming an existing
// order amends that order.
type PlaceOrderRequest struct {
	ID           *int64                 `json:"id,omitempty"`
	CustomerID   int64                  `json:"customer_id" validate:"required,gt=0"`
	EmployeeID   int64                  `json:"employee_id" validate:"required,gt=0"`
	PharmacyID   int64                  `json:"pharmacy_id" validate:"required,gt=0"`
	MedicationID int64                  `json:"medication_id" validate:"required,gt=0"`
	Quantity     int                    `json:"quantity" validate:"required,gt=0"`
	Status       repository.OrderStatus `json:"status,omitempty" validate:"omitempty,oneof=NEW COMPLETED CANCELLED"`
}

// OrderService validates and commits orders against the stock ledger
type OrderService struct {
	tx             TxRunner
	stores         Stores
	events         *events.PharmacyEventPublisher
	restoreOnAmend bool
	now            func() time.Time
	logger         *logger.Logger
}

// NewOrderService creates a new order service
func NewOrderService(tx TxRunner, stores Stores, ev *events.PharmacyEventPublisher, cfg config.OrdersConfig, log *logger.Logger) *OrderService {
	return &OrderService{
		tx:             tx,
		stores:         stores,
		events:         ev,
		restoreOnAmend: cfg.RestoreStockOnAmend,
		now:            time.Now,
		logger:         log.WithComponent("order-service"),
	}
}

// WithClock replaces the clock used for order dates
func (s *OrderService) WithClock(now func() time.Time) *OrderService {
	s.now = now
	return s
}

// PlaceOrder commits a new order, or amends the order named by req.ID when it exists.
// Either every check passes and the order plus its stock decrement are committed
// together, or nothing changes.
func (s *OrderService) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*repository.Order, error) {
	return s.commit(ctx, req.ID, req, true)
}

// AmendOrder re-validates and overwrites an existing order
func (s *OrderService) AmendOrder(ctx context.Context, id int64, req PlaceOrderRequest) (*repository.Order, error) {
	return s.commit(ctx, &id, req, false)
}

// GetOrder gets an order by ID
func (s *OrderService) GetOrder(ctx context.Context, id int64) (*repository.Order, error) {
	return s.stores.Orders.GetByID(ctx, id)
}

// ListOrders lists orders matching filter
func (s *OrderService) ListOrders(ctx context.Context, filter repository.OrderFilter) ([]*repository.Order, error) {
	return s.stores.Orders.List(ctx, filter)
}

// commit runs the whole workflow in one transaction. With upsert set, an id
// that names no order falls through to a create; the existence check is part
// of the same transaction.
func (s *OrderService) commit(ctx context.Context, id *int64, req PlaceOrderRequest, upsert bool) (*repository.Order, error) {
	if req.Quantity <= 0 {
		return nil, errors.Validation(map[string]string{"quantity": "must be greater than 0"})
	}
	if req.Status != "" && !req.Status.Valid() {
		return nil, errors.Validation(map[string]string{"status": "must be one of: NEW, COMPLETED, CANCELLED"})
	}

	var (
		order   *repository.Order
		amended bool
	)
	err := s.tx.Transaction(ctx, func(ctx context.Context) error {
		id := id
		var previous *repository.Order
		if id != nil && upsert {
			exists, err := s.stores.Orders.Exists(ctx, *id)
			if err != nil {
				return err
			}
			if !exists {
				id = nil
			} else {
				s.logger.Ctx(ctx).Info().Int64("order_id", *id).Msg("order already exists, amending it")
			}
		}
		if id != nil {
			prev, err := s.stores.Orders.GetByID(ctx, *id)
			if err != nil {
				if errors.Is(err, errors.ErrNotFound) {
					return errors.ReferenceNotFound("order", *id)
				}
				return err
			}
			previous = prev

			if s.restoreOnAmend {
				if err := s.restore(ctx, previous); err != nil {
					return err
				}
			}
		}

		medication, err := s.validate(ctx, req)
		if err != nil {
			return err
		}

		order = &repository.Order{
			CustomerID:   req.CustomerID,
			EmployeeID:   req.EmployeeID,
			PharmacyID:   req.PharmacyID,
			MedicationID: req.MedicationID,
			Quantity:     req.Quantity,
			TotalAmount:  totalAmount(req.Quantity, medication.Price),
			OrderDate:    s.now().UTC(),
			Status:       req.Status,
		}

		if previous != nil {
			order.ID = previous.ID
			if order.Status == "" {
				order.Status = previous.Status
			}
			if err := s.stores.Orders.Update(ctx, order); err != nil {
				return err
			}
		} else {
			if order.Status == "" {
				order.Status = repository.OrderStatusNew
			}
			if err := s.stores.Orders.Create(ctx, order); err != nil {
				return err
			}
		}

		amended = previous != nil
		return s.take(ctx, req)
	})
	if err != nil {
		s.logger.Ctx(ctx).Warn().Err(err).
			Int64("pharmacy_id", req.PharmacyID).
			Int64("medication_id", req.MedicationID).
			Int("quantity", req.Quantity).
			Msg("order rejected")
		return nil, err
	}

	s.logger.Ctx(ctx).Info().
		Int64("order_id", order.ID).
		Int64("pharmacy_id", order.PharmacyID).
		Int("quantity", order.Quantity).
		Float64("total_amount", order.TotalAmount).
		Bool("amended", amended).
		Msg("order committed")

	s.events.PublishOrderPlaced(ctx, order, amended)
	return order, nil
}

// validate resolves every reference and checks the stock association.
// It performs no writes.
func (s *OrderService) validate(ctx context.Context, req PlaceOrderRequest) (*repository.Medication, error) {
	employee, err := s.stores.Employees.GetByID(ctx, req.EmployeeID)
	if err != nil {
		return nil, referenceError(err, "employee", req.EmployeeID)
	}
	if _, err := s.stores.Customers.GetByID(ctx, req.CustomerID); err != nil {
		return nil, referenceError(err, "customer", req.CustomerID)
	}
	if _, err := s.stores.Pharmacies.GetByID(ctx, req.PharmacyID); err != nil {
		return nil, referenceError(err, "pharmacy", req.PharmacyID)
	}
	medication, err := s.stores.Medications.GetByID(ctx, req.MedicationID)
	if err != nil {
		return nil, referenceError(err, "medication", req.MedicationID)
	}

	stock, err := s.stores.Stock.Get(ctx, req.PharmacyID, req.MedicationID)
	if err != nil {
		return nil, err
	}
	if stock == nil {
		return nil, errors.StockAssociationMissing(req.PharmacyID, req.MedicationID)
	}

	if employee.PharmacyID != req.PharmacyID {
		return nil, errors.EmployeeNotAtPharmacy(req.EmployeeID, req.PharmacyID)
	}

	if stock.Quantity < req.Quantity {
		return nil, errors.InsufficientStock(req.Quantity, stock.Quantity)
	}

	return medication, nil
}

// take decrements the association. A concurrent order may have consumed the
// stock since validate read it; the conditional update refuses to go negative.
func (s *OrderService) take(ctx context.Context, req PlaceOrderRequest) error {
	ok, err := s.stores.Stock.Decrement(ctx, req.PharmacyID, req.MedicationID, req.Quantity)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	available := 0
	stock, err := s.stores.Stock.Get(ctx, req.PharmacyID, req.MedicationID)
	if err != nil {
		return err
	}
	if stock != nil {
		available = stock.Quantity
	}
	return errors.InsufficientStock(req.Quantity, available)
}

func (s *OrderService) restore(ctx context.Context, previous *repository.Order) error {
	err := s.stores.Stock.Increment(ctx, previous.PharmacyID, previous.MedicationID, previous.Quantity)
	if errors.Is(err, errors.ErrStockAssociationMissing) {
		s.logger.Ctx(ctx).Warn().
			Int64("order_id", previous.ID).
			Int64("pharmacy_id", previous.PharmacyID).
			Int64("medication_id", previous.MedicationID).
			Msg("previous stock association no longer exists, nothing to restore")
		return nil
	}
	if err != nil {
		return fmt.Errorf("restore stock of order %d: %w", previous.ID, err)
	}
	return nil
}

func referenceError(err error, kind string, id int64) error {
	if errors.Is(err, errors.ErrNotFound) {
		return errors.ReferenceNotFound(kind, id)
	}
	return err
}

func totalAmount(quantity int, price float64) float64 {
	return math.Round(float64(quantity)*price*100) / 100
}
