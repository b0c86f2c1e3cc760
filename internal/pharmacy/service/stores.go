package service

import (
	"context"
	"time"

	"github.com/pharmacy/pharmacy-backend/internal/pharmacy/repository"
)

// TxRunner runs fn in a transaction carried by the context passed to it.
// *database.DB satisfies it.
type TxRunner interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type CustomerStore interface {
	GetByID(ctx context.Context, id int64) (*repository.Customer, error)
}

type EmployeeStore interface {
	GetByID(ctx context.Context, id int64) (*repository.Employee, error)
	ListByPharmacy(ctx context.Context, pharmacyID int64) ([]*repository.Employee, error)
}

type PharmacyStore interface {
	GetByID(ctx context.Context, id int64) (*repository.Pharmacy, error)
}

type MedicationStore interface {
	GetByID(ctx context.Context, id int64) (*repository.Medication, error)
}

// StockStore is the stock ledger
type StockStore interface {
	Get(ctx context.Context, pharmacyID, medicationID int64) (*repository.StockAssociation, error)
	Decrement(ctx context.Context, pharmacyID, medicationID int64, n int) (bool, error)
	Increment(ctx context.Context, pharmacyID, medicationID int64, n int) error
	AddOrUpdate(ctx context.Context, pharmacyID, medicationID int64, quantity int) (*repository.StockAssociation, error)
	Delete(ctx context.Context, pharmacyID, medicationID int64) error
	ListBelowThreshold(ctx context.Context, threshold int) ([]*repository.MedicationStock, error)
	ListByPharmacy(ctx context.Context, pharmacyID int64) ([]*repository.MedicationStock, error)
	ListOutOfStock(ctx context.Context, pharmacyID int64) ([]*repository.MedicationStock, error)
}

type OrderStore interface {
	GetByID(ctx context.Context, id int64) (*repository.Order, error)
	Exists(ctx context.Context, id int64) (bool, error)
	Create(ctx context.Context, o *repository.Order) error
	Update(ctx context.Context, o *repository.Order) error
	List(ctx context.Context, filter repository.OrderFilter) ([]*repository.Order, error)
	ListByCustomerPhone(ctx context.Context, phone string) ([]*repository.Order, error)
	Totals(ctx context.Context, from, to time.Time) (*repository.OrderTotals, error)
}

// Stores bundles the entity store collaborators
type Stores struct {
	Customers   CustomerStore
	Employees   EmployeeStore
	Pharmacies  PharmacyStore
	Medications MedicationStore
	Stock       StockStore
	Orders      OrderStore
}
