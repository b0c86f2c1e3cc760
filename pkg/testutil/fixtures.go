package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/pharmacy/pharmacy-backend/pkg/database"
)

// Fixtures inserts seed rows directly with SQL and returns their ids.
type Fixtures struct {
	db *database.DB
}

// NewFixtures creates a fixture helper bound to db
func NewFixtures(db *database.DB) *Fixtures {
	return &Fixtures{db: db}
}

func (f *Fixtures) insert(t *testing.T, ctx context.Context, query string, args ...any) int64 {
	t.Helper()
	var id int64
	if err := f.db.QueryRowxContext(ctx, query, args...).Scan(&id); err != nil {
		t.Fatalf("failed to insert fixture: %v", err)
	}
	return id
}

// Pharmacy inserts a pharmacy
func (f *Fixtures) Pharmacy(t *testing.T, ctx context.Context, name string) int64 {
	return f.insert(t, ctx,
		`INSERT INTO pharmacies (name, address, phone) VALUES ($1, $2, $3) RETURNING id`,
		name, name+" street 1", "+100000000")
}

// Medication inserts a medication
func (f *Fixtures) Medication(t *testing.T, ctx context.Context, name, form string, price float64) int64 {
	return f.insert(t, ctx,
		`INSERT INTO medications (name, form, price, expiration_date) VALUES ($1, $2, $3, $4) RETURNING id`,
		name, form, price, time.Now().AddDate(1, 0, 0))
}

// Customer inserts a customer
func (f *Fixtures) Customer(t *testing.T, ctx context.Context, name, phone string) int64 {
	return f.insert(t, ctx,
		`INSERT INTO customers (name, address, phone) VALUES ($1, $2, $3) RETURNING id`,
		name, name+" road 2", phone)
}

// Employee inserts an employee working at pharmacyID
func (f *Fixtures) Employee(t *testing.T, ctx context.Context, name, email string, pharmacyID int64) int64 {
	return f.insert(t, ctx,
		`INSERT INTO employees (name, position, email, pharmacy_id) VALUES ($1, 'PHARMACIST', $2, $3) RETURNING id`,
		name, email, pharmacyID)
}

// Stock sets the quantity of a medication at a pharmacy
func (f *Fixtures) Stock(t *testing.T, ctx context.Context, pharmacyID, medicationID int64, quantity int) {
	t.Helper()
	_, err := f.db.ExecContext(ctx,
		`INSERT INTO pharmacy_medications (pharmacy_id, medication_id, quantity) VALUES ($1, $2, $3)
		 ON CONFLICT (pharmacy_id, medication_id) DO UPDATE SET quantity = EXCLUDED.quantity`,
		pharmacyID, medicationID, quantity)
	if err != nil {
		t.Fatalf("failed to insert stock fixture: %v", err)
	}
}

// StockQuantity reads the current quantity of an association
func (f *Fixtures) StockQuantity(t *testing.T, ctx context.Context, pharmacyID, medicationID int64) int {
	t.Helper()
	var qty int
	err := f.db.GetContext(ctx, &qty,
		`SELECT quantity FROM pharmacy_medications WHERE pharmacy_id = $1 AND medication_id = $2`,
		pharmacyID, medicationID)
	if err != nil {
		t.Fatalf("failed to read stock: %v", err)
	}
	return qty
}
