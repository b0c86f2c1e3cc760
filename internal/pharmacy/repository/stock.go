package repository

import (
	"context"
	"database/sql"

	"github.com/pharmacy/pharmacy-backend/pkg/database"
	"github.com/pharmacy/pharmacy-backend/pkg/errors"
)

// StockRepository owns the pharmacy_medications quantities.
// Quantities are never cached; every call reads or writes the single row per pair.
type StockRepository struct {
	db *database.DB
}

// NewStockRepository creates a new stock repository
func NewStockRepository(db *database.DB) *StockRepository {
	return &StockRepository{db: db}
}

// Get returns the association for a pair, or nil when the pair is not stocked.
func (r *StockRepository) Get(ctx context.Context, pharmacyID, medicationID int64) (*StockAssociation, error) {
	var s StockAssociation
	query := `
		SELECT pharmacy_id, medication_id, quantity
		FROM pharmacy_medications
		WHERE pharmacy_id = $1 AND medication_id = $2
	`
	if err := r.db.Conn(ctx).GetContext(ctx, &s, query, pharmacyID, medicationID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// Decrement takes n units from the association only if at least n are present.
// It reports false when no row was changed.
func (r *StockRepository) Decrement(ctx context.Context, pharmacyID, medicationID int64, n int) (bool, error) {
	query := `
		UPDATE pharmacy_medications
		SET quantity = quantity - $3
		WHERE pharmacy_id = $1 AND medication_id = $2 AND quantity >= $3
	`
	result, err := r.db.Conn(ctx).ExecContext(ctx, query, pharmacyID, medicationID, n)
	if err != nil {
		return false, database.MapError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// Increment returns n units to an existing association
func (r *StockRepository) Increment(ctx context.Context, pharmacyID, medicationID int64, n int) error {
	query := `
		UPDATE pharmacy_medications
		SET quantity = quantity + $3
		WHERE pharmacy_id = $1 AND medication_id = $2
	`
	result, err := r.db.Conn(ctx).ExecContext(ctx, query, pharmacyID, medicationID, n)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.StockAssociationMissing(pharmacyID, medicationID)
	}
	return nil
}

// AddOrUpdate creates the association or adds quantity to the existing one
func (r *StockRepository) AddOrUpdate(ctx context.Context, pharmacyID, medicationID int64, quantity int) (*StockAssociation, error) {
	var s StockAssociation
	query := `
		INSERT INTO pharmacy_medications (pharmacy_id, medication_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (pharmacy_id, medication_id)
		DO UPDATE SET quantity = pharmacy_medications.quantity + EXCLUDED.quantity
		RETURNING pharmacy_id, medication_id, quantity
	`
	err := r.db.Conn(ctx).QueryRowxContext(ctx, query, pharmacyID, medicationID, quantity).StructScan(&s)
	if err != nil {
		return nil, database.MapError(err)
	}
	return &s, nil
}

// Delete removes a medication from a pharmacy's stock
func (r *StockRepository) Delete(ctx context.Context, pharmacyID, medicationID int64) error {
	query := `DELETE FROM pharmacy_medications WHERE pharmacy_id = $1 AND medication_id = $2`
	result, err := r.db.Conn(ctx).ExecContext(ctx, query, pharmacyID, medicationID)
	if err != nil {
		return database.MapError(err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.StockAssociationMissing(pharmacyID, medicationID)
	}
	return nil
}

const medicationStockColumns = `
	pm.pharmacy_id, pm.medication_id, m.name, m.form, m.price, pm.quantity
`

// ListBelowThreshold returns every association with quantity strictly below threshold,
// ordered by pharmacy and medication.
func (r *StockRepository) ListBelowThreshold(ctx context.Context, threshold int) ([]*MedicationStock, error) {
	var items []*MedicationStock
	query := `
		SELECT ` + medicationStockColumns + `
		FROM pharmacy_medications pm
		JOIN medications m ON m.id = pm.medication_id
		WHERE pm.quantity < $1
		ORDER BY pm.pharmacy_id, pm.medication_id
	`
	if err := r.db.Conn(ctx).SelectContext(ctx, &items, query, threshold); err != nil {
		return nil, err
	}
	return items, nil
}

// ListByPharmacy returns the medications stocked at a pharmacy
func (r *StockRepository) ListByPharmacy(ctx context.Context, pharmacyID int64) ([]*MedicationStock, error) {
	var items []*MedicationStock
	query := `
		SELECT ` + medicationStockColumns + `
		FROM pharmacy_medications pm
		JOIN medications m ON m.id = pm.medication_id
		WHERE pm.pharmacy_id = $1
		ORDER BY m.name, pm.medication_id
	`
	if err := r.db.Conn(ctx).SelectContext(ctx, &items, query, pharmacyID); err != nil {
		return nil, err
	}
	return items, nil
}

// ListOutOfStock returns the associations of a pharmacy whose quantity is zero
func (r *StockRepository) ListOutOfStock(ctx context.Context, pharmacyID int64) ([]*MedicationStock, error) {
	var items []*MedicationStock
	query := `
		SELECT ` + medicationStockColumns + `
		FROM pharmacy_medications pm
		JOIN medications m ON m.id = pm.medication_id
		WHERE pm.pharmacy_id = $1 AND pm.quantity = 0
		ORDER BY m.name, pm.medication_id
	`
	if err := r.db.Conn(ctx).SelectContext(ctx, &items, query, pharmacyID); err != nil {
		return nil, err
	}
	return items, nil
}
