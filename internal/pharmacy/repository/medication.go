package repository

import (
	"context"
	"database/sql"

	"github.com/pharmacy/pharmacy-backend/pkg/database"
	"github.com/pharmacy/pharmacy-backend/pkg/errors"
)

// MedicationRepository handles medication lookups
type MedicationRepository struct {
	db *database.DB
}

// NewMedicationRepository creates a new medication repository
func NewMedicationRepository(db *database.DB) *MedicationRepository {
	return &MedicationRepository{db: db}
}

// GetByID gets a medication by ID
func (r *MedicationRepository) GetByID(ctx context.Context, id int64) (*Medication, error) {
	var m Medication
	query := `SELECT id, name, form, price, expiration_date FROM medications WHERE id = $1`
	if err := r.db.Conn(ctx).GetContext(ctx, &m, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("medication")
		}
		return nil, err
	}
	return &m, nil
}
