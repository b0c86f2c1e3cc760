package repository

import (
	"context"
	"database/sql"

	"github.com/pharmacy/pharmacy-backend/pkg/database"
	"github.com/pharmacy/pharmacy-backend/pkg/errors"
)

// PharmacyRepository handles pharmacy lookups
type PharmacyRepository struct {
	db *database.DB
}

// NewPharmacyRepository creates a new pharmacy repository
func NewPharmacyRepository(db *database.DB) *PharmacyRepository {
	return &PharmacyRepository{db: db}
}

// GetByID gets a pharmacy by ID
func (r *PharmacyRepository) GetByID(ctx context.Context, id int64) (*Pharmacy, error) {
	var p Pharmacy
	query := `SELECT id, name, address, phone FROM pharmacies WHERE id = $1`
	if err := r.db.Conn(ctx).GetContext(ctx, &p, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("pharmacy")
		}
		return nil, err
	}
	return &p, nil
}
