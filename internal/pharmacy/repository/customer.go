package repository

import (
	"context"
	"database/sql"

	"github.com/pharmacy/pharmacy-backend/pkg/database"
	"github.com/pharmacy/pharmacy-backend/pkg/errors"
)

// CustomerRepository handles customer lookups
type CustomerRepository struct {
	db *database.DB
}

// NewCustomerRepository creates a new customer repository
func NewCustomerRepository(db *database.DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

// GetByID gets a customer by ID
func (r *CustomerRepository) GetByID(ctx context.Context, id int64) (*Customer, error) {
	var c Customer
	query := `SELECT id, name, address, phone FROM customers WHERE id = $1`
	if err := r.db.Conn(ctx).GetContext(ctx, &c, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("customer")
		}
		return nil, err
	}
	return &c, nil
}
