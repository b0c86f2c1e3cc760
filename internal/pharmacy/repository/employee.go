package repository

import (
	"context"
	"database/sql"

	"github.com/pharmacy/pharmacy-backend/pkg/database"
	"github.com/pharmacy/pharmacy-backend/pkg/errors"
)

// EmployeeRepository handles employee lookups
type EmployeeRepository struct {
	db *database.DB
}

// NewEmployeeRepository creates a new employee repository
func NewEmployeeRepository(db *database.DB) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

// GetByID gets an employee by ID
func (r *EmployeeRepository) GetByID(ctx context.Context, id int64) (*Employee, error) {
	var e Employee
	query := `SELECT id, name, position, email, pharmacy_id FROM employees WHERE id = $1`
	if err := r.db.Conn(ctx).GetContext(ctx, &e, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("employee")
		}
		return nil, err
	}
	return &e, nil
}

// ListByPharmacy lists the employees assigned to a pharmacy
func (r *EmployeeRepository) ListByPharmacy(ctx context.Context, pharmacyID int64) ([]*Employee, error) {
	var employees []*Employee
	query := `
		SELECT id, name, position, email, pharmacy_id
		FROM employees
		WHERE pharmacy_id = $1
		ORDER BY id
	`
	if err := r.db.Conn(ctx).SelectContext(ctx, &employees, query, pharmacyID); err != nil {
		return nil, err
	}
	return employees, nil
}
