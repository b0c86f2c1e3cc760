package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/pharmacy/pharmacy-backend/pkg/database"
	"github.com/pharmacy/pharmacy-backend/pkg/errors"
)

const orderColumns = `id, customer_id, employee_id, pharmacy_id, medication_id, quantity, total_amount, order_date, status`

// OrderRepository handles order persistence
type OrderRepository struct {
	db *database.DB
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *database.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// GetByID gets an order by ID
func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*Order, error) {
	var o Order
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if err := r.db.Conn(ctx).GetContext(ctx, &o, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("order")
		}
		return nil, err
	}
	return &o, nil
}

// Exists reports whether an order with the given ID exists
func (r *OrderRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)`
	if err := r.db.Conn(ctx).GetContext(ctx, &exists, query, id); err != nil {
		return false, err
	}
	return exists, nil
}

// Create inserts an order and sets its ID
func (r *OrderRepository) Create(ctx context.Context, o *Order) error {
	query := `
		INSERT INTO orders (
			customer_id, employee_id, pharmacy_id, medication_id,
			quantity, total_amount, order_date, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	err := r.db.Conn(ctx).QueryRowxContext(ctx, query,
		o.CustomerID, o.EmployeeID, o.PharmacyID, o.MedicationID,
		o.Quantity, o.TotalAmount, o.OrderDate, o.Status,
	).Scan(&o.ID)
	if err != nil {
		return database.MapError(err)
	}
	return nil
}

// Update overwrites every column of an existing order
func (r *OrderRepository) Update(ctx context.Context, o *Order) error {
	query := `
		UPDATE orders SET
			customer_id = $2, employee_id = $3, pharmacy_id = $4, medication_id = $5,
			quantity = $6, total_amount = $7, order_date = $8, status = $9
		WHERE id = $1
	`

	result, err := r.db.Conn(ctx).ExecContext(ctx, query,
		o.ID, o.CustomerID, o.EmployeeID, o.PharmacyID, o.MedicationID,
		o.Quantity, o.TotalAmount, o.OrderDate, o.Status,
	)
	if err != nil {
		return database.MapError(err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.ReferenceNotFound("order", o.ID)
	}
	return nil
}

// List returns orders matching every non-nil filter field
func (r *OrderRepository) List(ctx context.Context, filter OrderFilter) ([]*Order, error) {
	var (
		conditions []string
		args       []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if filter.CustomerID != nil {
		add("customer_id = $%d", *filter.CustomerID)
	}
	if filter.EmployeeID != nil {
		add("employee_id = $%d", *filter.EmployeeID)
	}
	if filter.PharmacyID != nil {
		add("pharmacy_id = $%d", *filter.PharmacyID)
	}
	if filter.MedicationID != nil {
		add("medication_id = $%d", *filter.MedicationID)
	}
	if filter.Status != nil {
		add("status = $%d", string(*filter.Status))
	}
	if filter.OrderDate != nil {
		day := time.Date(filter.OrderDate.Year(), filter.OrderDate.Month(), filter.OrderDate.Day(), 0, 0, 0, 0, time.UTC)
		add("order_date >= $%d", day)
		add("order_date < $%d", day.AddDate(0, 0, 1))
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY order_date DESC, id DESC`

	var orders []*Order
	if err := r.db.Conn(ctx).SelectContext(ctx, &orders, query, args...); err != nil {
		return nil, err
	}
	return orders, nil
}

// ListByCustomerPhone returns the orders of the customer with the given phone
func (r *OrderRepository) ListByCustomerPhone(ctx context.Context, phone string) ([]*Order, error) {
	var orders []*Order
	query := `
		SELECT o.id, o.customer_id, o.employee_id, o.pharmacy_id, o.medication_id,
			o.quantity, o.total_amount, o.order_date, o.status
		FROM orders o
		JOIN customers c ON c.id = o.customer_id
		WHERE c.phone = $1
		ORDER BY o.order_date DESC, o.id DESC
	`
	if err := r.db.Conn(ctx).SelectContext(ctx, &orders, query, phone); err != nil {
		return nil, err
	}
	return orders, nil
}

// Totals sums quantity and amount of orders placed in [from, to).
// An empty range yields zeros.
func (r *OrderRepository) Totals(ctx context.Context, from, to time.Time) (*OrderTotals, error) {
	var totals OrderTotals
	query := `
		SELECT
			COALESCE(SUM(quantity), 0) AS total_quantity,
			COALESCE(SUM(total_amount), 0) AS total_amount
		FROM orders
		WHERE order_date >= $1 AND order_date < $2
	`
	if err := r.db.Conn(ctx).GetContext(ctx, &totals, query, from, to); err != nil {
		return nil, err
	}
	return &totals, nil
}
