package database

import (
	"context"
	"fmt"
)

// PharmacyMigrations returns the schema owned by the pharmacy service.
func PharmacyMigrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS pharmacies (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			address VARCHAR(500) NOT NULL DEFAULT '',
			phone VARCHAR(50) NOT NULL DEFAULT ''
		)`,

		`CREATE TABLE IF NOT EXISTS customers (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			address VARCHAR(500) NOT NULL DEFAULT '',
			phone VARCHAR(50) NOT NULL DEFAULT ''
		)`,

		`CREATE INDEX IF NOT EXISTS idx_customers_phone ON customers(phone)`,

		`CREATE TABLE IF NOT EXISTS employees (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			position VARCHAR(50) NOT NULL,
			email VARCHAR(255) NOT NULL DEFAULT '',
			pharmacy_id BIGINT NOT NULL REFERENCES pharmacies(id)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_employees_pharmacy ON employees(pharmacy_id)`,

		`CREATE TABLE IF NOT EXISTS medications (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			form VARCHAR(50) NOT NULL,
			price NUMERIC(12,2) NOT NULL,
			expiration_date DATE
		)`,

		`CREATE TABLE IF NOT EXISTS pharmacy_medications (
			pharmacy_id BIGINT NOT NULL REFERENCES pharmacies(id),
			medication_id BIGINT NOT NULL REFERENCES medications(id),
			quantity INT NOT NULL,
			PRIMARY KEY (pharmacy_id, medication_id),
			CONSTRAINT pharmacy_medications_quantity_non_negative CHECK (quantity >= 0)
		)`,

		`CREATE TABLE IF NOT EXISTS orders (
			id BIGSERIAL PRIMARY KEY,
			customer_id BIGINT NOT NULL REFERENCES customers(id),
			employee_id BIGINT NOT NULL REFERENCES employees(id),
			pharmacy_id BIGINT NOT NULL REFERENCES pharmacies(id),
			medication_id BIGINT NOT NULL REFERENCES medications(id),
			quantity INT NOT NULL,
			total_amount NUMERIC(14,2) NOT NULL,
			order_date TIMESTAMPTZ NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'NEW',
			CONSTRAINT orders_quantity_positive CHECK (quantity > 0),
			CONSTRAINT orders_status_valid CHECK (status IN ('NEW', 'COMPLETED', 'CANCELLED'))
		)`,

		`CREATE INDEX IF NOT EXISTS idx_orders_customer ON orders(customer_id)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_order_date ON orders(order_date)`,
	}
}

// ReportMigrations returns the schema owned by the report service.
func ReportMigrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS report_requests (
			id BIGSERIAL PRIMARY KEY,
			report_name VARCHAR(64) NOT NULL,
			request_count BIGINT NOT NULL DEFAULT 0,
			last_request_time TIMESTAMPTZ,
			CONSTRAINT report_requests_report_name_key UNIQUE (report_name)
		)`,
	}
}

// Migrate applies the given statements in order. Statements must be idempotent.
func (db *DB) Migrate(ctx context.Context, statements []string) error {
	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	db.logger.Info().Int("statements", len(statements)).Msg("database schema is up to date")
	return nil
}
