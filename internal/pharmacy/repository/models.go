package repository

import "time"

// OrderStatus is the lifecycle tag of an order
type OrderStatus string

const (
	OrderStatusNew       OrderStatus = "NEW"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Valid reports whether s is a known status
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusNew, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// Pharmacy represents a store of the chain
type Pharmacy struct {
	ID      int64  `db:"id" json:"id"`
	Name    string `db:"name" json:"name"`
	Address string `db:"address" json:"address"`
	Phone   string `db:"phone" json:"phone"`
}

// Customer represents a buyer
type Customer struct {
	ID      int64  `db:"id" json:"id"`
	Name    string `db:"name" json:"name"`
	Address string `db:"address" json:"address"`
	Phone   string `db:"phone" json:"phone"`
}

// Employee works at exactly one pharmacy
type Employee struct {
	ID         int64  `db:"id" json:"id"`
	Name       string `db:"name" json:"name"`
	Position   string `db:"position" json:"position"`
	Email      string `db:"email" json:"email"`
	PharmacyID int64  `db:"pharmacy_id" json:"pharmacy_id"`
}

// Medication represents a catalog entry
type Medication struct {
	ID             int64      `db:"id" json:"id"`
	Name           string     `db:"name" json:"name"`
	Form           string     `db:"form" json:"form"`
	Price          float64    `db:"price" json:"price"`
	ExpirationDate *time.Time `db:"expiration_date" json:"expiration_date,omitempty"`
}

// StockAssociation is the quantity of one medication held by one pharmacy
type StockAssociation struct {
	PharmacyID   int64 `db:"pharmacy_id" json:"pharmacy_id"`
	MedicationID int64 `db:"medication_id" json:"medication_id"`
	Quantity     int   `db:"quantity" json:"quantity"`
}

// MedicationStock is a stock association joined with its medication
type MedicationStock struct {
	PharmacyID   int64   `db:"pharmacy_id" json:"pharmacy_id"`
	MedicationID int64   `db:"medication_id" json:"medication_id"`
	Name         string  `db:"name" json:"name"`
	Form         string  `db:"form" json:"form"`
	Price        float64 `db:"price" json:"price"`
	Quantity     int     `db:"quantity" json:"quantity"`
}

// Order is a purchase of one medication at one pharmacy
type Order struct {
	ID           int64       `db:"id" json:"id"`
	CustomerID   int64       `db:"customer_id" json:"customer_id"`
	EmployeeID   int64       `db:"employee_id" json:"employee_id"`
	PharmacyID   int64       `db:"pharmacy_id" json:"pharmacy_id"`
	MedicationID int64       `db:"medication_id" json:"medication_id"`
	Quantity     int         `db:"quantity" json:"quantity"`
	TotalAmount  float64     `db:"total_amount" json:"total_amount"`
	OrderDate    time.Time   `db:"order_date" json:"order_date"`
	Status       OrderStatus `db:"status" json:"status"`
}

// OrderFilter narrows order listings; nil fields are ignored
type OrderFilter struct {
	CustomerID   *int64
	EmployeeID   *int64
	PharmacyID   *int64
	MedicationID *int64
	Status       *OrderStatus
	OrderDate    *time.Time
}

// OrderTotals aggregates orders in a date range
type OrderTotals struct {
	TotalQuantity int64   `db:"total_quantity" json:"total_quantity"`
	TotalAmount   float64 `db:"total_amount" json:"total_amount"`
}
