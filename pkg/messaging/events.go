package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	EventOrderPlaced   = "pharmacy.order.placed"
	EventStockLow      = "pharmacy.stock.low"
	EventStockUpdated  = "pharmacy.stock.updated"
	EventReportRequest = "report.requested"
)

// Exchange names
const (
	ExchangePharmacyEvents = "pharmacy.events"
	ExchangeReportEvents   = "report.events"
	ExchangeDeadLetter     = "dlx.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// OrderPlacedEvent is published after an order transaction commits
type OrderPlacedEvent struct {
	OrderID      int64     `json:"order_id"`
	CustomerID   int64     `json:"customer_id"`
	EmployeeID   int64     `json:"employee_id"`
	PharmacyID   int64     `json:"pharmacy_id"`
	MedicationID int64     `json:"medication_id"`
	Quantity     int       `json:"quantity"`
	TotalAmount  float64   `json:"total_amount"`
	OrderDate    time.Time `json:"order_date"`
	Status       string    `json:"status"`
	Amended      bool      `json:"amended"`
}

// LowStockItem is one medication below threshold at a pharmacy
type LowStockItem struct {
	MedicationID int64  `json:"medication_id"`
	Name         string `json:"name"`
	Quantity     int    `json:"quantity"`
}

// StockLowEvent is published once per pharmacy per inventory check
type StockLowEvent struct {
	PharmacyID int64          `json:"pharmacy_id"`
	Threshold  int            `json:"threshold"`
	Items      []LowStockItem `json:"items"`
}

// StockUpdatedEvent is published when stock is added, changed or removed administratively
type StockUpdatedEvent struct {
	PharmacyID   int64 `json:"pharmacy_id"`
	MedicationID int64 `json:"medication_id"`
	Quantity     int   `json:"quantity"`
	Removed      bool  `json:"removed,omitempty"`
}

// ReportRequestedEvent asks the report service to record one use of a report
type ReportRequestedEvent struct {
	ReportName  string    `json:"report_name"`
	RequestedAt time.Time `json:"requested_at"`
}
