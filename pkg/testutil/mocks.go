package testutil

import (
	"context"
	"database/sql/driver"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/pharmacy/pharmacy-backend/pkg/database"
	"github.com/pharmacy/pharmacy-backend/pkg/logger"
	"github.com/pharmacy/pharmacy-backend/pkg/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockDB is a *database.DB backed by sqlmock. Expected statements are
// matched literally.
//
//	m := testutil.NewMockDB(t)
//	defer m.Close()
//	m.ExpectQuery("SELECT id FROM orders").WillReturnRows(testutil.MockRows("id").AddRow(1))
type MockDB struct {
	DB   *database.DB
	Mock sqlmock.Sqlmock
}

func NewMockDB(t *testing.T) *MockDB {
	raw, mock, err := sqlmock.New()
	require.NoError(t, err, "create sqlmock")

	return &MockDB{
		DB:   database.Wrap(sqlx.NewDb(raw, "postgres"), logger.Nop()),
		Mock: mock,
	}
}

func (m *MockDB) Close() error {
	return m.DB.Close()
}

func (m *MockDB) ExpectQuery(query string) *sqlmock.ExpectedQuery {
	return m.Mock.ExpectQuery(regexp.QuoteMeta(query))
}

func (m *MockDB) ExpectExec(query string) *sqlmock.ExpectedExec {
	return m.Mock.ExpectExec(regexp.QuoteMeta(query))
}

// ExpectationsWereMet fails t when an expected statement never ran
func (m *MockDB) ExpectationsWereMet(t *testing.T) {
	t.Helper()
	assert.NoError(t, m.Mock.ExpectationsWereMet(), "unfulfilled sqlmock expectations")
}

func MockRows(columns ...string) *sqlmock.Rows {
	return sqlmock.NewRows(columns)
}

// AnyTime matches any time.Time argument
type AnyTime struct{}

func (AnyTime) Match(v driver.Value) bool {
	_, ok := v.(time.Time)
	return ok
}

// PublishedEvent is one call to MockPublisher.Publish
type PublishedEvent struct {
	Type          string
	Payload       interface{}
	CorrelationID string
}

// MockPublisher records published events in memory. Setting Err makes every
// Publish fail after recording.
type MockPublisher struct {
	Err error

	mu     sync.Mutex
	events []PublishedEvent
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(ctx context.Context, eventType string, payload interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, PublishedEvent{
		Type:          eventType,
		Payload:       payload,
		CorrelationID: messaging.CorrelationID(ctx),
	})
	return m.Err
}

// Events returns the published events of the given type in publish order
func (m *MockPublisher) Events(eventType string) []PublishedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []PublishedEvent
	for _, e := range m.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func (m *MockPublisher) AssertEventPublished(t *testing.T, eventType string) {
	t.Helper()
	assert.NotEmpty(t, m.Events(eventType), "expected a %q event", eventType)
}

func (m *MockPublisher) AssertNoEventsPublished(t *testing.T) {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Empty(t, m.events, "expected no events")
}
