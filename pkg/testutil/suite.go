package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/pharmacy/pharmacy-backend/pkg/database"
	"github.com/pharmacy/pharmacy-backend/pkg/logger"
)

var (
	// Shared across all integration tests of one test binary
	globalContainer *PostgresContainer
	containerOnce   sync.Once
	containerErr    error
)

// IntegrationSuite provides a base for integration tests with real PostgreSQL
type IntegrationSuite struct {
	Container *PostgresContainer
	DB        *database.DB
	Fixtures  *Fixtures
	Logger    *logger.Logger
}

// NewIntegrationSuite starts (or reuses) the shared container and applies
// both service schemas. Call this in TestMain.
//
// Usage:
//
//	var suite *testutil.IntegrationSuite
//
//	func TestMain(m *testing.M) {
//	    flag.Parse()
//	    if testing.Short() {
//	        os.Exit(m.Run())
//	    }
//	    ctx := context.Background()
//	    s, err := testutil.NewIntegrationSuite(ctx)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    suite = s
//	    code := m.Run()
//	    testutil.TerminateContainer(ctx)
//	    os.Exit(code)
//	}
func NewIntegrationSuite(ctx context.Context) (*IntegrationSuite, error) {
	containerOnce.Do(func() {
		globalContainer, containerErr = NewPostgresContainer(ctx)
	})
	if containerErr != nil {
		return nil, containerErr
	}

	log := logger.New("integration-test", "test", "warn")
	db, err := database.NewWithDSN(globalContainer.DSN, log)
	if err != nil {
		return nil, err
	}

	migrations := append(database.PharmacyMigrations(), database.ReportMigrations()...)
	if err := db.Migrate(ctx, migrations); err != nil {
		return nil, err
	}

	return &IntegrationSuite{
		Container: globalContainer,
		DB:        db,
		Fixtures:  NewFixtures(db),
		Logger:    log,
	}, nil
}

// Truncate empties the given tables and resets their id sequences.
func (s *IntegrationSuite) Truncate(t *testing.T, ctx context.Context, tables ...string) {
	t.Helper()
	if len(tables) == 0 {
		tables = []string{"orders", "pharmacy_medications", "employees", "customers", "medications", "pharmacies", "report_requests"}
	}
	query := fmt.Sprintf("TRUNCATE %s RESTART IDENTITY CASCADE", strings.Join(tables, ", "))
	if _, err := s.DB.ExecContext(ctx, query); err != nil {
		t.Fatalf("failed to truncate tables: %v", err)
	}
}

// TerminateContainer terminates the shared container.
// Only call this in TestMain after all tests have completed.
func TerminateContainer(ctx context.Context) {
	if globalContainer != nil {
		globalContainer.Terminate(ctx)
	}
}
