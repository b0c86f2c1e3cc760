// Package testutil provides testing utilities for the pharmacy services.
// It includes testcontainers for PostgreSQL and Redis, a sqlmock wrapper,
// and seed fixtures.
package testutil

import (
	"context"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	defaultPostgresImage = "postgres:16-alpine"
	testDatabase         = "pharmacy_test"
	testCredential       = "test"
)

// PostgresContainer is a throwaway PostgreSQL server for integration tests
type PostgresContainer struct {
	*postgres.PostgresContainer
	DSN string
}

// NewPostgresContainer starts PostgreSQL and waits until it accepts
// connections. PHARMACY_TEST_POSTGRES_IMAGE overrides the image.
func NewPostgresContainer(ctx context.Context) (*PostgresContainer, error) {
	image := os.Getenv("PHARMACY_TEST_POSTGRES_IMAGE")
	if image == "" {
		image = defaultPostgresImage
	}

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage(image),
		postgres.WithDatabase(testDatabase),
		postgres.WithUsername(testCredential),
		postgres.WithPassword(testCredential),
		// postgres logs readiness once for the init server and once for the real one
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	return &PostgresContainer{PostgresContainer: container, DSN: dsn}, nil
}
