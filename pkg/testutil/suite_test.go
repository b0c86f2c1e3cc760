package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIntegrationSuite_AppliesBothSchemas(t *testing.T) {
	SkipIfShort(t)
	ctx := TestContext(t, 2*time.Minute)

	suite, err := NewIntegrationSuite(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { TerminateContainer(context.Background()) })

	require.NotNil(t, suite.Logger)
	assert.Equal(t, "up", suite.DB.Health(ctx)["status"])

	for _, table := range []string{"orders", "pharmacy_medications", "report_requests"} {
		var n int
		require.NoError(t, suite.DB.GetContext(ctx, &n, "SELECT count(*) FROM "+table), table)
		assert.Zero(t, n, table)
	}
}
