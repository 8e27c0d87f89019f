package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"agent-performance-lab/internal/domain"
	"agent-performance-lab/internal/ledger"
	"agent-performance-lab/internal/ledger/migrations"
	"agent-performance-lab/internal/ledger/postgres"
)

const testSubmitter = "tracker"

// setupTestDB starts a PostgreSQL container, applies the embedded
// migrations, and returns a pool plus a cleanup function.
func setupTestDB(t *testing.T) (*postgres.Pool, func()) {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	pool, err := postgres.NewPool(ctx, dsn)
	require.NoError(t, err, "failed to create pool")

	require.NoError(t, migrations.RunPostgresMigrations(ctx, pool), "failed to apply migrations")

	cleanup := func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return pool, cleanup
}

// acceptAllVerifier passes every report; signature checks have their own
// unit tests.
type acceptAllVerifier struct{}

func (acceptAllVerifier) VerifyReport(_ *domain.SignedReport) error { return nil }

var _ ledger.ReportVerifier = acceptAllVerifier{}

// registerTestAgent seeds one active agent.
func registerTestAgent(t *testing.T, registry *postgres.RegistryLedger, agentID string) {
	t.Helper()
	err := registry.Register(context.Background(), &domain.AgentRecord{
		AgentID:      agentID,
		Wallet:       "wallet-" + agentID,
		IsActive:     true,
		RegisteredAt: 1_700_000_000_000,
	})
	require.NoError(t, err)
}
