package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB creates a PostgreSQL container for testing and applies
// migrations. Returns a cleanup function that must be called after tests.
func setupTestDB(t *testing.T) (*Pool, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

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

	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err, "failed to create pool")

	applyTestSchema(t, ctx, pool)

	cleanup := func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return pool, cleanup
}

// applyTestSchema creates the decisions table. Mirrors
// migrations/postgres/001_decisions.sql; kept inline to avoid an import
// cycle between the migrations and postgres packages.
func applyTestSchema(t *testing.T, ctx context.Context, pool *Pool) {
	t.Helper()

	schema := `
	CREATE TABLE IF NOT EXISTS decisions (
		decision_id           TEXT PRIMARY KEY,
		symbol                TEXT NOT NULL,
		created_at            BIGINT NOT NULL,
		opinions              JSONB NOT NULL,
		aggregated_stance     TEXT NOT NULL,
		aggregated_confidence DOUBLE PRECISION NOT NULL,
		degraded              BOOLEAN NOT NULL DEFAULT FALSE,
		gate_permit           BOOLEAN NOT NULL,
		gate_reason           TEXT NOT NULL,
		gate_mode             TEXT NOT NULL,
		gate_checked_at       BIGINT NOT NULL,
		exec_accepted         BOOLEAN,
		exec_reason           TEXT,
		exec_proposed_size    DOUBLE PRECISION,
		exec_adjusted_size    DOUBLE PRECISION,
		exec_stop_loss        DOUBLE PRECISION,
		exec_sequence         BIGINT,
		exec_reviewed_at      BIGINT
	);
	CREATE INDEX IF NOT EXISTS idx_decisions_symbol_created
		ON decisions (symbol, created_at DESC);
	`
	_, err := pool.Exec(ctx, schema)
	require.NoError(t, err, "failed to apply test schema")
}
