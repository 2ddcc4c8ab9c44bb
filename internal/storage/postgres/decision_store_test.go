package postgres

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"tradegate/internal/domain"
	"tradegate/internal/storage"
)

func testDecision(id, symbol string, createdAt int64) *domain.Decision {
	return &domain.Decision{
		ID:        id,
		Symbol:    symbol,
		CreatedAt: createdAt,
		Opinions: []*domain.Opinion{
			{AgentID: "researcher-1", Role: domain.RoleResearcher, Stance: domain.StanceBuy, Confidence: 0.7, Rationale: "momentum positive", ProducedAt: createdAt},
			{AgentID: "risk-1", Role: domain.RoleRisk, Stance: domain.StanceHold, Confidence: 0.4, ProducedAt: createdAt},
		},
		AggregatedStance:     domain.StanceBuy,
		AggregatedConfidence: 0.64,
		GateResult: &domain.GateResult{
			Permit:    true,
			Reason:    domain.GateReasonActive,
			Mode:      domain.ModeActive,
			CheckedAt: createdAt,
		},
	}
}

func TestDecisionStore_AppendAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewDecisionStore(pool)
	ctx := context.Background()

	d := testDecision("d1", "BTC/USD", 1000)
	d.ExecutionResult = &domain.ExecutionResult{
		Accepted:     true,
		ProposedSize: 500,
		AdjustedSize: 250,
		StopLoss:     0.02,
		Sequence:     1,
		ReviewedAt:   1001,
	}

	require.NoError(t, store.Append(ctx, d))

	got, err := store.Get(ctx, "d1")
	require.NoError(t, err)
	require.Equal(t, "BTC/USD", got.Symbol)
	require.Equal(t, domain.StanceBuy, got.AggregatedStance)
	require.InDelta(t, 0.64, got.AggregatedConfidence, 1e-9)
	require.Len(t, got.Opinions, 2)
	require.Equal(t, "momentum positive", got.Opinions[0].Rationale)
	require.NotNil(t, got.GateResult)
	require.True(t, got.GateResult.Permit)
	require.NotNil(t, got.ExecutionResult)
	require.Equal(t, uint64(1), got.ExecutionResult.Sequence)
	require.InDelta(t, 250.0, got.ExecutionResult.AdjustedSize, 1e-9)
}

func TestDecisionStore_AppendWithoutExecutionResult(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewDecisionStore(pool)
	ctx := context.Background()

	d := testDecision("denied", "BTC/USD", 1000)
	d.GateResult.Permit = false
	d.GateResult.Reason = string(domain.TriggerConsecutiveLosses)

	require.NoError(t, store.Append(ctx, d))

	got, err := store.Get(ctx, "denied")
	require.NoError(t, err)
	require.Nil(t, got.ExecutionResult)
	require.False(t, got.GateResult.Permit)
}

func TestDecisionStore_MissingGateResult(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewDecisionStore(pool)
	d := testDecision("d1", "BTC/USD", 1000)
	d.GateResult = nil

	err := store.Append(context.Background(), d)
	require.ErrorIs(t, err, storage.ErrMissingGateResult)
}

func TestDecisionStore_DuplicateKey(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewDecisionStore(pool)
	ctx := context.Background()

	d := testDecision("d1", "BTC/USD", 1000)
	require.NoError(t, store.Append(ctx, d))

	err := store.Append(ctx, d)
	require.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestDecisionStore_GetNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewDecisionStore(pool)
	_, err := store.Get(context.Background(), "nonexistent")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDecisionStore_LastMostRecentFirst(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewDecisionStore(pool)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		d := testDecision(fmt.Sprintf("d%d", i), "BTC/USD", int64(1000+i))
		require.NoError(t, store.Append(ctx, d))
	}
	require.NoError(t, store.Append(ctx, testDecision("eth", "ETH/USD", 9999)))

	result, err := store.Last(ctx, "BTC/USD", 2)
	require.NoError(t, err)
	require.Len(t, result, 2)
	require.Equal(t, "d4", result[0].ID)
	require.Equal(t, "d3", result[1].ID)
	require.GreaterOrEqual(t, result[0].CreatedAt, result[1].CreatedAt)
}
