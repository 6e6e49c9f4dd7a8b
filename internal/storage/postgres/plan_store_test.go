package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"launch-curve-engine/internal/domain"
	"launch-curve-engine/internal/storage"
)

func testPlan(planID, curveID string, createdAt int64) *domain.DistributionPlan {
	return &domain.DistributionPlan{
		PlanID:      planID,
		SnapshotID:  "snap-001",
		CurveID:     curveID,
		TokenMint:   "MintAbc",
		TotalTokens: 793_000_000,
		Allocations: []domain.Allocation{
			{UserID: "alice", WalletAddress: "wallet-alice", TokenAmount: 555_100_000, Percentage: 70},
			{UserID: "bob", WalletAddress: "wallet-bob", TokenAmount: 237_900_000, Percentage: 30},
		},
		UndistributedRemainder: 0,
		CreatedAt:              createdAt,
	}
}

func TestPlanStore_InsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	curves := NewCurveStore(pool)
	plans := NewPlanStore(pool)
	ctx := context.Background()

	require.NoError(t, curves.Insert(ctx, testCurve("curve-001", "alice")))
	require.NoError(t, NewSnapshotStore(pool).Insert(ctx, testSnapshot("snap-001", "curve-001", 1_700_000_000_000)))

	p := testPlan("plan-001", "curve-001", 1_700_000_000_000)
	p.UndistributedRemainder = 3
	require.NoError(t, plans.Insert(ctx, p))

	got, err := plans.GetByID(ctx, "plan-001")
	require.NoError(t, err)
	assert.Equal(t, "snap-001", got.SnapshotID)
	assert.Equal(t, "MintAbc", got.TokenMint)
	assert.Equal(t, int64(793_000_000), got.TotalTokens)
	assert.Equal(t, int64(3), got.UndistributedRemainder)

	require.Len(t, got.Allocations, 2)
	assert.Equal(t, "alice", got.Allocations[0].UserID)
	assert.Equal(t, int64(555_100_000), got.Allocations[0].TokenAmount)
	assert.Equal(t, "wallet-bob", got.Allocations[1].WalletAddress)
	assert.InDelta(t, 30.0, got.Allocations[1].Percentage, 1e-9)
}

func TestPlanStore_DuplicateID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	curves := NewCurveStore(pool)
	plans := NewPlanStore(pool)
	ctx := context.Background()

	require.NoError(t, curves.Insert(ctx, testCurve("curve-001", "alice")))
	require.NoError(t, NewSnapshotStore(pool).Insert(ctx, testSnapshot("snap-001", "curve-001", 1_700_000_000_000)))
	require.NoError(t, plans.Insert(ctx, testPlan("plan-001", "curve-001", 1_700_000_000_000)))

	err := plans.Insert(ctx, testPlan("plan-001", "curve-001", 1_700_000_000_001))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestPlanStore_GetLatestByCurve(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	curves := NewCurveStore(pool)
	plans := NewPlanStore(pool)
	ctx := context.Background()

	require.NoError(t, curves.Insert(ctx, testCurve("curve-001", "alice")))
	require.NoError(t, NewSnapshotStore(pool).Insert(ctx, testSnapshot("snap-001", "curve-001", 1_700_000_000_000)))

	require.NoError(t, plans.Insert(ctx, testPlan("plan-old", "curve-001", 1_700_000_000_000)))
	require.NoError(t, plans.Insert(ctx, testPlan("plan-new", "curve-001", 1_700_000_500_000)))

	got, err := plans.GetLatestByCurve(ctx, "curve-001")
	require.NoError(t, err)
	assert.Equal(t, "plan-new", got.PlanID)

	_, err = plans.GetLatestByCurve(ctx, "curve-none")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPlanStore_MarkDelivered(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	curves := NewCurveStore(pool)
	plans := NewPlanStore(pool)
	ctx := context.Background()

	require.NoError(t, curves.Insert(ctx, testCurve("curve-001", "alice")))
	require.NoError(t, NewSnapshotStore(pool).Insert(ctx, testSnapshot("snap-001", "curve-001", 1_700_000_000_000)))
	require.NoError(t, plans.Insert(ctx, testPlan("plan-001", "curve-001", 1_700_000_000_000)))

	require.NoError(t, plans.MarkDelivered(ctx, "plan-001", "alice", "tx-abc"))

	got, err := plans.GetByID(ctx, "plan-001")
	require.NoError(t, err)
	assert.Equal(t, "tx-abc", got.Allocations[0].TxRef)
	assert.Empty(t, got.Allocations[1].TxRef)

	err = plans.MarkDelivered(ctx, "plan-001", "nobody", "tx-xyz")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = plans.MarkDelivered(ctx, "plan-missing", "alice", "tx-xyz")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPlanStore_GetNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	plans := NewPlanStore(pool)

	_, err := plans.GetByID(context.Background(), "plan-missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
