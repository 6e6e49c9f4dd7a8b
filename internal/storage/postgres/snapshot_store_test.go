package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"launch-curve-engine/internal/domain"
	"launch-curve-engine/internal/storage"
)

func testSnapshot(snapshotID, curveID string, createdAt int64) *domain.Snapshot {
	return &domain.Snapshot{
		SnapshotID:  snapshotID,
		CurveID:     curveID,
		TotalSupply: 100,
		HolderCount: 2,
		Holders: []domain.SnapshotHolder{
			{UserID: "alice", WalletAddress: "wallet-alice", Balance: 70, Percentage: 70},
			{UserID: "bob", WalletAddress: "", Balance: 30, Percentage: 30},
		},
		CreatedAt: createdAt,
	}
}

func TestSnapshotStore_InsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	curves := NewCurveStore(pool)
	snapshots := NewSnapshotStore(pool)
	ctx := context.Background()

	require.NoError(t, curves.Insert(ctx, testCurve("curve-001", "alice")))

	snap := testSnapshot("snap-001", "curve-001", 1_700_000_000_000)
	require.NoError(t, snapshots.Insert(ctx, snap))

	got, err := snapshots.GetByID(ctx, "snap-001")
	require.NoError(t, err)
	assert.Equal(t, "curve-001", got.CurveID)
	assert.Equal(t, int64(100), got.TotalSupply)
	assert.Equal(t, 2, got.HolderCount)

	// Holder order is preserved as written.
	require.Len(t, got.Holders, 2)
	assert.Equal(t, "alice", got.Holders[0].UserID)
	assert.Equal(t, "wallet-alice", got.Holders[0].WalletAddress)
	assert.Equal(t, int64(70), got.Holders[0].Balance)
	assert.InDelta(t, 70.0, got.Holders[0].Percentage, 1e-9)
	assert.Equal(t, "bob", got.Holders[1].UserID)
	assert.Empty(t, got.Holders[1].WalletAddress)
}

func TestSnapshotStore_DuplicateID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	curves := NewCurveStore(pool)
	snapshots := NewSnapshotStore(pool)
	ctx := context.Background()

	require.NoError(t, curves.Insert(ctx, testCurve("curve-001", "alice")))
	require.NoError(t, snapshots.Insert(ctx, testSnapshot("snap-001", "curve-001", 1_700_000_000_000)))

	err := snapshots.Insert(ctx, testSnapshot("snap-001", "curve-001", 1_700_000_000_001))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// The failed insert must not leave dangling holder rows.
	got, err := snapshots.GetByID(ctx, "snap-001")
	require.NoError(t, err)
	assert.Len(t, got.Holders, 2)
	assert.Equal(t, int64(1_700_000_000_000), got.CreatedAt)
}

func TestSnapshotStore_GetLatestByCurve(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	curves := NewCurveStore(pool)
	snapshots := NewSnapshotStore(pool)
	ctx := context.Background()

	require.NoError(t, curves.Insert(ctx, testCurve("curve-001", "alice")))
	require.NoError(t, curves.Insert(ctx, testCurve("curve-002", "bob")))

	require.NoError(t, snapshots.Insert(ctx, testSnapshot("snap-old", "curve-001", 1_700_000_000_000)))
	require.NoError(t, snapshots.Insert(ctx, testSnapshot("snap-new", "curve-001", 1_700_000_500_000)))
	require.NoError(t, snapshots.Insert(ctx, testSnapshot("snap-other", "curve-002", 1_700_000_900_000)))

	got, err := snapshots.GetLatestByCurve(ctx, "curve-001")
	require.NoError(t, err)
	assert.Equal(t, "snap-new", got.SnapshotID)

	_, err = snapshots.GetLatestByCurve(ctx, "curve-none")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSnapshotStore_GetNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	snapshots := NewSnapshotStore(pool)

	_, err := snapshots.GetByID(context.Background(), "snap-missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
