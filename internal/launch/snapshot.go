package launch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"launch-curve-engine/internal/domain"
	"launch-curve-engine/internal/idhash"
	"launch-curve-engine/internal/observability"
	"launch-curve-engine/internal/storage"
)

// Snapshot errors.
var (
	// ErrCurveNotFrozen is returned when snapshotting a curve that is not
	// frozen. Balances on an active curve are still moving.
	ErrCurveNotFrozen = errors.New("curve is not frozen")

	// ErrNoHolders is returned when a frozen curve has no holder with a
	// positive balance.
	ErrNoHolders = errors.New("curve has no holders")
)

// SnapshotService captures immutable holder snapshots of frozen curves.
type SnapshotService struct {
	curves    storage.CurveStore
	holders   storage.HolderStore
	snapshots storage.SnapshotStore
	now       func() int64
}

// NewSnapshotService creates a SnapshotService. now may be nil for the
// wall clock.
func NewSnapshotService(curves storage.CurveStore, holders storage.HolderStore, snapshots storage.SnapshotStore, now func() int64) *SnapshotService {
	if now == nil {
		now = func() int64 { return time.Now().UnixMilli() }
	}
	return &SnapshotService{curves: curves, holders: holders, snapshots: snapshots, now: now}
}

// Create records the current holder set of a frozen curve. Repeat calls
// produce new snapshots with fresh timestamps; readers wanting "the"
// snapshot use the latest.
func (s *SnapshotService) Create(ctx context.Context, curveID string) (*domain.Snapshot, error) {
	c, err := s.curves.GetByID(ctx, curveID)
	if err != nil {
		return nil, err
	}
	if c.Status != domain.CurveStatusFrozen {
		return nil, fmt.Errorf("%w: status %s", ErrCurveNotFrozen, c.Status)
	}

	holders, err := s.holders.ListActive(ctx, curveID)
	if err != nil {
		return nil, err
	}
	if len(holders) == 0 {
		return nil, ErrNoHolders
	}

	var total int64
	for _, h := range holders {
		total += h.Balance
	}

	snap := &domain.Snapshot{
		CurveID:     curveID,
		TotalSupply: total,
		HolderCount: len(holders),
		Holders:     make([]domain.SnapshotHolder, len(holders)),
		CreatedAt:   s.now(),
	}
	for i, h := range holders {
		snap.Holders[i] = domain.SnapshotHolder{
			UserID:        h.UserID,
			WalletAddress: h.WalletAddress,
			Balance:       h.Balance,
			Percentage:    float64(h.Balance) / float64(total) * 100,
		}
	}
	snap.SnapshotID = idhash.ComputeSnapshotID(curveID, snap.CreatedAt)

	if err := s.snapshots.Insert(ctx, snap); err != nil {
		return nil, fmt.Errorf("persist snapshot: %w", err)
	}

	observability.RecordSnapshot()
	log.Printf("[launch] snapshot curve=%s holders=%d supply=%d", curveID, snap.HolderCount, snap.TotalSupply)
	return snap, nil
}
