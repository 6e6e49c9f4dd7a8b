package memory

import (
	"context"
	"sync"

	"launch-curve-engine/internal/domain"
	"launch-curve-engine/internal/storage"
)

// SnapshotStore is an in-memory implementation of storage.SnapshotStore.
type SnapshotStore struct {
	mu      sync.RWMutex
	data    map[string]*domain.Snapshot // keyed by snapshot ID
	byCurve map[string][]string         // curveID -> snapshot IDs, insert order
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		data:    make(map[string]*domain.Snapshot),
		byCurve: make(map[string][]string),
	}
}

// Insert adds a snapshot. Returns ErrDuplicateKey if the ID exists.
func (s *SnapshotStore) Insert(_ context.Context, snap *domain.Snapshot) error {
	if snap == nil || snap.SnapshotID == "" || snap.CurveID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[snap.SnapshotID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[snap.SnapshotID] = copySnapshot(snap)
	s.byCurve[snap.CurveID] = append(s.byCurve[snap.CurveID], snap.SnapshotID)
	return nil
}

// GetByID retrieves a snapshot. Returns ErrNotFound if not exists.
func (s *SnapshotStore) GetByID(_ context.Context, snapshotID string) (*domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, exists := s.data[snapshotID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copySnapshot(snap), nil
}

// GetLatestByCurve retrieves the most recently inserted snapshot.
func (s *SnapshotStore) GetLatestByCurve(_ context.Context, curveID string) (*domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byCurve[curveID]
	if len(ids) == 0 {
		return nil, storage.ErrNotFound
	}
	return copySnapshot(s.data[ids[len(ids)-1]]), nil
}

func copySnapshot(snap *domain.Snapshot) *domain.Snapshot {
	snapCopy := *snap
	snapCopy.Holders = make([]domain.SnapshotHolder, len(snap.Holders))
	copy(snapCopy.Holders, snap.Holders)
	return &snapCopy
}

// Verify interface compliance at compile time.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)
