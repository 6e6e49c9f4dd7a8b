// Package memory provides in-memory store implementations, used by unit
// tests and the server's --use-memory mode.
package memory

import (
	"context"
	"sync"

	"launch-curve-engine/internal/domain"
	"launch-curve-engine/internal/storage"
)

// CurveStore is an in-memory implementation of storage.CurveStore.
type CurveStore struct {
	mu      sync.RWMutex
	data    map[string]*domain.Curve // keyed by curve ID
	byOwner map[string]string        // owner key -> curve ID
}

// NewCurveStore creates a new in-memory curve store.
func NewCurveStore() *CurveStore {
	return &CurveStore{
		data:    make(map[string]*domain.Curve),
		byOwner: make(map[string]string),
	}
}

func ownerKey(ownerType domain.OwnerType, ownerID string) string {
	return string(ownerType) + "/" + ownerID
}

// Insert adds a new curve. Returns ErrDuplicateKey if the ID or the owner
// already has a curve.
func (s *CurveStore) Insert(_ context.Context, c *domain.Curve) error {
	if c == nil || c.ID == "" || c.OwnerID == "" || !c.OwnerType.Valid() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[c.ID]; exists {
		return storage.ErrDuplicateKey
	}
	key := ownerKey(c.OwnerType, c.OwnerID)
	if _, exists := s.byOwner[key]; exists {
		return storage.ErrDuplicateKey
	}

	curveCopy := *c
	s.data[c.ID] = &curveCopy
	s.byOwner[key] = c.ID
	return nil
}

// GetByID retrieves a curve by ID. Returns ErrNotFound if not exists.
func (s *CurveStore) GetByID(_ context.Context, curveID string) (*domain.Curve, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, exists := s.data[curveID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	curveCopy := *c
	return &curveCopy, nil
}

// GetByOwner retrieves the unique curve of an owner.
func (s *CurveStore) GetByOwner(_ context.Context, ownerType domain.OwnerType, ownerID string) (*domain.Curve, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.byOwner[ownerKey(ownerType, ownerID)]
	if !exists {
		return nil, storage.ErrNotFound
	}
	curveCopy := *s.data[id]
	return &curveCopy, nil
}

// Save writes the curve when the stored version matches expectedVersion.
func (s *CurveStore) Save(_ context.Context, c *domain.Curve, expectedVersion int64) error {
	if c == nil || c.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.saveLocked(c, expectedVersion)
}

// saveLocked is the CAS write, callable while holding mu.
func (s *CurveStore) saveLocked(c *domain.Curve, expectedVersion int64) error {
	stored, exists := s.data[c.ID]
	if !exists {
		return storage.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return storage.ErrVersionConflict
	}

	curveCopy := *c
	curveCopy.Version = expectedVersion + 1
	s.data[c.ID] = &curveCopy
	c.Version = curveCopy.Version
	return nil
}

// Verify interface compliance at compile time.
var _ storage.CurveStore = (*CurveStore)(nil)
