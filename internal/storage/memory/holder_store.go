package memory

import (
	"context"
	"sort"
	"sync"

	"launch-curve-engine/internal/domain"
	"launch-curve-engine/internal/storage"
)

// HolderStore is an in-memory implementation of storage.HolderStore.
type HolderStore struct {
	mu   sync.RWMutex
	data map[string]map[string]*domain.HolderBalance // curveID -> userID -> balance
}

// NewHolderStore creates a new in-memory holder store.
func NewHolderStore() *HolderStore {
	return &HolderStore{
		data: make(map[string]map[string]*domain.HolderBalance),
	}
}

// Get retrieves one holder's position. Returns ErrNotFound for unknown
// (curve, user) pairs.
func (s *HolderStore) Get(_ context.Context, curveID, userID string) (*domain.HolderBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, exists := s.data[curveID][userID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	holderCopy := *h
	return &holderCopy, nil
}

// Upsert creates or replaces a holder row.
func (s *HolderStore) Upsert(_ context.Context, h *domain.HolderBalance) error {
	if h == nil || h.CurveID == "" || h.UserID == "" || h.Balance < 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.upsertLocked(h)
	return nil
}

func (s *HolderStore) upsertLocked(h *domain.HolderBalance) {
	if s.data[h.CurveID] == nil {
		s.data[h.CurveID] = make(map[string]*domain.HolderBalance)
	}
	holderCopy := *h
	s.data[h.CurveID][h.UserID] = &holderCopy
}

// ListActive retrieves holders with balance > 0, ordered by balance
// descending, ties by user ID ascending.
func (s *HolderStore) ListActive(_ context.Context, curveID string) ([]*domain.HolderBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.HolderBalance
	for _, h := range s.data[curveID] {
		if h.Balance > 0 {
			holderCopy := *h
			result = append(result, &holderCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Balance != result[j].Balance {
			return result[i].Balance > result[j].Balance
		}
		return result[i].UserID < result[j].UserID
	})

	return result, nil
}

// CountActive returns the number of holders with balance > 0.
func (s *HolderStore) CountActive(_ context.Context, curveID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, h := range s.data[curveID] {
		if h.Balance > 0 {
			count++
		}
	}
	return count, nil
}

// Verify interface compliance at compile time.
var _ storage.HolderStore = (*HolderStore)(nil)
