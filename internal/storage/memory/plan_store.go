package memory

import (
	"context"
	"sync"

	"launch-curve-engine/internal/domain"
	"launch-curve-engine/internal/storage"
)

// PlanStore is an in-memory implementation of storage.PlanStore.
type PlanStore struct {
	mu      sync.RWMutex
	data    map[string]*domain.DistributionPlan
	byCurve map[string][]string // curveID -> plan IDs, insert order
}

// NewPlanStore creates a new in-memory distribution plan store.
func NewPlanStore() *PlanStore {
	return &PlanStore{
		data:    make(map[string]*domain.DistributionPlan),
		byCurve: make(map[string][]string),
	}
}

// Insert adds a plan. Returns ErrDuplicateKey if the ID exists.
func (s *PlanStore) Insert(_ context.Context, p *domain.DistributionPlan) error {
	if p == nil || p.PlanID == "" || p.CurveID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[p.PlanID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[p.PlanID] = copyPlan(p)
	s.byCurve[p.CurveID] = append(s.byCurve[p.CurveID], p.PlanID)
	return nil
}

// GetByID retrieves a plan. Returns ErrNotFound if not exists.
func (s *PlanStore) GetByID(_ context.Context, planID string) (*domain.DistributionPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.data[planID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyPlan(p), nil
}

// GetLatestByCurve retrieves the most recently inserted plan.
func (s *PlanStore) GetLatestByCurve(_ context.Context, curveID string) (*domain.DistributionPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byCurve[curveID]
	if len(ids) == 0 {
		return nil, storage.ErrNotFound
	}
	return copyPlan(s.data[ids[len(ids)-1]]), nil
}

// MarkDelivered records the transfer reference for one allocation.
func (s *PlanStore) MarkDelivered(_ context.Context, planID, userID, txRef string) error {
	if planID == "" || userID == "" || txRef == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.data[planID]
	if !exists {
		return storage.ErrNotFound
	}
	for i := range p.Allocations {
		if p.Allocations[i].UserID == userID {
			p.Allocations[i].TxRef = txRef
			return nil
		}
	}
	return storage.ErrNotFound
}

func copyPlan(p *domain.DistributionPlan) *domain.DistributionPlan {
	planCopy := *p
	planCopy.Allocations = make([]domain.Allocation, len(p.Allocations))
	copy(planCopy.Allocations, p.Allocations)
	return &planCopy
}

// Verify interface compliance at compile time.
var _ storage.PlanStore = (*PlanStore)(nil)
