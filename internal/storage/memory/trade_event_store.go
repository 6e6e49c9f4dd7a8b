package memory

import (
	"context"
	"sync"

	"launch-curve-engine/internal/domain"
	"launch-curve-engine/internal/storage"
)

// TradeEventStore is an in-memory implementation of storage.TradeEventStore.
// Events are appended through the Applier only.
type TradeEventStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.TradeEvent // curveID -> events, append order
}

// NewTradeEventStore creates a new in-memory trade event store.
func NewTradeEventStore() *TradeEventStore {
	return &TradeEventStore{
		data: make(map[string][]*domain.TradeEvent),
	}
}

func (s *TradeEventStore) appendLocked(e *domain.TradeEvent) {
	eventCopy := *e
	s.data[e.CurveID] = append(s.data[e.CurveID], &eventCopy)
}

// ListByCurve retrieves the most recent events, newest first.
func (s *TradeEventStore) ListByCurve(_ context.Context, curveID string, limit int) ([]*domain.TradeEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := s.data[curveID]
	n := len(events)
	if limit > 0 && limit < n {
		n = limit
	}

	result := make([]*domain.TradeEvent, 0, n)
	for i := len(events) - 1; i >= 0 && len(result) < n; i-- {
		eventCopy := *events[i]
		result = append(result, &eventCopy)
	}
	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.TradeEventStore = (*TradeEventStore)(nil)

// Applier is the in-memory storage.TradeApplier. The curve CAS is the
// commit point: once it succeeds the holder and event writes cannot fail,
// so the three writes behave as one atomic unit.
type Applier struct {
	curves  *CurveStore
	holders *HolderStore
	events  *TradeEventStore
}

// NewApplier creates a TradeApplier over the in-memory stores.
func NewApplier(curves *CurveStore, holders *HolderStore, events *TradeEventStore) *Applier {
	return &Applier{curves: curves, holders: holders, events: events}
}

// ApplyTrade commits a trade: version-checked curve write, holder upsert,
// event append.
func (a *Applier) ApplyTrade(_ context.Context, c *domain.Curve, expectedVersion int64, h *domain.HolderBalance, e *domain.TradeEvent) error {
	if c == nil || h == nil || e == nil {
		return storage.ErrInvalidInput
	}
	if h.CurveID != c.ID || e.CurveID != c.ID {
		return storage.ErrInvalidInput
	}
	if h.Balance < 0 || c.Supply < 0 || c.ReserveLamports < 0 {
		return storage.ErrInvalidInput
	}

	a.curves.mu.Lock()
	defer a.curves.mu.Unlock()

	if err := a.curves.saveLocked(c, expectedVersion); err != nil {
		return err
	}

	a.holders.mu.Lock()
	a.holders.upsertLocked(h)
	a.holders.mu.Unlock()

	a.events.mu.Lock()
	a.events.appendLocked(e)
	a.events.mu.Unlock()

	return nil
}

// Verify interface compliance at compile time.
var _ storage.TradeApplier = (*Applier)(nil)
