// Package storage defines the persistence interfaces of the engine and the
// errors shared by all backends. Implementations live in the memory and
// postgres subpackages.
package storage

import (
	"context"

	"launch-curve-engine/internal/domain"
)

// CurveStore provides access to curves storage.
type CurveStore interface {
	// Insert adds a new curve. Returns ErrDuplicateKey when a curve
	// already exists for the same (owner_type, owner_id) or ID.
	Insert(ctx context.Context, c *domain.Curve) error

	// GetByID retrieves a curve by ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, curveID string) (*domain.Curve, error)

	// GetByOwner retrieves the unique curve of an owner.
	// Returns ErrNotFound if the owner has no curve.
	GetByOwner(ctx context.Context, ownerType domain.OwnerType, ownerID string) (*domain.Curve, error)

	// Save writes the curve if its stored version equals expectedVersion,
	// incrementing the version. Returns ErrVersionConflict when stale.
	Save(ctx context.Context, c *domain.Curve, expectedVersion int64) error
}

// HolderStore provides access to holder_balances storage.
// Holder rows are mutated only through the ledger's trade path
// (TradeApplier); Upsert exists for wallet binding and test setup.
type HolderStore interface {
	// Get retrieves one holder's position. Returns ErrNotFound if the
	// trader has never bought on the curve.
	Get(ctx context.Context, curveID, userID string) (*domain.HolderBalance, error)

	// Upsert creates or replaces a holder row.
	Upsert(ctx context.Context, h *domain.HolderBalance) error

	// ListActive retrieves all holders with balance > 0 for a curve,
	// ordered by balance descending, ties by user ID ascending.
	ListActive(ctx context.Context, curveID string) ([]*domain.HolderBalance, error)

	// CountActive returns the number of holders with balance > 0.
	CountActive(ctx context.Context, curveID string) (int, error)
}

// TradeEventStore provides read access to the append-only trade log.
// Events are written through TradeApplier only.
type TradeEventStore interface {
	// ListByCurve retrieves the most recent events for a curve, newest
	// first, up to limit (0 means no limit).
	ListByCurve(ctx context.Context, curveID string, limit int) ([]*domain.TradeEvent, error)
}

// TradeApplier commits one trade as a single atomic unit: the curve write
// (version-checked), the holder upsert, and the trade event append either
// all happen or none do. This is the transactional composition of Save,
// Upsert and the event log that keeps partial trade state unobservable.
type TradeApplier interface {
	ApplyTrade(ctx context.Context, c *domain.Curve, expectedVersion int64, h *domain.HolderBalance, e *domain.TradeEvent) error
}

// SnapshotStore provides access to snapshots storage. Snapshots are
// immutable once written.
type SnapshotStore interface {
	// Insert adds a snapshot. Returns ErrDuplicateKey if the ID exists.
	Insert(ctx context.Context, s *domain.Snapshot) error

	// GetByID retrieves a snapshot. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, snapshotID string) (*domain.Snapshot, error)

	// GetLatestByCurve retrieves the most recent snapshot for a curve.
	// Returns ErrNotFound when the curve has never been snapshotted.
	GetLatestByCurve(ctx context.Context, curveID string) (*domain.Snapshot, error)
}

// PlanStore provides access to distribution_plans storage.
type PlanStore interface {
	// Insert adds a plan. Returns ErrDuplicateKey if the ID exists.
	Insert(ctx context.Context, p *domain.DistributionPlan) error

	// GetByID retrieves a plan. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, planID string) (*domain.DistributionPlan, error)

	// GetLatestByCurve retrieves the most recent plan for a curve.
	GetLatestByCurve(ctx context.Context, curveID string) (*domain.DistributionPlan, error)

	// MarkDelivered records the transfer reference for one allocation, so
	// retried launches skip allocations that already landed. Returns
	// ErrNotFound when the plan or allocation does not exist.
	MarkDelivered(ctx context.Context, planID, userID, txRef string) error
}
