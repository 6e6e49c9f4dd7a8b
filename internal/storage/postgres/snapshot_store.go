package postgres

import (
	"context"
	"fmt"
	"time"

	"launch-curve-engine/internal/domain"
	"launch-curve-engine/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore using PostgreSQL.
// The snapshot header and its holder rows are written in one transaction.
type SnapshotStore struct {
	pool *Pool
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(pool *Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// Insert adds a snapshot. Returns ErrDuplicateKey if the ID exists.
func (s *SnapshotStore) Insert(ctx context.Context, snap *domain.Snapshot) (err error) {
	started := time.Now()
	defer func() { observe("snapshot_insert", started, err) }()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO snapshots (snapshot_id, curve_id, total_supply, holder_count, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, snap.SnapshotID, snap.CurveID, snap.TotalSupply, snap.HolderCount, snap.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert snapshot: %w", err)
	}

	for i, h := range snap.Holders {
		_, err = tx.Exec(ctx, `
			INSERT INTO snapshot_holders (snapshot_id, position, user_id, wallet_address, balance, percentage)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, snap.SnapshotID, i, h.UserID, h.WalletAddress, h.Balance, h.Percentage)
		if err != nil {
			return fmt.Errorf("insert snapshot holder: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit snapshot tx: %w", err)
	}
	return nil
}

// GetByID retrieves a snapshot. Returns ErrNotFound if not exists.
func (s *SnapshotStore) GetByID(ctx context.Context, snapshotID string) (snap *domain.Snapshot, err error) {
	started := time.Now()
	defer func() { observe("snapshot_get_by_id", started, err) }()

	snap, err = s.getOne(ctx, `
		SELECT snapshot_id, curve_id, total_supply, holder_count, created_at
		FROM snapshots WHERE snapshot_id = $1
	`, snapshotID)
	return snap, err
}

// GetLatestByCurve retrieves the most recent snapshot for a curve.
func (s *SnapshotStore) GetLatestByCurve(ctx context.Context, curveID string) (snap *domain.Snapshot, err error) {
	started := time.Now()
	defer func() { observe("snapshot_get_latest", started, err) }()

	snap, err = s.getOne(ctx, `
		SELECT snapshot_id, curve_id, total_supply, holder_count, created_at
		FROM snapshots WHERE curve_id = $1
		ORDER BY created_at DESC, snapshot_id DESC
		LIMIT 1
	`, curveID)
	return snap, err
}

func (s *SnapshotStore) getOne(ctx context.Context, query, arg string) (*domain.Snapshot, error) {
	var snap domain.Snapshot
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&snap.SnapshotID,
		&snap.CurveID,
		&snap.TotalSupply,
		&snap.HolderCount,
		&snap.CreatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT user_id, wallet_address, balance, percentage
		FROM snapshot_holders
		WHERE snapshot_id = $1
		ORDER BY position ASC
	`, snap.SnapshotID)
	if err != nil {
		return nil, fmt.Errorf("get snapshot holders: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var h domain.SnapshotHolder
		if err := rows.Scan(&h.UserID, &h.WalletAddress, &h.Balance, &h.Percentage); err != nil {
			return nil, fmt.Errorf("scan snapshot holder row: %w", err)
		}
		snap.Holders = append(snap.Holders, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot holder rows: %w", err)
	}

	return &snap, nil
}
