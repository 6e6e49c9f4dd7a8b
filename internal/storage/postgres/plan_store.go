package postgres

import (
	"context"
	"fmt"
	"time"

	"launch-curve-engine/internal/domain"
	"launch-curve-engine/internal/storage"
)

// PlanStore implements storage.PlanStore using PostgreSQL. The plan
// header and its allocations are written in one transaction.
type PlanStore struct {
	pool *Pool
}

// NewPlanStore creates a new PlanStore.
func NewPlanStore(pool *Pool) *PlanStore {
	return &PlanStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PlanStore = (*PlanStore)(nil)

// Insert adds a plan. Returns ErrDuplicateKey if the ID exists.
func (s *PlanStore) Insert(ctx context.Context, p *domain.DistributionPlan) (err error) {
	started := time.Now()
	defer func() { observe("plan_insert", started, err) }()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin plan tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO distribution_plans (
			plan_id, snapshot_id, curve_id, token_mint, total_tokens,
			undistributed_remainder, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, p.PlanID, p.SnapshotID, p.CurveID, p.TokenMint, p.TotalTokens,
		p.UndistributedRemainder, p.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert plan: %w", err)
	}

	for i, a := range p.Allocations {
		_, err = tx.Exec(ctx, `
			INSERT INTO plan_allocations (plan_id, position, user_id, wallet_address, token_amount, tx_ref, percentage)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, p.PlanID, i, a.UserID, a.WalletAddress, a.TokenAmount, a.TxRef, a.Percentage)
		if err != nil {
			return fmt.Errorf("insert plan allocation: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit plan tx: %w", err)
	}
	return nil
}

// GetByID retrieves a plan. Returns ErrNotFound if not exists.
func (s *PlanStore) GetByID(ctx context.Context, planID string) (p *domain.DistributionPlan, err error) {
	started := time.Now()
	defer func() { observe("plan_get_by_id", started, err) }()

	p, err = s.getOne(ctx, `
		SELECT plan_id, snapshot_id, curve_id, token_mint, total_tokens,
			undistributed_remainder, created_at
		FROM distribution_plans WHERE plan_id = $1
	`, planID)
	return p, err
}

// GetLatestByCurve retrieves the most recent plan for a curve.
func (s *PlanStore) GetLatestByCurve(ctx context.Context, curveID string) (p *domain.DistributionPlan, err error) {
	started := time.Now()
	defer func() { observe("plan_get_latest", started, err) }()

	p, err = s.getOne(ctx, `
		SELECT plan_id, snapshot_id, curve_id, token_mint, total_tokens,
			undistributed_remainder, created_at
		FROM distribution_plans WHERE curve_id = $1
		ORDER BY created_at DESC, plan_id DESC
		LIMIT 1
	`, curveID)
	return p, err
}

// MarkDelivered records the transfer reference for one allocation.
func (s *PlanStore) MarkDelivered(ctx context.Context, planID, userID, txRef string) (err error) {
	started := time.Now()
	defer func() { observe("plan_mark_delivered", started, err) }()

	if planID == "" || userID == "" || txRef == "" {
		return storage.ErrInvalidInput
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE plan_allocations SET tx_ref = $3
		WHERE plan_id = $1 AND user_id = $2
	`, planID, userID, txRef)
	if err != nil {
		return fmt.Errorf("mark allocation delivered: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *PlanStore) getOne(ctx context.Context, query, arg string) (*domain.DistributionPlan, error) {
	var p domain.DistributionPlan
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&p.PlanID,
		&p.SnapshotID,
		&p.CurveID,
		&p.TokenMint,
		&p.TotalTokens,
		&p.UndistributedRemainder,
		&p.CreatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get plan: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT user_id, wallet_address, token_amount, tx_ref, percentage
		FROM plan_allocations
		WHERE plan_id = $1
		ORDER BY position ASC
	`, p.PlanID)
	if err != nil {
		return nil, fmt.Errorf("get plan allocations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a domain.Allocation
		if err := rows.Scan(&a.UserID, &a.WalletAddress, &a.TokenAmount, &a.TxRef, &a.Percentage); err != nil {
			return nil, fmt.Errorf("scan plan allocation row: %w", err)
		}
		p.Allocations = append(p.Allocations, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate plan allocation rows: %w", err)
	}

	return &p, nil
}
