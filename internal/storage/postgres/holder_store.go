package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"launch-curve-engine/internal/domain"
	"launch-curve-engine/internal/storage"
)

// HolderStore implements storage.HolderStore using PostgreSQL.
type HolderStore struct {
	pool *Pool
}

// NewHolderStore creates a new HolderStore.
func NewHolderStore(pool *Pool) *HolderStore {
	return &HolderStore{pool: pool}
}

// Compile-time interface check.
var _ storage.HolderStore = (*HolderStore)(nil)

const holderColumns = `
	curve_id, user_id, wallet_address, balance, invested_lamports,
	first_buy_at, last_trade_at
`

// Get retrieves one holder's position. Returns ErrNotFound if the trader
// has never bought on the curve.
func (s *HolderStore) Get(ctx context.Context, curveID, userID string) (h *domain.HolderBalance, err error) {
	started := time.Now()
	defer func() { observe("holder_get", started, err) }()

	query := `SELECT ` + holderColumns + ` FROM holder_balances WHERE curve_id = $1 AND user_id = $2`

	h, err = scanHolder(s.pool.QueryRow(ctx, query, curveID, userID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get holder: %w", err)
	}
	return h, nil
}

// Upsert creates or replaces a holder row.
func (s *HolderStore) Upsert(ctx context.Context, h *domain.HolderBalance) (err error) {
	started := time.Now()
	defer func() { observe("holder_upsert", started, err) }()

	err = upsertHolder(ctx, s.pool, h)
	return err
}

// upsertHolder runs the upsert on any executor so the trade transaction
// can reuse it.
func upsertHolder(ctx context.Context, exec executor, h *domain.HolderBalance) error {
	if h.Balance < 0 {
		return fmt.Errorf("%w: negative balance %d", storage.ErrInvalidInput, h.Balance)
	}

	query := `
		INSERT INTO holder_balances (` + holderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (curve_id, user_id) DO UPDATE SET
			wallet_address = EXCLUDED.wallet_address,
			balance = EXCLUDED.balance,
			invested_lamports = EXCLUDED.invested_lamports,
			first_buy_at = EXCLUDED.first_buy_at,
			last_trade_at = EXCLUDED.last_trade_at
	`
	_, err := exec.Exec(ctx, query,
		h.CurveID,
		h.UserID,
		h.WalletAddress,
		h.Balance,
		h.InvestedLamports,
		h.FirstBuyAt,
		h.LastTradeAt,
	)
	if err != nil {
		return fmt.Errorf("upsert holder: %w", err)
	}
	return nil
}

// ListActive retrieves all holders with balance > 0 for a curve, ordered
// by balance descending, ties by user ID ascending.
func (s *HolderStore) ListActive(ctx context.Context, curveID string) (holders []*domain.HolderBalance, err error) {
	started := time.Now()
	defer func() { observe("holder_list_active", started, err) }()

	query := `
		SELECT ` + holderColumns + `
		FROM holder_balances
		WHERE curve_id = $1 AND balance > 0
		ORDER BY balance DESC, user_id ASC
	`
	rows, err := s.pool.Query(ctx, query, curveID)
	if err != nil {
		return nil, fmt.Errorf("list active holders: %w", err)
	}
	defer rows.Close()

	holders, err = scanHolders(rows)
	return holders, err
}

// CountActive returns the number of holders with balance > 0.
func (s *HolderStore) CountActive(ctx context.Context, curveID string) (count int, err error) {
	started := time.Now()
	defer func() { observe("holder_count_active", started, err) }()

	query := `SELECT COUNT(*) FROM holder_balances WHERE curve_id = $1 AND balance > 0`

	if err = s.pool.QueryRow(ctx, query, curveID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count active holders: %w", err)
	}
	return count, nil
}

// scanHolder scans a single row into a HolderBalance.
func scanHolder(row pgx.Row) (*domain.HolderBalance, error) {
	var h domain.HolderBalance
	err := row.Scan(
		&h.CurveID,
		&h.UserID,
		&h.WalletAddress,
		&h.Balance,
		&h.InvestedLamports,
		&h.FirstBuyAt,
		&h.LastTradeAt,
	)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// scanHolders scans multiple rows into a slice of HolderBalance.
func scanHolders(rows pgx.Rows) ([]*domain.HolderBalance, error) {
	var holders []*domain.HolderBalance

	for rows.Next() {
		h, err := scanHolder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan holder row: %w", err)
		}
		holders = append(holders, h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate holder rows: %w", err)
	}
	return holders, nil
}
