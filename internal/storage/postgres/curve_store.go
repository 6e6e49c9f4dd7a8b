package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"launch-curve-engine/internal/domain"
	"launch-curve-engine/internal/storage"
)

// CurveStore implements storage.CurveStore using PostgreSQL.
type CurveStore struct {
	pool *Pool
}

// NewCurveStore creates a new CurveStore.
func NewCurveStore(pool *Pool) *CurveStore {
	return &CurveStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CurveStore = (*CurveStore)(nil)

const curveColumns = `
	id, owner_type, owner_id, status, supply, reserve_lamports, base_price,
	version, token_mint, launch_tx_ref, created_at, frozen_at, launched_at
`

// Insert adds a new curve. Returns ErrDuplicateKey when the ID or the
// (owner_type, owner_id) pair already exists.
func (s *CurveStore) Insert(ctx context.Context, c *domain.Curve) (err error) {
	started := time.Now()
	defer func() { observe("curve_insert", started, err) }()

	query := `
		INSERT INTO curves (` + curveColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err = s.pool.Exec(ctx, query,
		c.ID,
		string(c.OwnerType),
		c.OwnerID,
		string(c.Status),
		c.Supply,
		c.ReserveLamports,
		c.BasePrice,
		c.Version,
		c.TokenMint,
		c.LaunchTxRef,
		c.CreatedAt,
		c.FrozenAt,
		c.LaunchedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert curve: %w", err)
	}
	return nil
}

// GetByID retrieves a curve by ID. Returns ErrNotFound if not exists.
func (s *CurveStore) GetByID(ctx context.Context, curveID string) (c *domain.Curve, err error) {
	started := time.Now()
	defer func() { observe("curve_get_by_id", started, err) }()

	query := `SELECT ` + curveColumns + ` FROM curves WHERE id = $1`

	c, err = scanCurve(s.pool.QueryRow(ctx, query, curveID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get curve by id: %w", err)
	}
	return c, nil
}

// GetByOwner retrieves the unique curve of an owner.
func (s *CurveStore) GetByOwner(ctx context.Context, ownerType domain.OwnerType, ownerID string) (c *domain.Curve, err error) {
	started := time.Now()
	defer func() { observe("curve_get_by_owner", started, err) }()

	query := `SELECT ` + curveColumns + ` FROM curves WHERE owner_type = $1 AND owner_id = $2`

	c, err = scanCurve(s.pool.QueryRow(ctx, query, string(ownerType), ownerID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get curve by owner: %w", err)
	}
	return c, nil
}

// Save writes the curve if its stored version equals expectedVersion.
func (s *CurveStore) Save(ctx context.Context, c *domain.Curve, expectedVersion int64) (err error) {
	started := time.Now()
	defer func() { observe("curve_save", started, err) }()

	err = saveCurve(ctx, s.pool, c, expectedVersion)
	return err
}

// saveCurve runs the version-checked update on any pgx executor, so the
// trade transaction can reuse it.
func saveCurve(ctx context.Context, exec executor, c *domain.Curve, expectedVersion int64) error {
	query := `
		UPDATE curves SET
			status = $1, supply = $2, reserve_lamports = $3, base_price = $4,
			version = version + 1, token_mint = $5, launch_tx_ref = $6,
			frozen_at = $7, launched_at = $8
		WHERE id = $9 AND version = $10
	`
	tag, err := exec.Exec(ctx, query,
		string(c.Status),
		c.Supply,
		c.ReserveLamports,
		c.BasePrice,
		c.TokenMint,
		c.LaunchTxRef,
		c.FrozenAt,
		c.LaunchedAt,
		c.ID,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("save curve: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either the row is gone or another writer bumped the version.
		return storage.ErrVersionConflict
	}
	c.Version = expectedVersion + 1
	return nil
}

// scanCurve scans a single row into a Curve.
func scanCurve(row pgx.Row) (*domain.Curve, error) {
	var c domain.Curve
	var ownerType, status string

	err := row.Scan(
		&c.ID,
		&ownerType,
		&c.OwnerID,
		&status,
		&c.Supply,
		&c.ReserveLamports,
		&c.BasePrice,
		&c.Version,
		&c.TokenMint,
		&c.LaunchTxRef,
		&c.CreatedAt,
		&c.FrozenAt,
		&c.LaunchedAt,
	)
	if err != nil {
		return nil, err
	}

	c.OwnerType = domain.OwnerType(ownerType)
	c.Status = domain.CurveStatus(status)
	return &c, nil
}
