package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"launch-curve-engine/internal/domain"
	"launch-curve-engine/internal/storage"
)

// TradeEventStore implements storage.TradeEventStore using PostgreSQL.
type TradeEventStore struct {
	pool *Pool
}

// NewTradeEventStore creates a new TradeEventStore.
func NewTradeEventStore(pool *Pool) *TradeEventStore {
	return &TradeEventStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeEventStore = (*TradeEventStore)(nil)

const eventColumns = `
	event_id, curve_id, user_id, direction, keys, gross_lamports,
	reserve_fee, creator_fee, platform_fee, referral_fee, net_payout,
	referral_id, supply_after, price_after, created_at
`

// ListByCurve retrieves the most recent events for a curve, newest first,
// up to limit (0 means no limit).
func (s *TradeEventStore) ListByCurve(ctx context.Context, curveID string, limit int) (events []*domain.TradeEvent, err error) {
	started := time.Now()
	defer func() { observe("event_list_by_curve", started, err) }()

	query := `
		SELECT ` + eventColumns + `
		FROM trade_events
		WHERE curve_id = $1
		ORDER BY created_at DESC, event_id DESC
	`
	args := []any{curveID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list trade events: %w", err)
	}
	defer rows.Close()

	events, err = scanEvents(rows)
	return events, err
}

// insertEvent appends one trade event on any executor.
func insertEvent(ctx context.Context, exec executor, e *domain.TradeEvent) error {
	query := `
		INSERT INTO trade_events (` + eventColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := exec.Exec(ctx, query,
		e.EventID,
		e.CurveID,
		e.UserID,
		string(e.Direction),
		e.Keys,
		e.Gross,
		e.ReserveFee,
		e.CreatorFee,
		e.PlatformFee,
		e.ReferralFee,
		e.NetPayout,
		e.ReferralID,
		e.SupplyAfter,
		e.PriceAfter,
		e.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade event: %w", err)
	}
	return nil
}

// scanEvents scans multiple rows into a slice of TradeEvent.
func scanEvents(rows pgx.Rows) ([]*domain.TradeEvent, error) {
	var events []*domain.TradeEvent

	for rows.Next() {
		var e domain.TradeEvent
		var direction string

		err := rows.Scan(
			&e.EventID,
			&e.CurveID,
			&e.UserID,
			&direction,
			&e.Keys,
			&e.Gross,
			&e.ReserveFee,
			&e.CreatorFee,
			&e.PlatformFee,
			&e.ReferralFee,
			&e.NetPayout,
			&e.ReferralID,
			&e.SupplyAfter,
			&e.PriceAfter,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trade event row: %w", err)
		}

		e.Direction = domain.TradeDirection(direction)
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade event rows: %w", err)
	}
	return events, nil
}

// Applier commits trades transactionally: the version-checked curve
// update, the holder upsert and the event append either all land or none
// do. The UPDATE's version predicate is the cross-process serialization
// point.
type Applier struct {
	pool *Pool
}

// NewApplier creates a new Applier.
func NewApplier(pool *Pool) *Applier {
	return &Applier{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeApplier = (*Applier)(nil)

// ApplyTrade commits one trade in a single transaction.
func (a *Applier) ApplyTrade(ctx context.Context, c *domain.Curve, expectedVersion int64, h *domain.HolderBalance, e *domain.TradeEvent) (err error) {
	started := time.Now()
	defer func() { observe("apply_trade", started, err) }()

	if c == nil || h == nil || e == nil {
		return fmt.Errorf("%w: nil trade component", storage.ErrInvalidInput)
	}
	if c.ID != h.CurveID || c.ID != e.CurveID {
		return fmt.Errorf("%w: trade components reference different curves", storage.ErrInvalidInput)
	}

	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin trade tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err = saveCurve(ctx, tx, c, expectedVersion); err != nil {
		return err
	}
	if err = upsertHolder(ctx, tx, h); err != nil {
		return err
	}
	if err = insertEvent(ctx, tx, e); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit trade tx: %w", err)
	}
	return nil
}
