package launch

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"launch-curve-engine/internal/domain"
	"launch-curve-engine/internal/idhash"
)

// Planner errors.
var (
	// ErrInvalidPlanInput is returned for an unusable snapshot, mint or
	// token amount.
	ErrInvalidPlanInput = errors.New("invalid plan input")
)

// Planner turns a snapshot plus a confirmed token amount into per-holder
// allocations. Planning is pure: same inputs, same plan, bit for bit.
type Planner struct {
	now func() int64
}

// NewPlanner creates a Planner. now may be nil for the wall clock.
func NewPlanner(now func() int64) *Planner {
	if now == nil {
		now = func() int64 { return time.Now().UnixMilli() }
	}
	return &Planner{now: now}
}

// Plan allocates floor(totalTokens * balance / totalSupply) to each holder
// in snapshot order. Whatever floor rounding leaves over is reported as
// the plan's UndistributedRemainder, never handed to any holder.
func (p *Planner) Plan(snapshot *domain.Snapshot, tokenMint string, totalTokens int64) (*domain.DistributionPlan, error) {
	if snapshot == nil || len(snapshot.Holders) == 0 {
		return nil, fmt.Errorf("%w: empty snapshot", ErrInvalidPlanInput)
	}
	if snapshot.TotalSupply <= 0 {
		return nil, fmt.Errorf("%w: non-positive snapshot supply %d", ErrInvalidPlanInput, snapshot.TotalSupply)
	}
	if tokenMint == "" {
		return nil, fmt.Errorf("%w: token mint required", ErrInvalidPlanInput)
	}
	if totalTokens <= 0 {
		return nil, fmt.Errorf("%w: non-positive token amount %d", ErrInvalidPlanInput, totalTokens)
	}

	plan := &domain.DistributionPlan{
		SnapshotID:  snapshot.SnapshotID,
		CurveID:     snapshot.CurveID,
		TokenMint:   tokenMint,
		TotalTokens: totalTokens,
		Allocations: make([]domain.Allocation, len(snapshot.Holders)),
		CreatedAt:   p.now(),
	}
	plan.PlanID = idhash.ComputePlanID(snapshot.SnapshotID, tokenMint, totalTokens)

	// totalTokens * balance can exceed int64, so the product is taken in
	// big.Int. Quo truncates toward zero, which is floor for non-negative
	// operands.
	total := big.NewInt(totalTokens)
	supply := big.NewInt(snapshot.TotalSupply)

	var distributed int64
	for i, h := range snapshot.Holders {
		amount := new(big.Int).Mul(total, big.NewInt(h.Balance))
		amount.Quo(amount, supply)

		plan.Allocations[i] = domain.Allocation{
			UserID:        h.UserID,
			WalletAddress: h.WalletAddress,
			TokenAmount:   amount.Int64(),
			Percentage:    h.Percentage,
		}
		distributed += plan.Allocations[i].TokenAmount
	}
	plan.UndistributedRemainder = totalTokens - distributed

	return plan, nil
}
