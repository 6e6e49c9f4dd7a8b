package launch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"launch-curve-engine/internal/domain"
	"launch-curve-engine/internal/ledger"
	"launch-curve-engine/internal/observability"
	"launch-curve-engine/internal/storage"
	"launch-curve-engine/internal/token"
)

// Orchestration errors.
var (
	// ErrNotOwner is returned when the caller does not own the curve.
	ErrNotOwner = errors.New("caller does not own this curve")

	// ErrAlreadyLaunched is returned for curves that already launched.
	ErrAlreadyLaunched = errors.New("curve already launched")

	// ErrTransfersIncomplete is returned when the all-transfers policy is
	// on and at least one allocation transfer failed. The curve stays
	// frozen; the result carries the failed allocations for retry.
	ErrTransfersIncomplete = errors.New("not all transfers completed")
)

// ThresholdsNotMetError reports every unmet launch threshold.
type ThresholdsNotMetError struct {
	Reasons []string
}

func (e *ThresholdsNotMetError) Error() string {
	return "launch thresholds not met: " + strings.Join(e.Reasons, ", ")
}

// Default orchestration limits.
const (
	DefaultCreateTimeout   = 2 * time.Minute
	DefaultTransferRetries = 2
)

// Orchestrator runs the full launch sequence for a curve.
// Flow: ownership check → gate → freeze → snapshot → create token →
// plan → transfer allocations → mark launched.
//
// Every failure past the freeze leaves the curve frozen. A frozen curve
// never returns to active; Launch can be called again to retry.
type Orchestrator struct {
	curves    storage.CurveStore
	holders   storage.HolderStore
	plans     storage.PlanStore
	snapshots storage.SnapshotStore

	ledger      *ledger.Ledger
	launcher    token.Launcher
	gate        *Gate
	snapshotSvc *SnapshotService
	planner     *Planner

	requireAllTransfers bool
	createTimeout       time.Duration
	transferRetries     int
	logger              *log.Logger
	now                 func() int64
}

// OrchestratorOptions configures an Orchestrator.
type OrchestratorOptions struct {
	CurveStore    storage.CurveStore
	HolderStore   storage.HolderStore
	SnapshotStore storage.SnapshotStore
	PlanStore     storage.PlanStore

	Ledger   *ledger.Ledger
	Launcher token.Launcher
	Gate     *Gate

	// RequireAllTransfers keeps the curve frozen unless every allocation
	// transfer succeeded. Off, the curve launches with failed allocations
	// reported for manual retry.
	RequireAllTransfers bool

	CreateTimeout   time.Duration // 0 means DefaultCreateTimeout
	TransferRetries int           // 0 means DefaultTransferRetries
	Logger          *log.Logger   // nil means log.Default
	Now             func() int64  // ms clock override for tests
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(opts OrchestratorOptions) *Orchestrator {
	o := &Orchestrator{
		curves:              opts.CurveStore,
		holders:             opts.HolderStore,
		plans:               opts.PlanStore,
		snapshots:           opts.SnapshotStore,
		ledger:              opts.Ledger,
		launcher:            opts.Launcher,
		gate:                opts.Gate,
		requireAllTransfers: opts.RequireAllTransfers,
		createTimeout:       opts.CreateTimeout,
		transferRetries:     opts.TransferRetries,
		logger:              opts.Logger,
		now:                 opts.Now,
	}
	if o.createTimeout == 0 {
		o.createTimeout = DefaultCreateTimeout
	}
	if o.transferRetries == 0 {
		o.transferRetries = DefaultTransferRetries
	}
	if o.logger == nil {
		o.logger = log.Default()
	}
	if o.now == nil {
		o.now = func() int64 { return time.Now().UnixMilli() }
	}
	o.snapshotSvc = NewSnapshotService(opts.CurveStore, opts.HolderStore, opts.SnapshotStore, o.now)
	o.planner = NewPlanner(o.now)
	return o
}

// LaunchParams describes the token to create for the launch.
type LaunchParams struct {
	TokenName   string
	TokenSymbol string
	MetadataRef string
}

// TransferOutcome is the result of one allocation transfer.
type TransferOutcome struct {
	UserID        string
	WalletAddress string
	TokenAmount   int64
	TxRef         string // set on success
	Err           string // set on failure
}

// LaunchResult reports everything the launch produced, including failed
// transfers for manual retry.
type LaunchResult struct {
	Curve     *domain.Curve
	Snapshot  *domain.Snapshot
	Plan      *domain.DistributionPlan
	TokenMint string
	Transfers []TransferOutcome
	Failed    []TransferOutcome
	Launched  bool
}

// Launch runs the launch sequence for curveID on behalf of callerID.
func (o *Orchestrator) Launch(ctx context.Context, curveID, callerID string, params LaunchParams) (*LaunchResult, error) {
	started := time.Now()
	res, err := o.launch(ctx, curveID, callerID, params)
	status := "ok"
	if err != nil {
		status = "failed"
	}
	observability.RecordLaunch(status, time.Since(started).Seconds())
	return res, err
}

func (o *Orchestrator) launch(ctx context.Context, curveID, callerID string, params LaunchParams) (*LaunchResult, error) {
	c, err := o.curves.GetByID(ctx, curveID)
	if err != nil {
		return nil, err
	}
	if c.OwnerID != callerID {
		return nil, ErrNotOwner
	}
	if c.Status == domain.CurveStatusLaunched {
		return nil, fmt.Errorf("%w: mint %s", ErrAlreadyLaunched, c.TokenMint)
	}

	// Gate and freeze. A curve frozen by an earlier attempt skips both:
	// it met the thresholds when it froze, and balances have not moved
	// since.
	wasFrozen := c.Status == domain.CurveStatusFrozen
	if !wasFrozen {
		count, err := o.holders.CountActive(ctx, curveID)
		if err != nil {
			return nil, err
		}
		if r := o.gate.Check(c, count); !r.Ready {
			return nil, &ThresholdsNotMetError{Reasons: r.Reasons}
		}
		if c, err = o.ledger.Freeze(ctx, curveID); err != nil {
			return nil, fmt.Errorf("freeze: %w", err)
		}
	}

	// A retry on a frozen curve resumes from the persisted plan: the token
	// was already minted, so only undelivered allocations are re-sent.
	var snap *domain.Snapshot
	var plan *domain.DistributionPlan
	if wasFrozen {
		plan, err = o.obtainPlan(ctx, curveID)
		if err != nil {
			return nil, err
		}
	}

	if plan != nil {
		if snap, err = o.snapshots.GetByID(ctx, plan.SnapshotID); err != nil {
			return nil, fmt.Errorf("load plan snapshot: %w", err)
		}
		o.logger.Printf("[launch] resuming curve=%s plan=%s mint=%s", curveID, plan.PlanID, plan.TokenMint)
	} else {
		if snap, err = o.obtainSnapshot(ctx, curveID, wasFrozen); err != nil {
			return nil, err
		}

		createCtx, cancel := context.WithTimeout(ctx, o.createTimeout)
		created, err := o.launcher.CreateToken(createCtx, token.CreateTokenParams{
			Name:           params.TokenName,
			Symbol:         params.TokenSymbol,
			MetadataRef:    params.MetadataRef,
			DevBuyLamports: c.ReserveLamports,
		})
		cancel()
		if err != nil {
			return nil, fmt.Errorf("create token: %w", err)
		}
		if created.ConfirmedSupply <= 0 {
			return nil, fmt.Errorf("create token: confirmed supply %d", created.ConfirmedSupply)
		}
		o.logger.Printf("[launch] token created curve=%s mint=%s supply=%d", curveID, created.Mint, created.ConfirmedSupply)

		// The plan divides the supply the service confirmed, never a
		// pre-launch estimate.
		if plan, err = o.planner.Plan(snap, created.Mint, created.ConfirmedSupply); err != nil {
			return nil, err
		}
		if err := o.plans.Insert(ctx, plan); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			return nil, fmt.Errorf("persist plan: %w", err)
		}

		// Record the mint before any tokens move. A crash past this point
		// resumes from the plan instead of minting again.
		c.TokenMint = created.Mint
		c.LaunchTxRef = created.TxRef
		if err := o.curves.Save(ctx, c, c.Version); err != nil {
			return nil, fmt.Errorf("record mint: %w", err)
		}
	}

	result := &LaunchResult{
		Curve:     c,
		Snapshot:  snap,
		Plan:      plan,
		TokenMint: plan.TokenMint,
	}
	o.runTransfers(ctx, plan, result)

	if o.requireAllTransfers && len(result.Failed) > 0 {
		o.logger.Printf("[launch] curve=%s staying frozen: %d/%d transfers failed",
			curveID, len(result.Failed), len(plan.Allocations))
		return result, ErrTransfersIncomplete
	}

	c.Status = domain.CurveStatusLaunched
	c.LaunchedAt = o.now()
	if err := o.curves.Save(ctx, c, c.Version); err != nil {
		return result, fmt.Errorf("mark launched: %w", err)
	}
	result.Launched = true

	o.logger.Printf("[launch] curve=%s launched mint=%s holders=%d failed_transfers=%d",
		curveID, plan.TokenMint, len(plan.Allocations), len(result.Failed))
	return result, nil
}

// obtainPlan loads the persisted plan of an earlier launch attempt, if
// one exists.
func (o *Orchestrator) obtainPlan(ctx context.Context, curveID string) (*domain.DistributionPlan, error) {
	plan, err := o.plans.GetLatestByCurve(ctx, curveID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return plan, nil
}

// obtainSnapshot reuses the latest snapshot when retrying an already
// frozen curve, so a retry distributes to exactly the same holder set.
func (o *Orchestrator) obtainSnapshot(ctx context.Context, curveID string, wasFrozen bool) (*domain.Snapshot, error) {
	if wasFrozen {
		snap, err := o.snapshots.GetLatestByCurve(ctx, curveID)
		if err == nil {
			return snap, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
	}
	return o.snapshotSvc.Create(ctx, curveID)
}

// runTransfers executes every allocation transfer, each tracked
// independently. One failure never aborts the rest.
func (o *Orchestrator) runTransfers(ctx context.Context, plan *domain.DistributionPlan, result *LaunchResult) {
	for _, a := range plan.Allocations {
		outcome := TransferOutcome{
			UserID:        a.UserID,
			WalletAddress: a.WalletAddress,
			TokenAmount:   a.TokenAmount,
		}

		switch {
		case a.TokenAmount == 0:
			// Below one token unit after floor rounding. Nothing to send.
		case a.TxRef != "":
			// Delivered by an earlier attempt.
			outcome.TxRef = a.TxRef
		case a.WalletAddress == "":
			outcome.Err = "no wallet address"
		default:
			txRef, err := o.transferWithRetry(ctx, plan.TokenMint, a.WalletAddress, a.TokenAmount)
			if err != nil {
				outcome.Err = err.Error()
			} else {
				outcome.TxRef = txRef
				if err := o.plans.MarkDelivered(ctx, plan.PlanID, a.UserID, txRef); err != nil {
					o.logger.Printf("[launch] mark delivered failed plan=%s user=%s: %v", plan.PlanID, a.UserID, err)
				}
			}
		}

		if outcome.Err != "" {
			observability.RecordTransfer("failed")
			o.logger.Printf("[launch] transfer failed curve=%s user=%s amount=%d: %s",
				plan.CurveID, a.UserID, a.TokenAmount, outcome.Err)
			result.Failed = append(result.Failed, outcome)
		} else {
			observability.RecordTransfer("ok")
		}
		result.Transfers = append(result.Transfers, outcome)
	}
}

func (o *Orchestrator) transferWithRetry(ctx context.Context, mint, toAddress string, amount int64) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= o.transferRetries; attempt++ {
		txRef, err := o.launcher.Transfer(ctx, mint, toAddress, amount)
		if err == nil {
			return txRef, nil
		}
		lastErr = err
		if errors.Is(err, token.ErrInvalidAddress) || errors.Is(err, token.ErrRejected) {
			break
		}
		if ctx.Err() != nil {
			break
		}
	}
	return "", lastErr
}
