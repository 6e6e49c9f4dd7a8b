// Package ledger owns all mutation of curve supply, reserve and holder
// balances. Trades against the same curve are serialized; trades against
// different curves proceed in parallel.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"launch-curve-engine/internal/curve"
	"launch-curve-engine/internal/domain"
	"launch-curve-engine/internal/idhash"
	"launch-curve-engine/internal/observability"
	"launch-curve-engine/internal/storage"
)

// Trade errors. All are returned before any state is mutated.
var (
	// ErrCurveFrozen is returned when trading on a curve whose status is
	// no longer active.
	ErrCurveFrozen = errors.New("curve is frozen")

	// ErrSlippageExceeded is returned when the computed amount breaches
	// the caller-supplied bound (max cost on buys, min proceeds on sells).
	ErrSlippageExceeded = errors.New("slippage exceeded")

	// ErrInsufficientBalance is returned when a seller holds fewer keys
	// than they are trying to sell.
	ErrInsufficientBalance = errors.New("insufficient key balance")

	// ErrCurveBusy is returned after the bounded retry budget for
	// concurrent-write conflicts is exhausted.
	ErrCurveBusy = errors.New("curve busy, try again")

	// ErrSelfReferral is returned when a trader names themselves as the
	// referrer.
	ErrSelfReferral = errors.New("cannot refer yourself")

	// ErrInvalidAmount is returned for non-positive key amounts.
	ErrInvalidAmount = errors.New("key amount must be positive")
)

// Default retry budget for version-conflict retries.
const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = 25 * time.Millisecond
)

// Ledger applies validated trades atomically against the stores.
type Ledger struct {
	curves  storage.CurveStore
	holders storage.HolderStore
	applier storage.TradeApplier

	shape    curve.Shape
	splitter curve.Splitter

	maxRetries int
	retryDelay time.Duration
	logger     *log.Logger
	now        func() int64

	// Per-curve serialization point for in-process callers. Cross-process
	// writers are serialized by the version CAS in ApplyTrade.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Options configures a Ledger.
type Options struct {
	CurveStore  storage.CurveStore
	HolderStore storage.HolderStore
	Applier     storage.TradeApplier
	Config      domain.EconomicConfig

	MaxRetries int           // 0 means DefaultMaxRetries
	RetryDelay time.Duration // 0 means DefaultRetryDelay
	Logger     *log.Logger   // nil means log.Default
	Now        func() int64  // ms clock override for tests
}

// New creates a Ledger.
func New(opts Options) (*Ledger, error) {
	shape, err := curve.ShapeFromConfig(opts.Config)
	if err != nil {
		return nil, fmt.Errorf("curve shape: %w", err)
	}
	splitter, err := curve.NewSplitter(opts.Config)
	if err != nil {
		return nil, err
	}

	l := &Ledger{
		curves:     opts.CurveStore,
		holders:    opts.HolderStore,
		applier:    opts.Applier,
		shape:      shape,
		splitter:   splitter,
		maxRetries: opts.MaxRetries,
		retryDelay: opts.RetryDelay,
		logger:     opts.Logger,
		now:        opts.Now,
		locks:      make(map[string]*sync.Mutex),
	}
	if l.maxRetries == 0 {
		l.maxRetries = DefaultMaxRetries
	}
	if l.retryDelay == 0 {
		l.retryDelay = DefaultRetryDelay
	}
	if l.logger == nil {
		l.logger = log.Default()
	}
	if l.now == nil {
		l.now = func() int64 { return time.Now().UnixMilli() }
	}
	return l, nil
}

// curveLock returns the serialization mutex for a curve ID.
func (l *Ledger) curveLock(curveID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[curveID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[curveID] = lock
	}
	return lock
}

// BuyResult describes an executed buy.
type BuyResult struct {
	Gross      int64
	Split      curve.BuySplit
	Keys       int64
	NewSupply  int64
	NewPrice   int64 // lamports per key at the new supply
	NewReserve int64
	Event      *domain.TradeEvent
}

// SellResult describes an executed sell.
type SellResult struct {
	Gross      int64
	Net        int64
	Tax        int64
	Keys       int64
	NewSupply  int64
	NewPrice   int64
	NewReserve int64
	Event      *domain.TradeEvent
}

// ExecuteBuy atomically executes a buy of keyAmount keys. maxCost bounds
// the gross cost the trader accepts (0 disables the check). referralID is
// optional; a trader cannot refer themselves.
func (l *Ledger) ExecuteBuy(ctx context.Context, curveID, traderID string, keyAmount, maxCost int64, referralID string) (*BuyResult, error) {
	if keyAmount <= 0 {
		return nil, ErrInvalidAmount
	}
	if traderID == "" {
		return nil, fmt.Errorf("%w: trader id required", storage.ErrInvalidInput)
	}
	if referralID != "" && referralID == traderID {
		return nil, ErrSelfReferral
	}

	lock := l.curveLock(curveID)
	lock.Lock()
	defer lock.Unlock()

	var result *BuyResult
	err := l.withRetry(ctx, "buy", func() error {
		c, err := l.curves.GetByID(ctx, curveID)
		if err != nil {
			return err
		}
		if c.Status != domain.CurveStatusActive {
			return ErrCurveFrozen
		}

		shape, err := l.shape.WithBasePrice(c.BasePrice)
		if err != nil {
			return err
		}

		gross := shape.BuyCost(c.Supply, keyAmount)
		if maxCost > 0 && gross > maxCost {
			return fmt.Errorf("%w: cost %d exceeds max %d", ErrSlippageExceeded, gross, maxCost)
		}
		split := l.splitter.SplitBuy(gross, referralID != "")

		holder, err := l.holders.Get(ctx, curveID, traderID)
		if errors.Is(err, storage.ErrNotFound) {
			holder = &domain.HolderBalance{CurveID: curveID, UserID: traderID, FirstBuyAt: l.now()}
		} else if err != nil {
			return err
		}

		now := l.now()
		expectedVersion := c.Version
		c.Supply += keyAmount
		c.ReserveLamports += split.Reserve
		holder.Balance += keyAmount
		holder.InvestedLamports += gross
		holder.LastTradeAt = now

		event := &domain.TradeEvent{
			EventID:     idhash.ComputeEventID(curveID, traderID, string(domain.TradeDirectionBuy), c.Supply, now),
			CurveID:     curveID,
			UserID:      traderID,
			Direction:   domain.TradeDirectionBuy,
			Keys:        keyAmount,
			Gross:       gross,
			ReserveFee:  split.Reserve,
			CreatorFee:  split.CreatorFee,
			PlatformFee: split.PlatformFee,
			ReferralFee: split.ReferralFee,
			ReferralID:  referralID,
			SupplyAfter: c.Supply,
			PriceAfter:  shape.PriceLamports(c.Supply),
			CreatedAt:   now,
		}

		if err := l.applier.ApplyTrade(ctx, c, expectedVersion, holder, event); err != nil {
			return err
		}

		result = &BuyResult{
			Gross:      gross,
			Split:      split,
			Keys:       keyAmount,
			NewSupply:  c.Supply,
			NewPrice:   event.PriceAfter,
			NewReserve: c.ReserveLamports,
			Event:      event,
		}
		return nil
	})
	if err != nil {
		observability.RecordTradeError("buy", errReason(err))
		return nil, err
	}

	observability.RecordTrade("buy", result.Keys, result.Gross)
	l.logger.Printf("buy curve=%s trader=%s keys=%d gross=%d supply=%d reserve=%d",
		curveID, traderID, result.Keys, result.Gross, result.NewSupply, result.NewReserve)
	return result, nil
}

// ExecuteSell atomically executes a sell of keyAmount keys. minNet bounds
// the net proceeds the trader accepts (0 disables the check). The reserve
// decreases only by the net payout; the sell tax stays in the reserve.
func (l *Ledger) ExecuteSell(ctx context.Context, curveID, traderID string, keyAmount, minNet int64) (*SellResult, error) {
	if keyAmount <= 0 {
		return nil, ErrInvalidAmount
	}
	if traderID == "" {
		return nil, fmt.Errorf("%w: trader id required", storage.ErrInvalidInput)
	}

	lock := l.curveLock(curveID)
	lock.Lock()
	defer lock.Unlock()

	var result *SellResult
	err := l.withRetry(ctx, "sell", func() error {
		c, err := l.curves.GetByID(ctx, curveID)
		if err != nil {
			return err
		}
		if c.Status != domain.CurveStatusActive {
			return ErrCurveFrozen
		}

		holder, err := l.holders.Get(ctx, curveID, traderID)
		if errors.Is(err, storage.ErrNotFound) {
			return ErrInsufficientBalance
		}
		if err != nil {
			return err
		}
		if holder.Balance < keyAmount {
			return fmt.Errorf("%w: have %d, selling %d", ErrInsufficientBalance, holder.Balance, keyAmount)
		}

		shape, err := l.shape.WithBasePrice(c.BasePrice)
		if err != nil {
			return err
		}

		gross := shape.SellProceeds(c.Supply, keyAmount)
		split := l.splitter.SplitSell(gross)
		if minNet > 0 && split.Net < minNet {
			return fmt.Errorf("%w: net %d below min %d", ErrSlippageExceeded, split.Net, minNet)
		}

		now := l.now()
		expectedVersion := c.Version
		c.Supply -= keyAmount
		c.ReserveLamports -= split.Net
		holder.Balance -= keyAmount
		holder.LastTradeAt = now

		event := &domain.TradeEvent{
			EventID:     idhash.ComputeEventID(curveID, traderID, string(domain.TradeDirectionSell), c.Supply, now),
			CurveID:     curveID,
			UserID:      traderID,
			Direction:   domain.TradeDirectionSell,
			Keys:        keyAmount,
			Gross:       gross,
			ReserveFee:  split.Tax,
			NetPayout:   split.Net,
			SupplyAfter: c.Supply,
			PriceAfter:  shape.PriceLamports(c.Supply),
			CreatedAt:   now,
		}

		if err := l.applier.ApplyTrade(ctx, c, expectedVersion, holder, event); err != nil {
			return err
		}

		result = &SellResult{
			Gross:      gross,
			Net:        split.Net,
			Tax:        split.Tax,
			Keys:       keyAmount,
			NewSupply:  c.Supply,
			NewPrice:   event.PriceAfter,
			NewReserve: c.ReserveLamports,
			Event:      event,
		}
		return nil
	})
	if err != nil {
		observability.RecordTradeError("sell", errReason(err))
		return nil, err
	}

	observability.RecordTrade("sell", result.Keys, result.Gross)
	l.logger.Printf("sell curve=%s trader=%s keys=%d net=%d supply=%d reserve=%d",
		curveID, traderID, result.Keys, result.Net, result.NewSupply, result.NewReserve)
	return result, nil
}

// QuoteResult is a read-only trade preview. Nothing is mutated and no
// event is recorded; the executed amounts may differ if other trades land
// first.
type QuoteResult struct {
	Direction    domain.TradeDirection
	Keys         int64
	Gross        int64
	Net          int64 // buy: gross cost; sell: payout after tax
	Tax          int64 // sell only
	CurrentPrice int64
	PriceAfter   int64
	SupplyAfter  int64
}

// Quote previews a trade of keyAmount keys at the current supply. Frozen
// and launched curves can still be quoted.
func (l *Ledger) Quote(ctx context.Context, curveID string, direction domain.TradeDirection, keyAmount int64) (*QuoteResult, error) {
	if keyAmount <= 0 {
		return nil, ErrInvalidAmount
	}

	c, err := l.curves.GetByID(ctx, curveID)
	if err != nil {
		return nil, err
	}
	shape, err := l.shape.WithBasePrice(c.BasePrice)
	if err != nil {
		return nil, err
	}

	q := &QuoteResult{
		Direction:    direction,
		Keys:         keyAmount,
		CurrentPrice: shape.PriceLamports(c.Supply),
	}
	switch direction {
	case domain.TradeDirectionBuy:
		q.Gross = shape.BuyCost(c.Supply, keyAmount)
		q.Net = q.Gross
		q.SupplyAfter = c.Supply + keyAmount
	case domain.TradeDirectionSell:
		if keyAmount > c.Supply {
			return nil, fmt.Errorf("%w: only %d keys in circulation", ErrInvalidAmount, c.Supply)
		}
		q.Gross = shape.SellProceeds(c.Supply, keyAmount)
		split := l.splitter.SplitSell(q.Gross)
		q.Net = split.Net
		q.Tax = split.Tax
		q.SupplyAfter = c.Supply - keyAmount
	default:
		return nil, fmt.Errorf("%w: unknown direction %q", storage.ErrInvalidInput, direction)
	}
	q.PriceAfter = shape.PriceLamports(q.SupplyAfter)

	return q, nil
}

// KeysForBudget returns the largest whole number of keys the budget buys
// at the current supply.
func (l *Ledger) KeysForBudget(ctx context.Context, curveID string, budgetLamports int64) (int64, error) {
	if budgetLamports <= 0 {
		return 0, ErrInvalidAmount
	}
	c, err := l.curves.GetByID(ctx, curveID)
	if err != nil {
		return 0, err
	}
	shape, err := l.shape.WithBasePrice(c.BasePrice)
	if err != nil {
		return 0, err
	}
	return shape.KeysForAmount(c.Supply, budgetLamports), nil
}

// Freeze flips an active curve to frozen. The flip is version-checked, so
// a trade racing with the freeze either lands before it or fails; trading
// can never resume afterwards.
func (l *Ledger) Freeze(ctx context.Context, curveID string) (*domain.Curve, error) {
	lock := l.curveLock(curveID)
	lock.Lock()
	defer lock.Unlock()

	var frozen *domain.Curve
	err := l.withRetry(ctx, "freeze", func() error {
		c, err := l.curves.GetByID(ctx, curveID)
		if err != nil {
			return err
		}
		if c.Status != domain.CurveStatusActive {
			return ErrCurveFrozen
		}

		c.Status = domain.CurveStatusFrozen
		c.FrozenAt = l.now()
		if err := l.curves.Save(ctx, c, c.Version); err != nil {
			return err
		}
		frozen = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	observability.RecordFreeze()
	l.logger.Printf("freeze curve=%s supply=%d reserve=%d", curveID, frozen.Supply, frozen.ReserveLamports)
	return frozen, nil
}

// withRetry runs fn, retrying on version conflicts with backoff up to the
// configured budget.
func (l *Ledger) withRetry(ctx context.Context, op string, fn func() error) error {
	delay := l.retryDelay
	for attempt := 0; attempt < l.maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !errors.Is(err, storage.ErrVersionConflict) {
			return err
		}

		observability.RecordTradeRetry()
		l.logger.Printf("%s: version conflict, retrying (attempt %d/%d)", op, attempt+1, l.maxRetries)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return ErrCurveBusy
}

// errReason maps a trade error to a metrics label.
func errReason(err error) string {
	switch {
	case errors.Is(err, ErrCurveFrozen):
		return "curve_frozen"
	case errors.Is(err, ErrSlippageExceeded):
		return "slippage_exceeded"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrCurveBusy):
		return "curve_busy"
	case errors.Is(err, storage.ErrNotFound):
		return "not_found"
	default:
		return "internal"
	}
}
