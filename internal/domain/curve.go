// Package domain defines the entities of the bonding-curve trading and
// launch-distribution engine.
package domain

// LamportsPerSOL is the fixed-point scale for all monetary amounts.
// Every amount in the engine is an int64 number of lamports.
const LamportsPerSOL int64 = 1_000_000_000

// OwnerType identifies what kind of entity a curve belongs to.
type OwnerType string

const (
	OwnerTypeUser    OwnerType = "user"
	OwnerTypeProject OwnerType = "project"
)

// Valid reports whether the owner type is a known value.
func (t OwnerType) Valid() bool {
	return t == OwnerTypeUser || t == OwnerTypeProject
}

// CurveStatus is the lifecycle state of a curve.
// Transitions are one-directional: active -> frozen -> launched.
type CurveStatus string

const (
	CurveStatusActive   CurveStatus = "active"
	CurveStatusFrozen   CurveStatus = "frozen"
	CurveStatusLaunched CurveStatus = "launched"
)

// Curve is one bonding curve. Exactly one curve exists per
// (owner_type, owner_id) pair.
// Corresponds to the curves table.
type Curve struct {
	ID        string      // PRIMARY KEY, uuid
	OwnerType OwnerType   // user | project
	OwnerID   string      // owning user or project
	Status    CurveStatus // active | frozen | launched

	Supply          int64  // keys outstanding
	ReserveLamports int64  // value backing the keys
	BasePrice       string // decimal SOL, e.g. "0.01"

	// Version is the optimistic-concurrency revision. Every successful
	// mutation increments it; writers supply the version they read and
	// fail with ErrVersionConflict when it is stale.
	Version int64

	// Set after launch.
	TokenMint   string
	LaunchTxRef string

	CreatedAt  int64 // Unix timestamp in milliseconds
	FrozenAt   int64 // 0 until frozen
	LaunchedAt int64 // 0 until launched
}

// HolderBalance is one trader's position on one curve.
// Corresponds to the holder_balances table, keyed by (curve_id, user_id).
type HolderBalance struct {
	CurveID          string
	UserID           string
	WalletAddress    string // external wallet for token distribution, may be empty
	Balance          int64  // keys held, never negative
	InvestedLamports int64  // cumulative gross spent on buys
	FirstBuyAt       int64  // ms
	LastTradeAt      int64  // ms
}

// TradeDirection is the side of a trade.
type TradeDirection string

const (
	TradeDirectionBuy  TradeDirection = "buy"
	TradeDirectionSell TradeDirection = "sell"
)

// TradeEvent is the append-only record of one executed trade. It is written
// in the same atomic unit as the curve and holder mutation and feeds price
// history and the live event stream.
type TradeEvent struct {
	EventID     string // deterministic hash
	CurveID     string
	UserID      string
	Direction   TradeDirection
	Keys        int64
	Gross       int64 // lamports
	ReserveFee  int64 // credited to reserve (buy) / retained tax (sell)
	CreatorFee  int64
	PlatformFee int64
	ReferralFee int64
	NetPayout   int64  // lamports returned to trader, sells only
	ReferralID  string // empty when no referral
	SupplyAfter int64
	PriceAfter  int64 // lamports per key at the new supply
	CreatedAt   int64 // ms
}
