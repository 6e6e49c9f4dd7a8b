package domain

// SnapshotHolder is one holder's position inside a snapshot.
type SnapshotHolder struct {
	UserID        string
	WalletAddress string  // may be empty; such holders cannot receive transfers
	Balance       int64   // keys at snapshot time, > 0
	Percentage    float64 // balance / totalSupply * 100
}

// Snapshot is the immutable record of all holder balances for a curve at
// freeze time. Holders are ordered by balance descending, ties broken by
// user ID ascending, so the record is reproducible.
// Invariant: sum of holder balances equals TotalSupply exactly.
type Snapshot struct {
	SnapshotID  string // deterministic hash
	CurveID     string
	TotalSupply int64
	HolderCount int
	Holders     []SnapshotHolder
	CreatedAt   int64 // ms
}

// Allocation is one holder's share of a distribution plan. TxRef records
// delivery, so a retried launch never re-sends an allocation that already
// landed.
type Allocation struct {
	UserID        string
	WalletAddress string
	TokenAmount   int64  // floor(totalTokens * balance / totalSupply)
	TxRef         string // empty until the transfer succeeds
	Percentage    float64
}

// DistributionPlan converts a snapshot plus a confirmed external token
// amount into per-holder allocations. Floor rounding means the allocations
// may sum to less than TotalTokens; the difference is reported as
// UndistributedRemainder and never silently assigned to a holder.
type DistributionPlan struct {
	PlanID                 string // deterministic hash
	SnapshotID             string
	CurveID                string
	TokenMint              string
	TotalTokens            int64
	Allocations            []Allocation
	UndistributedRemainder int64
	CreatedAt              int64 // ms
}
