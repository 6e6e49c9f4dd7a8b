// Package token integrates with the external token launch service. It
// creates the SPL token backing a launched curve and transfers allocations
// to holder wallets.
package token

import "context"

// CreateTokenParams describes the token to mint for a launched curve.
type CreateTokenParams struct {
	Name        string
	Symbol      string
	MetadataRef string // optional off-chain metadata URI

	// DevBuyLamports is the reserve portion spent acquiring the initial
	// supply that gets distributed to holders.
	DevBuyLamports int64
}

// CreateTokenResult reports the outcome of a token creation.
type CreateTokenResult struct {
	Mint string

	// ConfirmedSupply is the token amount actually acquired, as confirmed
	// by the service. Distribution plans are computed from this value,
	// never from a pre-launch estimate.
	ConfirmedSupply int64

	TxRef string
}

// Launcher creates tokens and transfers allocations.
type Launcher interface {
	// CreateToken mints a new token and acquires the initial supply.
	CreateToken(ctx context.Context, params CreateTokenParams) (*CreateTokenResult, error)

	// Transfer sends amount raw token units of mint to toAddress and
	// returns the transaction signature.
	Transfer(ctx context.Context, mint, toAddress string, amount int64) (string, error)
}
