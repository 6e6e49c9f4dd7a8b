package domain

import "fmt"

// BpsDenominator is the basis-point scale for fee percentages.
const BpsDenominator int64 = 10_000

// EconomicConfig carries every tunable economic value of the engine.
// Nothing here is hard-coded into the pricing or launch code, so owner-type
// specific overrides need no code changes.
type EconomicConfig struct {
	// Curve shape, decimal SOL coefficients of
	// P(s) = BasePrice + LinearCoef*s + QuadCoef*s^2.
	BasePriceSOL  string
	LinearCoefSOL string
	QuadCoefSOL   string

	// Buy fee split in basis points. Must sum to BpsDenominator.
	// When a trade has no referral the referral share is folded into
	// the reserve.
	ReserveBps  int64
	CreatorBps  int64
	PlatformBps int64
	ReferralBps int64

	// Flat tax on sell proceeds, retained by the reserve.
	SellTaxBps int64

	// Launch thresholds, all must hold simultaneously.
	MinKeys            int64
	MinHolders         int
	MinReserveLamports int64
}

// DefaultEconomicConfig returns the platform defaults: 94/3/2/1 buy split,
// 5% sell tax, launch at 100 keys / 4 holders / 10 SOL reserve,
// base price 0.01 SOL.
func DefaultEconomicConfig() EconomicConfig {
	return EconomicConfig{
		BasePriceSOL:  "0.01",
		LinearCoefSOL: "0.0003",
		QuadCoefSOL:   "0.0000012",

		ReserveBps:  9400,
		CreatorBps:  300,
		PlatformBps: 200,
		ReferralBps: 100,

		SellTaxBps: 500,

		MinKeys:            100,
		MinHolders:         4,
		MinReserveLamports: 10 * LamportsPerSOL,
	}
}

// Validate checks internal consistency of the configuration.
func (c EconomicConfig) Validate() error {
	if c.ReserveBps < 0 || c.CreatorBps < 0 || c.PlatformBps < 0 || c.ReferralBps < 0 {
		return fmt.Errorf("fee shares must be non-negative")
	}
	if sum := c.ReserveBps + c.CreatorBps + c.PlatformBps + c.ReferralBps; sum != BpsDenominator {
		return fmt.Errorf("buy fee split must sum to %d bps, got %d", BpsDenominator, sum)
	}
	if c.SellTaxBps < 0 || c.SellTaxBps >= BpsDenominator {
		return fmt.Errorf("sell tax must be in [0, %d) bps, got %d", BpsDenominator, c.SellTaxBps)
	}
	if c.MinKeys < 0 || c.MinHolders < 0 || c.MinReserveLamports < 0 {
		return fmt.Errorf("launch thresholds must be non-negative")
	}
	return nil
}
