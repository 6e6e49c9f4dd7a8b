// Package curve implements the pure pricing and fee-splitting functions of
// the bonding curve. Nothing in this package performs I/O or holds mutable
// state; callers are responsible for input validation and serialization.
package curve

import (
	"fmt"

	"github.com/shopspring/decimal"

	"launch-curve-engine/internal/domain"
)

// Shape is the price function P(s) = base + linear*s + quad*s^2 evaluated
// at integer key index s. The cost of a trade is the exact sum of per-key
// prices, computed in decimal arithmetic and rounded to lamports only once:
// up for buys, down for sells. A buy can therefore never be under-charged
// and a sell never over-paid, and a fee-free round trip never profits.
type Shape struct {
	base   decimal.Decimal
	linear decimal.Decimal
	quad   decimal.Decimal
}

var lamportsPerSOL = decimal.NewFromInt(domain.LamportsPerSOL)

// NewShape parses decimal SOL coefficients into a Shape.
func NewShape(basePrice, linearCoef, quadCoef string) (Shape, error) {
	base, err := decimal.NewFromString(basePrice)
	if err != nil {
		return Shape{}, fmt.Errorf("parse base price %q: %w", basePrice, err)
	}
	linear, err := decimal.NewFromString(linearCoef)
	if err != nil {
		return Shape{}, fmt.Errorf("parse linear coefficient %q: %w", linearCoef, err)
	}
	quad, err := decimal.NewFromString(quadCoef)
	if err != nil {
		return Shape{}, fmt.Errorf("parse quadratic coefficient %q: %w", quadCoef, err)
	}
	if base.IsNegative() || linear.IsNegative() || quad.IsNegative() {
		return Shape{}, fmt.Errorf("curve coefficients must be non-negative")
	}
	if base.IsZero() {
		return Shape{}, fmt.Errorf("base price must be positive")
	}
	return Shape{base: base, linear: linear, quad: quad}, nil
}

// ShapeFromConfig builds a Shape from the economic configuration.
func ShapeFromConfig(cfg domain.EconomicConfig) (Shape, error) {
	return NewShape(cfg.BasePriceSOL, cfg.LinearCoefSOL, cfg.QuadCoefSOL)
}

// WithBasePrice returns a copy of the shape carrying a per-curve base price.
func (sh Shape) WithBasePrice(basePrice string) (Shape, error) {
	base, err := decimal.NewFromString(basePrice)
	if err != nil {
		return Shape{}, fmt.Errorf("parse base price %q: %w", basePrice, err)
	}
	if !base.IsPositive() {
		return Shape{}, fmt.Errorf("base price must be positive")
	}
	out := sh
	out.base = base
	return out, nil
}

// priceAt evaluates P(s) in SOL.
func (sh Shape) priceAt(s int64) decimal.Decimal {
	d := decimal.NewFromInt(s)
	return sh.base.Add(sh.linear.Mul(d)).Add(sh.quad.Mul(d).Mul(d))
}

// PriceLamports returns the price of the next key at the given supply,
// rounded up to lamports.
func (sh Shape) PriceLamports(supply int64) int64 {
	return sh.priceAt(supply).Mul(lamportsPerSOL).Ceil().IntPart()
}

// rangeSum computes sum of P(s) for s in [from, from+keys) exactly, using
// the closed forms for sum(s) and sum(s^2) over the range.
func (sh Shape) rangeSum(from, keys int64) decimal.Decimal {
	to := from + keys - 1 // inclusive upper bound

	// sum_{s=0}^{n} s = n(n+1)/2
	sumTo := to * (to + 1) / 2
	sumBefore := (from - 1) * from / 2
	s1 := decimal.NewFromInt(sumTo - sumBefore)

	// sum_{s=0}^{n} s^2 = n(n+1)(2n+1)/6
	sqTo := to * (to + 1) * (2*to + 1) / 6
	sqBefore := (from - 1) * from * (2*from - 1) / 6
	s2 := decimal.NewFromInt(sqTo - sqBefore)

	k := decimal.NewFromInt(keys)
	return sh.base.Mul(k).Add(sh.linear.Mul(s1)).Add(sh.quad.Mul(s2))
}

// BuyCost returns the gross cost in lamports of buying keyAmount keys at
// the given supply, rounded up. Monotonically increasing in both arguments.
// keyAmount 0 costs 0; negative inputs are the caller's validation error.
func (sh Shape) BuyCost(supply, keyAmount int64) int64 {
	if keyAmount <= 0 {
		return 0
	}
	return sh.rangeSum(supply, keyAmount).Mul(lamportsPerSOL).Ceil().IntPart()
}

// SellProceeds returns the gross proceeds in lamports of selling keyAmount
// keys at the given supply, rounded down. The caller guarantees
// keyAmount <= supply.
func (sh Shape) SellProceeds(supply, keyAmount int64) int64 {
	if keyAmount <= 0 {
		return 0
	}
	return sh.rangeSum(supply-keyAmount, keyAmount).Mul(lamportsPerSOL).Floor().IntPart()
}

// KeysForAmount returns the largest whole number of keys purchasable for
// the given lamport budget at the given supply.
func (sh Shape) KeysForAmount(supply, lamports int64) int64 {
	if lamports <= 0 {
		return 0
	}

	// Grow an upper bound, then binary search.
	hi := int64(1)
	for sh.BuyCost(supply, hi) <= lamports {
		hi *= 2
	}
	lo := int64(0)
	for lo < hi-1 {
		mid := (lo + hi) / 2
		if sh.BuyCost(supply, mid) <= lamports {
			lo = mid
		} else {
			hi = mid
		}
	}
	return lo
}

// MarketCapLamports returns supply times the current key price.
func (sh Shape) MarketCapLamports(supply int64) int64 {
	return sh.priceAt(supply).Mul(decimal.NewFromInt(supply)).Mul(lamportsPerSOL).Floor().IntPart()
}
