package curve

import (
	"fmt"

	"launch-curve-engine/internal/domain"
)

// BuySplit is the decomposition of a gross buy amount. The four components
// always sum to the gross amount exactly; integer rounding remainder is
// assigned to the reserve.
type BuySplit struct {
	Reserve     int64
	CreatorFee  int64
	PlatformFee int64
	ReferralFee int64
}

// Total returns the sum of all components.
func (s BuySplit) Total() int64 {
	return s.Reserve + s.CreatorFee + s.PlatformFee + s.ReferralFee
}

// SellSplit is the decomposition of gross sell proceeds. Tax stays in the
// curve reserve; Net is paid out to the seller. Net + Tax == gross exactly.
type SellSplit struct {
	Net int64
	Tax int64
}

// Splitter applies the configured fee percentages to gross trade amounts.
type Splitter struct {
	reserveBps  int64
	creatorBps  int64
	platformBps int64
	referralBps int64
	sellTaxBps  int64
}

// NewSplitter builds a Splitter from the economic configuration.
func NewSplitter(cfg domain.EconomicConfig) (Splitter, error) {
	if err := cfg.Validate(); err != nil {
		return Splitter{}, fmt.Errorf("fee config: %w", err)
	}
	return Splitter{
		reserveBps:  cfg.ReserveBps,
		creatorBps:  cfg.CreatorBps,
		platformBps: cfg.PlatformBps,
		referralBps: cfg.ReferralBps,
		sellTaxBps:  cfg.SellTaxBps,
	}, nil
}

// SplitBuy splits a gross buy amount. Fee components are floored; the
// reserve takes whatever is left, so no lamport ever vanishes. Without a
// referral the referral share is redirected to the reserve.
func (sp Splitter) SplitBuy(gross int64, hasReferral bool) BuySplit {
	if gross <= 0 {
		return BuySplit{}
	}
	creator := gross * sp.creatorBps / domain.BpsDenominator
	platform := gross * sp.platformBps / domain.BpsDenominator
	var referral int64
	if hasReferral {
		referral = gross * sp.referralBps / domain.BpsDenominator
	}
	return BuySplit{
		Reserve:     gross - creator - platform - referral,
		CreatorFee:  creator,
		PlatformFee: platform,
		ReferralFee: referral,
	}
}

// SplitSell applies the flat sell tax to gross proceeds. The tax is floored
// in the seller's favor.
func (sp Splitter) SplitSell(gross int64) SellSplit {
	if gross <= 0 {
		return SellSplit{}
	}
	tax := gross * sp.sellTaxBps / domain.BpsDenominator
	return SellSplit{Net: gross - tax, Tax: tax}
}
