// Package launch takes a curve from active trading to a distributed
// on-chain token: readiness gating, holder snapshots, distribution
// planning and the launch orchestration itself.
package launch

import (
	"fmt"
	"strings"

	"launch-curve-engine/internal/domain"
)

// Thresholds are the minimums a curve must reach before it can launch.
type Thresholds struct {
	MinKeys            int64
	MinHolders         int
	MinReserveLamports int64
}

// ThresholdsFromConfig extracts launch thresholds from the economic config.
func ThresholdsFromConfig(cfg domain.EconomicConfig) Thresholds {
	return Thresholds{
		MinKeys:            cfg.MinKeys,
		MinHolders:         cfg.MinHolders,
		MinReserveLamports: cfg.MinReserveLamports,
	}
}

// Readiness reports whether a curve may launch and every unmet threshold.
type Readiness struct {
	Ready   bool
	Reasons []string
}

// Gate evaluates launch readiness against fixed thresholds.
type Gate struct {
	thresholds Thresholds
}

// NewGate creates a Gate.
func NewGate(t Thresholds) *Gate {
	return &Gate{thresholds: t}
}

// Check evaluates all thresholds. All unmet ones are reported, not just
// the first.
func (g *Gate) Check(c *domain.Curve, holderCount int) Readiness {
	var reasons []string

	if c.Supply < g.thresholds.MinKeys {
		reasons = append(reasons, fmt.Sprintf("keys<%d", g.thresholds.MinKeys))
	}
	if holderCount < g.thresholds.MinHolders {
		reasons = append(reasons, fmt.Sprintf("holders<%d", g.thresholds.MinHolders))
	}
	if c.ReserveLamports < g.thresholds.MinReserveLamports {
		reasons = append(reasons, "reserve<"+formatSOL(g.thresholds.MinReserveLamports))
	}

	return Readiness{Ready: len(reasons) == 0, Reasons: reasons}
}

// formatSOL renders lamports as a decimal SOL string with no trailing
// zeros, so a 10.5 SOL threshold reads "10.5", not "10".
func formatSOL(lamports int64) string {
	whole := lamports / domain.LamportsPerSOL
	frac := lamports % domain.LamportsPerSOL
	if frac == 0 {
		return fmt.Sprintf("%d", whole)
	}
	return fmt.Sprintf("%d.%s", whole, strings.TrimRight(fmt.Sprintf("%09d", frac), "0"))
}
