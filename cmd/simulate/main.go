// Package main simulates a full curve lifecycle against in-memory
// storage: scripted trades, the launch gate, and a dry-run token
// distribution through the stub launcher. Useful for tuning curve
// coefficients and fee splits without a database or token service.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"

	"launch-curve-engine/internal/domain"
	"launch-curve-engine/internal/launch"
	"launch-curve-engine/internal/ledger"
	"launch-curve-engine/internal/storage/memory"
	"launch-curve-engine/internal/token/stub"
)

func main() {
	// Parse flags
	traders := flag.Int("traders", 8, "Number of simulated traders")
	rounds := flag.Int("rounds", 10, "Trading rounds (each trader acts once per round)")
	sellChance := flag.Float64("sell-chance", 0.2, "Probability a trader sells instead of buying")
	seed := flag.Int64("seed", 42, "Random seed (runs are reproducible per seed)")
	basePrice := flag.String("base-price", "", "Base key price in SOL (overrides platform default)")
	totalSupply := flag.Int64("token-supply", 793_000_000, "Confirmed token supply the stub launcher reports")
	doLaunch := flag.Bool("launch", true, "Attempt the launch sequence after trading")
	outputJSON := flag.Bool("json", false, "Output as JSON")

	flag.Parse()

	logger := log.New(os.Stderr, "[simulate] ", log.LstdFlags)

	cfg := domain.DefaultEconomicConfig()
	if *basePrice != "" {
		cfg.BasePriceSOL = *basePrice
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid economic config: %v", err)
	}

	ctx := context.Background()
	rng := rand.New(rand.NewSource(*seed))

	// In-memory stores
	curves := memory.NewCurveStore()
	holders := memory.NewHolderStore()
	events := memory.NewTradeEventStore()
	snapshots := memory.NewSnapshotStore()
	plans := memory.NewPlanStore()

	ldg, err := ledger.New(ledger.Options{
		CurveStore:  curves,
		HolderStore: holders,
		Applier:     memory.NewApplier(curves, holders, events),
		Config:      cfg,
		Logger:      logger,
	})
	if err != nil {
		logger.Fatalf("Failed to create ledger: %v", err)
	}

	// Create the curve
	c := &domain.Curve{
		ID:        uuid.NewString(),
		OwnerType: domain.OwnerTypeUser,
		OwnerID:   "creator",
		Status:    domain.CurveStatusActive,
		BasePrice: cfg.BasePriceSOL,
		CreatedAt: time.Now().UnixMilli(),
	}
	if err := curves.Insert(ctx, c); err != nil {
		logger.Fatalf("Failed to create curve: %v", err)
	}
	logger.Printf("Created curve %s (base price %s SOL)", c.ID, c.BasePrice)

	// Scripted trading
	var buys, sells, rejected int
	for round := 0; round < *rounds; round++ {
		for i := 0; i < *traders; i++ {
			trader := fmt.Sprintf("trader-%02d", i+1)
			keys := 1 + rng.Int63n(5)

			if rng.Float64() < *sellChance {
				if _, err := ldg.ExecuteSell(ctx, c.ID, trader, keys, 0); err != nil {
					rejected++
					continue
				}
				sells++
				continue
			}

			if _, err := ldg.ExecuteBuy(ctx, c.ID, trader, keys, 0, ""); err != nil {
				rejected++
				continue
			}
			buys++
		}
	}

	state, err := curves.GetByID(ctx, c.ID)
	if err != nil {
		logger.Fatalf("Failed to read curve: %v", err)
	}
	holderCount, err := holders.CountActive(ctx, c.ID)
	if err != nil {
		logger.Fatalf("Failed to count holders: %v", err)
	}

	gate := launch.NewGate(launch.ThresholdsFromConfig(cfg))
	readiness := gate.Check(state, holderCount)

	fmt.Println()
	fmt.Println("=== Trading Summary ===")
	fmt.Printf("Trades:             %d buys, %d sells, %d rejected\n", buys, sells, rejected)
	fmt.Printf("Supply:             %d keys\n", state.Supply)
	fmt.Printf("Holders:            %d\n", holderCount)
	fmt.Printf("Reserve:            %.4f SOL\n", sol(state.ReserveLamports))
	fmt.Printf("Launch Ready:       %v\n", readiness.Ready)
	if !readiness.Ready {
		for _, reason := range readiness.Reasons {
			fmt.Printf("  blocked:          %s\n", reason)
		}
	}

	if !*doLaunch || !readiness.Ready {
		return
	}

	// Holders need wallets before distribution; the API normally sets
	// these when users bind a wallet.
	active, err := holders.ListActive(ctx, c.ID)
	if err != nil {
		logger.Fatalf("Failed to list holders: %v", err)
	}
	for _, h := range active {
		h.WalletAddress = "SimWallet-" + h.UserID
		if err := holders.Upsert(ctx, h); err != nil {
			logger.Fatalf("Failed to set wallet: %v", err)
		}
	}

	orch := launch.NewOrchestrator(launch.OrchestratorOptions{
		CurveStore:    curves,
		HolderStore:   holders,
		SnapshotStore: snapshots,
		PlanStore:     plans,
		Ledger:        ldg,
		Launcher:      stub.NewLauncher("SimMint1111111111111111111111111", *totalSupply),
		Gate:          gate,
		Logger:        logger,
	})

	result, err := orch.Launch(ctx, c.ID, "creator", launch.LaunchParams{
		TokenName:   "Simulated Token",
		TokenSymbol: "SIM",
	})
	if err != nil {
		logger.Fatalf("Launch failed: %v", err)
	}

	if *outputJSON {
		output, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(output))
		return
	}

	printLaunchResult(result)
}

// printLaunchResult outputs a human-readable distribution table.
func printLaunchResult(r *launch.LaunchResult) {
	fmt.Println()
	fmt.Println("=== Launch Result ===")
	fmt.Printf("Mint:               %s\n", r.TokenMint)
	fmt.Printf("Snapshot:           %s (%d holders, %d keys)\n",
		r.Snapshot.SnapshotID, r.Snapshot.HolderCount, r.Snapshot.TotalSupply)
	fmt.Printf("Plan:               %s (%d tokens, remainder %d)\n",
		r.Plan.PlanID, r.Plan.TotalTokens, r.Plan.UndistributedRemainder)
	fmt.Printf("Launched:           %v\n", r.Launched)
	fmt.Println()

	fmt.Println("Allocations:")
	for _, a := range r.Plan.Allocations {
		fmt.Printf("  %-14s %14d tokens  (%6.2f%%)\n", a.UserID, a.TokenAmount, a.Percentage)
	}

	if len(r.Failed) > 0 {
		fmt.Println()
		fmt.Println("Failed transfers:")
		for _, f := range r.Failed {
			fmt.Printf("  %-14s %14d tokens  %s\n", f.UserID, f.TokenAmount, f.Err)
		}
	}
}

// sol converts lamports to a display value.
func sol(lamports int64) float64 {
	return float64(lamports) / float64(domain.LamportsPerSOL)
}
