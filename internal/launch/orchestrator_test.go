package launch

import (
	"context"
	"errors"
	"testing"

	"launch-curve-engine/internal/domain"
	"launch-curve-engine/internal/ledger"
	"launch-curve-engine/internal/storage/memory"
	"launch-curve-engine/internal/token/stub"
)

type launchFixture struct {
	orch      *Orchestrator
	curves    *memory.CurveStore
	holders   *memory.HolderStore
	snapshots *memory.SnapshotStore
	plans     *memory.PlanStore
	launcher  *stub.Launcher
}

func newLaunchFixture(t *testing.T, requireAll bool) *launchFixture {
	t.Helper()

	curves := memory.NewCurveStore()
	holders := memory.NewHolderStore()
	events := memory.NewTradeEventStore()
	snapshots := memory.NewSnapshotStore()
	plans := memory.NewPlanStore()

	led, err := ledger.New(ledger.Options{
		CurveStore:  curves,
		HolderStore: holders,
		Applier:     memory.NewApplier(curves, holders, events),
		Config:      domain.DefaultEconomicConfig(),
	})
	if err != nil {
		t.Fatalf("ledger.New failed: %v", err)
	}

	launcher := stub.NewLauncher("MintAbc", 793_000_000)

	orch := NewOrchestrator(OrchestratorOptions{
		CurveStore:          curves,
		HolderStore:         holders,
		SnapshotStore:       snapshots,
		PlanStore:           plans,
		Ledger:              led,
		Launcher:            launcher,
		Gate:                NewGate(ThresholdsFromConfig(domain.DefaultEconomicConfig())),
		RequireAllTransfers: requireAll,
	})

	return &launchFixture{
		orch:      orch,
		curves:    curves,
		holders:   holders,
		snapshots: snapshots,
		plans:     plans,
		launcher:  launcher,
	}
}

// seedReadyCurve inserts an active curve that satisfies every launch
// threshold, with four holders at 70/20/9/1 keys.
func (f *launchFixture) seedReadyCurve(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	err := f.curves.Insert(ctx, &domain.Curve{
		ID:              "c1",
		OwnerType:       domain.OwnerTypeUser,
		OwnerID:         "owner-1",
		Status:          domain.CurveStatusActive,
		Supply:          100,
		ReserveLamports: 10 * domain.LamportsPerSOL,
		BasePrice:       "0.01",
	})
	if err != nil {
		t.Fatalf("Insert curve failed: %v", err)
	}

	holders := []struct {
		userID  string
		wallet  string
		balance int64
	}{
		{"alice", "wallet-alice", 70},
		{"bob", "wallet-bob", 20},
		{"carol", "wallet-carol", 9},
		{"dave", "wallet-dave", 1},
	}
	for _, h := range holders {
		err := f.holders.Upsert(ctx, &domain.HolderBalance{
			CurveID:       "c1",
			UserID:        h.userID,
			WalletAddress: h.wallet,
			Balance:       h.balance,
		})
		if err != nil {
			t.Fatalf("Upsert holder failed: %v", err)
		}
	}
}

func TestLaunch_HappyPath(t *testing.T) {
	f := newLaunchFixture(t, false)
	f.seedReadyCurve(t)
	ctx := context.Background()

	res, err := f.orch.Launch(ctx, "c1", "owner-1", LaunchParams{TokenName: "Alpha", TokenSymbol: "ALPHA"})
	if err != nil {
		t.Fatalf("Launch failed: %v", err)
	}
	if !res.Launched {
		t.Fatal("Launched = false")
	}
	if res.TokenMint != "MintAbc" {
		t.Errorf("TokenMint = %s", res.TokenMint)
	}
	if len(res.Failed) != 0 {
		t.Errorf("Failed = %v", res.Failed)
	}

	// Allocations divide the confirmed supply proportionally.
	want := map[string]int64{"alice": 555_100_000, "bob": 158_600_000, "carol": 71_370_000, "dave": 7_930_000}
	for _, a := range res.Plan.Allocations {
		if a.TokenAmount != want[a.UserID] {
			t.Errorf("allocation %s = %d, want %d", a.UserID, a.TokenAmount, want[a.UserID])
		}
	}

	// Every holder received a transfer of their allocation.
	if len(f.launcher.Transfers) != 4 {
		t.Errorf("transfers = %d, want 4", len(f.launcher.Transfers))
	}

	c, _ := f.curves.GetByID(ctx, "c1")
	if c.Status != domain.CurveStatusLaunched {
		t.Errorf("Status = %s, want launched", c.Status)
	}
	if c.TokenMint != "MintAbc" || c.LaunchTxRef == "" || c.LaunchedAt == 0 {
		t.Errorf("launch fields not set: %+v", c)
	}

	// Dev buy spends the whole reserve.
	if len(f.launcher.Created) != 1 || f.launcher.Created[0].DevBuyLamports != 10*domain.LamportsPerSOL {
		t.Errorf("Created = %+v", f.launcher.Created)
	}

	// Plan persisted.
	if _, err := f.plans.GetLatestByCurve(ctx, "c1"); err != nil {
		t.Errorf("plan not persisted: %v", err)
	}
}

func TestLaunch_NotOwner(t *testing.T) {
	f := newLaunchFixture(t, false)
	f.seedReadyCurve(t)

	_, err := f.orch.Launch(context.Background(), "c1", "mallory", LaunchParams{TokenName: "A", TokenSymbol: "A"})
	if !errors.Is(err, ErrNotOwner) {
		t.Fatalf("got %v, want ErrNotOwner", err)
	}

	c, _ := f.curves.GetByID(context.Background(), "c1")
	if c.Status != domain.CurveStatusActive {
		t.Errorf("Status = %s, want active", c.Status)
	}
}

func TestLaunch_ThresholdsNotMet(t *testing.T) {
	f := newLaunchFixture(t, false)
	ctx := context.Background()

	err := f.curves.Insert(ctx, &domain.Curve{
		ID:              "c1",
		OwnerType:       domain.OwnerTypeUser,
		OwnerID:         "owner-1",
		Status:          domain.CurveStatusActive,
		Supply:          50,
		ReserveLamports: 3 * domain.LamportsPerSOL,
		BasePrice:       "0.01",
	})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	f.holders.Upsert(ctx, &domain.HolderBalance{CurveID: "c1", UserID: "alice", Balance: 50})

	_, err = f.orch.Launch(ctx, "c1", "owner-1", LaunchParams{TokenName: "A", TokenSymbol: "A"})
	var tnm *ThresholdsNotMetError
	if !errors.As(err, &tnm) {
		t.Fatalf("got %v, want ThresholdsNotMetError", err)
	}
	if len(tnm.Reasons) != 3 {
		t.Errorf("Reasons = %v, want all three", tnm.Reasons)
	}

	// A failed gate never freezes the curve.
	c, _ := f.curves.GetByID(ctx, "c1")
	if c.Status != domain.CurveStatusActive {
		t.Errorf("Status = %s, want active", c.Status)
	}
}

func TestLaunch_CreateFailureLeavesFrozen(t *testing.T) {
	f := newLaunchFixture(t, false)
	f.seedReadyCurve(t)
	ctx := context.Background()

	f.launcher.CreateErr = errors.New("service unavailable")

	_, err := f.orch.Launch(ctx, "c1", "owner-1", LaunchParams{TokenName: "A", TokenSymbol: "A"})
	if err == nil {
		t.Fatal("Launch succeeded with failing launcher")
	}

	// The curve froze before the failure and must stay frozen.
	c, _ := f.curves.GetByID(ctx, "c1")
	if c.Status != domain.CurveStatusFrozen {
		t.Fatalf("Status = %s, want frozen", c.Status)
	}

	// Retry succeeds and reuses the snapshot taken on the first attempt.
	firstSnap, err := f.snapshots.GetLatestByCurve(ctx, "c1")
	if err != nil {
		t.Fatalf("no snapshot from failed attempt: %v", err)
	}

	f.launcher.CreateErr = nil
	res, err := f.orch.Launch(ctx, "c1", "owner-1", LaunchParams{TokenName: "A", TokenSymbol: "A"})
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if !res.Launched {
		t.Fatal("retry did not launch")
	}
	if res.Snapshot.SnapshotID != firstSnap.SnapshotID {
		t.Error("retry did not reuse the existing snapshot")
	}
}

func TestLaunch_RequireAllTransfers(t *testing.T) {
	f := newLaunchFixture(t, true)
	f.seedReadyCurve(t)
	ctx := context.Background()

	f.launcher.FailTransfersTo["wallet-carol"] = errors.New("account frozen")

	res, err := f.orch.Launch(ctx, "c1", "owner-1", LaunchParams{TokenName: "A", TokenSymbol: "A"})
	if !errors.Is(err, ErrTransfersIncomplete) {
		t.Fatalf("got %v, want ErrTransfersIncomplete", err)
	}
	if res == nil || len(res.Failed) != 1 || res.Failed[0].UserID != "carol" {
		t.Fatalf("Failed = %+v", res.Failed)
	}

	c, _ := f.curves.GetByID(ctx, "c1")
	if c.Status != domain.CurveStatusFrozen {
		t.Errorf("Status = %s, want frozen", c.Status)
	}
}

func TestLaunch_RetryResumesFromPlan(t *testing.T) {
	f := newLaunchFixture(t, true)
	f.seedReadyCurve(t)
	ctx := context.Background()

	f.launcher.FailTransfersTo["wallet-carol"] = errors.New("account frozen")

	_, err := f.orch.Launch(ctx, "c1", "owner-1", LaunchParams{TokenName: "A", TokenSymbol: "A"})
	if !errors.Is(err, ErrTransfersIncomplete) {
		t.Fatalf("got %v, want ErrTransfersIncomplete", err)
	}

	// The mint is recorded on the curve before any tokens move.
	c, _ := f.curves.GetByID(ctx, "c1")
	if c.Status != domain.CurveStatusFrozen {
		t.Fatalf("Status = %s, want frozen", c.Status)
	}
	if c.TokenMint != "MintAbc" {
		t.Fatalf("TokenMint = %q, want MintAbc", c.TokenMint)
	}

	delete(f.launcher.FailTransfersTo, "wallet-carol")
	res, err := f.orch.Launch(ctx, "c1", "owner-1", LaunchParams{TokenName: "A", TokenSymbol: "A"})
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if !res.Launched {
		t.Fatal("retry did not launch")
	}

	// The retry resumes from the persisted plan: no second mint, and the
	// allocations delivered on the first attempt are not re-sent.
	if len(f.launcher.Created) != 1 {
		t.Errorf("CreateToken calls = %d, want 1", len(f.launcher.Created))
	}
	perWallet := make(map[string]int)
	for _, tr := range f.launcher.Transfers {
		perWallet[tr.ToAddress]++
	}
	for _, wallet := range []string{"wallet-alice", "wallet-bob", "wallet-carol", "wallet-dave"} {
		if perWallet[wallet] != 1 {
			t.Errorf("transfers to %s = %d, want 1", wallet, perWallet[wallet])
		}
	}

	// Every allocation now carries its delivery reference.
	plan, err := f.plans.GetLatestByCurve(ctx, "c1")
	if err != nil {
		t.Fatalf("plan not persisted: %v", err)
	}
	for _, a := range plan.Allocations {
		if a.TxRef == "" {
			t.Errorf("allocation %s has no delivery reference", a.UserID)
		}
	}
}

func TestLaunch_PartialTransfersStillLaunch(t *testing.T) {
	f := newLaunchFixture(t, false)
	f.seedReadyCurve(t)
	ctx := context.Background()

	f.launcher.FailTransfersTo["wallet-dave"] = errors.New("account frozen")

	res, err := f.orch.Launch(ctx, "c1", "owner-1", LaunchParams{TokenName: "A", TokenSymbol: "A"})
	if err != nil {
		t.Fatalf("Launch failed: %v", err)
	}
	if !res.Launched {
		t.Fatal("Launched = false")
	}
	if len(res.Failed) != 1 || res.Failed[0].UserID != "dave" {
		t.Errorf("Failed = %+v", res.Failed)
	}

	c, _ := f.curves.GetByID(ctx, "c1")
	if c.Status != domain.CurveStatusLaunched {
		t.Errorf("Status = %s, want launched", c.Status)
	}
}

func TestLaunch_MissingWalletReported(t *testing.T) {
	f := newLaunchFixture(t, false)
	f.seedReadyCurve(t)
	ctx := context.Background()

	f.holders.Upsert(ctx, &domain.HolderBalance{CurveID: "c1", UserID: "alice", Balance: 70})

	res, err := f.orch.Launch(ctx, "c1", "owner-1", LaunchParams{TokenName: "A", TokenSymbol: "A"})
	if err != nil {
		t.Fatalf("Launch failed: %v", err)
	}
	if len(res.Failed) != 1 || res.Failed[0].UserID != "alice" || res.Failed[0].Err != "no wallet address" {
		t.Errorf("Failed = %+v", res.Failed)
	}
}

func TestLaunch_AlreadyLaunched(t *testing.T) {
	f := newLaunchFixture(t, false)
	f.seedReadyCurve(t)
	ctx := context.Background()

	if _, err := f.orch.Launch(ctx, "c1", "owner-1", LaunchParams{TokenName: "A", TokenSymbol: "A"}); err != nil {
		t.Fatalf("first Launch failed: %v", err)
	}
	if _, err := f.orch.Launch(ctx, "c1", "owner-1", LaunchParams{TokenName: "A", TokenSymbol: "A"}); !errors.Is(err, ErrAlreadyLaunched) {
		t.Fatalf("got %v, want ErrAlreadyLaunched", err)
	}
}
