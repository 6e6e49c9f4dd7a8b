package launch

import (
	"errors"
	"reflect"
	"testing"

	"launch-curve-engine/internal/domain"
)

func testSnapshot(holders []domain.SnapshotHolder) *domain.Snapshot {
	var total int64
	for _, h := range holders {
		total += h.Balance
	}
	return &domain.Snapshot{
		SnapshotID:  "snap-1",
		CurveID:     "c1",
		TotalSupply: total,
		HolderCount: len(holders),
		Holders:     holders,
		CreatedAt:   1_700_000_000_000,
	}
}

func TestPlan_ProportionalSplit(t *testing.T) {
	snap := testSnapshot([]domain.SnapshotHolder{
		{UserID: "alice", Balance: 70, Percentage: 70},
		{UserID: "bob", Balance: 20, Percentage: 20},
		{UserID: "carol", Balance: 10, Percentage: 10},
	})

	p := NewPlanner(nil)
	plan, err := p.Plan(snap, "MintAbc", 793_000_000)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}

	want := []int64{555_100_000, 158_600_000, 79_300_000}
	for i, a := range plan.Allocations {
		if a.TokenAmount != want[i] {
			t.Errorf("Allocations[%d] (%s) = %d, want %d", i, a.UserID, a.TokenAmount, want[i])
		}
	}
	if plan.UndistributedRemainder != 0 {
		t.Errorf("UndistributedRemainder = %d, want 0", plan.UndistributedRemainder)
	}
}

func TestPlan_RemainderReported(t *testing.T) {
	snap := testSnapshot([]domain.SnapshotHolder{
		{UserID: "a", Balance: 1},
		{UserID: "b", Balance: 1},
		{UserID: "c", Balance: 1},
	})

	p := NewPlanner(nil)
	plan, err := p.Plan(snap, "MintAbc", 100)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}

	var distributed int64
	for _, a := range plan.Allocations {
		if a.TokenAmount != 33 {
			t.Errorf("%s = %d, want 33 (floor)", a.UserID, a.TokenAmount)
		}
		distributed += a.TokenAmount
	}
	if plan.UndistributedRemainder != 1 {
		t.Errorf("UndistributedRemainder = %d, want 1", plan.UndistributedRemainder)
	}
	if distributed+plan.UndistributedRemainder != plan.TotalTokens {
		t.Error("tokens not exactly accounted")
	}
}

func TestPlan_Deterministic(t *testing.T) {
	snap := testSnapshot([]domain.SnapshotHolder{
		{UserID: "a", Balance: 37},
		{UserID: "b", Balance: 13},
	})

	clock := func() int64 { return 1_700_000_000_000 }
	first, err := NewPlanner(clock).Plan(snap, "MintAbc", 1_000_000_007)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	second, err := NewPlanner(clock).Plan(snap, "MintAbc", 1_000_000_007)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("same inputs produced different plans")
	}
	if first.PlanID != second.PlanID {
		t.Error("plan IDs differ for identical inputs")
	}
}

func TestPlan_LargeAmounts(t *testing.T) {
	// totalTokens * balance overflows int64; the plan must still be exact.
	snap := testSnapshot([]domain.SnapshotHolder{
		{UserID: "a", Balance: 700_000},
		{UserID: "b", Balance: 300_000},
	})

	const totalTokens = int64(1_000_000_000_000_000) // 1e15
	plan, err := NewPlanner(nil).Plan(snap, "MintAbc", totalTokens)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if got := plan.Allocations[0].TokenAmount; got != 700_000_000_000_000 {
		t.Errorf("large allocation = %d", got)
	}
	if got := plan.Allocations[1].TokenAmount; got != 300_000_000_000_000 {
		t.Errorf("large allocation = %d", got)
	}
}

func TestPlan_InvalidInputs(t *testing.T) {
	snap := testSnapshot([]domain.SnapshotHolder{{UserID: "a", Balance: 1}})
	p := NewPlanner(nil)

	if _, err := p.Plan(nil, "M", 10); !errors.Is(err, ErrInvalidPlanInput) {
		t.Errorf("nil snapshot: got %v", err)
	}
	if _, err := p.Plan(snap, "", 10); !errors.Is(err, ErrInvalidPlanInput) {
		t.Errorf("empty mint: got %v", err)
	}
	if _, err := p.Plan(snap, "M", 0); !errors.Is(err, ErrInvalidPlanInput) {
		t.Errorf("zero tokens: got %v", err)
	}
}
