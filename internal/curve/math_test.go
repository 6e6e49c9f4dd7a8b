package curve

import (
	"testing"

	"launch-curve-engine/internal/domain"
)

func defaultShape(t *testing.T) Shape {
	t.Helper()
	sh, err := ShapeFromConfig(domain.DefaultEconomicConfig())
	if err != nil {
		t.Fatalf("ShapeFromConfig failed: %v", err)
	}
	return sh
}

func TestBuyCost_FirstKey(t *testing.T) {
	sh := defaultShape(t)

	// P(0) = basePrice = 0.01 SOL exactly.
	got := sh.BuyCost(0, 1)
	want := int64(10_000_000)
	if got != want {
		t.Errorf("BuyCost(0,1) = %d, want %d", got, want)
	}
}

func TestBuyCost_ZeroKeys(t *testing.T) {
	sh := defaultShape(t)

	if got := sh.BuyCost(50, 0); got != 0 {
		t.Errorf("BuyCost(50,0) = %d, want 0", got)
	}
	if got := sh.SellProceeds(50, 0); got != 0 {
		t.Errorf("SellProceeds(50,0) = %d, want 0", got)
	}
}

func TestBuyCost_MonotonicInKeys(t *testing.T) {
	sh := defaultShape(t)

	for _, supply := range []int64{0, 1, 50, 1000, 100000} {
		prev := int64(0)
		for keys := int64(1); keys <= 20; keys++ {
			cost := sh.BuyCost(supply, keys)
			if cost <= prev {
				t.Fatalf("BuyCost(%d,%d) = %d not greater than BuyCost(%d,%d) = %d",
					supply, keys, cost, supply, keys-1, prev)
			}
			prev = cost
		}
	}
}

func TestBuyCost_MonotonicInSupply(t *testing.T) {
	sh := defaultShape(t)

	for _, keys := range []int64{1, 5, 100} {
		prev := sh.BuyCost(0, keys)
		for _, supply := range []int64{1, 2, 10, 100, 5000} {
			cost := sh.BuyCost(supply, keys)
			if cost <= prev {
				t.Fatalf("BuyCost(%d,%d) = %d not greater than cost at lower supply %d",
					supply, keys, cost, prev)
			}
			prev = cost
		}
	}
}

func TestBuyCost_SumsComposable(t *testing.T) {
	sh := defaultShape(t)

	// Buying k1 then k2 keys must never be cheaper than buying k1+k2 at
	// once by more than the two rounding ceilings.
	total := sh.BuyCost(0, 10)
	split := sh.BuyCost(0, 4) + sh.BuyCost(4, 6)
	if split < total {
		t.Errorf("split purchase %d cheaper than single purchase %d", split, total)
	}
	if split > total+1 {
		t.Errorf("split purchase %d exceeds single purchase %d beyond rounding", split, total)
	}
}

func TestSellProceeds_NoArbitrage(t *testing.T) {
	sh := defaultShape(t)

	// Selling k keys at supply s never returns more than it cost to buy
	// them at supply s-k, for any state reachable through buys.
	for _, supply := range []int64{1, 10, 100, 2500} {
		for _, keys := range []int64{1, 2, supply / 2, supply} {
			if keys <= 0 {
				continue
			}
			proceeds := sh.SellProceeds(supply, keys)
			cost := sh.BuyCost(supply-keys, keys)
			if proceeds > cost {
				t.Errorf("SellProceeds(%d,%d) = %d exceeds BuyCost(%d,%d) = %d",
					supply, keys, proceeds, supply-keys, keys, cost)
			}
			// Rounding is the only allowed gap.
			if cost-proceeds > 1 {
				t.Errorf("rounding gap %d between cost %d and proceeds %d",
					cost-proceeds, cost, proceeds)
			}
		}
	}
}

func TestKeysForAmount(t *testing.T) {
	sh := defaultShape(t)

	for _, supply := range []int64{0, 10, 500} {
		for _, budget := range []int64{0, 1, 10_000_000, 123_456_789, 5 * domain.LamportsPerSOL} {
			keys := sh.KeysForAmount(supply, budget)
			if keys < 0 {
				t.Fatalf("KeysForAmount(%d,%d) = %d negative", supply, budget, keys)
			}
			if cost := sh.BuyCost(supply, keys); cost > budget {
				t.Errorf("KeysForAmount(%d,%d) = %d but cost %d exceeds budget",
					supply, budget, keys, cost)
			}
			if cost := sh.BuyCost(supply, keys+1); cost <= budget {
				t.Errorf("KeysForAmount(%d,%d) = %d but one more key still affordable (cost %d)",
					supply, budget, keys, cost)
			}
		}
	}
}

func TestNewShape_Invalid(t *testing.T) {
	cases := []struct {
		name               string
		base, linear, quad string
	}{
		{"garbage base", "abc", "0", "0"},
		{"zero base", "0", "0.0003", "0"},
		{"negative linear", "0.01", "-0.1", "0"},
		{"negative quad", "0.01", "0", "-1"},
	}
	for _, tc := range cases {
		if _, err := NewShape(tc.base, tc.linear, tc.quad); err == nil {
			t.Errorf("%s: expected error, got nil", tc.name)
		}
	}
}

func TestWithBasePrice(t *testing.T) {
	sh := defaultShape(t)

	custom, err := sh.WithBasePrice("0.05")
	if err != nil {
		t.Fatalf("WithBasePrice failed: %v", err)
	}
	if got, want := custom.BuyCost(0, 1), int64(50_000_000); got != want {
		t.Errorf("BuyCost(0,1) with base 0.05 = %d, want %d", got, want)
	}

	if _, err := sh.WithBasePrice("-1"); err == nil {
		t.Error("expected error for negative base price")
	}
}
