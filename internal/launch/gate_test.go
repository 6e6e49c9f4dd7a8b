package launch

import (
	"reflect"
	"testing"

	"launch-curve-engine/internal/domain"
)

func defaultGate() *Gate {
	return NewGate(ThresholdsFromConfig(domain.DefaultEconomicConfig()))
}

func TestGate_Ready(t *testing.T) {
	g := defaultGate()
	c := &domain.Curve{Supply: 150, ReserveLamports: 12 * domain.LamportsPerSOL}

	r := g.Check(c, 5)
	if !r.Ready {
		t.Errorf("Ready = false, reasons %v", r.Reasons)
	}
	if len(r.Reasons) != 0 {
		t.Errorf("Reasons = %v, want none", r.Reasons)
	}
}

func TestGate_ExactThresholds(t *testing.T) {
	g := defaultGate()
	c := &domain.Curve{Supply: 100, ReserveLamports: 10 * domain.LamportsPerSOL}

	if r := g.Check(c, 4); !r.Ready {
		t.Errorf("thresholds are inclusive, got reasons %v", r.Reasons)
	}
}

func TestGate_AllReasonsReported(t *testing.T) {
	g := defaultGate()
	c := &domain.Curve{Supply: 50, ReserveLamports: 3 * domain.LamportsPerSOL}

	r := g.Check(c, 2)
	if r.Ready {
		t.Fatal("Ready = true for failing curve")
	}
	want := []string{"keys<100", "holders<4", "reserve<10"}
	if !reflect.DeepEqual(r.Reasons, want) {
		t.Errorf("Reasons = %v, want %v", r.Reasons, want)
	}
}

func TestGate_FractionalReserveThreshold(t *testing.T) {
	g := NewGate(Thresholds{
		MinKeys:            100,
		MinHolders:         4,
		MinReserveLamports: 10*domain.LamportsPerSOL + domain.LamportsPerSOL/2,
	})
	c := &domain.Curve{Supply: 150, ReserveLamports: 10 * domain.LamportsPerSOL}

	r := g.Check(c, 5)
	want := []string{"reserve<10.5"}
	if !reflect.DeepEqual(r.Reasons, want) {
		t.Errorf("Reasons = %v, want %v", r.Reasons, want)
	}
}

func TestGate_SingleReason(t *testing.T) {
	g := defaultGate()
	c := &domain.Curve{Supply: 150, ReserveLamports: 12 * domain.LamportsPerSOL}

	r := g.Check(c, 3)
	want := []string{"holders<4"}
	if !reflect.DeepEqual(r.Reasons, want) {
		t.Errorf("Reasons = %v, want %v", r.Reasons, want)
	}
}
