package spread

import (
	"testing"
	"time"

	"spread-systemv1/internal/model"
)

func TestTargetDebit(t *testing.T) {
	// Keep 95% of a 50 cent credit: close at round(50*0.05) = 3 cents.
	if got := TargetDebit(50, 0.95); got != 3 {
		t.Fatalf("TargetDebit(50, 0.95) = %d, want 3", got)
	}
	// A tiny credit still yields at least the minimum tick.
	if got := TargetDebit(4, 0.95); got != 1 {
		t.Fatalf("TargetDebit(4, 0.95) = %d, want 1", got)
	}
	if got := TargetDebit(200, 0.90); got != 20 {
		t.Fatalf("TargetDebit(200, 0.90) = %d, want 20", got)
	}
}

func TestTargetCredit(t *testing.T) {
	// 80 cent debit on a 200 cent width, capture 95% of the move:
	// round(80 + 120*0.95) = 194.
	if got := TargetCredit(80, 200, 0.95); got != 194 {
		t.Fatalf("TargetCredit(80, 200, 0.95) = %d, want 194", got)
	}
	if got := TargetCredit(100, 200, 0.50); got != 150 {
		t.Fatalf("TargetCredit(100, 200, 0.50) = %d, want 150", got)
	}
}

func TestContractsSizing(t *testing.T) {
	c := model.SpreadCandidate{Kind: model.KindPutCredit, Width: 200, Net: 100}
	// Margin per spread = (200-100)*100 = 10000 cents. One tenth of a
	// $10,000 account funds exactly 10 spreads.
	if got := Contracts(1_000_000, 0.10, &c); got != 10 {
		t.Fatalf("Contracts = %d, want 10", got)
	}
	// Allocation below one margin unit means no trade.
	if got := Contracts(50_000, 0.10, &c); got != 0 {
		t.Fatalf("Contracts on small account = %d, want 0", got)
	}
	d := model.SpreadCandidate{Kind: model.KindCallDebit, Width: 200, Net: 80}
	// Margin per debit spread = 80*100 = 8000 cents.
	if got := Contracts(1_000_000, 0.08, &d); got != 10 {
		t.Fatalf("debit Contracts = %d, want 10", got)
	}
}

func TestContractsSizingSinglePut(t *testing.T) {
	s := model.SpreadCandidate{
		Kind:  model.KindSinglePut,
		Short: model.OptionContract{LegIdentity: model.LegIdentity{Strike: 2400}, Bid: 90},
		Net:   90,
	}
	// Cash-secured margin = strike 2400 * 100 = 240000 cents, strictly
	// positive even though no width is set.
	if got := s.MarginPerSpread(); got != 240_000 {
		t.Fatalf("single put margin = %d, want 240000", got)
	}
	// 10% of a $50,000 account funds two cash-secured puts.
	if got := Contracts(5_000_000, 0.10, &s); got != 2 {
		t.Fatalf("single put Contracts = %d, want 2", got)
	}
	// 10% of a $10,000 account covers none: skip, not a negative qty.
	if got := Contracts(1_000_000, 0.10, &s); got != 0 {
		t.Fatalf("underfunded single put Contracts = %d, want 0", got)
	}
}

func TestTargetDelta(t *testing.T) {
	cases := []struct {
		adx  float64
		want float64
	}{
		{45, -0.50},
		{40, -0.40},
		{25, -0.40},
		{24.9, -0.30},
		{10, -0.30},
	}
	for _, tc := range cases {
		if got := TargetDelta(tc.adx); got != tc.want {
			t.Fatalf("TargetDelta(%.1f) = %.2f, want %.2f", tc.adx, got, tc.want)
		}
	}
}

func TestFindShortPutNearestDelta(t *testing.T) {
	now := time.Date(2026, 8, 28, 14, 0, 0, 0, time.UTC)
	cs := &model.ChainSnapshot{Underlying: "SOXL", Spot: 2500, TS: now, Contracts: []model.OptionContract{
		contract(model.RightPut, 2400, 12, 90, 95, -0.38),
		contract(model.RightPut, 2300, 12, 50, 55, -0.29),
		contract(model.RightPut, 2350, 9, 60, 65, -0.33),
		contract(model.RightPut, 2200, 12, 20, 25, 0), // no greek published
	}}
	// Delta distance decides first: -0.29 sits closest to the target
	// even though the 9 DTE contract expires sooner.
	got, ok := FindShortPut(cs, now, 7, 14, -0.30)
	if !ok || got.Strike != 2300 {
		t.Fatalf("FindShortPut = %+v ok=%v, want 2300", got.LegIdentity, ok)
	}
}

func TestFindShortPutExpiryBreaksDeltaTies(t *testing.T) {
	now := time.Date(2026, 8, 28, 14, 0, 0, 0, time.UTC)
	// Both puts miss a -0.50 target by exactly 0.25; the nearer expiry
	// must win.
	cs := &model.ChainSnapshot{Underlying: "SOXL", Spot: 2500, TS: now, Contracts: []model.OptionContract{
		contract(model.RightPut, 2400, 12, 120, 125, -0.75),
		contract(model.RightPut, 2350, 9, 40, 45, -0.25),
	}}
	got, ok := FindShortPut(cs, now, 7, 14, -0.50)
	if !ok || got.Strike != 2350 {
		t.Fatalf("FindShortPut = %+v ok=%v, want 9 DTE 2350", got.LegIdentity, ok)
	}
}
