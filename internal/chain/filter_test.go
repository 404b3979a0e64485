package chain

import (
	"testing"
	"time"

	"spread-systemv1/internal/model"
)

var now = time.Date(2026, 8, 28, 14, 0, 0, 0, time.UTC)

func put(strike int64, dte int, bid, ask int64) model.OptionContract {
	return model.OptionContract{
		LegIdentity: model.LegIdentity{
			Underlying: "SOXL", Right: model.RightPut, Strike: strike,
			Expiry: now.Truncate(24*time.Hour).AddDate(0, 0, dte),
		},
		Bid: bid, Ask: ask,
	}
}

func call(strike int64, dte int, bid, ask int64) model.OptionContract {
	c := put(strike, dte, bid, ask)
	c.Right = model.RightCall
	return c
}

func TestPutsDTEWindowAndQuotes(t *testing.T) {
	cs := &model.ChainSnapshot{Underlying: "SOXL", Spot: 2500, TS: now, Contracts: []model.OptionContract{
		put(2400, 10, 90, 95),
		put(2400, 3, 40, 45),    // below window
		put(2400, 21, 150, 160), // above window
		put(2300, 12, 0, 55),    // one-sided quote
		put(2200, 12, 30, 35),
		call(2400, 10, 120, 130), // wrong right
	}}

	got := Puts(cs, now, 7, 14)
	if len(got) != 2 {
		t.Fatalf("Puts returned %d contracts, want 2", len(got))
	}
	// Sorted by expiry then strike: the 10 DTE 2400 before the 12 DTE 2200.
	if got[0].Strike != 2400 || got[1].Strike != 2200 {
		t.Fatalf("unexpected order: %d, %d", got[0].Strike, got[1].Strike)
	}
}

func TestITMCallsStrictMoneyness(t *testing.T) {
	cs := &model.ChainSnapshot{Underlying: "SOXS", Spot: 2500, TS: now, Contracts: []model.OptionContract{
		call(2600, 10, 40, 45), // OTM
		call(2500, 10, 70, 75), // at the money, not strictly ITM
		call(2400, 10, 130, 140),
		call(2300, 10, 220, 230),
	}}

	got := ITMCalls(cs, now, 7, 14)
	if len(got) != 2 {
		t.Fatalf("ITMCalls returned %d contracts, want 2", len(got))
	}
	if got[0].Strike != 2300 || got[1].Strike != 2400 {
		t.Fatalf("unexpected strikes: %d, %d", got[0].Strike, got[1].Strike)
	}
}

func TestEmptyChain(t *testing.T) {
	cs := &model.ChainSnapshot{Underlying: "SOXL", Spot: 2500, TS: now}
	if got := Puts(cs, now, 7, 14); len(got) != 0 {
		t.Fatalf("empty chain must yield no puts, got %d", len(got))
	}
	if got := ITMCalls(cs, now, 7, 14); len(got) != 0 {
		t.Fatalf("empty chain must yield no calls, got %d", len(got))
	}
}

func TestFindExactLeg(t *testing.T) {
	target := put(2300, 10, 50, 55)
	cs := &model.ChainSnapshot{Underlying: "SOXL", Spot: 2500, TS: now, Contracts: []model.OptionContract{
		put(2400, 10, 90, 95), target,
	}}
	got, ok := Find(cs, target.LegIdentity)
	if !ok || got.Bid != 50 {
		t.Fatalf("Find failed: ok=%v got=%+v", ok, got)
	}
	if _, ok := Find(cs, put(2100, 10, 0, 0).LegIdentity); ok {
		t.Fatalf("Find must miss an absent leg")
	}
}
