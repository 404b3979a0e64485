package portfolio

import (
	"testing"
	"time"

	"spread-systemv1/internal/model"
)

func putLeg(strike int64) model.LegIdentity {
	return model.LegIdentity{
		Underlying: "SOXL",
		Right:      model.RightPut,
		Strike:     strike,
		Expiry:     time.Date(2026, 9, 4, 0, 0, 0, 0, time.UTC),
	}
}

func fill(leg model.LegIdentity, dir string, qty, price int64) model.OrderEvent {
	return model.OrderEvent{
		Tag:       leg.Key(),
		Leg:       leg,
		Direction: dir,
		Status:    model.OrderStatusFilled,
		FillPrice: price,
		Qty:       qty,
	}
}

func TestPnLTracker_ShortLegRoundTrip(t *testing.T) {
	p := NewPnLTracker()
	leg := putLeg(2300)

	// Sell 10 contracts at 100, buy back at 5: 95c/share * 10 * 100.
	if r := p.RecordFill(fill(leg, model.DirectionSell, 10, 100)); r != 0 {
		t.Fatalf("opening fill realized %d, want 0", r)
	}
	r := p.RecordFill(fill(leg, model.DirectionBuy, 10, 5))
	if want := int64(95 * 10 * model.ContractMultiplier); r != want {
		t.Fatalf("realized = %d, want %d", r, want)
	}
	if p.RealizedPnL() != r {
		t.Fatalf("RealizedPnL = %d, want %d", p.RealizedPnL(), r)
	}
	if p.OpenLegs() != 0 {
		t.Fatalf("OpenLegs = %d, want 0", p.OpenLegs())
	}
}

func TestPnLTracker_LongLegLoss(t *testing.T) {
	p := NewPnLTracker()
	leg := putLeg(2100)

	p.RecordFill(fill(leg, model.DirectionBuy, 5, 40))
	r := p.RecordFill(fill(leg, model.DirectionSell, 5, 10))
	if want := int64(-30 * 5 * model.ContractMultiplier); r != want {
		t.Fatalf("realized = %d, want %d", r, want)
	}
}

func TestPnLTracker_PartialClose(t *testing.T) {
	p := NewPnLTracker()
	leg := putLeg(2300)

	p.RecordFill(fill(leg, model.DirectionSell, 10, 100))
	r := p.RecordFill(fill(leg, model.DirectionBuy, 4, 60))
	if want := int64(40 * 4 * model.ContractMultiplier); r != want {
		t.Fatalf("realized = %d, want %d", r, want)
	}
	if p.OpenLegs() != 1 {
		t.Fatalf("OpenLegs = %d, want 1 after partial close", p.OpenLegs())
	}
}

func TestPnLTracker_WeightedAverageOnExtend(t *testing.T) {
	p := NewPnLTracker()
	leg := putLeg(2200)

	p.RecordFill(fill(leg, model.DirectionBuy, 2, 100))
	p.RecordFill(fill(leg, model.DirectionBuy, 2, 200))
	// Avg is 150; selling all 4 at 150 realizes zero.
	if r := p.RecordFill(fill(leg, model.DirectionSell, 4, 150)); r != 0 {
		t.Fatalf("realized = %d, want 0 at weighted average", r)
	}
}

func TestPortfolio_MarkAndUnrealized(t *testing.T) {
	pf := New()
	leg := putLeg(2300)

	pf.ApplyFill(fill(leg, model.DirectionSell, 10, 100))
	pf.Mark(model.ChainSnapshot{
		Underlying: "SOXL",
		Contracts: []model.OptionContract{
			{LegIdentity: leg, Bid: 39, Ask: 41},
		},
	})

	// Short 10 at 100, marked at 40: +60c/share * 10 * 100.
	want := int64(60 * 10 * model.ContractMultiplier)
	if got := pf.TotalUnrealizedPnL(); got != want {
		t.Fatalf("TotalUnrealizedPnL = %d, want %d", got, want)
	}

	pf.ApplyFill(fill(leg, model.DirectionBuy, 10, 40))
	if n := len(pf.Positions()); n != 0 {
		t.Fatalf("positions = %d, want 0 after flat", n)
	}
}

func TestRiskManager_DailyLossBlocksEntries(t *testing.T) {
	day := time.Date(2026, 8, 28, 14, 0, 0, 0, time.UTC)
	rm := NewRiskManager(RiskLimits{MaxDailyLoss: 100_000}, 10_000_000)

	rm.UpdateEquity(day, 10_000_000)
	if ok, _ := rm.CanEnter(); !ok {
		t.Fatal("expected entries allowed at anchor equity")
	}

	rm.UpdateEquity(day.Add(2*time.Hour), 9_890_000)
	if ok, reason := rm.CanEnter(); ok {
		t.Fatal("expected entries blocked past daily loss limit")
	} else if reason != "max daily loss reached" {
		t.Fatalf("reason = %q", reason)
	}

	// Next day the anchor resets and entries unblock.
	rm.UpdateEquity(day.Add(24*time.Hour), 9_890_000)
	if ok, _ := rm.CanEnter(); !ok {
		t.Fatal("expected entries allowed after daily reset")
	}
}

func TestRiskManager_DrawdownBlocksEntries(t *testing.T) {
	day := time.Date(2026, 8, 28, 14, 0, 0, 0, time.UTC)
	rm := NewRiskManager(RiskLimits{MaxDrawdownPct: 5}, 10_000_000)

	rm.UpdateEquity(day, 10_000_000)
	rm.UpdateEquity(day.Add(24*time.Hour), 9_400_000) // 6% off peak
	if ok, reason := rm.CanEnter(); ok {
		t.Fatal("expected entries blocked past drawdown limit")
	} else if reason != "max drawdown exceeded" {
		t.Fatalf("reason = %q", reason)
	}
}
