package ledger

import (
	"testing"
	"time"

	"spread-systemv1/internal/model"
)

func testCandidate(strike int64) model.SpreadCandidate {
	expiry := time.Date(2026, 9, 18, 0, 0, 0, 0, time.UTC)
	short := model.OptionContract{
		LegIdentity: model.LegIdentity{Underlying: "SOXL", Right: model.RightPut, Strike: strike, Expiry: expiry},
	}
	long := model.OptionContract{
		LegIdentity: model.LegIdentity{Underlying: "SOXL", Right: model.RightPut, Strike: strike - 200, Expiry: expiry},
	}
	return model.SpreadCandidate{Kind: model.KindPutCredit, Short: short, Long: long, Width: 200, Net: 105}
}

func TestLifecycleTransitions(t *testing.T) {
	l := New()
	c := testCandidate(2300)
	key := c.Key()

	if err := l.MarkInFlight(c); err != nil {
		t.Fatalf("MarkInFlight: %v", err)
	}
	if !l.Tracked(key) || l.Cardinality() != 1 {
		t.Fatalf("expected 1 tracked slot, got cardinality=%d", l.Cardinality())
	}

	ev := model.OrderEvent{Tag: key, Leg: c.Short.LegIdentity, Direction: model.DirectionSell,
		Status: model.OrderStatusFilled, FillPrice: 180}
	if err := l.RecordFirstFill(key, ev); err != nil {
		t.Fatalf("RecordFirstFill: %v", err)
	}
	if l.Cardinality() != 1 {
		t.Fatalf("pending entry must still consume one slot, got %d", l.Cardinality())
	}
	p, ok := l.Pending(key)
	if !ok || p.FirstFill.FillPrice != 180 {
		t.Fatalf("pending entry lost the first fill: %+v ok=%v", p, ok)
	}

	l.PromoteOpen(&model.OpenSpread{Key: key, Kind: c.Kind, Short: c.Short.LegIdentity, Long: c.Long.LegIdentity,
		ShortFill: 180, LongFill: 75, Net: 105, Width: 200, Qty: 2})
	if l.Cardinality() != 1 {
		t.Fatalf("open position must consume exactly one slot, got %d", l.Cardinality())
	}
	s, ok := l.Get(key)
	if !ok || s.State != model.StateOpen {
		t.Fatalf("expected OPEN state, got %+v ok=%v", s, ok)
	}

	if err := l.MarkClosing(key); err != nil {
		t.Fatalf("MarkClosing: %v", err)
	}
	if l.Cardinality() != 1 {
		t.Fatalf("closing position must keep its slot, got %d", l.Cardinality())
	}

	l.Release(key)
	if l.Tracked(key) || l.Cardinality() != 0 {
		t.Fatalf("release must free the slot")
	}
}

func TestMarkInFlightRejectsDuplicateKey(t *testing.T) {
	l := New()
	c := testCandidate(2300)
	if err := l.MarkInFlight(c); err != nil {
		t.Fatalf("MarkInFlight: %v", err)
	}
	if err := l.MarkInFlight(c); err == nil {
		t.Fatalf("duplicate in-flight key must be rejected")
	}

	// Still rejected once the key has advanced past in-flight.
	ev := model.OrderEvent{Tag: c.Key(), Leg: c.Short.LegIdentity, Status: model.OrderStatusFilled, FillPrice: 180}
	if err := l.RecordFirstFill(c.Key(), ev); err != nil {
		t.Fatalf("RecordFirstFill: %v", err)
	}
	if err := l.MarkInFlight(c); err == nil {
		t.Fatalf("pending key must still be rejected")
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	l := New()
	c := testCandidate(2300)
	if err := l.MarkInFlight(c); err != nil {
		t.Fatalf("MarkInFlight: %v", err)
	}
	l.Release(c.Key())
	l.Release(c.Key())
	l.Release("never-tracked")
	if l.Cardinality() != 0 {
		t.Fatalf("cardinality after repeated release = %d, want 0", l.Cardinality())
	}
}

func TestCardinalityCountsUnionAcrossStates(t *testing.T) {
	l := New()
	a, b, c := testCandidate(2300), testCandidate(2400), testCandidate(2500)
	for _, cand := range []model.SpreadCandidate{a, b, c} {
		if err := l.MarkInFlight(cand); err != nil {
			t.Fatalf("MarkInFlight: %v", err)
		}
	}
	ev := model.OrderEvent{Tag: b.Key(), Leg: b.Short.LegIdentity, Status: model.OrderStatusFilled, FillPrice: 150}
	if err := l.RecordFirstFill(b.Key(), ev); err != nil {
		t.Fatalf("RecordFirstFill: %v", err)
	}
	l.PromoteOpen(&model.OpenSpread{Key: c.Key(), Kind: c.Kind, Short: c.Short.LegIdentity, Qty: 1})

	if got := l.Cardinality(); got != 3 {
		t.Fatalf("cardinality across states = %d, want 3", got)
	}
	if len(l.Open()) != 1 {
		t.Fatalf("Open() = %d positions, want 1", len(l.Open()))
	}
}
