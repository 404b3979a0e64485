package engine

import (
	"context"
	"testing"
	"time"

	"spread-systemv1/internal/model"
)

func cancelEvent(o model.LegOrder) model.OrderEvent {
	return model.OrderEvent{
		OrderID: "X", Tag: o.Tag, Leg: o.Leg, Direction: o.Direction,
		Status: model.OrderStatusCanceled, Qty: o.Qty, TS: t0,
	}
}

func TestAbandonBeforeAnyFill(t *testing.T) {
	e, b := newTestEngine(testConfig())
	key := enterSpread(t, e, b)

	e.OnOrderEvent(context.Background(), cancelEvent(b.limits[0]))
	if e.Ledger().Cardinality() != 0 {
		t.Fatalf("slot still held after abandoned entry")
	}
	if len(b.cancels) != 1 || b.cancels[0] != key {
		t.Fatalf("peer orders not swept: %v", b.cancels)
	}

	// The peer's own cancel confirmation arrives after release.
	// Cleanup is idempotent: nothing breaks, nothing is re-reserved.
	e.OnOrderEvent(context.Background(), cancelEvent(b.limits[1]))
	if e.Ledger().Cardinality() != 0 {
		t.Fatalf("late cancel confirmation re-reserved a slot")
	}
	if len(b.markets) != 0 {
		t.Fatalf("abandon must not liquidate anything: %v", b.markets)
	}
}

func TestPartialFillThenCancelLiquidatesFilledLeg(t *testing.T) {
	e, b := newTestEngine(testConfig())
	_ = enterSpread(t, e, b)
	short, long := b.limits[0], b.limits[1]

	e.OnOrderEvent(context.Background(), fillEvent(short, 105))
	e.OnOrderEvent(context.Background(), cancelEvent(long))

	if e.Ledger().Cardinality() != 0 {
		t.Fatalf("slot still held after abandoned partial entry")
	}
	if len(b.markets) != 1 {
		t.Fatalf("filled leg not liquidated: %d market orders", len(b.markets))
	}
	// The short was sold, so the unwind buys it back.
	if b.markets[0].Direction != model.DirectionBuy || b.markets[0].Leg.Strike != 2300 {
		t.Fatalf("liquidation order wrong: %+v", b.markets[0])
	}

	// The liquidation's own fill must not trigger another unwind.
	e.OnOrderEvent(context.Background(), fillEvent(b.markets[0], 110))
	if len(b.markets) != 1 {
		t.Fatalf("flattening fill re-liquidated: %v", b.markets)
	}
}

func TestAdverseFillsNeverOpen(t *testing.T) {
	e, b := newTestEngine(testConfig())
	key := enterSpread(t, e, b)
	short, long := b.limits[0], b.limits[1]

	// Long leg costs more than the short collected: net credit <= 0.
	e.OnOrderEvent(context.Background(), fillEvent(short, 40))
	e.OnOrderEvent(context.Background(), fillEvent(long, 45))

	if e.Ledger().Tracked(key) {
		t.Fatalf("adverse pair must never be tracked as open")
	}
	if len(b.markets) != 2 {
		t.Fatalf("both legs must be flattened, got %d market orders", len(b.markets))
	}
	// No profit-target orders may exist for the rolled-back pair.
	if len(b.limits) != 2 {
		t.Fatalf("rollback placed exit orders: %d limits", len(b.limits))
	}

	// Both flattening fills come home without side effects.
	e.OnOrderEvent(context.Background(), fillEvent(b.markets[0], 42))
	e.OnOrderEvent(context.Background(), fillEvent(b.markets[1], 43))
	if len(b.markets) != 2 || e.Ledger().Cardinality() != 0 {
		t.Fatalf("flattening fills caused new activity")
	}
}

func TestRejectedEntryBehavesLikeCancel(t *testing.T) {
	e, b := newTestEngine(testConfig())
	_ = enterSpread(t, e, b)
	short := b.limits[0]

	ev := cancelEvent(short)
	ev.Status = model.OrderStatusRejected
	e.OnOrderEvent(context.Background(), ev)
	if e.Ledger().Cardinality() != 0 {
		t.Fatalf("rejected entry left the slot held")
	}
}

func TestStrayFillIsLiquidated(t *testing.T) {
	e, b := newTestEngine(testConfig())

	stray := model.OrderEvent{
		OrderID: "X", Tag: "ghost",
		Leg:       model.LegIdentity{Underlying: "SOXL", Right: model.RightPut, Strike: 2300, Expiry: t0.AddDate(0, 0, 10)},
		Direction: model.DirectionSell, Status: model.OrderStatusFilled,
		FillPrice: 80, Qty: 2, TS: t0,
	}
	e.OnOrderEvent(context.Background(), stray)
	if len(b.markets) != 1 || b.markets[0].Direction != model.DirectionBuy {
		t.Fatalf("stray fill not flattened: %v", b.markets)
	}
	// Its flattening fill is absorbed silently.
	e.OnOrderEvent(context.Background(), fillEvent(b.markets[0], 82))
	if len(b.markets) != 1 {
		t.Fatalf("flattening fill re-liquidated")
	}
}

func TestSlotFreedAfterAbandonIsReusable(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConcurrent = 1
	e, b := newTestEngine(cfg)
	_ = enterSpread(t, e, b)

	e.OnOrderEvent(context.Background(), cancelEvent(b.limits[0]))
	if e.Ledger().Cardinality() != 0 {
		t.Fatalf("slot not freed")
	}

	// The same candidate can be tried again on the next tick.
	next := t0.Add(time.Hour)
	e.OnTick(context.Background(), model.MarketTick{TS: next, Chains: []model.ChainSnapshot{creditChain(next)}})
	if len(b.limits) != 4 {
		t.Fatalf("freed slot not reusable: %d limit orders", len(b.limits))
	}
}
