package engine

import (
	"context"
	"testing"
	"time"

	"spread-systemv1/internal/model"
)

// openSingleLeg drives a single short put to OPEN and returns its key.
func openSingleLeg(t *testing.T, e *Engine, b *stubBroker) string {
	t.Helper()
	// Cash-secured margin for a 2400 strike is 240000 cents; fund two.
	b.equity = 5_000_000
	warmSignal(e)
	cs := model.ChainSnapshot{
		Underlying: "SOXL", Spot: 2500, TS: t0,
		Contracts: []model.OptionContract{
			{LegIdentity: putContract(2400, 10, 90, 95).LegIdentity, Bid: 90, Ask: 95, Delta: -0.45},
		},
	}
	e.OnTick(context.Background(), model.MarketTick{TS: t0, Chains: []model.ChainSnapshot{cs}})
	if len(b.limits) != 1 {
		t.Fatalf("expected one entry order, got %d", len(b.limits))
	}
	e.OnOrderEvent(context.Background(), fillEvent(b.limits[0], 90))
	return b.limits[0].Tag
}

// stressedChain marks the short put far above its entry credit.
func stressedChain(ts time.Time) model.ChainSnapshot {
	return model.ChainSnapshot{
		Underlying: "SOXL", Spot: 2350, TS: ts,
		Contracts: []model.OptionContract{
			{LegIdentity: putContract(2400, 10, 0, 0).LegIdentity, Bid: 150, Ask: 160, Delta: -0.60},
		},
	}
}

func TestStopHeldWhileTrendFavorable(t *testing.T) {
	cfg := testConfig()
	cfg.Mode = ModeSingle
	e, b := newTestEngine(cfg)
	openSingleLeg(t, e, b)

	// Mark 155 versus a 135 stop level, but SOXL still trends up.
	e.OnTick(context.Background(), model.MarketTick{
		TS:     t0.Add(time.Hour),
		Bars:   []model.Candle{bar("SOXX", 11000), bar("SOXL", 11000), bar("SOXS", 19000)},
		Chains: []model.ChainSnapshot{stressedChain(t0.Add(time.Hour))},
	})
	if len(b.markets) != 0 {
		t.Fatalf("stop fired while the trend favored holding: %v", b.markets)
	}
}

func TestStopClosesWhenTrendTurns(t *testing.T) {
	cfg := testConfig()
	cfg.Mode = ModeSingle
	e, b := newTestEngine(cfg)
	key := openSingleLeg(t, e, b)

	// Hammer every symbol down until both the instrument trend and the
	// regime abandon SOXL.
	for i := 0; i < 8; i++ {
		ts := t0.Add(time.Duration(i+1) * time.Hour)
		px := int64(11000 - 600*(i+1))
		e.OnTick(context.Background(), model.MarketTick{
			TS:     ts,
			Bars:   []model.Candle{bar("SOXX", px), bar("SOXL", px), bar("SOXS", 19000)},
			Chains: []model.ChainSnapshot{stressedChain(ts)},
		})
		if len(b.markets) > 0 {
			break
		}
	}
	if len(b.markets) != 1 {
		t.Fatalf("stop close expected exactly one market order, got %d", len(b.markets))
	}
	if b.markets[0].Direction != model.DirectionBuy || b.markets[0].Leg.Strike != 2400 {
		t.Fatalf("stop close order wrong: %+v", b.markets[0])
	}
	s, _ := e.Ledger().Get(key)
	if s.State != model.StateClosing {
		t.Fatalf("state = %s, want CLOSING", s.State)
	}

	e.OnOrderEvent(context.Background(), fillEvent(b.markets[0], 155))
	if e.Ledger().Cardinality() != 0 {
		t.Fatalf("slot still held after stop close fill")
	}
}

func TestStopIgnoresUnquotedMark(t *testing.T) {
	cfg := testConfig()
	cfg.Mode = ModeSingle
	e, b := newTestEngine(cfg)
	openSingleLeg(t, e, b)

	// Chain present but the leg quote is one-sided: no stop decision.
	cs := model.ChainSnapshot{
		Underlying: "SOXL", Spot: 2350, TS: t0.Add(time.Hour),
		Contracts: []model.OptionContract{
			{LegIdentity: putContract(2400, 10, 0, 0).LegIdentity, Bid: 0, Ask: 160, Delta: -0.60},
		},
	}
	e.OnTick(context.Background(), model.MarketTick{
		TS:     t0.Add(time.Hour),
		Bars:   []model.Candle{bar("SOXX", 2000), bar("SOXL", 2000), bar("SOXS", 30000)},
		Chains: []model.ChainSnapshot{cs},
	})
	if len(b.markets) != 0 {
		t.Fatalf("stop acted on an unusable quote: %v", b.markets)
	}
}
