package regime

import (
	"testing"

	"spread-systemv1/internal/model"
)

func bar(symbol string, closeCents int64) model.Candle {
	return model.Candle{
		Symbol: symbol,
		Open:   closeCents, High: closeCents + 50, Low: closeCents - 50, Close: closeCents,
		Volume: 1000,
	}
}

func feedTrend(s *Signal, symbol string, start, step int64, n int) {
	price := start
	for i := 0; i < n; i++ {
		s.Update(bar(symbol, price))
		price += step
	}
}

func TestActiveInstrumentFollowsIndexDirection(t *testing.T) {
	// Fast 2 / slow 3, ADX 2: warm after a handful of bars.
	s := NewSignal("SOXX", "SOXL", "SOXS", 2, 3, 2, 20)

	feedTrend(s, "SOXX", 10000, 100, 10)
	feedTrend(s, "SOXL", 10000, 100, 10)
	feedTrend(s, "SOXS", 20000, -100, 10)

	if !s.Ready() {
		t.Fatalf("signal not ready after 10 bars per symbol")
	}
	sym, ok := s.ActiveInstrument()
	if !ok || sym != "SOXL" {
		t.Fatalf("bullish index must pick SOXL, got %q ok=%v", sym, ok)
	}

	// Reverse the index hard enough to flip the crossover.
	feedTrend(s, "SOXX", 11000, -400, 6)
	sym, ok = s.ActiveInstrument()
	if !ok || sym != "SOXS" {
		t.Fatalf("bearish index must pick SOXS, got %q ok=%v", sym, ok)
	}
}

func TestWeakTrendBlocksEntries(t *testing.T) {
	s := NewSignal("SOXX", "SOXL", "SOXS", 2, 3, 2, 20)
	// A flat index keeps ADX at 0, under any sane threshold.
	for i := 0; i < 12; i++ {
		s.Update(model.Candle{Symbol: "SOXX", Open: 10000, High: 10000, Low: 10000, Close: 10000, Volume: 1000})
		s.Update(bar("SOXL", 10000))
		s.Update(bar("SOXS", 10000))
	}
	if !s.Ready() {
		t.Fatalf("signal not ready")
	}
	if _, ok := s.ActiveInstrument(); ok {
		t.Fatalf("flat index must block entries")
	}
}

func TestNotReadyBeforeWarmup(t *testing.T) {
	s := NewSignal("SOXX", "SOXL", "SOXS", 2, 3, 2, 20)
	s.Update(bar("SOXX", 10000))
	if _, ok := s.ActiveInstrument(); ok {
		t.Fatalf("unwarmed signal must not pick an instrument")
	}
}

func TestFavorsHoldingWhileInstrumentTrendsUp(t *testing.T) {
	s := NewSignal("SOXX", "SOXL", "SOXS", 2, 3, 2, 20)
	feedTrend(s, "SOXX", 10000, 100, 10)
	feedTrend(s, "SOXL", 10000, 100, 10)
	feedTrend(s, "SOXS", 20000, -100, 10)

	if !s.FavorsHolding("SOXL") {
		t.Fatalf("uptrending instrument under a bullish index must be held")
	}
	if s.FavorsHolding("SOXS") {
		t.Fatalf("downtrending inverse instrument must not be held")
	}
}
