// Package regime classifies market direction and trend strength from
// hourly bars. The engine consults it to choose which instrument to
// trade and whether entries are allowed at all.
package regime

import (
	"log"

	"spread-systemv1/internal/indicator"
	"spread-systemv1/internal/model"
)

// Tracker follows one symbol with a fast/slow VWMA pair and an
// optional ADX. Bullish means the fast average sits above the slow.
type Tracker struct {
	symbol string
	fast   *indicator.VWMA
	slow   *indicator.VWMA
	adx    *indicator.ADX // nil when trend strength is not tracked
}

// NewTracker builds a tracker. adxPeriod 0 disables trend strength.
func NewTracker(symbol string, fastPeriod, slowPeriod, adxPeriod int) *Tracker {
	t := &Tracker{
		symbol: symbol,
		fast:   indicator.NewVWMA(fastPeriod),
		slow:   indicator.NewVWMA(slowPeriod),
	}
	if adxPeriod > 0 {
		t.adx = indicator.NewADX(adxPeriod)
	}
	return t
}

// Symbol returns the tracked symbol.
func (t *Tracker) Symbol() string { return t.symbol }

// Update feeds one closed bar. Bars for other symbols are ignored so
// callers can fan the same tick to every tracker.
func (t *Tracker) Update(bar model.Candle) {
	if bar.Symbol != t.symbol {
		return
	}
	t.fast.Update(bar)
	t.slow.Update(bar)
	if t.adx != nil {
		t.adx.Update(bar)
	}
}

// Ready reports whether every underlying indicator has warmed up.
func (t *Tracker) Ready() bool {
	if !t.fast.Ready() || !t.slow.Ready() {
		return false
	}
	return t.adx == nil || t.adx.Ready()
}

// Bullish reports whether the fast VWMA is above the slow VWMA.
func (t *Tracker) Bullish() bool {
	return t.fast.Value() > t.slow.Value()
}

// ADX returns the current trend strength, 0 when not tracked.
func (t *Tracker) ADX() float64 {
	if t.adx == nil {
		return 0
	}
	return t.adx.Value()
}

// Signal combines the regime index with the bull and bear instruments.
type Signal struct {
	Index *Tracker
	Bull  *Tracker
	Bear  *Tracker

	minADX float64
}

// NewSignal wires trackers for the index symbol (with ADX) and the two
// tradable instruments (crossover only).
func NewSignal(indexSym, bullSym, bearSym string, fastPeriod, slowPeriod, adxPeriod int, minADX float64) *Signal {
	return &Signal{
		Index:  NewTracker(indexSym, fastPeriod, slowPeriod, adxPeriod),
		Bull:   NewTracker(bullSym, fastPeriod, slowPeriod, 0),
		Bear:   NewTracker(bearSym, fastPeriod, slowPeriod, 0),
		minADX: minADX,
	}
}

// Update fans one bar to every tracker.
func (s *Signal) Update(bar model.Candle) {
	s.Index.Update(bar)
	s.Bull.Update(bar)
	s.Bear.Update(bar)
}

// Ready reports whether all trackers have warmed up.
func (s *Signal) Ready() bool {
	return s.Index.Ready() && s.Bull.Ready() && s.Bear.Ready()
}

// ActiveInstrument returns the symbol new entries should trade: the
// bull instrument when the index is bullish, otherwise the inverse
// instrument. The second result is false while the signal is warming
// up or the index trend is too weak to trade.
func (s *Signal) ActiveInstrument() (string, bool) {
	if !s.Ready() {
		return "", false
	}
	if s.Index.ADX() < s.minADX {
		log.Printf("[regime] %s ADX %.1f below %.1f, entries blocked",
			s.Index.Symbol(), s.Index.ADX(), s.minADX)
		return "", false
	}
	if s.Index.Bullish() {
		return s.Bull.Symbol(), true
	}
	return s.Bear.Symbol(), true
}

// InstrumentBullish reports the crossover state for a tradable symbol.
func (s *Signal) InstrumentBullish(symbol string) bool {
	switch symbol {
	case s.Bull.Symbol():
		return s.Bull.Bullish()
	case s.Bear.Symbol():
		return s.Bear.Bullish()
	}
	return false
}

// FavorsHolding reports whether an open position on symbol should ride
// out a stop candidate: hold while the instrument's own trend is still
// up, or while the index still points at this instrument.
func (s *Signal) FavorsHolding(symbol string) bool {
	if s.InstrumentBullish(symbol) {
		return true
	}
	active, ok := s.ActiveInstrument()
	return ok && active == symbol
}
