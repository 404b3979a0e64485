// Package feed generates synthetic market ticks for paper trading and
// dry runs: hourly bars for the regime instruments plus derived option
// chains, no live connectivity required.
package feed

import (
	"math"
	"math/rand"
	"time"

	"spread-systemv1/internal/model"
)

// Config configures the simulated feed.
type Config struct {
	IndexSymbol string
	BullSymbol  string
	BearSymbol  string

	IndexStart int64 // cents
	BullStart  int64 // cents
	BearStart  int64 // cents

	Leverage float64       // bull/bear daily move multiple, default 3
	Interval time.Duration // bar interval, default 1h
	Seed     int64         // 0 = time-based
	Start    time.Time     // first bar close, zero = now truncated to Interval
}

// Sim is a deterministic synthetic feed. Each Next() advances one bar:
// the index takes a small random-walk step, the leveraged pair moves by
// Leverage times that step, and option chains are rebuilt around the
// new spots.
type Sim struct {
	cfg Config
	rng *rand.Rand

	now    time.Time
	prices map[string]int64
	opens  map[string]int64
}

// New creates a simulated feed.
func New(cfg Config) *Sim {
	if cfg.Leverage == 0 {
		cfg.Leverage = 3
	}
	if cfg.Interval == 0 {
		cfg.Interval = time.Hour
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	start := cfg.Start
	if start.IsZero() {
		start = time.Now().UTC().Truncate(cfg.Interval)
	}
	return &Sim{
		cfg: cfg,
		rng: rand.New(rand.NewSource(seed)),
		now: start,
		prices: map[string]int64{
			cfg.IndexSymbol: cfg.IndexStart,
			cfg.BullSymbol:  cfg.BullStart,
			cfg.BearSymbol:  cfg.BearStart,
		},
		opens: map[string]int64{
			cfg.IndexSymbol: cfg.IndexStart,
			cfg.BullSymbol:  cfg.BullStart,
			cfg.BearSymbol:  cfg.BearStart,
		},
	}
}

// Next advances one bar and returns the resulting market tick with
// chains for the bull and bear instruments.
func (s *Sim) Next() model.MarketTick {
	s.now = s.now.Add(s.cfg.Interval)

	// Index takes a ±0.3% step; the leveraged pair amplifies it.
	pct := (s.rng.Float64()*0.6 - 0.3) / 100.0
	s.step(s.cfg.IndexSymbol, pct)
	s.step(s.cfg.BullSymbol, pct*s.cfg.Leverage)
	s.step(s.cfg.BearSymbol, -pct*s.cfg.Leverage)

	tick := model.MarketTick{TS: s.now}
	for _, sym := range []string{s.cfg.IndexSymbol, s.cfg.BullSymbol, s.cfg.BearSymbol} {
		tick.Bars = append(tick.Bars, s.bar(sym))
		s.opens[sym] = s.prices[sym]
	}
	for _, sym := range []string{s.cfg.BullSymbol, s.cfg.BearSymbol} {
		tick.Chains = append(tick.Chains, s.chain(sym))
	}
	return tick
}

// Run pushes ticks until ctx-free count is exhausted or out blocks.
// Used by the paper binary: delay 0 runs at full speed.
func (s *Sim) Run(count int, delay time.Duration, out chan<- model.MarketTick) {
	for i := 0; i < count; i++ {
		out <- s.Next()
		if delay > 0 {
			time.Sleep(delay)
		}
	}
	close(out)
}

func (s *Sim) step(sym string, pct float64) {
	p := s.prices[sym]
	np := p + int64(float64(p)*pct)
	if np < 100 { // floor at $1
		np = 100
	}
	s.prices[sym] = np
}

func (s *Sim) bar(sym string) model.Candle {
	open := s.opens[sym]
	closePrice := s.prices[sym]
	high, low := open, closePrice
	if closePrice > open {
		high, low = closePrice, open
	}
	// Wicks of up to 0.1% beyond the body.
	high += int64(float64(high) * s.rng.Float64() * 0.001)
	low -= int64(float64(low) * s.rng.Float64() * 0.001)
	return model.Candle{
		Symbol: sym,
		TS:     s.now,
		Open:   open,
		High:   high,
		Low:    low,
		Close:  closePrice,
		Volume: int64(s.rng.Intn(900_000) + 100_000),
	}
}

// chain builds a synthetic option chain: weekly expiries for the next
// five Fridays, strikes in $1 steps within ±15% of spot, both rights.
// Quotes are intrinsic plus a decaying time value with a 2-cent spread.
func (s *Sim) chain(sym string) model.ChainSnapshot {
	spot := s.prices[sym]
	cs := model.ChainSnapshot{Underlying: sym, Spot: spot, TS: s.now}

	lo := spot - spot*15/100
	hi := spot + spot*15/100
	lo -= lo % 100
	hi -= hi % 100

	for _, expiry := range s.expiries() {
		dte := float64(expiry.Sub(s.now).Hours() / 24)
		if dte < 0 {
			continue
		}
		for strike := lo; strike <= hi; strike += 100 {
			for _, right := range []model.Right{model.RightPut, model.RightCall} {
				mid := optionMid(spot, strike, dte, right)
				if mid < 1 {
					mid = 1
				}
				leg := model.LegIdentity{Underlying: sym, Right: right, Strike: strike, Expiry: expiry}
				cs.Contracts = append(cs.Contracts, model.OptionContract{
					LegIdentity: leg,
					Symbol:      occSymbol(leg),
					Token:       occSymbol(leg),
					Bid:         mid - 1,
					Ask:         mid + 1,
					Delta:       approxDelta(spot, strike, dte, right),
				})
			}
		}
	}
	return cs
}

// expiries returns the next five Fridays at midnight UTC.
func (s *Sim) expiries() []time.Time {
	d := s.now.Truncate(24 * time.Hour)
	for d.Weekday() != time.Friday {
		d = d.AddDate(0, 0, 1)
	}
	out := make([]time.Time, 0, 5)
	for i := 0; i < 5; i++ {
		out = append(out, d)
		d = d.AddDate(0, 0, 7)
	}
	return out
}

// optionMid prices an option as intrinsic plus time value proportional
// to sqrt(DTE) and tapering away from the money. Crude, but it produces
// chains with sane credit/debit structure for the search logic.
func optionMid(spot, strike int64, dte float64, right model.Right) int64 {
	var intrinsic int64
	if right == model.RightPut && strike > spot {
		intrinsic = strike - spot
	}
	if right == model.RightCall && spot > strike {
		intrinsic = spot - strike
	}
	moneyness := math.Abs(float64(spot-strike)) / float64(spot)
	timeValue := float64(spot) * 0.012 * math.Sqrt(dte/7) * math.Exp(-8*moneyness)
	return intrinsic + int64(timeValue)
}

// approxDelta maps moneyness to a delta-ish value: 0.5 at the money,
// approaching 1 (calls) or -1 (puts) deep in the money.
func approxDelta(spot, strike int64, dte float64, right model.Right) float64 {
	if dte < 0.5 {
		dte = 0.5
	}
	z := float64(spot-strike) / (float64(spot) * 0.02 * math.Sqrt(dte/7))
	callDelta := 0.5 * (1 + math.Erf(z/math.Sqrt2))
	if right == model.RightCall {
		return callDelta
	}
	return callDelta - 1
}

// occSymbol renders the standard OCC option symbol, e.g.
// SOXL260904P00023000 for a $23 put expiring 2026-09-04.
func occSymbol(l model.LegIdentity) string {
	right := "C"
	if l.Right == model.RightPut {
		right = "P"
	}
	var buf [8]byte
	v := l.Strike * 10 // cents to OCC's thousandths of a dollar
	for i := 7; i >= 0; i-- {
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return l.Underlying + l.Expiry.Format("060102") + right + string(buf[:])
}
