// Package spread selects vertical spread candidates from an option
// chain and carries the money math shared by entry and exit pricing.
package spread

import (
	"time"

	"spread-systemv1/internal/chain"
	"spread-systemv1/internal/model"
)

// Params bound both candidate searches. Width is the strike distance in
// cents; a credit candidate must collect at least half the width, a
// debit candidate must cost at most half the width.
type Params struct {
	MinDTE int
	MaxDTE int
	Width  int64 // cents
}

// Find returns the best entry candidate for the snapshot. A put credit
// spread is preferred; an in-the-money call debit spread is the
// fallback when no put pair collects enough premium.
func Find(cs *model.ChainSnapshot, now time.Time, p Params) (model.SpreadCandidate, bool) {
	if c, ok := FindCredit(cs, now, p); ok {
		return c, true
	}
	return FindDebit(cs, now, p)
}

// FindCredit searches for a bull put credit spread: sell a put inside
// the DTE window, buy the put one width lower at the same expiry. The
// credit (short bid minus long ask) must be at least half the width.
// Among qualifying pairs the lowest short strike wins, which keeps the
// short leg as far out of the money as the premium floor allows.
func FindCredit(cs *model.ChainSnapshot, now time.Time, p Params) (model.SpreadCandidate, bool) {
	var best model.SpreadCandidate
	found := false
	for _, short := range chain.Puts(cs, now, p.MinDTE, p.MaxDTE) {
		longLeg := model.LegIdentity{
			Underlying: short.Underlying, Right: model.RightPut,
			Strike: short.Strike - p.Width, Expiry: short.Expiry,
		}
		long, ok := chain.Find(cs, longLeg)
		if !ok || !chain.Quoted(&long) {
			continue
		}
		credit := short.Bid - long.Ask
		if credit*2 < p.Width {
			continue
		}
		cand := model.SpreadCandidate{
			Kind: model.KindPutCredit, Short: short, Long: long, Width: p.Width, Net: credit,
		}
		if !found || better(cand, best, false) {
			best, found = cand, true
		}
	}
	return best, found
}

// FindDebit searches for a bull call debit spread: buy a deep call one
// width below a strictly in-the-money short call at the same expiry.
// The debit (long ask minus short bid) must be positive and at most
// half the width. Among qualifying pairs the highest short strike wins,
// which keeps the paid debit smallest for the width bought.
func FindDebit(cs *model.ChainSnapshot, now time.Time, p Params) (model.SpreadCandidate, bool) {
	var best model.SpreadCandidate
	found := false
	for _, short := range chain.ITMCalls(cs, now, p.MinDTE, p.MaxDTE) {
		longLeg := model.LegIdentity{
			Underlying: short.Underlying, Right: model.RightCall,
			Strike: short.Strike - p.Width, Expiry: short.Expiry,
		}
		long, ok := chain.Find(cs, longLeg)
		if !ok || !chain.Quoted(&long) {
			continue
		}
		debit := long.Ask - short.Bid
		if debit <= 0 || debit*2 > p.Width {
			continue
		}
		cand := model.SpreadCandidate{
			Kind: model.KindCallDebit, Short: short, Long: long, Width: p.Width, Net: debit,
		}
		if !found || better(cand, best, true) {
			best, found = cand, true
		}
	}
	return best, found
}

// better orders candidates by expiry first, then by short strike in the
// requested direction.
func better(a, b model.SpreadCandidate, highStrike bool) bool {
	if !a.Short.Expiry.Equal(b.Short.Expiry) {
		return a.Short.Expiry.Before(b.Short.Expiry)
	}
	if highStrike {
		return a.Short.Strike > b.Short.Strike
	}
	return a.Short.Strike < b.Short.Strike
}
