// Package chain narrows option chain snapshots to the contracts the
// entry searches are allowed to consider.
package chain

import (
	"sort"
	"time"

	"spread-systemv1/internal/model"
)

// Quoted reports whether a contract has a usable two-sided market.
// Venues publish zero bid/ask for halted or stale contracts; those are
// never tradable candidates.
func Quoted(c *model.OptionContract) bool {
	return c.Bid > 0 && c.Ask > 0 && c.Ask >= c.Bid
}

// Puts returns quoted puts whose DTE falls inside [minDTE, maxDTE],
// sorted by expiry then strike ascending.
func Puts(cs *model.ChainSnapshot, now time.Time, minDTE, maxDTE int) []model.OptionContract {
	return filter(cs, func(c *model.OptionContract) bool {
		if c.Right != model.RightPut || !Quoted(c) {
			return false
		}
		dte := c.DTE(now)
		return dte >= minDTE && dte <= maxDTE
	})
}

// ITMCalls returns quoted calls strictly in the money at the snapshot
// spot, within the DTE window, sorted by expiry then strike ascending.
func ITMCalls(cs *model.ChainSnapshot, now time.Time, minDTE, maxDTE int) []model.OptionContract {
	return filter(cs, func(c *model.OptionContract) bool {
		if c.Right != model.RightCall || !Quoted(c) {
			return false
		}
		if !c.ITM(cs.Spot) {
			return false
		}
		dte := c.DTE(now)
		return dte >= minDTE && dte <= maxDTE
	})
}

// Find locates the contract for an exact leg identity.
func Find(cs *model.ChainSnapshot, leg model.LegIdentity) (model.OptionContract, bool) {
	for i := range cs.Contracts {
		c := &cs.Contracts[i]
		if c.Right == leg.Right && c.Strike == leg.Strike && c.Underlying == leg.Underlying &&
			c.Expiry.Equal(leg.Expiry) {
			return *c, true
		}
	}
	return model.OptionContract{}, false
}

func filter(cs *model.ChainSnapshot, keep func(*model.OptionContract) bool) []model.OptionContract {
	var out []model.OptionContract
	for i := range cs.Contracts {
		if keep(&cs.Contracts[i]) {
			out = append(out, cs.Contracts[i])
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Expiry.Equal(out[j].Expiry) {
			return out[i].Expiry.Before(out[j].Expiry)
		}
		return out[i].Strike < out[j].Strike
	})
	return out
}
