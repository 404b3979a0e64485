package spread

import (
	"math"
	"sort"
	"time"

	"spread-systemv1/internal/chain"
	"spread-systemv1/internal/model"
)

// TargetDelta maps trend strength to the short put delta to sell.
// A strong trend tolerates selling closer to the money.
func TargetDelta(adx float64) float64 {
	switch {
	case adx > 40:
		return -0.50
	case adx >= 25:
		return -0.40
	default:
		return -0.30
	}
}

// FindShortPut picks the single short put whose delta sits closest to
// the target inside the DTE window, breaking ties toward the nearer
// expiry.
func FindShortPut(cs *model.ChainSnapshot, now time.Time, minDTE, maxDTE int, target float64) (model.OptionContract, bool) {
	puts := chain.Puts(cs, now, minDTE, maxDTE)
	cands := puts[:0]
	for _, p := range puts {
		if p.Delta != 0 {
			cands = append(cands, p)
		}
	}
	if len(cands) == 0 {
		return model.OptionContract{}, false
	}
	sort.Slice(cands, func(i, j int) bool {
		di := math.Abs(cands[i].Delta - target)
		dj := math.Abs(cands[j].Delta - target)
		if di != dj {
			return di < dj
		}
		return cands[i].Expiry.Before(cands[j].Expiry)
	})
	return cands[0], true
}
