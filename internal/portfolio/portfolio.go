// Package portfolio tracks per-leg positions, P&L and account-level
// risk limits.
//
// It maintains a mark-to-market view of all open option legs, computes
// unrealized P&L from chain snapshots, and gates new entries on daily
// loss and drawdown limits.
package portfolio

import (
	"sync"

	"spread-systemv1/internal/model"
)

// Portfolio tracks all open option legs, keyed by leg identity.
type Portfolio struct {
	mu        sync.RWMutex
	positions map[string]*model.Position
}

// New creates a new empty Portfolio.
func New() *Portfolio {
	return &Portfolio{
		positions: make(map[string]*model.Position),
	}
}

// ApplyFill updates the book from one fill. Buys add contracts, sells
// subtract; the average price is volume-weighted while the position is
// being extended.
func (pf *Portfolio) ApplyFill(ev model.OrderEvent) {
	delta := ev.Qty
	if ev.Direction == model.DirectionSell {
		delta = -ev.Qty
	}

	pf.mu.Lock()
	defer pf.mu.Unlock()

	key := ev.Leg.Key()
	pos, ok := pf.positions[key]
	if !ok {
		pf.positions[key] = &model.Position{
			Leg:       ev.Leg,
			Qty:       delta,
			AvgPrice:  ev.FillPrice,
			LastPrice: ev.FillPrice,
		}
		return
	}

	extending := pos.Qty == 0 || (pos.Qty > 0) == (delta > 0)
	if extending {
		totalCost := pos.AvgPrice*abs(pos.Qty) + ev.FillPrice*abs(delta)
		pos.Qty += delta
		if pos.Qty != 0 {
			pos.AvgPrice = totalCost / abs(pos.Qty)
		}
	} else {
		crossed := abs(delta) > abs(pos.Qty)
		pos.Qty += delta
		if pos.Qty == 0 {
			delete(pf.positions, key)
			return
		}
		if crossed {
			pos.AvgPrice = ev.FillPrice
		}
	}
	pos.LastPrice = ev.FillPrice
}

// Mark updates last prices from a chain snapshot's midpoints.
func (pf *Portfolio) Mark(cs model.ChainSnapshot) {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	for i := range cs.Contracts {
		c := &cs.Contracts[i]
		if pos, ok := pf.positions[c.LegIdentity.Key()]; ok {
			pos.LastPrice = c.Mid()
		}
	}
}

// Positions returns a snapshot of all open legs.
func (pf *Portfolio) Positions() []model.Position {
	pf.mu.RLock()
	defer pf.mu.RUnlock()
	result := make([]model.Position, 0, len(pf.positions))
	for _, p := range pf.positions {
		result = append(result, *p)
	}
	return result
}

// TotalUnrealizedPnL returns the total unrealized P&L in cents across
// all legs.
func (pf *Portfolio) TotalUnrealizedPnL() int64 {
	pf.mu.RLock()
	defer pf.mu.RUnlock()
	var total int64
	for _, p := range pf.positions {
		total += p.UnrealizedPnL()
	}
	return total
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
