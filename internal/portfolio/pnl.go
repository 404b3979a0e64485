package portfolio

import (
	"sync"

	"spread-systemv1/internal/model"
)

// PnLTracker tracks realized P&L from fills, including short legs.
// Cost basis is per leg, prices in cents per share, realized amounts
// in cents (contract multiplier applied).
type PnLTracker struct {
	mu    sync.RWMutex
	fills int

	realizedPnL int64
	costBasis   map[string]costEntry // by leg key
}

type costEntry struct {
	Qty      int64 // signed: positive = long, negative = short
	AvgPrice int64 // cents per share
}

// NewPnLTracker creates a new P&L tracker.
func NewPnLTracker() *PnLTracker {
	return &PnLTracker{
		costBasis: make(map[string]costEntry),
	}
}

// RecordFill applies one fill and returns the P&L it realized, if any.
// A fill that extends the position (same sign) reweights the average;
// a fill against the position realizes against the cost basis. A fill
// crossing through zero opens the remainder at the fill price.
func (p *PnLTracker) RecordFill(ev model.OrderEvent) int64 {
	delta := ev.Qty
	if ev.Direction == model.DirectionSell {
		delta = -ev.Qty
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.fills++

	key := ev.Leg.Key()
	entry := p.costBasis[key]

	var realized int64
	extending := entry.Qty == 0 || (entry.Qty > 0) == (delta > 0)
	if extending {
		totalCost := entry.AvgPrice*abs(entry.Qty) + ev.FillPrice*abs(delta)
		entry.Qty += delta
		entry.AvgPrice = totalCost / abs(entry.Qty)
	} else {
		closed := abs(delta)
		if closed > abs(entry.Qty) {
			closed = abs(entry.Qty)
		}
		if entry.Qty > 0 {
			realized = (ev.FillPrice - entry.AvgPrice) * closed
		} else {
			realized = (entry.AvgPrice - ev.FillPrice) * closed
		}
		realized *= model.ContractMultiplier
		p.realizedPnL += realized

		crossed := abs(delta) > abs(entry.Qty)
		entry.Qty += delta
		if entry.Qty == 0 {
			entry.AvgPrice = 0
		} else if crossed {
			entry.AvgPrice = ev.FillPrice
		}
	}

	p.costBasis[key] = entry
	return realized
}

// RealizedPnL returns total realized P&L in cents.
func (p *PnLTracker) RealizedPnL() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.realizedPnL
}

// Fills returns the number of fills recorded.
func (p *PnLTracker) Fills() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.fills
}

// OpenLegs returns the number of legs with a non-flat cost basis.
func (p *PnLTracker) OpenLegs() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n := 0
	for _, e := range p.costBasis {
		if e.Qty != 0 {
			n++
		}
	}
	return n
}
