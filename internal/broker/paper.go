// Package broker provides Broker implementations: a paper simulator
// for tests and dry runs, and a live client backed by the options API.
package broker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"spread-systemv1/internal/model"
)

// restingOrder is a limit order waiting for a marketable quote.
type restingOrder struct {
	orderID string
	order   model.LegOrder
}

// Paper simulates order execution without real broker calls. Limit
// orders rest until a quote crosses them; market orders fill at the
// midpoint with configurable slippage. Every terminal outcome is
// emitted on the event channel, same as the live broker.
type Paper struct {
	mu       sync.Mutex
	eventCh  chan model.OrderEvent
	orderSeq int64

	resting   []restingOrder
	quotes    map[string]model.OptionContract // by leg key
	positions map[string]*model.Position
	equity    int64 // cents
	now       time.Time

	// Simulation parameters
	slippageBps int64 // basis points applied to market fills
}

// NewPaper creates a paper broker with the given starting equity in
// cents. slippageBps controls simulated slippage on market orders.
func NewPaper(equity int64, slippageBps int64, eventBufferSize int) *Paper {
	return &Paper{
		eventCh:     make(chan model.OrderEvent, eventBufferSize),
		quotes:      make(map[string]model.OptionContract),
		positions:   make(map[string]*model.Position),
		equity:      equity,
		slippageBps: slippageBps,
	}
}

// Events returns the channel of simulated order events.
func (p *Paper) Events() <-chan model.OrderEvent { return p.eventCh }

// UpdateChain refreshes quotes from a snapshot and sweeps resting
// orders for fills. Call once per market tick before the engine runs.
func (p *Paper) UpdateChain(cs model.ChainSnapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.now = cs.TS
	for _, c := range cs.Contracts {
		p.quotes[c.LegIdentity.Key()] = c
	}
	p.sweepLocked()
}

// PlaceLimit rests a limit order; it fills as soon as the quote
// crosses the limit, which for orders priced at the touch is the same
// tick they are placed.
func (p *Paper) PlaceLimit(ctx context.Context, o model.LegOrder) (string, error) {
	if o.Qty < 1 || o.Price < 1 {
		return "", fmt.Errorf("paper: bad limit order qty=%d price=%d", o.Qty, o.Price)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.orderSeq++
	id := "PAPER-" + model.Itoa(int(p.orderSeq))
	p.resting = append(p.resting, restingOrder{orderID: id, order: o})
	p.sweepLocked()
	return id, nil
}

// PlaceMarket fills immediately at the quoted midpoint plus slippage
// against the order's direction.
func (p *Paper) PlaceMarket(ctx context.Context, o model.LegOrder) (string, error) {
	if o.Qty < 1 {
		return "", fmt.Errorf("paper: bad market order qty=%d", o.Qty)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.orderSeq++
	id := "PAPER-" + model.Itoa(int(p.orderSeq))

	q, ok := p.quotes[o.Leg.Key()]
	if !ok {
		// Never leave a market order hanging: without a quote the
		// order is rejected so the caller sees a terminal event.
		p.emitLocked(id, o, model.OrderStatusRejected, 0)
		return id, nil
	}
	price := q.Mid()
	slip := price * p.slippageBps / 10000
	if o.Direction == model.DirectionBuy {
		price += slip // buy higher
	} else {
		price -= slip // sell lower
	}
	if price < 1 {
		price = 1
	}
	p.fillLocked(id, o, price)
	return id, nil
}

// CancelByTag cancels every resting order with the tag. Unknown tags
// are a no-op, matching venue semantics.
func (p *Paper) CancelByTag(ctx context.Context, tag string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	keep := p.resting[:0]
	for _, r := range p.resting {
		if r.order.Tag == tag {
			p.emitLocked(r.orderID, r.order, model.OrderStatusCanceled, 0)
			continue
		}
		keep = append(keep, r)
	}
	p.resting = keep
	return nil
}

// AccountValue returns starting equity plus realized PnL.
func (p *Paper) AccountValue(ctx context.Context) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.equity, nil
}

// Positions returns a snapshot of current holdings.
func (p *Paper) Positions() []model.Position {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.Position, 0, len(p.positions))
	for _, pos := range p.positions {
		out = append(out, *pos)
	}
	return out
}

// sweepLocked fills every resting order whose quote crosses its limit.
func (p *Paper) sweepLocked() {
	keep := p.resting[:0]
	for _, r := range p.resting {
		q, ok := p.quotes[r.order.Leg.Key()]
		if !ok || !marketable(r.order, q) {
			keep = append(keep, r)
			continue
		}
		p.fillLocked(r.orderID, r.order, r.order.Price)
	}
	p.resting = keep
}

// marketable reports whether a limit order can trade at its price.
func marketable(o model.LegOrder, q model.OptionContract) bool {
	if o.Direction == model.DirectionBuy {
		return q.Ask > 0 && q.Ask <= o.Price
	}
	return q.Bid >= o.Price
}

func (p *Paper) fillLocked(orderID string, o model.LegOrder, price int64) {
	pos, ok := p.positions[o.Leg.Key()]
	if !ok {
		pos = &model.Position{Leg: o.Leg}
		p.positions[o.Leg.Key()] = pos
	}
	signed := o.Qty
	if o.Direction == model.DirectionSell {
		signed = -o.Qty
	}
	if pos.Qty != 0 && (pos.Qty > 0) != (signed > 0) {
		// Reducing or flipping: realize PnL on the closed contracts
		closed := min64(abs64(signed), abs64(pos.Qty))
		pnl := (price - pos.AvgPrice) * closed * model.ContractMultiplier
		if pos.Qty < 0 {
			pnl = -pnl
		}
		p.equity += pnl
	} else if pos.Qty == 0 || abs64(pos.Qty+signed) > abs64(pos.Qty) {
		pos.AvgPrice = price
	}
	pos.Qty += signed
	pos.LastPrice = price
	if pos.Qty == 0 {
		delete(p.positions, o.Leg.Key())
	}

	log.Printf("[paper] %s %s qty=%d price=%d tag=%s order=%s",
		o.Direction, o.Leg.Key(), o.Qty, price, o.Tag, orderID)
	p.emitLocked(orderID, o, model.OrderStatusFilled, price)
}

func (p *Paper) emitLocked(orderID string, o model.LegOrder, status string, price int64) {
	ev := model.OrderEvent{
		OrderID: orderID, Tag: o.Tag, Leg: o.Leg, Direction: o.Direction,
		Status: status, FillPrice: price, Qty: o.Qty, TS: p.now,
	}
	select {
	case p.eventCh <- ev:
	default:
		log.Printf("[paper] event channel full, dropping %s for %s", status, o.Tag)
	}
}

func abs64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
