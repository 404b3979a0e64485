package broker

import (
	"context"
	"log"
	"sync"
	"time"

	"spread-systemv1/internal/model"
	"spread-systemv1/pkg/optionsapi"
)

// Live places orders through the options API and translates stream
// order updates into model.OrderEvents. Terminal updates for orders it
// did not place (manual orders, prior sessions) are passed through with
// whatever leg identity can be recovered, so the engine's stray-fill
// handling still sees them.
type Live struct {
	client  *optionsapi.Client
	eventCh chan model.OrderEvent

	mu      sync.Mutex
	pending map[string]model.LegOrder // by venue order ID
}

// NewLive wraps an authenticated client.
func NewLive(client *optionsapi.Client, eventBufferSize int) *Live {
	return &Live{
		client:  client,
		eventCh: make(chan model.OrderEvent, eventBufferSize),
		pending: make(map[string]model.LegOrder),
	}
}

// Events returns the channel of translated order events.
func (l *Live) Events() <-chan model.OrderEvent { return l.eventCh }

// HandleOrderUpdate is the stream callback. Wire it via
// stream.OnOrder = live.HandleOrderUpdate.
func (l *Live) HandleOrderUpdate(u optionsapi.OrderUpdate) {
	terminal := u.Status == model.OrderStatusFilled ||
		u.Status == model.OrderStatusCanceled ||
		u.Status == model.OrderStatusRejected
	if !terminal {
		return
	}

	l.mu.Lock()
	o, known := l.pending[u.OrderID]
	if known {
		delete(l.pending, u.OrderID)
	}
	l.mu.Unlock()

	ev := model.OrderEvent{
		OrderID:   u.OrderID,
		Tag:       u.Tag,
		Status:    u.Status,
		FillPrice: u.FillPriceCents,
		Qty:       u.FilledQty,
		TS:        u.TS,
	}
	if known {
		ev.Leg = o.Leg
		ev.Direction = o.Direction
		if ev.Qty == 0 {
			ev.Qty = o.Qty
		}
	} else {
		ev.Direction = u.Side
		log.Printf("[live] update for unknown order %s symbol=%s status=%s", u.OrderID, u.Symbol, u.Status)
	}

	select {
	case l.eventCh <- ev:
	default:
		log.Printf("[live] event channel full, dropping %s for order %s", u.Status, u.OrderID)
	}
}

// PlaceLimit implements model.Broker.
func (l *Live) PlaceLimit(ctx context.Context, o model.LegOrder) (string, error) {
	return l.place(o, "LIMIT")
}

// PlaceMarket implements model.Broker.
func (l *Live) PlaceMarket(ctx context.Context, o model.LegOrder) (string, error) {
	o.Price = 0
	return l.place(o, "MARKET")
}

func (l *Live) place(o model.LegOrder, orderType string) (string, error) {
	orderID, err := l.client.PlaceOrder(optionsapi.OrderRequest{
		Symbol:     o.Symbol,
		Token:      o.Token,
		Side:       o.Direction,
		OrderType:  orderType,
		PriceCents: o.Price,
		Qty:        o.Qty,
		TIF:        o.TimeInForce,
		Tag:        o.Tag,
	})
	if err != nil {
		return "", err
	}
	l.mu.Lock()
	l.pending[orderID] = o
	l.mu.Unlock()
	return orderID, nil
}

// CancelByTag implements model.Broker. The gateway treats an unknown
// tag as a no-op.
func (l *Live) CancelByTag(ctx context.Context, tag string) error {
	return l.client.CancelByTag(tag)
}

// AccountValue implements model.Broker.
func (l *Live) AccountValue(ctx context.Context) (int64, error) {
	return l.client.Balances()
}

// FetchChain pulls the current option chain and converts it to the
// engine's snapshot type. Contracts with unparseable expiries are
// dropped with a log line rather than failing the whole snapshot.
func (l *Live) FetchChain(ctx context.Context, underlying string) (model.ChainSnapshot, error) {
	resp, err := l.client.OptionChain(underlying)
	if err != nil {
		return model.ChainSnapshot{}, err
	}
	cs := model.ChainSnapshot{
		Underlying: resp.Underlying,
		Spot:       resp.SpotCents,
		TS:         resp.AsOf,
		Contracts:  make([]model.OptionContract, 0, len(resp.Contracts)),
	}
	for _, c := range resp.Contracts {
		expiry, err := time.Parse("2006-01-02", c.Expiry)
		if err != nil {
			log.Printf("[live] bad expiry %q for %s, skipping", c.Expiry, c.Symbol)
			continue
		}
		right := model.RightCall
		if c.Right == "P" {
			right = model.RightPut
		}
		cs.Contracts = append(cs.Contracts, model.OptionContract{
			LegIdentity: model.LegIdentity{
				Underlying: resp.Underlying,
				Right:      right,
				Strike:     c.Strike,
				Expiry:     expiry,
			},
			Symbol: c.Symbol,
			Token:  c.Token,
			Bid:    c.BidCents,
			Ask:    c.AskCents,
			Delta:  c.Delta,
		})
	}
	return cs, nil
}
