package broker

import (
	"context"
	"testing"
	"time"

	"spread-systemv1/internal/model"
)

var expiry = time.Date(2026, 9, 18, 0, 0, 0, 0, time.UTC)

func leg(strike int64) model.LegIdentity {
	return model.LegIdentity{Underlying: "SOXL", Right: model.RightPut, Strike: strike, Expiry: expiry}
}

func quoteChain(bid, ask int64) model.ChainSnapshot {
	return model.ChainSnapshot{
		Underlying: "SOXL", Spot: 2500, TS: time.Now(),
		Contracts: []model.OptionContract{{LegIdentity: leg(2300), Bid: bid, Ask: ask}},
	}
}

func drain(t *testing.T, p *Paper) model.OrderEvent {
	t.Helper()
	select {
	case ev := <-p.Events():
		return ev
	default:
		t.Fatalf("expected an order event")
		return model.OrderEvent{}
	}
}

func TestLimitFillsWhenMarketable(t *testing.T) {
	p := NewPaper(1_000_000, 0, 16)
	p.UpdateChain(quoteChain(50, 55))

	// Sell at the bid: marketable immediately.
	id, err := p.PlaceLimit(context.Background(), model.LegOrder{
		Leg: leg(2300), Direction: model.DirectionSell, Qty: 2, Price: 50,
		TimeInForce: model.TIFDay, Tag: "k",
	})
	if err != nil {
		t.Fatalf("PlaceLimit: %v", err)
	}
	ev := drain(t, p)
	if ev.OrderID != id || ev.Status != model.OrderStatusFilled || ev.FillPrice != 50 {
		t.Fatalf("unexpected event %+v", ev)
	}
	if n := len(p.Positions()); n != 1 {
		t.Fatalf("positions = %d, want 1", n)
	}
}

func TestLimitRestsUntilQuoteCrosses(t *testing.T) {
	p := NewPaper(1_000_000, 0, 16)
	p.UpdateChain(quoteChain(50, 55))

	// Buy-to-close at 3 cents: far from the 55 ask, must rest.
	if _, err := p.PlaceLimit(context.Background(), model.LegOrder{
		Leg: leg(2300), Direction: model.DirectionBuy, Qty: 2, Price: 3,
		TimeInForce: model.TIFGTC, Tag: "k",
	}); err != nil {
		t.Fatalf("PlaceLimit: %v", err)
	}
	select {
	case ev := <-p.Events():
		t.Fatalf("order filled prematurely: %+v", ev)
	default:
	}

	// Premium collapses; the resting buy becomes marketable.
	p.UpdateChain(quoteChain(1, 2))
	ev := drain(t, p)
	if ev.Status != model.OrderStatusFilled || ev.FillPrice != 3 {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestMarketFillsAtMidWithSlippage(t *testing.T) {
	p := NewPaper(1_000_000, 100, 16) // 1% slippage
	p.UpdateChain(quoteChain(98, 102))

	if _, err := p.PlaceMarket(context.Background(), model.LegOrder{
		Leg: leg(2300), Direction: model.DirectionBuy, Qty: 1, Tag: "k",
	}); err != nil {
		t.Fatalf("PlaceMarket: %v", err)
	}
	ev := drain(t, p)
	// Mid 100 plus 1% buy slippage.
	if ev.Status != model.OrderStatusFilled || ev.FillPrice != 101 {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestMarketWithoutQuoteRejects(t *testing.T) {
	p := NewPaper(1_000_000, 0, 16)
	if _, err := p.PlaceMarket(context.Background(), model.LegOrder{
		Leg: leg(2300), Direction: model.DirectionSell, Qty: 1, Tag: "k",
	}); err != nil {
		t.Fatalf("PlaceMarket: %v", err)
	}
	if ev := drain(t, p); ev.Status != model.OrderStatusRejected {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestCancelByTagCancelsOnlyThatTag(t *testing.T) {
	p := NewPaper(1_000_000, 0, 16)
	p.UpdateChain(quoteChain(50, 55))

	mk := func(tag string) {
		if _, err := p.PlaceLimit(context.Background(), model.LegOrder{
			Leg: leg(2300), Direction: model.DirectionBuy, Qty: 1, Price: 3,
			TimeInForce: model.TIFGTC, Tag: tag,
		}); err != nil {
			t.Fatalf("PlaceLimit: %v", err)
		}
	}
	mk("a")
	mk("b")
	if err := p.CancelByTag(context.Background(), "a"); err != nil {
		t.Fatalf("CancelByTag: %v", err)
	}
	ev := drain(t, p)
	if ev.Status != model.OrderStatusCanceled || ev.Tag != "a" {
		t.Fatalf("unexpected event %+v", ev)
	}
	select {
	case ev := <-p.Events():
		t.Fatalf("tag b must keep resting, got %+v", ev)
	default:
	}

	// Cancelling an unknown tag is a no-op.
	if err := p.CancelByTag(context.Background(), "zzz"); err != nil {
		t.Fatalf("CancelByTag unknown tag: %v", err)
	}
}

func TestRealizedPnLFlowsIntoEquity(t *testing.T) {
	p := NewPaper(1_000_000, 0, 16)
	p.UpdateChain(quoteChain(50, 55))

	// Sell at 50, buy back at 3: +47/share on 1 contract.
	if _, err := p.PlaceLimit(context.Background(), model.LegOrder{
		Leg: leg(2300), Direction: model.DirectionSell, Qty: 1, Price: 50, Tag: "k",
	}); err != nil {
		t.Fatalf("sell: %v", err)
	}
	drain(t, p)
	p.UpdateChain(quoteChain(1, 2))
	if _, err := p.PlaceLimit(context.Background(), model.LegOrder{
		Leg: leg(2300), Direction: model.DirectionBuy, Qty: 1, Price: 3, Tag: "k",
	}); err != nil {
		t.Fatalf("buy: %v", err)
	}
	drain(t, p)

	equity, err := p.AccountValue(context.Background())
	if err != nil {
		t.Fatalf("AccountValue: %v", err)
	}
	want := int64(1_000_000 + 47*model.ContractMultiplier)
	if equity != want {
		t.Fatalf("equity = %d, want %d", equity, want)
	}
	if n := len(p.Positions()); n != 0 {
		t.Fatalf("positions = %d, want 0 after flat", n)
	}
}
