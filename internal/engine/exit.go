package engine

import (
	"context"
	"log"

	"spread-systemv1/internal/chain"
	"spread-systemv1/internal/model"
	"spread-systemv1/internal/notification"
	"spread-systemv1/internal/spread"
)

// placeProfitTarget rests the take-profit orders for a freshly opened
// position. GTC so they survive the session; both legs carry the
// position's correlation key.
func (e *Engine) placeProfitTarget(ctx context.Context, s *model.OpenSpread) {
	switch s.Kind {
	case model.KindSinglePut:
		e.placeExitLimit(ctx, s, s.Short, model.DirectionBuy, e.cfg.SingleProfitTarget)
	case model.KindPutCredit:
		// Close the pair keeping ProfitFraction of the entry credit:
		// buy the short back near worthless, sell the wing for the tick.
		e.placeExitLimit(ctx, s, s.Short, model.DirectionBuy, spread.TargetDebit(s.Net, e.cfg.ProfitFraction))
		e.placeExitLimit(ctx, s, s.Long, model.DirectionSell, 1)
	case model.KindCallDebit:
		// Capture ProfitFraction of the move toward max value: sell
		// the long leg at the target, buy the short back for the tick.
		e.placeExitLimit(ctx, s, s.Long, model.DirectionSell, spread.TargetCredit(s.Net, s.Width, e.cfg.ProfitFraction))
		e.placeExitLimit(ctx, s, s.Short, model.DirectionBuy, 1)
	}
}

func (e *Engine) placeExitLimit(ctx context.Context, s *model.OpenSpread, leg model.LegIdentity, dir string, price int64) {
	if _, err := e.broker.PlaceLimit(ctx, model.LegOrder{
		Leg: leg, Direction: dir, Qty: s.Qty, Price: price,
		TimeInForce: model.TIFGTC, Tag: s.Key,
	}); err != nil {
		log.Printf("[engine] exit order for %s leg %s failed: %v", s.Key, leg.Key(), err)
	}
}

// evaluateExits walks every open position once per tick and forces a
// close when the roll trigger or the single-leg stop fires. Positions
// already CLOSING are left to their working orders.
func (e *Engine) evaluateExits(ctx context.Context) {
	for _, s := range e.ledger.Open() {
		if s.State == model.StateClosing {
			continue
		}
		cs, ok := e.chain(s.Short.Underlying)
		if !ok {
			continue
		}
		if s.Short.ITM(cs.Spot) && s.Short.DTE(e.now) <= e.cfg.RollDTE {
			log.Printf("[engine] roll trigger key=%s spot=%d strike=%d dte=%d",
				s.Key, cs.Spot, s.Short.Strike, s.Short.DTE(e.now))
			e.closeAtMarket(ctx, s.Key, "roll")
			continue
		}
		if s.SingleLeg() && e.stopTriggered(&s, &cs) {
			e.closeAtMarket(ctx, s.Key, "stop")
		}
	}
}

// stopTriggered applies the single-leg stop: the short put marks at or
// above the entry credit times the stop multiplier, and neither the
// instrument's own trend nor the regime argues for holding on.
func (e *Engine) stopTriggered(s *model.OpenSpread, cs *model.ChainSnapshot) bool {
	if e.cfg.StopMultiplier <= 0 {
		return false
	}
	c, ok := chain.Find(cs, s.Short)
	if !ok || !chain.Quoted(&c) {
		return false
	}
	mark := c.Mid()
	if float64(mark) < float64(s.ShortFill)*e.cfg.StopMultiplier {
		return false
	}
	if e.signal.FavorsHolding(s.Short.Underlying) {
		log.Printf("[engine] stop candidate key=%s mark=%d entry=%d held by trend",
			s.Key, mark, s.ShortFill)
		return false
	}
	log.Printf("[engine] stop key=%s mark=%d entry=%d", s.Key, mark, s.ShortFill)
	return true
}

// closeAtMarket cancels any resting exit orders and flattens every leg
// at market. The slot stays consumed until the closing fills arrive.
func (e *Engine) closeAtMarket(ctx context.Context, key, reason string) {
	s, ok := e.ledger.Get(key)
	if !ok {
		return
	}
	if err := e.broker.CancelByTag(ctx, key); err != nil {
		log.Printf("[engine] cancel resting exits for %s failed: %v", key, err)
	}
	flat := e.exitFills[key]
	if !flat[s.Short.Key()] {
		if _, err := e.broker.PlaceMarket(ctx, model.LegOrder{
			Leg: s.Short, Direction: model.DirectionBuy, Qty: s.Qty, Tag: key,
		}); err != nil {
			log.Printf("[engine] market close short leg %s failed: %v", key, err)
		}
	}
	if !s.SingleLeg() && !flat[s.Long.Key()] {
		if _, err := e.broker.PlaceMarket(ctx, model.LegOrder{
			Leg: s.Long, Direction: model.DirectionSell, Qty: s.Qty, Tag: key,
		}); err != nil {
			log.Printf("[engine] market close long leg %s failed: %v", key, err)
		}
	}
	if err := e.ledger.MarkClosing(key); err != nil {
		log.Printf("[engine] %v", err)
		return
	}
	e.closeReason[key] = reason
	if e.metrics != nil {
		e.metrics.ForcedCloses.WithLabelValues(reason).Inc()
	}
	e.notify(ctx, notification.AlertWarning, "Forced close: "+reason,
		"position is being flattened at market", key)
	e.publish(ctx, *s, model.StateClosing, reason)
}

// handleExitEvent counts closing fills for an open or closing key and
// releases the slot once every leg is flat. Cancel confirmations from
// our own cleanup sweeps carry no state.
func (e *Engine) handleExitEvent(ctx context.Context, ev model.OrderEvent) {
	key := ev.Tag
	if !ev.Filled() {
		log.Printf("[engine] exit order %s for %s", ev.Status, key)
		return
	}
	if e.journal != nil {
		if err := e.journal.RecordLegFill(ev); err != nil {
			log.Printf("[engine] journal leg write failed: %v", err)
		}
	}
	s, _ := e.ledger.Get(key)
	expected := 2
	if s.SingleLeg() {
		expected = 1
	}
	if e.exitFills[key] == nil {
		e.exitFills[key] = make(map[string]bool)
	}
	e.exitFills[key][ev.Leg.Key()] = true
	if len(e.exitFills[key]) < expected {
		return
	}
	reason := e.closeReason[key]
	if reason == "" {
		reason = "profit_target"
	}
	delete(e.exitFills, key)
	delete(e.closeReason, key)
	// Sweep anything still resting under the key before the ledger
	// entry goes away; a half-filled exit must not outlive it.
	if err := e.broker.CancelByTag(ctx, key); err != nil {
		log.Printf("[engine] closing sweep for %s failed: %v", key, err)
	}
	e.ledger.Release(key)
	if e.metrics != nil {
		e.metrics.PositionsClosed.WithLabelValues(reason).Inc()
	}
	log.Printf("[engine] closed key=%s reason=%s", key, reason)
	e.publish(ctx, *s, model.StateClosing, "closed_"+reason)
}
