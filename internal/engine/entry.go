package engine

import (
	"context"
	"log"

	"spread-systemv1/internal/model"
	"spread-systemv1/internal/spread"
)

// tryEnter runs one entry decision: pick the instrument from the
// regime signal, search its chain for a candidate, size it, reserve a
// ledger slot and submit both legs. Any rejection along the way is a
// logged no-trade decision, never an error.
func (e *Engine) tryEnter(ctx context.Context) {
	if !e.throttleOpen() || e.enteredToday() || !e.capacityAvailable() {
		return
	}
	symbol, ok := e.signal.ActiveInstrument()
	if !ok {
		return
	}
	cs, ok := e.chain(symbol)
	if !ok {
		log.Printf("[engine] no chain snapshot for %s yet", symbol)
		return
	}
	e.lastEntry = e.now

	cand, ok := e.findCandidate(&cs)
	if !ok {
		log.Printf("[engine] no entry candidate on %s", symbol)
		return
	}
	if e.ledger.Tracked(cand.Key()) {
		// Same short leg already working or open; never double up.
		return
	}

	equity, err := e.broker.AccountValue(ctx)
	if err != nil {
		log.Printf("[engine] account value unavailable: %v", err)
		return
	}
	if e.risk != nil {
		e.risk.UpdateEquity(e.now, equity)
		if ok, reason := e.risk.CanEnter(); !ok {
			log.Printf("[engine] entry blocked by risk limits: %s", reason)
			return
		}
	}
	qty := spread.Contracts(equity, e.cfg.AllocFraction, &cand)
	if qty < 1 {
		log.Printf("[engine] allocation too small for %s margin=%d", cand.Key(), cand.MarginPerSpread())
		return
	}

	if err := e.ledger.MarkInFlight(cand); err != nil {
		log.Printf("[engine] slot reservation failed: %v", err)
		return
	}
	if e.submitEntryLegs(ctx, cand, qty) {
		if e.metrics != nil {
			e.metrics.EntriesSubmitted.Inc()
		}
		log.Printf("[engine] entry submitted key=%s kind=%s qty=%d net=%d width=%d",
			cand.Key(), cand.Kind, qty, cand.Net, cand.Width)
		return
	}
	// Submission failed before any leg could rest; free the slot and
	// sweep the tag in case one leg did reach the venue.
	if err := e.broker.CancelByTag(ctx, cand.Key()); err != nil {
		log.Printf("[engine] cleanup cancel failed for %s: %v", cand.Key(), err)
	}
	e.ledger.Release(cand.Key())
}

// findCandidate searches the snapshot according to the entry mode.
func (e *Engine) findCandidate(cs *model.ChainSnapshot) (model.SpreadCandidate, bool) {
	p := spread.Params{MinDTE: e.cfg.MinDTE, MaxDTE: e.cfg.MaxDTE, Width: e.cfg.Width}
	if e.cfg.Mode == ModeSingle {
		target := spread.TargetDelta(e.signal.Index.ADX())
		short, ok := spread.FindShortPut(cs, e.now, p.MinDTE, p.MaxDTE, target)
		if !ok {
			return model.SpreadCandidate{}, false
		}
		return model.SpreadCandidate{Kind: model.KindSinglePut, Short: short, Net: short.Bid}, true
	}
	return spread.Find(cs, e.now, p)
}

// submitEntryLegs places the entry orders: sell the short leg at its
// bid and, for spreads, buy the long leg at its ask. Day limit orders
// so unfilled entries expire with the session.
func (e *Engine) submitEntryLegs(ctx context.Context, c model.SpreadCandidate, qty int64) bool {
	key := c.Key()
	if _, err := e.broker.PlaceLimit(ctx, model.LegOrder{
		Leg: c.Short.LegIdentity, Symbol: c.Short.Symbol, Token: c.Short.Token,
		Direction: model.DirectionSell, Qty: qty, Price: c.Short.Bid,
		TimeInForce: model.TIFDay, Tag: key,
	}); err != nil {
		log.Printf("[engine] short leg submit failed for %s: %v", key, err)
		return false
	}
	if c.Kind == model.KindSinglePut {
		return true
	}
	if _, err := e.broker.PlaceLimit(ctx, model.LegOrder{
		Leg: c.Long.LegIdentity, Symbol: c.Long.Symbol, Token: c.Long.Token,
		Direction: model.DirectionBuy, Qty: qty, Price: c.Long.Ask,
		TimeInForce: model.TIFDay, Tag: key,
	}); err != nil {
		log.Printf("[engine] long leg submit failed for %s: %v", key, err)
		return false
	}
	return true
}
