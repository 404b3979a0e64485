package engine

import (
	"context"
	"log"

	"spread-systemv1/internal/ledger"
	"spread-systemv1/internal/model"
	"spread-systemv1/internal/notification"
)

// reconcileEntry advances the entry state machine for one broker event.
// Legs are classified by direction, never by arrival order: the sell
// leg is always the short leg, the buy leg always the long leg.
//
//	IN_FLIGHT    + fill              → PENDING_ENTRY
//	IN_FLIGHT    + cancel/reject     → cancel peers, release slot
//	PENDING_ENTRY + fill             → pair legs, open or roll back
//	PENDING_ENTRY + cancel/reject    → liquidate the filled leg, release
func (e *Engine) reconcileEntry(ctx context.Context, ev model.OrderEvent) {
	key := ev.Tag
	if e.journal != nil {
		if err := e.journal.RecordLegFill(ev); err != nil {
			log.Printf("[engine] journal leg write failed: %v", err)
		}
	}

	if cand, ok := e.ledger.InFlight(key); ok {
		if !ev.Filled() {
			// Entry abandoned before any fill. The tag sweep is
			// idempotent, so a second terminal event is harmless.
			log.Printf("[engine] entry %s for %s with no fills, abandoning", ev.Status, key)
			if err := e.broker.CancelByTag(ctx, key); err != nil {
				log.Printf("[engine] cancel by tag %s failed: %v", key, err)
			}
			e.ledger.Release(key)
			return
		}
		if cand.Kind == model.KindSinglePut {
			e.openSingle(ctx, cand, ev)
			return
		}
		log.Printf("[engine] first leg filled key=%s %s %s at %d",
			key, ev.Direction, ev.Leg.Key(), ev.FillPrice)
		if err := e.ledger.RecordFirstFill(key, ev); err != nil {
			log.Printf("[engine] %v", err)
		}
		return
	}

	pending, ok := e.ledger.Pending(key)
	if !ok {
		log.Printf("[engine] entry event for key %s in unexpected state", key)
		return
	}
	if !ev.Filled() {
		// One leg filled, the other died. A lone spread leg is never
		// held: flatten it and free the slot.
		log.Printf("[engine] second leg %s for %s, liquidating filled leg", ev.Status, key)
		e.liquidateLeg(ctx, pending.FirstFill, key)
		e.ledger.Release(key)
		if e.metrics != nil {
			e.metrics.EntriesAbandoned.Inc()
		}
		return
	}
	e.completePair(ctx, pending, ev)
}

// completePair pairs the two entry fills by role and either promotes
// the position to OPEN or rolls it back when the realized net is
// adverse.
func (e *Engine) completePair(ctx context.Context, p ledger.PendingEntry, second model.OrderEvent) {
	key := second.Tag
	first := p.FirstFill

	shortFill, longFill := first.FillPrice, second.FillPrice
	if first.Direction == model.DirectionBuy {
		shortFill, longFill = second.FillPrice, first.FillPrice
	}

	// Realized net by structure: credit for the put pair, debit for
	// the call pair.
	var net int64
	if p.Candidate.Kind == model.KindPutCredit {
		net = shortFill - longFill
	} else {
		net = longFill - shortFill
	}

	if net <= 0 {
		// Adverse fills. The pair must never become an open position;
		// flatten both legs at market and free the slot.
		log.Printf("[engine] adverse fills key=%s net=%d, rolling back", key, net)
		e.liquidateLeg(ctx, first, key)
		e.liquidateLeg(ctx, second, key)
		e.ledger.Release(key)
		if e.metrics != nil {
			e.metrics.Rollbacks.Inc()
		}
		e.notify(ctx, notification.AlertWarning, "Entry rolled back",
			"entry fills netted adverse, both legs flattened at market", key)
		e.publish(ctx, model.OpenSpread{
			Key: key, Kind: p.Candidate.Kind, Short: p.Candidate.Short.LegIdentity,
			Long: p.Candidate.Long.LegIdentity, ShortFill: shortFill, LongFill: longFill,
			Net: net, Width: p.Candidate.Width, Qty: second.Qty,
		}, model.StateClosing, "adverse_fills")
		return
	}

	s := &model.OpenSpread{
		Key:       key,
		Kind:      p.Candidate.Kind,
		Short:     p.Candidate.Short.LegIdentity,
		Long:      p.Candidate.Long.LegIdentity,
		ShortFill: shortFill,
		LongFill:  longFill,
		Net:       net,
		Width:     p.Candidate.Width,
		Qty:       second.Qty,
		OpenedAt:  e.now,
	}
	e.ledger.PromoteOpen(s)
	e.lastOpenDay = e.now
	if e.metrics != nil {
		e.metrics.PositionsOpened.Inc()
	}
	log.Printf("[engine] open key=%s kind=%s net=%d qty=%d", key, s.Kind, net, s.Qty)
	e.publish(ctx, *s, model.StateOpen, "entry_complete")
	e.placeProfitTarget(ctx, s)
}

// openSingle promotes a filled single short put straight to OPEN.
func (e *Engine) openSingle(ctx context.Context, cand model.SpreadCandidate, ev model.OrderEvent) {
	s := &model.OpenSpread{
		Key:       ev.Tag,
		Kind:      model.KindSinglePut,
		Short:     cand.Short.LegIdentity,
		ShortFill: ev.FillPrice,
		Net:       ev.FillPrice,
		Qty:       ev.Qty,
		OpenedAt:  e.now,
	}
	e.ledger.PromoteOpen(s)
	e.lastOpenDay = e.now
	if e.metrics != nil {
		e.metrics.PositionsOpened.Inc()
	}
	log.Printf("[engine] open key=%s kind=%s credit=%d qty=%d", s.Key, s.Kind, s.Net, s.Qty)
	e.publish(ctx, *s, model.StateOpen, "entry_complete")
	e.placeProfitTarget(ctx, s)
}

// liquidateLeg reverses one filled leg with a market order under the
// same tag. The expected flattening fill is tombstoned so its own
// event is not mistaken for another stray position.
func (e *Engine) liquidateLeg(ctx context.Context, fill model.OrderEvent, key string) {
	dir := model.DirectionSell
	if fill.Direction == model.DirectionSell {
		dir = model.DirectionBuy
	}
	if _, err := e.broker.PlaceMarket(ctx, model.LegOrder{
		Leg: fill.Leg, Direction: dir, Qty: fill.Qty, Tag: key,
	}); err != nil {
		log.Printf("[engine] liquidation of %s failed: %v", fill.Leg.Key(), err)
		return
	}
	e.liquidating[key]++
}
