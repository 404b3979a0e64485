package engine

import (
	"log"
	"time"
)

// capacityAvailable gates new entries on the ledger's slot count. A
// slot is held from first submission to final close, so the union of
// in-flight, pending-entry and open keys can never exceed the cap.
func (e *Engine) capacityAvailable() bool {
	n := e.ledger.Cardinality()
	if n >= e.cfg.MaxConcurrent {
		log.Printf("[engine] capacity full (%d/%d), skipping entry", n, e.cfg.MaxConcurrent)
		return false
	}
	return true
}

// throttleOpen reports whether enough time has passed since the last
// entry attempt. Entry decisions run at most once per interval.
func (e *Engine) throttleOpen() bool {
	if e.cfg.EntryInterval <= 0 {
		return true
	}
	return e.lastEntry.IsZero() || e.now.Sub(e.lastEntry) >= e.cfg.EntryInterval
}

// enteredToday reports whether a position already opened this trading
// day. The date is stamped only when an entry completes, so an
// abandoned attempt does not burn the day.
func (e *Engine) enteredToday() bool {
	if e.lastOpenDay.IsZero() || !sameDay(e.lastOpenDay, e.now) {
		return false
	}
	log.Printf("[engine] already opened a position today, skipping entry")
	return true
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
