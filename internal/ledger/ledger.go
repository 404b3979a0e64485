// Package ledger tracks every position the engine is responsible for,
// keyed by correlation key. It is the single source of truth for the
// capacity count: a key consumes one slot from the moment its entry
// orders go out until the position is fully closed.
//
// The ledger is mutated only from the engine goroutine, so it carries
// no locks.
package ledger

import (
	"fmt"

	"spread-systemv1/internal/model"
)

// Ledger holds in-flight entries, partially filled entries and open
// positions. A correlation key lives in exactly one of the three maps
// at any time.
type Ledger struct {
	inFlight map[string]model.SpreadCandidate
	pending  map[string]PendingEntry
	open     map[string]*model.OpenSpread
}

// PendingEntry is an entry attempt with exactly one leg filled.
type PendingEntry struct {
	Candidate model.SpreadCandidate
	FirstFill model.OrderEvent
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{
		inFlight: make(map[string]model.SpreadCandidate),
		pending:  make(map[string]PendingEntry),
		open:     make(map[string]*model.OpenSpread),
	}
}

// Cardinality returns the number of capacity slots consumed: the size
// of the union of in-flight, pending-entry and open keys.
func (l *Ledger) Cardinality() int {
	return len(l.inFlight) + len(l.pending) + len(l.open)
}

// Tracked reports whether the key occupies a slot in any state.
func (l *Ledger) Tracked(key string) bool {
	if _, ok := l.inFlight[key]; ok {
		return true
	}
	if _, ok := l.pending[key]; ok {
		return true
	}
	_, ok := l.open[key]
	return ok
}

// MarkInFlight reserves a slot for a new entry attempt. It fails if the
// key is already tracked in any state, which makes double submission
// for the same short leg impossible.
func (l *Ledger) MarkInFlight(c model.SpreadCandidate) error {
	key := c.Key()
	if l.Tracked(key) {
		return fmt.Errorf("ledger: key %s already tracked", key)
	}
	l.inFlight[key] = c
	return nil
}

// InFlight returns the candidate for an in-flight key.
func (l *Ledger) InFlight(key string) (model.SpreadCandidate, bool) {
	c, ok := l.inFlight[key]
	return c, ok
}

// RecordFirstFill moves a key from in-flight to pending-entry, storing
// the fill so the reconciler can pair it with the second leg.
func (l *Ledger) RecordFirstFill(key string, ev model.OrderEvent) error {
	c, ok := l.inFlight[key]
	if !ok {
		return fmt.Errorf("ledger: first fill for unknown in-flight key %s", key)
	}
	delete(l.inFlight, key)
	l.pending[key] = PendingEntry{Candidate: c, FirstFill: ev}
	return nil
}

// Pending returns the pending entry for a key.
func (l *Ledger) Pending(key string) (PendingEntry, bool) {
	p, ok := l.pending[key]
	return p, ok
}

// PromoteOpen installs a fully reconciled position, replacing whatever
// entry state the key held.
func (l *Ledger) PromoteOpen(s *model.OpenSpread) {
	delete(l.inFlight, s.Key)
	delete(l.pending, s.Key)
	s.State = model.StateOpen
	l.open[s.Key] = s
}

// MarkClosing flags an open position as having exit orders working.
// The slot stays consumed until Release.
func (l *Ledger) MarkClosing(key string) error {
	s, ok := l.open[key]
	if !ok {
		return fmt.Errorf("ledger: close of unknown open key %s", key)
	}
	s.State = model.StateClosing
	return nil
}

// Get returns the open position for a key.
func (l *Ledger) Get(key string) (*model.OpenSpread, bool) {
	s, ok := l.open[key]
	return s, ok
}

// Open returns all open and closing positions.
func (l *Ledger) Open() []model.OpenSpread {
	out := make([]model.OpenSpread, 0, len(l.open))
	for _, s := range l.open {
		out = append(out, *s)
	}
	return out
}

// Release removes a key from every state, freeing its capacity slot.
// Releasing an untracked key is a no-op so cleanup paths can run
// repeatedly without harm.
func (l *Ledger) Release(key string) {
	delete(l.inFlight, key)
	delete(l.pending, key)
	delete(l.open, key)
}
