package model

import "context"

// ── Port Interfaces ──
// These interfaces decouple the engine from concrete implementations
// (live broker, paper broker, Redis, SQLite). Each implementation
// satisfies one or more of these interfaces.

// Broker places and manages orders at the venue. Submissions are
// asynchronous: terminal outcomes arrive only as OrderEvents on the
// channel the broker was constructed with.
type Broker interface {
	// PlaceLimit submits a limit order and returns the venue order ID.
	PlaceLimit(ctx context.Context, o LegOrder) (string, error)

	// PlaceMarket submits a market order and returns the venue order ID.
	PlaceMarket(ctx context.Context, o LegOrder) (string, error)

	// CancelByTag cancels every resting order carrying the given tag.
	// Cancelling a tag with no resting orders is a no-op, not an error.
	CancelByTag(ctx context.Context, tag string) error

	// AccountValue returns total account equity in cents.
	AccountValue(ctx context.Context) (int64, error)
}

// SpreadJournal records lifecycle events durably for audit. The journal
// is write-only from the engine's perspective; the in-memory ledger
// remains authoritative.
type SpreadJournal interface {
	// RecordLegFill appends one leg fill.
	RecordLegFill(ev OrderEvent) error

	// RecordSpread appends a state transition for a tracked position.
	RecordSpread(s OpenSpread, reason string) error

	// Close releases underlying resources.
	Close() error
}

// StatePublisher mirrors engine state to an external store for
// dashboards. Failures are logged, never propagated to trading logic.
type StatePublisher interface {
	// PublishEvent publishes one lifecycle event.
	PublishEvent(ctx context.Context, ev SpreadEvent)

	// WriteSnapshot overwrites the latest ledger snapshot.
	WriteSnapshot(ctx context.Context, open []OpenSpread)

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases underlying resources.
	Close() error
}
