// Package engine runs the spread trading loop: it consumes market
// ticks and broker order events from two channels and drives every
// position through entry, fill reconciliation and exit.
//
// All state is owned by the single goroutine inside Run, so the engine
// holds no locks. Broker submissions are fire-and-forget; outcomes
// come back only as order events on the event channel.
package engine

import (
	"context"
	"log"
	"time"

	"spread-systemv1/internal/ledger"
	"spread-systemv1/internal/metrics"
	"spread-systemv1/internal/model"
	"spread-systemv1/internal/notification"
	"spread-systemv1/internal/portfolio"
	"spread-systemv1/internal/regime"
)

// Entry mode selects which structure the engine trades.
const (
	ModeSpread = "spread"
	ModeSingle = "single"
)

// Config holds the engine's trading parameters. All prices in cents.
type Config struct {
	MinDTE int
	MaxDTE int
	Width  int64 // strike distance for vertical spreads

	MaxConcurrent int     // capacity: positions tracked at once
	AllocFraction float64 // of account equity per position

	ProfitFraction     float64 // fraction of credit kept / move captured
	SingleProfitTarget int64   // buy-to-close price for single legs
	RollDTE            int     // roll when short leg is ITM at or under this DTE
	StopMultiplier     float64 // single-leg stop: mark >= entry * multiplier

	Mode          string        // ModeSpread or ModeSingle
	EntryInterval time.Duration // minimum spacing between entry attempts
}

// Engine owns the position ledger and coordinates all trading logic.
type Engine struct {
	cfg       Config
	ledger    *ledger.Ledger
	broker    model.Broker
	signal    *regime.Signal
	journal   model.SpreadJournal    // nil disables journaling
	publisher model.StatePublisher   // nil disables mirroring
	metrics   *metrics.Metrics       // nil disables metrics
	notifier  notification.Notifier  // nil disables alerts
	risk      *portfolio.RiskManager // nil disables equity guards

	chains      map[string]model.ChainSnapshot // latest chain per underlying
	exitFills   map[string]map[string]bool     // legs already flat per closing key
	closeReason map[string]string              // forced-close reason per key
	liquidating map[string]int                 // flattening fills awaited per released key
	lastEntry   time.Time
	lastOpenDay time.Time // stamped when an entry completes, one open per day
	now         time.Time // clock driven by tick timestamps
}

// New creates an engine. journal, publisher and m may be nil.
func New(cfg Config, broker model.Broker, signal *regime.Signal,
	journal model.SpreadJournal, publisher model.StatePublisher, m *metrics.Metrics) *Engine {
	return &Engine{
		cfg:         cfg,
		ledger:      ledger.New(),
		broker:      broker,
		signal:      signal,
		journal:     journal,
		publisher:   publisher,
		metrics:     m,
		chains:      make(map[string]model.ChainSnapshot),
		exitFills:   make(map[string]map[string]bool),
		closeReason: make(map[string]string),
		liquidating: make(map[string]int),
	}
}

// Ledger exposes the position ledger for inspection.
func (e *Engine) Ledger() *ledger.Ledger { return e.ledger }

// SetNotifier installs an alert backend. Call before Run.
func (e *Engine) SetNotifier(n notification.Notifier) { e.notifier = n }

// SetRiskManager installs the equity-curve entry guard. Call before Run.
func (e *Engine) SetRiskManager(rm *portfolio.RiskManager) { e.risk = rm }

// Run consumes ticks and order events until ctx is cancelled or the
// tick channel is closed. Order events are drained before each tick so
// entry decisions always see reconciled state.
func (e *Engine) Run(ctx context.Context, tickCh <-chan model.MarketTick, eventCh <-chan model.OrderEvent) {
	log.Printf("[engine] starting mode=%s maxConcurrent=%d width=%d dte=%d-%d",
		e.cfg.Mode, e.cfg.MaxConcurrent, e.cfg.Width, e.cfg.MinDTE, e.cfg.MaxDTE)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-eventCh:
			if !ok {
				return
			}
			e.OnOrderEvent(ctx, ev)
		case tick, ok := <-tickCh:
			if !ok {
				return
			}
			// Reconcile anything already queued before acting on the tick.
			for drained := false; !drained; {
				select {
				case ev, ok := <-eventCh:
					if !ok {
						return
					}
					e.OnOrderEvent(ctx, ev)
				default:
					drained = true
				}
			}
			e.OnTick(ctx, tick)
		}
	}
}

// OnTick ingests one market tick: feeds the signal, evaluates exits on
// every open position, then considers a new entry.
func (e *Engine) OnTick(ctx context.Context, tick model.MarketTick) {
	e.now = tick.TS
	for _, bar := range tick.Bars {
		e.signal.Update(bar)
	}
	for _, cs := range tick.Chains {
		e.chains[cs.Underlying] = cs
	}
	if e.metrics != nil {
		start := time.Now()
		defer func() { e.metrics.TickDur.Observe(time.Since(start).Seconds()) }()
		e.metrics.TicksProcessed.Inc()
		e.metrics.OpenPositions.Set(float64(e.ledger.Cardinality()))
	}

	e.evaluateExits(ctx)
	e.tryEnter(ctx)
	e.mirror(ctx)
}

// OnOrderEvent routes one broker event to the reconciler or the exit
// tracker depending on what state its correlation key is in.
func (e *Engine) OnOrderEvent(ctx context.Context, ev model.OrderEvent) {
	if e.metrics != nil {
		e.metrics.OrderEvents.Inc()
	}
	key := ev.Tag
	switch {
	case e.inEntry(key):
		e.reconcileEntry(ctx, ev)
	case e.tracked(key):
		e.handleExitEvent(ctx, ev)
	default:
		// Late events for released keys are expected after cleanup
		// cancels; anything filled here would be a stray position,
		// unless it is one of our own flattening fills coming home.
		if ev.Filled() {
			if n := e.liquidating[key]; n > 0 {
				if n == 1 {
					delete(e.liquidating, key)
				} else {
					e.liquidating[key] = n - 1
				}
				log.Printf("[engine] flattening fill for %s at %d", key, ev.FillPrice)
				return
			}
			log.Printf("[engine] fill for untracked key %s, liquidating leg %s", key, ev.Leg.Key())
			e.notify(ctx, notification.AlertWarning, "Stray fill liquidated",
				"received a fill for an untracked position, flattening the leg", key)
			e.liquidateLeg(ctx, ev, key)
			return
		}
		log.Printf("[engine] ignoring %s event for untracked key %s", ev.Status, key)
	}
}

func (e *Engine) inEntry(key string) bool {
	if _, ok := e.ledger.InFlight(key); ok {
		return true
	}
	_, ok := e.ledger.Pending(key)
	return ok
}

func (e *Engine) tracked(key string) bool {
	_, ok := e.ledger.Get(key)
	return ok
}

// chain returns the latest snapshot for an underlying.
func (e *Engine) chain(underlying string) (model.ChainSnapshot, bool) {
	cs, ok := e.chains[underlying]
	return cs, ok
}

// publish emits a lifecycle event to the journal and the mirror.
func (e *Engine) publish(ctx context.Context, s model.OpenSpread, state model.SpreadState, reason string) {
	if e.journal != nil {
		s.State = state
		if err := e.journal.RecordSpread(s, reason); err != nil {
			log.Printf("[engine] journal write failed: %v", err)
		}
	}
	if e.publisher != nil {
		e.publisher.PublishEvent(ctx, model.SpreadEvent{
			TS: e.now, Key: s.Key, Kind: s.Kind, State: state,
			Reason: reason, Net: s.Net, Qty: s.Qty,
		})
	}
}

// notify raises an operator alert when a backend is installed.
func (e *Engine) notify(ctx context.Context, level notification.AlertLevel, title, message, key string) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Send(ctx, notification.Alert{
		Level: level, Title: title, Message: message, Key: key,
	}); err != nil {
		log.Printf("[engine] alert delivery failed: %v", err)
	}
}

// mirror pushes the current ledger snapshot to the state store.
func (e *Engine) mirror(ctx context.Context) {
	if e.publisher != nil {
		e.publisher.WriteSnapshot(ctx, e.ledger.Open())
	}
}
