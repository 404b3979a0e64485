// cmd/spreadengine runs the live spread execution engine: TOTP login at
// each market open, order/bar stream over websocket, hourly entry and
// exit evaluation, SQLite journal and Redis state mirror.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"spread-systemv1/config"
	"spread-systemv1/internal/broker"
	"spread-systemv1/internal/engine"
	"spread-systemv1/internal/journal"
	"spread-systemv1/internal/logger"
	"spread-systemv1/internal/markethours"
	"spread-systemv1/internal/metrics"
	"spread-systemv1/internal/model"
	"spread-systemv1/internal/notification"
	"spread-systemv1/internal/portfolio"
	"spread-systemv1/internal/regime"
	redisstore "spread-systemv1/internal/store/redis"
	"spread-systemv1/pkg/optionsapi"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	logger.Init("spreadengine", slog.LevelInfo)
	log.Println("[spreadengine] starting...")

	cfg := config.Load()
	cfg.MustBrokerCreds()

	// ---- Metrics & health ----
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- Journal (append-only audit, off the decision path) ----
	os.MkdirAll("data", 0o755)
	jnl, err := journal.New(cfg.JournalPath)
	if err != nil {
		log.Fatalf("[spreadengine] journal init failed: %v", err)
	}
	defer jnl.Close()
	log.Println("[spreadengine] journal ready")

	// ---- Redis state mirror ----
	var pub *redisstore.Publisher
	pub, err = redisstore.New(redisstore.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		log.Printf("[spreadengine] WARNING: redis init failed: %v (continuing without redis)", err)
		pub = nil
	}

	if pub != nil {
		health.StartLivenessChecker(ctx, pub.Client(), jnl.DB(), 10*time.Second)
	} else {
		health.StartLivenessChecker(ctx, nil, jnl.DB(), 10*time.Second)
	}

	// ---- Broker client (tokens refreshed at each market open) ----
	client := optionsapi.NewClient(optionsapi.Config{APIKey: cfg.BrokerAPIKey})
	live := broker.NewLive(client, 4096)

	// ---- Regime signal + engine ----
	sig := regime.NewSignal(cfg.IndexSymbol, cfg.BullSymbol, cfg.BearSymbol,
		cfg.VWMAFast, cfg.VWMASlow, cfg.ADXPeriod, cfg.MinADX)

	var journalPort model.SpreadJournal = jnl
	var publisherPort model.StatePublisher
	if pub != nil {
		publisherPort = pub
	}
	eng := engine.New(engine.Config{
		MinDTE:             cfg.MinDTE,
		MaxDTE:             cfg.MaxDTE,
		Width:              cfg.WidthCents,
		MaxConcurrent:      cfg.MaxConcurrent,
		AllocFraction:      cfg.AllocPerPosition(),
		ProfitFraction:     cfg.ProfitFraction,
		SingleProfitTarget: cfg.SingleTargetCents,
		RollDTE:            cfg.RollDTE,
		StopMultiplier:     cfg.StopMultiplier,
		Mode:               cfg.Mode,
		EntryInterval:      cfg.EntryInterval(),
	}, live, sig, journalPort, publisherPort, prom)

	// Equity guards seed from the first broker equity read; until then
	// the anchor is zero and the guard passes.
	eng.SetRiskManager(portfolio.NewRiskManager(portfolio.RiskLimits{
		MaxDailyLoss:   cfg.MaxDailyLossCents,
		MaxDrawdownPct: cfg.MaxDrawdownPct,
	}, 0))

	var backends []notification.Notifier
	if cfg.TelegramEnabled() {
		backends = append(backends, notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID))
	}
	if cfg.WebhookURL != "" {
		backends = append(backends, notification.NewWebhookNotifier(cfg.WebhookURL))
	}
	if len(backends) > 0 {
		eng.SetNotifier(notification.NewMulti(backends...))
	} else {
		eng.SetNotifier(notification.NewLogNotifier())
	}

	tickCh := make(chan model.MarketTick, 64)
	go eng.Run(ctx, tickCh, live.Events())

	// ---- Bar assembly: one MarketTick per completed hourly bar set ----
	symbols := []string{cfg.IndexSymbol, cfg.BullSymbol, cfg.BearSymbol}
	asm := newBarAssembler(symbols, func(bars []model.Candle, ts time.Time) {
		tick := model.MarketTick{TS: ts, Bars: bars}
		for _, und := range []string{cfg.BullSymbol, cfg.BearSymbol} {
			cs, err := live.FetchChain(ctx, und)
			if err != nil {
				log.Printf("[spreadengine] chain fetch failed for %s: %v", und, err)
				continue
			}
			tick.Chains = append(tick.Chains, cs)
		}
		health.SetLastTickTime(ts)
		select {
		case tickCh <- tick:
		default:
			prom.DroppedTicks.Inc()
			log.Printf("[spreadengine] tick channel full, dropping tick %s", ts)
		}
	})

	// ---- WS lifecycle with market hours gating ----
	go func() {
		for {
			now := time.Now()
			if !markethours.IsMarketOpen(now) {
				next := markethours.NextOpen(now)
				wait := next.Sub(now)
				log.Printf("[spreadengine] ⏸ market closed. %s", markethours.StatusString(now))
				log.Printf("[spreadengine] sleeping %v until next open %s",
					wait.Truncate(time.Second), next.In(markethours.NY).Format("Mon 15:04"))
				health.SetFeedConnected(false)

				select {
				case <-ctx.Done():
					return
				case <-time.After(wait):
				}
			}

			// --- Fresh login at each open ---
			log.Println("[spreadengine] 🔑 market open — generating fresh session...")
			if err := client.Login(cfg.BrokerClientCode, cfg.BrokerPassword, cfg.BrokerTOTPSecret); err != nil {
				log.Printf("[spreadengine] login failed: %v, retrying in 30s", err)
				time.Sleep(30 * time.Second)
				continue
			}
			log.Println("[spreadengine] ✅ session ready")

			stream, err := optionsapi.NewStream(optionsapi.StreamConfig{
				APIKey:     cfg.BrokerAPIKey,
				ClientCode: cfg.BrokerClientCode,
				AuthToken:  client.AccessToken(),
				FeedToken:  client.FeedToken(),
				BarSymbols: symbols,
			})
			if err != nil {
				log.Printf("[spreadengine] stream init failed: %v, retrying in 30s", err)
				time.Sleep(30 * time.Second)
				continue
			}
			stream.OnOrder = live.HandleOrderUpdate
			stream.OnBar = asm.onBar
			stream.OnReconnect = func() {
				prom.FeedReconnects.Inc()
			}

			closeTime := markethours.TodayClose(time.Now())
			wsCtx, wsCancel := context.WithDeadline(ctx, closeTime)
			health.SetFeedConnected(true)
			log.Printf("[spreadengine] 📡 stream connected — will disconnect at %s",
				closeTime.In(markethours.NY).Format("15:04:05"))

			// Blocks until the close deadline or shutdown.
			if err := stream.Start(wsCtx); err != nil {
				log.Printf("[spreadengine] stream session ended: %v", err)
			}
			wsCancel()
			health.SetFeedConnected(false)
			log.Println("[spreadengine] 🔌 stream disconnected — market close")

			if ctx.Err() != nil {
				return
			}
		}
	}()

	log.Printf("[spreadengine] engine ready mode=%s symbols=%s/%s/%s",
		cfg.Mode, cfg.IndexSymbol, cfg.BullSymbol, cfg.BearSymbol)
	log.Printf("[spreadengine] %s", markethours.StatusString(time.Now()))

	<-sigCh
	log.Println("[spreadengine] shutdown signal received, cleaning up...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Stop(shutdownCtx)

	if pub != nil {
		pub.Close()
	}
	log.Println("[spreadengine] shutdown complete.")
}

// barAssembler groups per-symbol hourly bars by timestamp and emits a
// complete set once every tracked symbol has reported.
type barAssembler struct {
	mu      sync.Mutex
	want    map[string]bool
	pending map[time.Time]map[string]model.Candle
	emit    func([]model.Candle, time.Time)
}

func newBarAssembler(symbols []string, emit func([]model.Candle, time.Time)) *barAssembler {
	want := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		want[s] = true
	}
	return &barAssembler{
		want:    want,
		pending: make(map[time.Time]map[string]model.Candle),
		emit:    emit,
	}
}

func (a *barAssembler) onBar(u optionsapi.BarUpdate) {
	if !a.want[u.Symbol] {
		return
	}
	bar := model.Candle{
		Symbol: u.Symbol,
		TS:     u.TS,
		Open:   u.OpenCents,
		High:   u.HighCents,
		Low:    u.LowCents,
		Close:  u.CloseCents,
		Volume: u.Volume,
	}

	a.mu.Lock()
	set := a.pending[u.TS]
	if set == nil {
		set = make(map[string]model.Candle, len(a.want))
		a.pending[u.TS] = set
	}
	set[u.Symbol] = bar
	complete := len(set) == len(a.want)
	var bars []model.Candle
	if complete {
		for _, b := range set {
			bars = append(bars, b)
		}
		delete(a.pending, u.TS)
		// Drop older incomplete sets so the map can't grow unbounded.
		for ts := range a.pending {
			if ts.Before(u.TS) {
				delete(a.pending, ts)
			}
		}
	}
	a.mu.Unlock()

	if complete {
		a.emit(bars, u.TS)
	}
}
