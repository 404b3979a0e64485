package portfolio

import (
	"sync"
	"time"
)

// RiskLimits defines account-level thresholds that block new entries.
// Position-count and sizing limits live in the engine config; these are
// the equity-curve guards layered on top.
type RiskLimits struct {
	MaxDailyLoss   int64   `json:"max_daily_loss"`   // cents, 0 = disabled
	MaxDrawdownPct float64 `json:"max_drawdown_pct"` // 0-100, 0 = disabled
}

// DefaultRiskLimits returns conservative defaults: $2,000 daily loss,
// 10% drawdown from peak.
func DefaultRiskLimits() RiskLimits {
	return RiskLimits{
		MaxDailyLoss:   200_000,
		MaxDrawdownPct: 10.0,
	}
}

// RiskManager tracks equity against the limits. UpdateEquity is fed
// from broker account values; CanEnter gates new entries.
type RiskManager struct {
	mu     sync.Mutex
	limits RiskLimits

	day         time.Time // date the daily anchor was set
	dailyAnchor int64     // equity at start of the trading day
	equity      int64
	peakEquity  int64
}

// NewRiskManager creates a RiskManager with the given limits and
// starting equity in cents.
func NewRiskManager(limits RiskLimits, initialEquity int64) *RiskManager {
	return &RiskManager{
		limits:      limits,
		dailyAnchor: initialEquity,
		equity:      initialEquity,
		peakEquity:  initialEquity,
	}
}

// UpdateEquity records the latest account equity. The daily anchor
// resets when now rolls to a new date.
func (rm *RiskManager) UpdateEquity(now time.Time, equity int64) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	day := now.Truncate(24 * time.Hour)
	if !day.Equal(rm.day) {
		rm.day = day
		rm.dailyAnchor = equity
	}
	rm.equity = equity
	if equity > rm.peakEquity {
		rm.peakEquity = equity
	}
}

// CanEnter reports whether a new entry is allowed. When blocked, the
// second return is the reason.
func (rm *RiskManager) CanEnter() (bool, string) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.limits.MaxDailyLoss > 0 && rm.dailyAnchor-rm.equity > rm.limits.MaxDailyLoss {
		return false, "max daily loss reached"
	}
	if rm.limits.MaxDrawdownPct > 0 && rm.peakEquity > 0 {
		drawdown := float64(rm.peakEquity-rm.equity) / float64(rm.peakEquity) * 100
		if drawdown > rm.limits.MaxDrawdownPct {
			return false, "max drawdown exceeded"
		}
	}
	return true, ""
}
