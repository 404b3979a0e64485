package model

import "time"

// ChainSnapshot is one instrument's option chain at a point in time.
// Spot is the underlying last price in cents.
type ChainSnapshot struct {
	Underlying string           `json:"underlying"`
	Spot       int64            `json:"spot"` // cents
	TS         time.Time        `json:"ts"`
	Contracts  []OptionContract `json:"contracts"`
}

// MarketTick is one engine scheduling event: the hourly bars that just
// closed plus fresh chain snapshots for the tradable instruments.
type MarketTick struct {
	TS     time.Time       `json:"ts"`
	Bars   []Candle        `json:"bars"`
	Chains []ChainSnapshot `json:"chains"`
}

// Chain returns the snapshot for the given underlying, or nil.
func (t *MarketTick) Chain(underlying string) *ChainSnapshot {
	for i := range t.Chains {
		if t.Chains[i].Underlying == underlying {
			return &t.Chains[i]
		}
	}
	return nil
}

// Bar returns the bar for the given symbol, or nil.
func (t *MarketTick) Bar(symbol string) *Candle {
	for i := range t.Bars {
		if t.Bars[i].Symbol == symbol {
			return &t.Bars[i]
		}
	}
	return nil
}
