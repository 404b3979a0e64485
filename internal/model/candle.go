package model

import (
	"encoding/json"
	"time"
)

// Candle represents an hourly OHLC bar for a single symbol.
// All prices are in cents (int64) to avoid floating-point drift.
type Candle struct {
	Symbol string    `json:"symbol"`
	TS     time.Time `json:"ts"`     // bar start time (UTC, hour-aligned)
	Open   int64     `json:"open"`   // cents
	High   int64     `json:"high"`   // cents
	Low    int64     `json:"low"`    // cents
	Close  int64     `json:"close"`  // cents
	Volume int64     `json:"volume"` // shares traded in this bar
}

// JSON returns the JSON-encoded candle (ignoring errors for hot-path usage).
func (c *Candle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}
