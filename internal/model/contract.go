package model

import "time"

// Right is an option right.
type Right string

const (
	RightPut  Right = "PUT"
	RightCall Right = "CALL"
)

// LegIdentity identifies one option leg independent of any quote data.
// Strike is in cents to avoid floating-point drift.
type LegIdentity struct {
	Underlying string    `json:"underlying"`
	Right      Right     `json:"right"`
	Strike     int64     `json:"strike"` // cents
	Expiry     time.Time `json:"expiry"` // expiry date, midnight exchange time
}

// Key returns a unique key for this leg: "underlying:right:strike:expiry".
func (l LegIdentity) Key() string {
	return l.Underlying + ":" + string(l.Right) + ":" + Itoa(int(l.Strike)) + ":" + l.Expiry.Format("2006-01-02")
}

// OptionContract is a quoted option from a chain snapshot.
// Bid/Ask are in cents; Delta is the venue-reported greek.
type OptionContract struct {
	LegIdentity
	Symbol string  `json:"symbol"` // venue trading symbol
	Token  string  `json:"token"`  // venue instrument token
	Bid    int64   `json:"bid"`    // cents
	Ask    int64   `json:"ask"`    // cents
	Delta  float64 `json:"delta"`
}

// Mid returns the bid/ask midpoint in cents.
func (c *OptionContract) Mid() int64 {
	return (c.Bid + c.Ask) / 2
}

// DTE returns whole calendar days until expiry relative to now.
func (l LegIdentity) DTE(now time.Time) int {
	return int(l.Expiry.Sub(now.Truncate(24*time.Hour)).Hours() / 24)
}

// ITM reports whether the leg is in the money at the given spot (cents).
// A put is ITM when spot < strike, a call when spot > strike.
func (l LegIdentity) ITM(spot int64) bool {
	if l.Right == RightPut {
		return spot < l.Strike
	}
	return spot > l.Strike
}
