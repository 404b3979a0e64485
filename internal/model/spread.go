package model

import "time"

// ContractMultiplier is the number of underlying shares per option contract.
const ContractMultiplier = 100

// SpreadKind distinguishes the two vertical structures the engine trades.
type SpreadKind string

const (
	KindPutCredit SpreadKind = "PUT_CREDIT"
	KindCallDebit SpreadKind = "CALL_DEBIT"
	KindSinglePut SpreadKind = "SINGLE_PUT"
)

// SpreadState is the lifecycle state of one correlation key.
type SpreadState string

const (
	StateInFlight     SpreadState = "IN_FLIGHT"
	StatePendingEntry SpreadState = "PENDING_ENTRY"
	StateOpen         SpreadState = "OPEN"
	StateClosing      SpreadState = "CLOSING"
)

// SpreadKey derives the correlation key for a position from its short leg.
// The short leg is unique per tracked position, so the key is too.
func SpreadKey(short LegIdentity) string {
	return short.Key()
}

// SpreadCandidate is a fully quoted entry candidate produced by the
// search. Net is the expected credit (put pair) or debit (call pair)
// in cents per share.
type SpreadCandidate struct {
	Kind  SpreadKind     `json:"kind"`
	Short OptionContract `json:"short"`
	Long  OptionContract `json:"long"`
	Width int64          `json:"width"` // strike distance, cents
	Net   int64          `json:"net"`   // cents per share
}

// Key returns the correlation key this candidate would trade under.
func (c *SpreadCandidate) Key() string { return SpreadKey(c.Short.LegIdentity) }

// MarginPerSpread returns the cents of buying power one spread consumes.
// Credit spreads risk width minus credit, debit spreads risk the debit,
// and a lone short put is cash-secured for its full strike.
func (c *SpreadCandidate) MarginPerSpread() int64 {
	switch c.Kind {
	case KindCallDebit:
		return c.Net * ContractMultiplier
	case KindSinglePut:
		return c.Short.Strike * ContractMultiplier
	}
	return (c.Width - c.Net) * ContractMultiplier
}

// OpenSpread is the ledger's record of one tracked position. Fill prices
// are per-share cents. For a put credit spread Net = ShortFill-LongFill;
// for a call debit spread Net = LongFill-ShortFill. A single-leg position
// has a zero-value Long identity and Net = ShortFill.
type OpenSpread struct {
	Key       string      `json:"key"`
	Kind      SpreadKind  `json:"kind"`
	State     SpreadState `json:"state"`
	Short     LegIdentity `json:"short"`
	Long      LegIdentity `json:"long"`
	ShortFill int64       `json:"short_fill"` // cents
	LongFill  int64       `json:"long_fill"`  // cents
	Net       int64       `json:"net"`        // cents per share
	Width     int64       `json:"width"`      // cents, 0 for single leg
	Qty       int64       `json:"qty"`        // contracts
	OpenedAt  time.Time   `json:"opened_at"`
}

// SingleLeg reports whether this position has no long wing.
func (s *OpenSpread) SingleLeg() bool { return s.Kind == KindSinglePut }

// SpreadEvent is a lifecycle notification published for observability.
type SpreadEvent struct {
	TS     time.Time   `json:"ts"`
	Key    string      `json:"key"`
	Kind   SpreadKind  `json:"kind"`
	State  SpreadState `json:"state"`
	Reason string      `json:"reason,omitempty"`
	Net    int64       `json:"net,omitempty"` // cents per share
	Qty    int64       `json:"qty,omitempty"`
}
