package model

// Position represents a broker-side holding in one option leg.
type Position struct {
	Leg       LegIdentity `json:"leg"`
	Qty       int64       `json:"qty"`       // contracts, positive = long, negative = short
	AvgPrice  int64       `json:"avg_price"` // cents per share
	LastPrice int64       `json:"last_price"`
}

// UnrealizedPnL computes unrealized profit/loss in cents.
func (p *Position) UnrealizedPnL() int64 {
	return (p.LastPrice - p.AvgPrice) * p.Qty * ContractMultiplier
}

// Key returns a unique key for this position's leg.
func (p *Position) Key() string {
	return p.Leg.Key()
}
