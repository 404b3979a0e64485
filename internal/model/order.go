package model

import "time"

// Order direction, time in force and terminal status constants.
const (
	DirectionBuy  = "BUY"
	DirectionSell = "SELL"

	TIFDay = "DAY"
	TIFGTC = "GTC"

	OrderStatusFilled   = "FILLED"
	OrderStatusCanceled = "CANCELED"
	OrderStatusRejected = "REJECTED"
)

// LegOrder is a single-leg order submission. Price is a limit price in
// cents; zero means market. Tag carries the correlation key so every
// event for this order can be routed back to its spread.
type LegOrder struct {
	Leg         LegIdentity `json:"leg"`
	Symbol      string      `json:"symbol"`
	Token       string      `json:"token"`
	Direction   string      `json:"direction"` // BUY, SELL
	Qty         int64       `json:"qty"`       // contracts
	Price       int64       `json:"price"`     // limit in cents, 0 = market
	TimeInForce string      `json:"tif"`       // DAY, GTC
	Tag         string      `json:"tag"`       // correlation key
}

// OrderEvent is a terminal order notification from the broker. FillPrice
// is the average fill in cents and is meaningful only for FILLED events.
type OrderEvent struct {
	OrderID   string      `json:"order_id"`
	Tag       string      `json:"tag"`
	Leg       LegIdentity `json:"leg"`
	Direction string      `json:"direction"`
	Status    string      `json:"status"`
	FillPrice int64       `json:"fill_price"` // cents
	Qty       int64       `json:"qty"`
	TS        time.Time   `json:"ts"`
}

// Filled reports whether this event is a fill.
func (e *OrderEvent) Filled() bool { return e.Status == OrderStatusFilled }
