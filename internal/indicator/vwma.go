package indicator

import (
	"spread-systemv1/internal/model"
)

// VWMA calculates the Volume Weighted Moving Average over a rolling
// window. Uses preallocated circular buffers for a zero-allocation hot
// path. Bars with zero volume contribute price with weight zero.
type VWMA struct {
	period  int
	pv      []float64 // price*volume per slot
	vol     []float64 // volume per slot
	idx     int       // current write position
	count   int       // total candles received
	pvSum   float64
	volSum  float64
	current float64
}

// NewVWMA creates a new VWMA indicator with the given period.
func NewVWMA(period int) *VWMA {
	return &VWMA{
		period: period,
		pv:     make([]float64, period),
		vol:    make([]float64, period),
	}
}

func (v *VWMA) Name() string { return "VWMA_" + model.Itoa(v.period) }

func (v *VWMA) Update(candle model.Candle) {
	price := float64(candle.Close) / 100.0 // cents → dollars
	volume := float64(candle.Volume)

	if v.count >= v.period {
		// Subtract the oldest slot being overwritten
		v.pvSum -= v.pv[v.idx]
		v.volSum -= v.vol[v.idx]
	}

	v.pv[v.idx] = price * volume
	v.vol[v.idx] = volume
	v.pvSum += price * volume
	v.volSum += volume
	v.idx = (v.idx + 1) % v.period
	v.count++

	if v.count >= v.period && v.volSum > 0 {
		v.current = v.pvSum / v.volSum
	}
}

func (v *VWMA) Value() float64 { return v.current }
func (v *VWMA) Ready() bool    { return v.count >= v.period }

// Reset clears the VWMA state for reuse.
func (v *VWMA) Reset() {
	v.idx = 0
	v.count = 0
	v.pvSum = 0
	v.volSum = 0
	v.current = 0
	for i := range v.pv {
		v.pv[i] = 0
		v.vol[i] = 0
	}
}
