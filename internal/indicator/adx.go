package indicator

import (
	"math"

	"spread-systemv1/internal/model"
)

// ADX calculates the Average Directional Index using Wilder's smoothing
// method. Update is O(1) per candle — no history scans.
type ADX struct {
	period int
	count  int

	prevHigh  float64
	prevLow   float64
	prevClose float64

	// Wilder-smoothed true range and directional movement.
	smTR  float64
	smPDM float64
	smMDM float64

	dxCount int
	dxSum   float64
	current float64
}

// NewADX creates a new ADX indicator with the given period (typically 14).
func NewADX(period int) *ADX {
	return &ADX{period: period}
}

func (a *ADX) Name() string { return "ADX_" + model.Itoa(a.period) }

func (a *ADX) Update(candle model.Candle) {
	high := float64(candle.High) / 100.0 // cents → dollars
	low := float64(candle.Low) / 100.0
	closePrice := float64(candle.Close) / 100.0
	a.count++

	if a.count == 1 {
		// First candle — just record prices, no ranges yet
		a.prevHigh, a.prevLow, a.prevClose = high, low, closePrice
		return
	}

	tr := math.Max(high-low, math.Max(math.Abs(high-a.prevClose), math.Abs(low-a.prevClose)))
	upMove := high - a.prevHigh
	downMove := a.prevLow - low
	pdm, mdm := 0.0, 0.0
	if upMove > downMove && upMove > 0 {
		pdm = upMove
	}
	if downMove > upMove && downMove > 0 {
		mdm = downMove
	}
	a.prevHigh, a.prevLow, a.prevClose = high, low, closePrice

	n := float64(a.period)
	if a.count <= a.period+1 {
		// Accumulation phase: build initial sums
		a.smTR += tr
		a.smPDM += pdm
		a.smMDM += mdm
		if a.count < a.period+1 {
			return
		}
	} else {
		// Wilder's smoothing: sm = sm - sm/n + current
		a.smTR = a.smTR - a.smTR/n + tr
		a.smPDM = a.smPDM - a.smPDM/n + pdm
		a.smMDM = a.smMDM - a.smMDM/n + mdm
	}

	dx := 0.0
	if a.smTR > 0 {
		pdi := 100.0 * a.smPDM / a.smTR
		mdi := 100.0 * a.smMDM / a.smTR
		if pdi+mdi > 0 {
			dx = 100.0 * math.Abs(pdi-mdi) / (pdi + mdi)
		}
	}

	if a.dxCount < a.period {
		// Seed the first ADX with a simple average of DX
		a.dxCount++
		a.dxSum += dx
		if a.dxCount == a.period {
			a.current = a.dxSum / n
		}
		return
	}

	a.current = (a.current*(n-1) + dx) / n
}

func (a *ADX) Value() float64 { return a.current }
func (a *ADX) Ready() bool    { return a.dxCount >= a.period }
