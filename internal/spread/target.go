package spread

import "math"

// TargetDebit returns the buy-to-close limit for a credit spread that
// keeps the configured fraction of the entry credit. Rounded to the
// nearest cent, never below the minimum tick.
func TargetDebit(credit int64, keepFraction float64) int64 {
	d := int64(math.Round(float64(credit) * (1 - keepFraction)))
	if d < 1 {
		d = 1
	}
	return d
}

// TargetCredit returns the sell-to-close limit for a debit spread that
// captures the configured fraction of the remaining move to max value
// (the width). Rounded to the nearest cent.
func TargetCredit(debit, width int64, captureFraction float64) int64 {
	return int64(math.Round(float64(debit) + float64(width-debit)*captureFraction))
}
