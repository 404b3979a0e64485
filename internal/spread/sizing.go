package spread

import "spread-systemv1/internal/model"

// Contracts returns how many spreads to trade so that one position
// consumes at most allocFraction of account equity. Returns 0 when the
// allocation cannot cover a single spread's margin.
func Contracts(accountValue int64, allocFraction float64, c *model.SpreadCandidate) int64 {
	margin := c.MarginPerSpread()
	if margin <= 0 {
		return 0
	}
	budget := int64(float64(accountValue) * allocFraction)
	return budget / margin
}
