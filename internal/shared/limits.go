package shared

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// MaxCount is the largest quantity or stock level the INTEGER columns hold.
const MaxCount = math.MaxInt32

// MaxAmount is the largest value a NUMERIC(14,2) column holds.
var MaxAmount = decimal.RequireFromString("999999999999.99")

// MoneyProblem describes why d is not a storable amount, or returns "".
func MoneyProblem(d decimal.Decimal) string {
	switch {
	case d.IsNegative():
		return "must not be negative"
	case !d.Equal(d.Round(2)):
		return "must have at most 2 decimal places"
	case d.GreaterThan(MaxAmount):
		return "must be at most " + MaxAmount.StringFixed(2)
	}
	return ""
}

// CountProblem describes why n is not a storable count of at least floor,
// or returns "".
func CountProblem(n, floor int64) string {
	switch {
	case n < 0 && floor == 0:
		return "must not be negative"
	case n < floor:
		return fmt.Sprintf("must be at least %d", floor)
	case n > MaxCount:
		return fmt.Sprintf("must be at most %d", MaxCount)
	}
	return ""
}
