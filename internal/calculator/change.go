package calculator

import (
	"errors"

	"github.com/shopspring/decimal"

	"CryptoSentinel/internal/model"
)

// ErrNoData is returned when a calculation needs at least one value.
var ErrNoData = errors.New("no data provided")

var hundred = decimal.NewFromInt(100)

// PercentChange returns the change from `from` to `to` in percent.
// Negative means `to` is below `from`. Returns 0 when from is zero.
func PercentChange(from, to decimal.Decimal) decimal.Decimal {
	if from.IsZero() {
		return decimal.Zero
	}
	return to.Sub(from).Div(from).Mul(hundred)
}

// RecentHigh returns the highest of the most recent `window` closes.
func RecentHigh(closes []decimal.Decimal, window int) (decimal.Decimal, error) {
	if len(closes) == 0 || window <= 0 {
		return decimal.Zero, ErrNoData
	}
	start := len(closes) - window
	if start < 0 {
		start = 0
	}
	return decimal.Max(closes[start], closes[start+1:]...), nil
}

// Closes extracts closing prices, oldest first.
func Closes(bars []model.PriceBar) []decimal.Decimal {
	closes := make([]decimal.Decimal, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}
