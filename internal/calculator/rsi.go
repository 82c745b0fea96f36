package calculator

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrInvalidPeriod is returned when an indicator lookback is not positive.
var ErrInvalidPeriod = errors.New("period must be positive")

var (
	neutralRSI = decimal.NewFromInt(50)
	maxRSI     = decimal.NewFromInt(100)
)

// RSI computes the Wilder-smoothed relative strength index over closes (oldest first).
// Requires at least period+1 closes. Returns 50 if data is insufficient.
// The result is rounded to 2 places, half away from zero.
func RSI(closes []decimal.Decimal, period int) (decimal.Decimal, error) {
	if period <= 0 {
		return decimal.Zero, ErrInvalidPeriod
	}
	if len(closes) < period+1 {
		return neutralRSI, nil
	}

	n := decimal.NewFromInt(int64(period))
	keep := decimal.NewFromInt(int64(period - 1))

	// Seed with the plain average of the first `period` changes
	gain, loss := decimal.Zero, decimal.Zero
	for i := 1; i <= period; i++ {
		change := closes[i].Sub(closes[i-1])
		if change.IsNegative() {
			loss = loss.Sub(change)
		} else {
			gain = gain.Add(change)
		}
	}
	avgGain := gain.Div(n)
	avgLoss := loss.Div(n)

	for i := period + 1; i < len(closes); i++ {
		change := closes[i].Sub(closes[i-1])
		g, l := decimal.Zero, decimal.Zero
		if change.IsPositive() {
			g = change
		} else {
			l = change.Neg()
		}
		avgGain = avgGain.Mul(keep).Add(g).Div(n)
		avgLoss = avgLoss.Mul(keep).Add(l).Div(n)
	}

	if avgLoss.IsZero() {
		return maxRSI, nil
	}
	rs := avgGain.Div(avgLoss)
	rsi := maxRSI.Sub(maxRSI.Div(decimal.NewFromInt(1).Add(rs)))
	return rsi.Round(2), nil
}
