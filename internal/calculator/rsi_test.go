package calculator

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decs(values ...float64) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		out[i] = decimal.NewFromFloat(v)
	}
	return out
}

func TestRSI_InsufficientDataIsNeutral(t *testing.T) {
	for period := 1; period <= 20; period++ {
		closes := make([]decimal.Decimal, period)
		for i := range closes {
			closes[i] = decimal.NewFromInt(int64(100 + i))
		}
		rsi, err := RSI(closes, period)
		require.NoError(t, err)
		assert.True(t, rsi.Equal(decimal.NewFromInt(50)), "period %d: got %s", period, rsi)
	}

	rsi, err := RSI(nil, 14)
	require.NoError(t, err)
	assert.Equal(t, "50", rsi.String())
}

func TestRSI_InvalidPeriod(t *testing.T) {
	for _, period := range []int{0, -1, -14} {
		_, err := RSI(decs(1, 2, 3), period)
		assert.ErrorIs(t, err, ErrInvalidPeriod)
	}
}

func TestRSI_NoLossesIsHundred(t *testing.T) {
	tests := []struct {
		name   string
		closes []decimal.Decimal
		period int
	}{
		{"rising", decs(1, 2, 3, 4, 5, 6, 7, 8), 3},
		{"flat", decs(42, 42, 42, 42, 42, 42), 2},
		{"rising with plateaus", decs(10, 10, 11, 11, 12, 15, 15, 20), 4},
		{"exactly period+1", decs(5, 6), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rsi, err := RSI(tt.closes, tt.period)
			require.NoError(t, err)
			assert.Equal(t, "100", rsi.String())
		})
	}
}

func TestRSI_KnownValues(t *testing.T) {
	tests := []struct {
		name     string
		closes   []decimal.Decimal
		period   int
		expected string
	}{
		// seed gain 1 loss 0.5, then +1: avgGain 0.75, avgLoss 0.125, rs 6
		{"smoothed", decs(10, 11, 10.5, 11.5), 2, "85.71"},
		{"balanced", decs(10, 11, 10), 2, "50"},
		// period 1 keeps only the last change
		{"last change down", decs(1, 2, 1), 1, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rsi, err := RSI(tt.closes, tt.period)
			require.NoError(t, err)
			assert.True(t, rsi.Equal(decimal.RequireFromString(tt.expected)), "got %s", rsi)
		})
	}
}

func TestRSI_Bounded(t *testing.T) {
	closes := make([]decimal.Decimal, 200)
	for i := range closes {
		v := 100 + 15*math.Sin(float64(i)/7) + 4*math.Cos(float64(i)/2.3)
		closes[i] = decimal.NewFromFloat(v).Round(4)
	}
	for _, period := range []int{1, 2, 5, 14, 50, 199} {
		rsi, err := RSI(closes, period)
		require.NoError(t, err)
		assert.False(t, rsi.IsNegative(), "period %d: %s", period, rsi)
		assert.True(t, rsi.LessThanOrEqual(decimal.NewFromInt(100)), "period %d: %s", period, rsi)
		assert.LessOrEqual(t, int(-rsi.Exponent()), 2, "period %d: %s not rounded", period, rsi)
	}
}

func TestRSI_FallingSeriesIsZero(t *testing.T) {
	rsi, err := RSI(decs(10, 9, 8, 7, 6, 5), 3)
	require.NoError(t, err)
	assert.True(t, rsi.IsZero(), "got %s", rsi)
}
