package strategy

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CryptoSentinel/internal/model"
)

func barsFrom(closes ...float64) []model.PriceBar {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]model.PriceBar, len(closes))
	for i, c := range closes {
		p := decimal.NewFromFloat(c)
		bars[i] = model.PriceBar{
			OpenTime: start.Add(time.Duration(i) * time.Hour),
			Open:     p,
			High:     p,
			Low:      p,
			Close:    p,
			Volume:   decimal.NewFromInt(1),
		}
	}
	return bars
}

func rules() model.RuleConfig {
	return model.DefaultRuleConfig()
}

func ind(rsi, drop float64) model.Indicators {
	return model.Indicators{
		LastPrice:   decimal.NewFromInt(100),
		RSI:         decimal.NewFromFloat(rsi),
		RSIPeriod:   14,
		RecentHigh:  decimal.NewFromInt(100),
		DropPercent: decimal.NewFromFloat(drop),
	}
}

func TestDecide_Precedence(t *testing.T) {
	tests := []struct {
		name     string
		rsi      float64
		drop     float64
		buy      int64
		sell     int64
		dca      float64
		expected model.AlertAction
	}{
		{"rsi below buy threshold", 25, 0, 30, 70, 3, model.ActionConsiderBuy},
		{"rsi below buy threshold with drawdown", 25, -10, 30, 70, 3, model.ActionConsiderBuy},
		{"rsi equal to buy threshold", 30, 0, 30, 70, 3, model.ActionConsiderBuy},
		{"drawdown trigger independent of rsi", 50, -5, 30, 70, 3, model.ActionConsiderBuy},
		{"drawdown exactly at trigger", 50, -3, 30, 70, 3, model.ActionConsiderBuy},
		{"drawdown below trigger", 50, -2.99, 30, 70, 3, model.ActionHold},
		{"no drawdown with zero trigger", 50, 0, 30, 70, 0, model.ActionHold},
		{"rsi above sell threshold", 75, 0, 30, 70, 3, model.ActionConsiderSell},
		{"rsi equal to sell threshold", 70, 0, 30, 70, 3, model.ActionConsiderSell},
		{"drawdown beats sell", 75, -4, 30, 70, 3, model.ActionConsiderBuy},
		{"overlapping thresholds prefer buy", 75, 0, 80, 70, 3, model.ActionConsiderBuy},
		{"neutral", 50, 0, 30, 70, 3, model.ActionHold},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := rules()
			cfg.BuyRSIThreshold = decimal.NewFromInt(tt.buy)
			cfg.SellRSIThreshold = decimal.NewFromInt(tt.sell)
			cfg.DCADropPercent = decimal.NewFromFloat(tt.dca)
			assert.Equal(t, tt.expected, decide(ind(tt.rsi, tt.drop), cfg))
		})
	}
}

func TestEvaluate_EmptyHistory(t *testing.T) {
	_, err := Evaluate("BTCUSDT", nil, rules())
	assert.ErrorIs(t, err, ErrEmptyHistory)
}

func TestEvaluate_InvalidPeriod(t *testing.T) {
	for _, period := range []int{0, -3} {
		cfg := rules()
		cfg.RSIPeriod = period
		_, err := Evaluate("BTCUSDT", barsFrom(1, 2, 3), cfg)
		assert.ErrorIs(t, err, ErrInvalidConfig, "period %d", period)
	}
}

func TestEvaluate_DrawdownBuy(t *testing.T) {
	// fewer than period+1 bars: RSI stays neutral, only the drawdown rule can fire
	d, err := Evaluate("BTCUSDT", barsFrom(100, 104, 110, 106, 104), rules())
	require.NoError(t, err)

	assert.Equal(t, model.ActionConsiderBuy, d.Action)
	assert.Equal(t, "BTCUSDT", d.Symbol)
	assert.Equal(t, "BUY ALERT BTCUSDT", d.Title)
	assert.Equal(t, "Price: 104 | RSI(14): 50 | Drop from recent high: -5.45% (High 110)", d.Message)
	assert.Equal(t, "110", d.Indicators.RecentHigh.String())
	assert.Equal(t, "50", d.Indicators.RSI.String())
}

func TestEvaluate_Hold(t *testing.T) {
	d, err := Evaluate("ETHUSDT", barsFrom(100, 101, 100.5), rules())
	require.NoError(t, err)

	assert.Equal(t, model.ActionHold, d.Action)
	assert.Equal(t, "OK ETHUSDT", d.Title)
	assert.Equal(t, "Price: 100.5 | RSI(14): 50 | Recent high: 101", d.Message)
}

func TestEvaluate_Sell(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	d, err := Evaluate("SOLUSDT", barsFrom(closes...), rules())
	require.NoError(t, err)

	assert.Equal(t, model.ActionConsiderSell, d.Action)
	assert.Equal(t, "SELL ALERT SOLUSDT", d.Title)
	assert.Equal(t, "Price: 129 | RSI(14): 100 | (Notice: signal only, no order executed)", d.Message)
}

func TestEvaluate_FlatSeriesIsOverbought(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 42
	}
	d, err := Evaluate("FLAT", barsFrom(closes...), rules())
	require.NoError(t, err)
	assert.Equal(t, "100", d.Indicators.RSI.String())
	assert.True(t, d.Indicators.DropPercent.IsZero())
	assert.Equal(t, model.ActionConsiderSell, d.Action)
}

func TestEvaluate_RecentHighWindow(t *testing.T) {
	closes := make([]float64, RecentHighWindow+12)
	closes[0] = 1000
	for i := 1; i < len(closes); i++ {
		closes[i] = 100
	}
	d, err := Evaluate("BTCUSDT", barsFrom(closes...), rules())
	require.NoError(t, err)

	assert.Equal(t, "100", d.Indicators.RecentHigh.String(), "bars older than the window must be ignored")
	assert.True(t, d.Indicators.DropPercent.IsZero())
}

func TestEvaluate_SingleBar(t *testing.T) {
	d, err := Evaluate("BTCUSDT", barsFrom(250), rules())
	require.NoError(t, err)
	assert.Equal(t, model.ActionHold, d.Action)
	assert.Equal(t, "250", d.Indicators.RecentHigh.String())
}
