package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRuleConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*RuleConfig)
		wantErr bool
	}{
		{"defaults", func(*RuleConfig) {}, false},
		{"no symbols", func(r *RuleConfig) { r.Symbols = nil }, true},
		{"blank symbol", func(r *RuleConfig) { r.Symbols = []string{"BTCUSDT", ""} }, true},
		{"no timeframe", func(r *RuleConfig) { r.Timeframe = "" }, true},
		{"zero period", func(r *RuleConfig) { r.RSIPeriod = 0 }, true},
		{"negative period", func(r *RuleConfig) { r.RSIPeriod = -5 }, true},
		{"period one", func(r *RuleConfig) { r.RSIPeriod = 1 }, false},
		{"buy above 100", func(r *RuleConfig) { r.BuyRSIThreshold = decimal.NewFromInt(101) }, true},
		{"sell below 0", func(r *RuleConfig) { r.SellRSIThreshold = decimal.NewFromInt(-1) }, true},
		{"bounds inclusive", func(r *RuleConfig) {
			r.BuyRSIThreshold = decimal.Zero
			r.SellRSIThreshold = decimal.NewFromInt(100)
		}, false},
		{"negative drop", func(r *RuleConfig) { r.DCADropPercent = decimal.NewFromFloat(-0.5) }, true},
		{"zero drop", func(r *RuleConfig) { r.DCADropPercent = decimal.Zero }, false},
		{"overlapping thresholds allowed", func(r *RuleConfig) {
			r.BuyRSIThreshold = decimal.NewFromInt(80)
			r.SellRSIThreshold = decimal.NewFromInt(20)
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultRuleConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRuleConfig_Helpers(t *testing.T) {
	cfg := DefaultRuleConfig()
	assert.False(t, cfg.ThresholdsOverlap())
	assert.False(t, cfg.MultiSymbol())

	cfg.Symbols = append(cfg.Symbols, "ETHUSDT")
	cfg.BuyRSIThreshold = cfg.SellRSIThreshold
	assert.True(t, cfg.ThresholdsOverlap())
	assert.True(t, cfg.MultiSymbol())
}
