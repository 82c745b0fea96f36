package model

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// ErrInvalidConfig is returned when a RuleConfig fails validation.
var ErrInvalidConfig = errors.New("invalid rule config")

var hundred = decimal.NewFromInt(100)

// RuleConfig holds the thresholds a symbol is evaluated against.
type RuleConfig struct {
	Symbols          []string
	Timeframe        string
	RSIPeriod        int
	BuyRSIThreshold  decimal.Decimal
	SellRSIThreshold decimal.Decimal
	DCADropPercent   decimal.Decimal
}

// DefaultRuleConfig returns the rule set used when nothing is configured.
func DefaultRuleConfig() RuleConfig {
	return RuleConfig{
		Symbols:          []string{"BTCUSDT"},
		Timeframe:        "1h",
		RSIPeriod:        14,
		BuyRSIThreshold:  decimal.NewFromInt(30),
		SellRSIThreshold: decimal.NewFromInt(70),
		DCADropPercent:   decimal.RequireFromString("3.0"),
	}
}

// Validate checks the invariants of the rule set.
func (r RuleConfig) Validate() error {
	if len(r.Symbols) == 0 {
		return errors.Wrap(ErrInvalidConfig, "at least one symbol is required")
	}
	for i, s := range r.Symbols {
		if s == "" {
			return errors.Wrapf(ErrInvalidConfig, "symbol #%d is empty", i)
		}
	}
	if r.Timeframe == "" {
		return errors.Wrap(ErrInvalidConfig, "timeframe is required")
	}
	if r.RSIPeriod < 1 {
		return errors.Wrapf(ErrInvalidConfig, "rsi period must be >= 1, got %d", r.RSIPeriod)
	}
	if !inPercentRange(r.BuyRSIThreshold) {
		return errors.Wrapf(ErrInvalidConfig, "buy rsi threshold %s outside [0,100]", r.BuyRSIThreshold)
	}
	if !inPercentRange(r.SellRSIThreshold) {
		return errors.Wrapf(ErrInvalidConfig, "sell rsi threshold %s outside [0,100]", r.SellRSIThreshold)
	}
	if r.DCADropPercent.IsNegative() {
		return errors.Wrapf(ErrInvalidConfig, "dca drop percent must be >= 0, got %s", r.DCADropPercent)
	}
	return nil
}

// ThresholdsOverlap reports whether an RSI value can satisfy both the buy and
// the sell threshold. Buy wins in that case.
func (r RuleConfig) ThresholdsOverlap() bool {
	return r.BuyRSIThreshold.GreaterThanOrEqual(r.SellRSIThreshold)
}

// MultiSymbol reports whether the rule set covers more than one symbol.
func (r RuleConfig) MultiSymbol() bool {
	return len(r.Symbols) > 1
}

func inPercentRange(d decimal.Decimal) bool {
	return !d.IsNegative() && d.LessThanOrEqual(hundred)
}
