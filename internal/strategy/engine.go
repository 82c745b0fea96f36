package strategy

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"CryptoSentinel/internal/calculator"
	"CryptoSentinel/internal/model"
)

// RecentHighWindow is the number of most recent closes scanned for the recent high.
const RecentHighWindow = 48

var (
	// ErrEmptyHistory is returned when Evaluate is called without price bars.
	ErrEmptyHistory = errors.New("empty price history")
	// ErrInvalidConfig is returned when the rule set cannot be evaluated.
	ErrInvalidConfig = errors.New("invalid rule config")
)

// Evaluate computes the alert decision for one symbol from its price history (oldest first).
func Evaluate(symbol string, history []model.PriceBar, cfg model.RuleConfig) (model.AlertDecision, error) {
	if len(history) == 0 {
		return model.AlertDecision{}, errors.Wrapf(ErrEmptyHistory, "evaluate %s", symbol)
	}
	if cfg.RSIPeriod < 1 {
		return model.AlertDecision{}, errors.Wrapf(ErrInvalidConfig, "rsi period %d", cfg.RSIPeriod)
	}

	ind, err := computeIndicators(calculator.Closes(history), cfg.RSIPeriod)
	if err != nil {
		return model.AlertDecision{}, errors.Wrapf(err, "evaluate %s", symbol)
	}

	action := decide(ind, cfg)
	title, message := describe(symbol, action, ind)
	return model.AlertDecision{
		Action:     action,
		Symbol:     symbol,
		Title:      title,
		Message:    message,
		Indicators: ind,
	}, nil
}

func computeIndicators(closes []decimal.Decimal, period int) (model.Indicators, error) {
	rsi, err := calculator.RSI(closes, period)
	if err != nil {
		return model.Indicators{}, errors.Wrap(ErrInvalidConfig, err.Error())
	}
	high, err := calculator.RecentHigh(closes, RecentHighWindow)
	if err != nil {
		return model.Indicators{}, errors.Wrap(ErrEmptyHistory, err.Error())
	}
	last := closes[len(closes)-1]
	return model.Indicators{
		LastPrice:   last,
		RSI:         rsi,
		RSIPeriod:   period,
		RecentHigh:  high,
		DropPercent: calculator.PercentChange(high, last),
	}, nil
}

// decide applies the rule set; the first matching rule wins, buy before sell.
func decide(ind model.Indicators, cfg model.RuleConfig) model.AlertAction {
	dropAbs := ind.DropPercent.Abs()
	switch {
	case ind.RSI.LessThanOrEqual(cfg.BuyRSIThreshold),
		ind.DropPercent.IsNegative() && dropAbs.GreaterThanOrEqual(cfg.DCADropPercent):
		return model.ActionConsiderBuy
	case ind.RSI.GreaterThanOrEqual(cfg.SellRSIThreshold):
		return model.ActionConsiderSell
	default:
		return model.ActionHold
	}
}
