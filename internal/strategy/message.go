package strategy

import (
	"fmt"

	"CryptoSentinel/internal/model"
)

// describe renders the title and message of a decision from its indicator values.
func describe(symbol string, action model.AlertAction, ind model.Indicators) (title, message string) {
	head := fmt.Sprintf("Price: %s | RSI(%d): %s", ind.LastPrice, ind.RSIPeriod, ind.RSI)
	switch action {
	case model.ActionConsiderBuy:
		return "BUY ALERT " + symbol,
			fmt.Sprintf("%s | Drop from recent high: %s%% (High %s)", head, ind.DropPercent.StringFixed(2), ind.RecentHigh)
	case model.ActionConsiderSell:
		return "SELL ALERT " + symbol,
			head + " | (Notice: signal only, no order executed)"
	default:
		return "OK " + symbol,
			fmt.Sprintf("%s | Recent high: %s", head, ind.RecentHigh)
	}
}

// FailureDecision builds the Info decision reported for a symbol that could not be evaluated.
func FailureDecision(symbol string, err error) model.AlertDecision {
	return model.AlertDecision{
		Action:  model.ActionInfo,
		Symbol:  symbol,
		Title:   "ERROR " + symbol,
		Message: err.Error(),
	}
}
