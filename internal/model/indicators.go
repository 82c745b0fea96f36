package model

import "github.com/shopspring/decimal"

// Indicators holds the values a decision was derived from.
type Indicators struct {
	LastPrice   decimal.Decimal
	RSI         decimal.Decimal
	RSIPeriod   int
	RecentHigh  decimal.Decimal
	DropPercent decimal.Decimal // negative when LastPrice is below RecentHigh
}
