package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceBar represents a single OHLCV candlestick bar.
type PriceBar struct {
	OpenTime time.Time
	Open     decimal.Decimal
	High     decimal.Decimal
	Low      decimal.Decimal
	Close    decimal.Decimal
	Volume   decimal.Decimal
}
