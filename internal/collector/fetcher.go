package collector

import (
	"context"

	"CryptoSentinel/internal/model"
)

// Fetcher defines the interface for fetching market data.
type Fetcher interface {
	// FetchKlines returns up to limit bars for symbol at the given interval, oldest first.
	FetchKlines(ctx context.Context, symbol, interval string, limit int) ([]model.PriceBar, error)
	Name() string
}
