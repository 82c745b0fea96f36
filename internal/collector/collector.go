package collector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"CryptoSentinel/internal/model"
)

// Provider names accepted by New.
const (
	ProviderCoinGecko = "coingecko"
	ProviderBinance   = "binance"
	ProviderMock      = "mock"
)

// Options selects and configures a market data provider.
type Options struct {
	Provider  string
	Binance   BinanceOptions
	CoinGecko CoinGeckoOptions
	Proxy     string
}

// New returns the fetcher for opts.Provider. An empty provider means CoinGecko,
// which is not geo-blocked.
func New(opts Options) (Fetcher, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Provider)) {
	case "", ProviderCoinGecko:
		cg := opts.CoinGecko
		if cg.Proxy == "" {
			cg.Proxy = opts.Proxy
		}
		return NewCoinGeckoFetcher(cg), nil
	case ProviderBinance:
		bn := opts.Binance
		if bn.Proxy == "" {
			bn.Proxy = opts.Proxy
		}
		return NewBinanceFetcher(bn), nil
	case ProviderMock:
		return &MockFetcher{Price: 100}, nil
	default:
		return nil, fmt.Errorf("unknown market data provider %q", opts.Provider)
	}
}

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	Price  float64
	Bars   map[string][]model.PriceBar
	Errors map[string]error
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchKlines(_ context.Context, symbol, _ string, limit int) ([]model.PriceBar, error) {
	if err, ok := m.Errors[symbol]; ok {
		return nil, err
	}
	if bars, ok := m.Bars[symbol]; ok {
		return bars, nil
	}
	return generateMockBars(m.Price, limit), nil
}

func generateMockBars(basePrice float64, count int) []model.PriceBar {
	bars := make([]model.PriceBar, count)
	start := time.Now().UTC().Truncate(time.Hour).Add(-time.Duration(count) * time.Hour)
	for i := 0; i < count; i++ {
		p := decimal.NewFromFloat(basePrice * (1 + float64(i-count/2)*0.001)).Round(8)
		bars[i] = model.PriceBar{
			OpenTime: start.Add(time.Duration(i) * time.Hour),
			Open:     p.Mul(decimal.RequireFromString("0.999")),
			High:     p.Mul(decimal.RequireFromString("1.005")),
			Low:      p.Mul(decimal.RequireFromString("0.995")),
			Close:    p,
			Volume:   decimal.NewFromInt(1000000),
		}
	}
	return bars
}
