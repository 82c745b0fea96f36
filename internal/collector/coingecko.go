package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"CryptoSentinel/internal/model"
	"CryptoSentinel/internal/platform/httpclient"
)

// DefaultCoinGeckoBaseURL is the public CoinGecko API endpoint.
const DefaultCoinGeckoBaseURL = "https://api.coingecko.com"

// CoinGeckoOptions configures the CoinGecko fetcher. The demo API key is optional.
type CoinGeckoOptions struct {
	BaseURL string
	APIKey  string
	Proxy   string
}

// CoinGeckoFetcher implements Fetcher using the CoinGecko OHLC endpoint.
// CoinGecko has no per-interval candles on the free plan, so the interval only
// decides how many days of history are requested.
type CoinGeckoFetcher struct {
	BaseURL string
	APIKey  string
	Client  *httpclient.Client
	CoinIDs map[string]string // maps base asset ticker to CoinGecko coin id
}

// NewCoinGeckoFetcher creates a new CoinGecko fetcher.
func NewCoinGeckoFetcher(opts CoinGeckoOptions) *CoinGeckoFetcher {
	base := DefaultCoinGeckoBaseURL
	if opts.BaseURL != "" {
		base = strings.TrimRight(opts.BaseURL, "/")
	}
	return &CoinGeckoFetcher{
		BaseURL: base,
		APIKey:  opts.APIKey,
		Client:  httpclient.New(httpclient.Options{Proxy: opts.Proxy, RequestsPerSec: 1}),
		CoinIDs: map[string]string{
			"btc":   "bitcoin",
			"eth":   "ethereum",
			"bnb":   "binancecoin",
			"sol":   "solana",
			"ada":   "cardano",
			"xrp":   "ripple",
			"dot":   "polkadot",
			"doge":  "dogecoin",
			"matic": "matic-network",
			"avax":  "avalanche-2",
			"link":  "chainlink",
			"ltc":   "litecoin",
			"bch":   "bitcoin-cash",
			"xlm":   "stellar",
			"atom":  "cosmos",
			"algo":  "algorand",
			"vet":   "vechain",
			"icp":   "internet-computer",
			"fil":   "filecoin",
			"trx":   "tron",
			"etc":   "ethereum-classic",
			"xmr":   "monero",
			"eos":   "eos",
			"aave":  "aave",
			"uni":   "uniswap",
			"cake":  "pancakeswap-token",
		},
	}
}

func (f *CoinGeckoFetcher) Name() string { return "coingecko" }

var quoteSuffixes = []string{"USDT", "USDC", "BUSD", "USD"}

// CoinID maps an exchange symbol such as BTCUSDT to a CoinGecko coin id.
// Unknown tickers are passed through lower-cased.
func (f *CoinGeckoFetcher) CoinID(symbol string) string {
	base := strings.ToUpper(strings.TrimSpace(symbol))
	for _, q := range quoteSuffixes {
		if len(base) > len(q) && strings.HasSuffix(base, q) {
			base = strings.TrimSuffix(base, q)
			break
		}
	}
	base = strings.ToLower(base)
	if id, ok := f.CoinIDs[base]; ok {
		return id
	}
	return base
}

var intervalPattern = regexp.MustCompile(`^(\d+)([mhdwMy])$`)

// DaysForInterval returns the `days` query value needed to cover limit bars of interval.
func DaysForInterval(interval string, limit int) int {
	m := intervalPattern.FindStringSubmatch(interval)
	if m == nil {
		return max(30, limit)
	}

	var days int
	switch strings.ToLower(m[2]) {
	case "h":
		days = max(limit/24+1, 30)
	case "w":
		days = max(limit*7, 30)
	default:
		days = max(limit, 30)
	}
	// free plan serves at most 90 days of OHLC
	return min(max(days, 30), 90)
}

// FetchKlines fetches OHLC data: GET /api/v3/coins/{id}/ohlc?vs_currency=usd&days={days}.
// The response is [[timestamp_ms, open, high, low, close], ...]; volume is not provided.
func (f *CoinGeckoFetcher) FetchKlines(ctx context.Context, symbol, interval string, limit int) ([]model.PriceBar, error) {
	coinID := f.CoinID(symbol)
	endpoint := fmt.Sprintf("%s/api/v3/coins/%s/ohlc?vs_currency=usd&days=%s",
		f.BaseURL, url.PathEscape(coinID), strconv.Itoa(DaysForInterval(interval, limit)))

	header := http.Header{"Accept": {"application/json"}}
	if f.APIKey != "" {
		header.Set("x-cg-demo-api-key", f.APIKey)
	}

	body, err := f.Client.Get(ctx, endpoint, header)
	if err != nil {
		return nil, errors.Wrapf(err, "coingecko ohlc for %s (%s)", symbol, coinID)
	}

	bars, err := parseOHLC(body)
	if err != nil {
		return nil, errors.Wrapf(err, "coingecko ohlc for %s", symbol)
	}
	if limit > 0 && len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	return bars, nil
}

func parseOHLC(body []byte) ([]model.PriceBar, error) {
	var rows [][]json.Number
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, errors.Wrap(err, "decode")
	}

	bars := make([]model.PriceBar, 0, len(rows))
	for i, row := range rows {
		if len(row) < 5 {
			return nil, errors.Errorf("row %d: expected 5 fields, got %d", i, len(row))
		}
		ts, err := row[0].Int64()
		if err != nil {
			return nil, errors.Wrapf(err, "row %d: timestamp", i)
		}
		var values [4]decimal.Decimal
		for j := range values {
			d, err := decimal.NewFromString(row[j+1].String())
			if err != nil {
				return nil, errors.Wrapf(err, "row %d: field %d", i, j+1)
			}
			values[j] = d
		}
		bars = append(bars, model.PriceBar{
			OpenTime: time.UnixMilli(ts).UTC(),
			Open:     values[0],
			High:     values[1],
			Low:      values[2],
			Close:    values[3],
			Volume:   decimal.Zero,
		})
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].OpenTime.Before(bars[j].OpenTime) })
	return bars, nil
}
