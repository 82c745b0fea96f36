package collector

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"CryptoSentinel/internal/model"
	"CryptoSentinel/internal/platform/httpclient"
)

// DefaultBinanceBaseURL is the public Binance REST endpoint.
const DefaultBinanceBaseURL = "https://api.binance.com"

// BinanceOptions configures the Binance fetcher. Keys are optional for public klines.
type BinanceOptions struct {
	BaseURL   string
	APIKey    string
	SecretKey string
	Proxy     string
}

// BinanceFetcher implements Fetcher using the Binance klines endpoint.
type BinanceFetcher struct {
	client  *binance.Client
	limiter *rate.Limiter
}

// NewBinanceFetcher creates a new Binance fetcher with optional proxy support.
func NewBinanceFetcher(opts BinanceOptions) *BinanceFetcher {
	client := binance.NewClient(opts.APIKey, opts.SecretKey)
	client.BaseURL = DefaultBinanceBaseURL
	if opts.BaseURL != "" {
		client.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	client.HTTPClient = httpclient.New(httpclient.Options{Proxy: opts.Proxy}).HTTPClient
	return &BinanceFetcher{
		client:  client,
		limiter: rate.NewLimiter(rate.Every(100*time.Millisecond), 5),
	}
}

func (f *BinanceFetcher) Name() string { return "binance" }

// FetchKlines fetches kline data from Binance: GET /api/v3/klines?symbol=&interval=&limit=.
func (f *BinanceFetcher) FetchKlines(ctx context.Context, symbol, interval string, limit int) ([]model.PriceBar, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "binance rate limiter")
	}

	klines, err := f.client.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		if IsGeoBlocked(err) {
			return nil, errors.Wrapf(err, "binance klines for %s (HTTP 451: region blocked, use provider coingecko or an alternative base url such as https://api.binance.us)", symbol)
		}
		return nil, errors.Wrapf(err, "binance klines for %s", symbol)
	}

	bars := make([]model.PriceBar, len(klines))
	for i, k := range klines {
		bar, err := parseKline(k)
		if err != nil {
			return nil, errors.Wrapf(err, "binance kline %d for %s", i, symbol)
		}
		bars[i] = bar
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].OpenTime.Before(bars[j].OpenTime) })
	return bars, nil
}

func parseKline(k *binance.Kline) (model.PriceBar, error) {
	fields := [...]string{k.Open, k.High, k.Low, k.Close, k.Volume}
	var values [len(fields)]decimal.Decimal
	for i, s := range fields {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return model.PriceBar{}, errors.Wrapf(err, "parse %q", s)
		}
		values[i] = d
	}
	return model.PriceBar{
		OpenTime: time.UnixMilli(k.OpenTime).UTC(),
		Open:     values[0],
		High:     values[1],
		Low:      values[2],
		Close:    values[3],
		Volume:   values[4],
	}, nil
}

// geoBlockStatus matches a 451 status such as "HTTP 451", "status code: 451" or "code=451".
var geoBlockStatus = regexp.MustCompile(`(?i)\b(?:http|status(?: code)?|code)[\s:=]*451\b`)

// IsGeoBlocked reports whether err looks like Binance's HTTP 451 regional block.
func IsGeoBlocked(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return geoBlockStatus.MatchString(msg) ||
		strings.Contains(msg, "Unavailable For Legal Reasons") ||
		strings.Contains(msg, "restricted location")
}
