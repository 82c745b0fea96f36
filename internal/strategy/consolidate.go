package strategy

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"CryptoSentinel/internal/model"
)

const (
	// DefaultHistoryLimit is the number of bars requested per symbol.
	DefaultHistoryLimit = 200
	// DefaultConcurrency bounds the number of symbols fetched at once.
	DefaultConcurrency = 4
)

// HistoryFetcher supplies the price history of a symbol, oldest bar first.
type HistoryFetcher interface {
	FetchKlines(ctx context.Context, symbol, interval string, limit int) ([]model.PriceBar, error)
}

// HistoryFetcherFunc adapts a function to HistoryFetcher.
type HistoryFetcherFunc func(ctx context.Context, symbol, interval string, limit int) ([]model.PriceBar, error)

func (f HistoryFetcherFunc) FetchKlines(ctx context.Context, symbol, interval string, limit int) ([]model.PriceBar, error) {
	return f(ctx, symbol, interval, limit)
}

type options struct {
	concurrency  int
	historyLimit int
	now          func() time.Time
	logger       *zap.Logger
}

// Option configures EvaluateAll and Engine.
type Option func(*options)

// WithConcurrency sets how many symbols are processed at once. 1 means sequential.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithHistoryLimit sets the number of bars requested per symbol.
func WithHistoryLimit(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.historyLimit = n
		}
	}
}

// WithClock overrides the timestamp source for AnalyzedAt.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger logs per-symbol outcomes.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func newOptions(opts []Option) options {
	o := options{
		concurrency:  DefaultConcurrency,
		historyLimit: DefaultHistoryLimit,
		now:          func() time.Time { return time.Now().UTC() },
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// outcome is the per-symbol result: exactly one of decision or err is meaningful.
type outcome struct {
	decision model.AlertDecision
	err      error
}

// EvaluateAll fetches and evaluates every symbol, isolating failures per symbol.
// Results keep the order of symbols; failed symbols get an Info decision.
func EvaluateAll(ctx context.Context, symbols []string, fetcher HistoryFetcher, cfg model.RuleConfig, opts ...Option) model.ConsolidatedAlertResult {
	o := newOptions(opts)

	results := make([]model.MarketAnalysisResult, len(symbols))
	g := new(errgroup.Group)
	g.SetLimit(o.concurrency)

	for i, symbol := range symbols {
		i, symbol := i, symbol
		g.Go(func() error {
			out := evaluateSymbol(ctx, symbol, fetcher, cfg, o.historyLimit)
			res := model.MarketAnalysisResult{Symbol: symbol, AnalyzedAt: o.now()}
			if out.err != nil {
				o.logger.Warn("symbol evaluation failed", zap.String("symbol", symbol), zap.Error(out.err))
				res.Decision = FailureDecision(symbol, out.err)
				res.Err = out.err
			} else {
				o.logger.Debug("symbol evaluated", zap.String("symbol", symbol), zap.Stringer("action", out.decision.Action))
				res.Decision = out.decision
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait() // units never fail

	return model.NewConsolidatedAlertResult(results)
}

func evaluateSymbol(ctx context.Context, symbol string, fetcher HistoryFetcher, cfg model.RuleConfig, limit int) outcome {
	if err := ctx.Err(); err != nil {
		return outcome{err: errors.Wrapf(err, "fetch %s", symbol)}
	}
	bars, err := fetcher.FetchKlines(ctx, symbol, cfg.Timeframe, limit)
	if err != nil {
		return outcome{err: errors.Wrapf(err, "fetch %s", symbol)}
	}
	decision, err := Evaluate(symbol, bars, cfg)
	if err != nil {
		return outcome{err: err}
	}
	return outcome{decision: decision}
}

// Engine binds a price source and a rule set.
type Engine struct {
	fetcher HistoryFetcher
	rules   model.RuleConfig
	opts    []Option
}

// NewEngine creates an Engine.
func NewEngine(fetcher HistoryFetcher, rules model.RuleConfig, opts ...Option) *Engine {
	return &Engine{fetcher: fetcher, rules: rules, opts: opts}
}

// Rules returns the rule set the engine evaluates against.
func (e *Engine) Rules() model.RuleConfig { return e.rules }

// Analyze fetches and evaluates a single symbol. Fetch failures are returned to the caller.
func (e *Engine) Analyze(ctx context.Context, symbol string) (model.AlertDecision, error) {
	o := newOptions(e.opts)
	bars, err := e.fetcher.FetchKlines(ctx, symbol, e.rules.Timeframe, o.historyLimit)
	if err != nil {
		return model.AlertDecision{}, errors.Wrapf(err, "fetch %s", symbol)
	}
	return Evaluate(symbol, bars, e.rules)
}

// AnalyzeAll evaluates every configured symbol.
func (e *Engine) AnalyzeAll(ctx context.Context) model.ConsolidatedAlertResult {
	return EvaluateAll(ctx, e.rules.Symbols, e.fetcher, e.rules, e.opts...)
}
