package scheduler

import (
	"context"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"CryptoSentinel/internal/collector"
	"CryptoSentinel/internal/config"
	"CryptoSentinel/internal/model"
	"CryptoSentinel/internal/notifier"
	"CryptoSentinel/internal/recorder"
	"CryptoSentinel/internal/strategy"
)

// Run sources recorded in the journal.
const (
	SourceCron    = "cron"
	SourceOnce    = "once"
	SourceCommand = "command"
)

// runTimeout bounds one scheduled analysis run.
const runTimeout = 2 * time.Minute

// Analyzer evaluates the configured symbols.
type Analyzer interface {
	Analyze(ctx context.Context, symbol string) (model.AlertDecision, error)
	AnalyzeAll(ctx context.Context) model.ConsolidatedAlertResult
	Rules() model.RuleConfig
}

// Options wires the delivery channels. Nil senders are skipped.
type Options struct {
	Email     notifier.Sender
	Chat      notifier.Sender
	EmailMode string
	Recorder  recorder.Recorder
	Logger    *zap.Logger
	Now       func() time.Time
}

// Scheduler runs analyses on a cron schedule and delivers the alerts.
type Scheduler struct {
	cron      *cron.Cron
	engine    Analyzer
	email     notifier.Sender
	chat      notifier.Sender
	emailMode string
	recorder  recorder.Recorder
	logger    *zap.Logger
	now       func() time.Time
	mu        sync.Mutex // one analysis at a time
}

// NewScheduler creates a new Scheduler.
func NewScheduler(engine Analyzer, opts Options) *Scheduler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Recorder == nil {
		opts.Recorder = recorder.NewNoopRecorder()
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.EmailMode == "" {
		opts.EmailMode = config.EmailModeConsolidated
	}
	cronLog := cron.PrintfLogger(zap.NewStdLog(opts.Logger.Named("cron")))
	return &Scheduler{
		cron: cron.New(
			cron.WithParser(config.CronParser),
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		engine:    engine,
		email:     opts.Email,
		chat:      opts.Chat,
		emailMode: opts.EmailMode,
		recorder:  opts.Recorder,
		logger:    opts.Logger,
		now:       opts.Now,
	}
}

// Register schedules the analysis task on spec.
func (s *Scheduler) Register(ctx context.Context, spec string) error {
	if _, err := s.cron.AddFunc(spec, func() { s.scheduledRun(ctx) }); err != nil {
		return errors.Wrapf(err, "register analysis task %q", spec)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", zap.Int("entries", len(s.cron.Entries())))
}

// Stop stops the cron scheduler and waits for a running task to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) scheduledRun(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()
	if _, err := s.RunOnce(ctx, SourceCron); err != nil {
		s.logger.Error("scheduled run failed", zap.Error(err))
	}
}

// RunOnce analyses the configured symbols, journals the run and delivers alerts.
// In single-symbol mode a failed analysis is returned as an error; in multi-symbol
// mode failures are reported per symbol in the result. Delivery errors are returned too.
func (s *Scheduler) RunOnce(ctx context.Context, source string) (model.ConsolidatedAlertResult, error) {
	result, analyzeErr := s.analyze(ctx, source)
	if analyzeErr != nil {
		if collector.IsGeoBlocked(analyzeErr) {
			s.logger.Warn("market data provider is geo-blocked; set MARKET_DATA_PROVIDER=coingecko or BINANCE_BASEURL=https://api.binance.us")
		}
		return result, analyzeErr
	}

	if !result.HasAlerts() {
		for _, r := range result.Results {
			s.logger.Info("no alert", zap.String("symbol", r.Symbol), zap.String("title", r.Decision.Title), zap.String("message", r.Decision.Message))
		}
		return result, nil
	}
	return result, s.deliver(ctx, result)
}

// analyze runs the engine and journals the outcome.
func (s *Scheduler) analyze(ctx context.Context, source string) (model.ConsolidatedAlertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	runID := uuid.New()
	started := s.now()
	rules := s.engine.Rules()
	logger := s.logger.With(zap.String("run_id", runID.String()), zap.String("source", source))

	var (
		result model.ConsolidatedAlertResult
		runErr error
	)
	if rules.MultiSymbol() {
		logger.Info("analysing symbols", zap.Strings("symbols", rules.Symbols))
		result = s.engine.AnalyzeAll(ctx)
		logger.Info("analysis finished",
			zap.Int("analysed", result.TotalAnalyzed()),
			zap.Int("alerts", result.TotalAlerts()),
			zap.Int("failures", len(result.Failures())))
	} else {
		symbol := rules.Symbols[0]
		res := model.MarketAnalysisResult{Symbol: symbol}
		decision, err := s.engine.Analyze(ctx, symbol)
		res.AnalyzedAt = s.now()
		if err != nil {
			logger.Error("analysis failed", zap.String("symbol", symbol), zap.Error(err))
			res.Decision = strategy.FailureDecision(symbol, err)
			res.Err = err
			runErr = err
		} else {
			logger.Info("analysis finished", zap.String("symbol", symbol), zap.Stringer("action", decision.Action))
			res.Decision = decision
		}
		result = model.NewConsolidatedAlertResult([]model.MarketAnalysisResult{res})
	}

	if err := s.recorder.RecordRun(runID, source, started, result); err != nil {
		logger.Error("record run", zap.Error(err))
	}
	return result, runErr
}

func (s *Scheduler) deliver(ctx context.Context, result model.ConsolidatedAlertResult) error {
	var msgs []notifier.Message
	if s.engine.Rules().MultiSymbol() && s.emailMode != config.EmailModeIndividual {
		body, err := notifier.RenderConsolidated(result, s.now())
		if err != nil {
			return err
		}
		msgs = append(msgs, notifier.Message{
			Subject: notifier.ConsolidatedSubject(result),
			HTML:    body,
			Text:    notifier.FormatConsolidatedText(result, s.now()),
		})
	} else {
		for _, alert := range result.Alerts {
			body, err := notifier.RenderSingleAlert(alert.Decision)
			if err != nil {
				return err
			}
			msgs = append(msgs, notifier.Message{
				Subject: alert.Decision.Title,
				HTML:    body,
				Text:    notifier.FormatAlertText(alert.Decision),
			})
		}
	}

	var firstErr error
	for _, msg := range msgs {
		for _, sender := range []notifier.Sender{s.email, s.chat} {
			if sender == nil {
				continue
			}
			if err := sender.Send(ctx, msg); err != nil {
				s.logger.Error("deliver alert", zap.String("channel", sender.Name()), zap.String("subject", msg.Subject), zap.Error(err))
				if firstErr == nil {
					firstErr = errors.Wrapf(err, "deliver via %s", sender.Name())
				}
				continue
			}
			s.logger.Info("alert sent", zap.String("channel", sender.Name()), zap.String("subject", msg.Subject))
		}
	}
	return firstErr
}

// HandleCommand processes a chat command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	var name string
	if fields := strings.Fields(command); len(fields) > 0 {
		name = strings.ToLower(fields[0])
	}
	switch name {
	case "/check":
		result, err := s.analyze(ctx, SourceCommand)
		if err != nil {
			return "❌ Analysis failed: " + html.EscapeString(err.Error())
		}
		return notifier.FormatConsolidatedText(result, s.now())
	case "/last":
		return s.lastRun()
	case "/rules":
		return notifier.FormatRules(s.engine.Rules())
	default:
		return "Available commands:\n/check - analyse now\n/last - last recorded run\n/rules - active rules"
	}
}

func (s *Scheduler) lastRun() string {
	run, decisions, err := s.recorder.LastRun()
	if errors.Is(err, recorder.ErrNoRuns) {
		return "No runs recorded yet."
	}
	if err != nil {
		s.logger.Error("load last run", zap.Error(err))
		return "❌ Could not load the last run."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🕒 <b>Last run</b> | %s UTC (%s)\n", run.Time().Format("2006-01-02 15:04"), run.Source)
	fmt.Fprintf(&b, "%d analysed, %d alert(s), %d failure(s)\n", run.Total, run.Alerts, run.Failures)
	for _, d := range decisions {
		fmt.Fprintf(&b, "\n%s [%s]", html.EscapeString(d.Symbol), d.Action)
		if d.Error != "" {
			fmt.Fprintf(&b, " %s", html.EscapeString(d.Error))
			continue
		}
		fmt.Fprintf(&b, " price %s, RSI %s", d.Price, d.RSI)
	}
	return b.String()
}
