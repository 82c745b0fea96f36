package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CryptoSentinel/internal/config"
	"CryptoSentinel/internal/model"
	"CryptoSentinel/internal/notifier"
	"CryptoSentinel/internal/recorder"
)

type fakeEngine struct {
	rules     model.RuleConfig
	decisions map[string]model.AlertDecision
	errs      map[string]error
}

func (f *fakeEngine) Rules() model.RuleConfig { return f.rules }

func (f *fakeEngine) Analyze(_ context.Context, symbol string) (model.AlertDecision, error) {
	if err, ok := f.errs[symbol]; ok {
		return model.AlertDecision{}, err
	}
	return f.decisions[symbol], nil
}

func (f *fakeEngine) AnalyzeAll(ctx context.Context) model.ConsolidatedAlertResult {
	var results []model.MarketAnalysisResult
	for _, s := range f.rules.Symbols {
		d, err := f.Analyze(ctx, s)
		r := model.MarketAnalysisResult{Symbol: s, Decision: d, Err: err}
		if err != nil {
			r.Decision = model.AlertDecision{Action: model.ActionInfo, Symbol: s, Title: "ERROR " + s, Message: err.Error()}
		}
		results = append(results, r)
	}
	return model.NewConsolidatedAlertResult(results)
}

type fakeSender struct {
	name string
	err  error
	sent []notifier.Message
}

func (f *fakeSender) Name() string { return f.name }

func (f *fakeSender) Send(_ context.Context, msg notifier.Message) error {
	f.sent = append(f.sent, msg)
	return f.err
}

type fakeRecorder struct {
	sources []string
	results []model.ConsolidatedAlertResult
	last    recorder.RunRecord
	rows    []recorder.DecisionRecord
	lastErr error
}

func (f *fakeRecorder) RecordRun(_ uuid.UUID, source string, _ time.Time, result model.ConsolidatedAlertResult) error {
	f.sources = append(f.sources, source)
	f.results = append(f.results, result)
	return nil
}

func (f *fakeRecorder) LastRun() (recorder.RunRecord, []recorder.DecisionRecord, error) {
	return f.last, f.rows, f.lastErr
}

func (f *fakeRecorder) Close() error { return nil }

func decision(action model.AlertAction, symbol string) model.AlertDecision {
	titles := map[model.AlertAction]string{
		model.ActionConsiderBuy:  "BUY ALERT ",
		model.ActionConsiderSell: "SELL ALERT ",
		model.ActionHold:         "OK ",
	}
	return model.AlertDecision{Action: action, Symbol: symbol, Title: titles[action] + symbol, Message: "Price: 1 | RSI(14): 50"}
}

func rulesFor(symbols ...string) model.RuleConfig {
	r := model.DefaultRuleConfig()
	r.Symbols = symbols
	return r
}

type harness struct {
	sched *Scheduler
	email *fakeSender
	chat  *fakeSender
	rec   *fakeRecorder
}

func newHarness(engine *fakeEngine, mode string) harness {
	h := harness{
		email: &fakeSender{name: "email"},
		chat:  &fakeSender{name: "telegram"},
		rec:   &fakeRecorder{},
	}
	h.sched = NewScheduler(engine, Options{
		Email:     h.email,
		Chat:      h.chat,
		EmailMode: mode,
		Recorder:  h.rec,
		Now:       func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) },
	})
	return h
}

func TestRunOnce_SingleSymbolAlert(t *testing.T) {
	engine := &fakeEngine{
		rules:     rulesFor("BTCUSDT"),
		decisions: map[string]model.AlertDecision{"BTCUSDT": decision(model.ActionConsiderBuy, "BTCUSDT")},
	}
	h := newHarness(engine, config.EmailModeConsolidated)

	result, err := h.sched.RunOnce(context.Background(), SourceOnce)
	require.NoError(t, err)
	assert.Equal(t, 1, result.TotalAlerts())

	require.Len(t, h.email.sent, 1)
	assert.Equal(t, "BUY ALERT BTCUSDT", h.email.sent[0].Subject)
	assert.Contains(t, h.email.sent[0].HTML, "#10b981")
	require.Len(t, h.chat.sent, 1)
	assert.Contains(t, h.chat.sent[0].Text, "<b>BUY ALERT BTCUSDT</b>")
	assert.Equal(t, []string{SourceOnce}, h.rec.sources)
}

func TestRunOnce_SingleSymbolHoldSendsNothing(t *testing.T) {
	engine := &fakeEngine{
		rules:     rulesFor("BTCUSDT"),
		decisions: map[string]model.AlertDecision{"BTCUSDT": decision(model.ActionHold, "BTCUSDT")},
	}
	h := newHarness(engine, config.EmailModeConsolidated)

	result, err := h.sched.RunOnce(context.Background(), SourceOnce)
	require.NoError(t, err)
	assert.False(t, result.HasAlerts())
	assert.Empty(t, h.email.sent)
	assert.Empty(t, h.chat.sent)
	assert.Len(t, h.rec.sources, 1, "hold runs are journaled too")
}

func TestRunOnce_SingleSymbolFailure(t *testing.T) {
	boom := errors.New("status 451 Unavailable For Legal Reasons")
	engine := &fakeEngine{rules: rulesFor("BTCUSDT"), errs: map[string]error{"BTCUSDT": boom}}
	h := newHarness(engine, config.EmailModeConsolidated)

	result, err := h.sched.RunOnce(context.Background(), SourceOnce)
	assert.ErrorIs(t, err, boom)
	require.Len(t, result.Results, 1)
	assert.Equal(t, model.ActionInfo, result.Results[0].Decision.Action)
	assert.Empty(t, h.email.sent)

	require.Len(t, h.rec.results, 1)
	assert.Len(t, h.rec.results[0].Failures(), 1)
}

func TestRunOnce_MultiSymbolConsolidated(t *testing.T) {
	engine := &fakeEngine{
		rules: rulesFor("BTCUSDT", "ETHUSDT", "XRPUSDT"),
		decisions: map[string]model.AlertDecision{
			"BTCUSDT": decision(model.ActionConsiderBuy, "BTCUSDT"),
			"ETHUSDT": decision(model.ActionConsiderSell, "ETHUSDT"),
		},
		errs: map[string]error{"XRPUSDT": errors.New("timeout")},
	}
	h := newHarness(engine, config.EmailModeConsolidated)

	result, err := h.sched.RunOnce(context.Background(), SourceCron)
	require.NoError(t, err, "per-symbol failures do not fail a multi-symbol run")
	assert.Equal(t, 3, result.TotalAnalyzed())

	require.Len(t, h.email.sent, 1)
	assert.Equal(t, "Crypto Alerts - 2 Opportunity(ies) Detected", h.email.sent[0].Subject)
	assert.Contains(t, h.email.sent[0].HTML, "XRPUSDT")
	require.Len(t, h.chat.sent, 1)
}

func TestRunOnce_MultiSymbolIndividual(t *testing.T) {
	engine := &fakeEngine{
		rules: rulesFor("BTCUSDT", "ETHUSDT", "SOLUSDT"),
		decisions: map[string]model.AlertDecision{
			"BTCUSDT": decision(model.ActionConsiderBuy, "BTCUSDT"),
			"ETHUSDT": decision(model.ActionHold, "ETHUSDT"),
			"SOLUSDT": decision(model.ActionConsiderSell, "SOLUSDT"),
		},
	}
	h := newHarness(engine, config.EmailModeIndividual)

	_, err := h.sched.RunOnce(context.Background(), SourceCron)
	require.NoError(t, err)
	require.Len(t, h.email.sent, 2)
	assert.Equal(t, "BUY ALERT BTCUSDT", h.email.sent[0].Subject)
	assert.Equal(t, "SELL ALERT SOLUSDT", h.email.sent[1].Subject)
}

func TestRunOnce_MultiSymbolNoAlerts(t *testing.T) {
	engine := &fakeEngine{
		rules: rulesFor("BTCUSDT", "ETHUSDT"),
		decisions: map[string]model.AlertDecision{
			"BTCUSDT": decision(model.ActionHold, "BTCUSDT"),
			"ETHUSDT": decision(model.ActionHold, "ETHUSDT"),
		},
	}
	h := newHarness(engine, config.EmailModeConsolidated)

	_, err := h.sched.RunOnce(context.Background(), SourceCron)
	require.NoError(t, err)
	assert.Empty(t, h.email.sent)
	assert.Empty(t, h.chat.sent)
}

func TestRunOnce_DeliveryFailure(t *testing.T) {
	engine := &fakeEngine{
		rules:     rulesFor("BTCUSDT"),
		decisions: map[string]model.AlertDecision{"BTCUSDT": decision(model.ActionConsiderSell, "BTCUSDT")},
	}
	h := newHarness(engine, config.EmailModeConsolidated)
	h.email.err = errors.New("535 auth failed")

	_, err := h.sched.RunOnce(context.Background(), SourceOnce)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deliver via email")
	assert.Len(t, h.chat.sent, 1, "other channels still receive the alert")
}

func TestRunOnce_NilSenders(t *testing.T) {
	engine := &fakeEngine{
		rules:     rulesFor("BTCUSDT"),
		decisions: map[string]model.AlertDecision{"BTCUSDT": decision(model.ActionConsiderBuy, "BTCUSDT")},
	}
	s := NewScheduler(engine, Options{})
	_, err := s.RunOnce(context.Background(), SourceOnce)
	assert.NoError(t, err)
}

func TestHandleCommand(t *testing.T) {
	engine := &fakeEngine{
		rules: rulesFor("BTCUSDT", "ETHUSDT"),
		decisions: map[string]model.AlertDecision{
			"BTCUSDT": decision(model.ActionConsiderBuy, "BTCUSDT"),
			"ETHUSDT": decision(model.ActionHold, "ETHUSDT"),
		},
	}
	h := newHarness(engine, config.EmailModeConsolidated)
	ctx := context.Background()

	t.Run("check analyses without emailing", func(t *testing.T) {
		reply := h.sched.HandleCommand(ctx, "/check")
		assert.Contains(t, reply, "2 analysed, 1 opportunity(ies)")
		assert.Empty(t, h.email.sent)
		assert.Contains(t, h.rec.sources, SourceCommand)
	})

	t.Run("rules", func(t *testing.T) {
		reply := h.sched.HandleCommand(ctx, "/RULES")
		assert.Contains(t, reply, "Symbols: BTCUSDT, ETHUSDT")
	})

	t.Run("last with no runs", func(t *testing.T) {
		h.rec.lastErr = recorder.ErrNoRuns
		assert.Equal(t, "No runs recorded yet.", h.sched.HandleCommand(ctx, "/last"))
	})

	t.Run("last", func(t *testing.T) {
		h.rec.lastErr = nil
		h.rec.last = recorder.RunRecord{Source: SourceCron, StartedAt: time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC).Unix(), Total: 2, Alerts: 1, Failures: 1}
		h.rec.rows = []recorder.DecisionRecord{
			{Symbol: "BTCUSDT", Action: "BUY", Price: decimal.NewFromInt(95), RSI: decimal.RequireFromString("25.5")},
			{Symbol: "XRPUSDT", Action: "INFO", Error: "timeout <x>"},
		}
		reply := h.sched.HandleCommand(ctx, "/last")
		assert.Contains(t, reply, "2024-03-01 11:00 UTC (cron)")
		assert.Contains(t, reply, "2 analysed, 1 alert(s), 1 failure(s)")
		assert.Contains(t, reply, "BTCUSDT [BUY] price 95, RSI 25.5")
		assert.Contains(t, reply, "XRPUSDT [INFO] timeout &lt;x&gt;")
	})

	t.Run("help", func(t *testing.T) {
		assert.Contains(t, h.sched.HandleCommand(ctx, ""), "/check")
		assert.Contains(t, h.sched.HandleCommand(ctx, "hello"), "/rules")
	})
}

func TestRegister(t *testing.T) {
	s := NewScheduler(&fakeEngine{rules: rulesFor("BTCUSDT")}, Options{})
	require.NoError(t, s.Register(context.Background(), "0 0 * * * *"))
	require.NoError(t, s.Register(context.Background(), "@every 1h"))
	assert.Error(t, s.Register(context.Background(), "not a cron"))
	assert.Len(t, s.cron.Entries(), 2)
}
