package model

import "time"

// AlertAction is the outcome of evaluating one symbol.
type AlertAction int

const (
	ActionHold AlertAction = iota
	ActionConsiderBuy
	ActionConsiderSell
	// ActionInfo marks an evaluation failure, not a market signal.
	ActionInfo
)

func (a AlertAction) String() string {
	switch a {
	case ActionHold:
		return "HOLD"
	case ActionConsiderBuy:
		return "BUY"
	case ActionConsiderSell:
		return "SELL"
	case ActionInfo:
		return "INFO"
	default:
		return "UNKNOWN"
	}
}

// IsAlert reports whether the action is a buy or sell signal.
func (a AlertAction) IsAlert() bool {
	return a == ActionConsiderBuy || a == ActionConsiderSell
}

// AlertDecision is the result of evaluating one symbol's price history.
// Title and Message are rendered from the structured fields.
type AlertDecision struct {
	Action     AlertAction
	Symbol     string
	Title      string
	Message    string
	Indicators Indicators
}

// MarketAnalysisResult is one symbol's entry in a consolidated run.
type MarketAnalysisResult struct {
	Symbol     string
	Decision   AlertDecision
	AnalyzedAt time.Time
	Err        error // set when Decision.Action is ActionInfo
}

// ConsolidatedAlertResult aggregates the results of a multi-symbol run.
// Build it with NewConsolidatedAlertResult so Alerts and NoAlerts stay in sync with Results.
type ConsolidatedAlertResult struct {
	Results  []MarketAnalysisResult
	Alerts   []MarketAnalysisResult
	NoAlerts []MarketAnalysisResult
}

// NewConsolidatedAlertResult partitions results into alerting and non-alerting
// subsequences, preserving their relative order.
func NewConsolidatedAlertResult(results []MarketAnalysisResult) ConsolidatedAlertResult {
	c := ConsolidatedAlertResult{
		Results:  results,
		Alerts:   make([]MarketAnalysisResult, 0, len(results)),
		NoAlerts: make([]MarketAnalysisResult, 0, len(results)),
	}
	for _, r := range results {
		if r.Decision.Action.IsAlert() {
			c.Alerts = append(c.Alerts, r)
		} else {
			c.NoAlerts = append(c.NoAlerts, r)
		}
	}
	return c
}

func (c ConsolidatedAlertResult) TotalAnalyzed() int { return len(c.Results) }
func (c ConsolidatedAlertResult) TotalAlerts() int   { return len(c.Alerts) }
func (c ConsolidatedAlertResult) HasAlerts() bool    { return c.TotalAlerts() > 0 }

// Failures returns the results whose evaluation failed.
func (c ConsolidatedAlertResult) Failures() []MarketAnalysisResult {
	var out []MarketAnalysisResult
	for _, r := range c.NoAlerts {
		if r.Decision.Action == ActionInfo {
			out = append(out, r)
		}
	}
	return out
}
