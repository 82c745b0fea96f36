// Package recorder journals analysis runs so they can be audited and queried later.
package recorder

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"CryptoSentinel/internal/model"
)

// ErrNoRuns is returned by LastRun when nothing has been recorded yet.
var ErrNoRuns = errors.New("no runs recorded")

// RunRecord is one scheduled or on-demand analysis run.
type RunRecord struct {
	ID        string `db:"id"`
	Source    string `db:"source"`
	StartedAt int64  `db:"started_at"`
	Total     int    `db:"total"`
	Alerts    int    `db:"alerts"`
	Failures  int    `db:"failures"`
}

// Time returns StartedAt as a UTC time.
func (r RunRecord) Time() time.Time { return time.Unix(r.StartedAt, 0).UTC() }

// DecisionRecord is one symbol's decision within a run.
type DecisionRecord struct {
	ID          int64           `db:"id"`
	RunID       string          `db:"run_id"`
	AnalyzedAt  int64           `db:"analyzed_at"`
	Symbol      string          `db:"symbol"`
	Action      string          `db:"action"`
	Title       string          `db:"title"`
	Message     string          `db:"message"`
	Price       decimal.Decimal `db:"price"`
	RSI         decimal.Decimal `db:"rsi"`
	RecentHigh  decimal.Decimal `db:"recent_high"`
	DropPercent decimal.Decimal `db:"drop_percent"`
	Error       string          `db:"error"`
}

// NewDecisionRecords flattens a consolidated result into rows for runID.
func NewDecisionRecords(runID uuid.UUID, result model.ConsolidatedAlertResult) []DecisionRecord {
	rows := make([]DecisionRecord, 0, len(result.Results))
	for _, r := range result.Results {
		ind := r.Decision.Indicators
		row := DecisionRecord{
			RunID:       runID.String(),
			AnalyzedAt:  r.AnalyzedAt.Unix(),
			Symbol:      r.Symbol,
			Action:      r.Decision.Action.String(),
			Title:       r.Decision.Title,
			Message:     r.Decision.Message,
			Price:       ind.LastPrice,
			RSI:         ind.RSI,
			RecentHigh:  ind.RecentHigh,
			DropPercent: ind.DropPercent,
		}
		if r.Err != nil {
			row.Error = r.Err.Error()
		}
		rows = append(rows, row)
	}
	return rows
}

// Recorder persists run history.
type Recorder interface {
	RecordRun(runID uuid.UUID, source string, startedAt time.Time, result model.ConsolidatedAlertResult) error
	// LastRun returns the most recent run and its decisions in symbol order.
	LastRun() (RunRecord, []DecisionRecord, error)
	Close() error
}
