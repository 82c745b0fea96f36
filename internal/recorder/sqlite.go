package recorder

import (
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"CryptoSentinel/internal/model"
)

// SQLiteRecorder persists run history to a SQLite database.
type SQLiteRecorder struct {
	db     *sqlx.DB
	mu     sync.Mutex
	logger *zap.Logger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, logger *zap.Logger) (*SQLiteRecorder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	// a single connection keeps :memory: databases consistent across queries
	db.SetMaxOpenConns(1)

	// WAL mode lets external readers query while the bot writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "set WAL mode")
	}

	r := &SQLiteRecorder{db: db, logger: logger}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "migrate")
	}

	logger.Info("sqlite recorder opened", zap.String("path", dbPath))
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id         TEXT PRIMARY KEY,
			source     TEXT NOT NULL,
			started_at INTEGER NOT NULL,
			total      INTEGER NOT NULL,
			alerts     INTEGER NOT NULL,
			failures   INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,

		`CREATE TABLE IF NOT EXISTS decisions (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id       TEXT NOT NULL REFERENCES runs(id),
			analyzed_at  INTEGER NOT NULL,
			symbol       TEXT NOT NULL,
			action       TEXT NOT NULL,
			title        TEXT,
			message      TEXT,
			price        TEXT,
			rsi          TEXT,
			recent_high  TEXT,
			drop_percent TEXT,
			error        TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_run ON decisions(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_symbol ON decisions(symbol, analyzed_at)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return errors.Wrapf(err, "exec %q", s[:40])
		}
	}
	return nil
}

// RecordRun writes the run and all of its decisions in one transaction.
func (r *SQLiteRecorder) RecordRun(runID uuid.UUID, source string, startedAt time.Time, result model.ConsolidatedAlertResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Beginx()
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer tx.Rollback() //nolint:errcheck

	run := RunRecord{
		ID:        runID.String(),
		Source:    source,
		StartedAt: startedAt.Unix(),
		Total:     result.TotalAnalyzed(),
		Alerts:    result.TotalAlerts(),
		Failures:  len(result.Failures()),
	}
	if _, err := tx.NamedExec(`INSERT INTO runs (id, source, started_at, total, alerts, failures)
		VALUES (:id, :source, :started_at, :total, :alerts, :failures)`, run); err != nil {
		return errors.Wrap(err, "insert run")
	}

	for _, d := range NewDecisionRecords(runID, result) {
		if _, err := tx.NamedExec(`INSERT INTO decisions
			(run_id, analyzed_at, symbol, action, title, message, price, rsi, recent_high, drop_percent, error)
			VALUES (:run_id, :analyzed_at, :symbol, :action, :title, :message, :price, :rsi, :recent_high, :drop_percent, :error)`, d); err != nil {
			return errors.Wrapf(err, "insert decision for %s", d.Symbol)
		}
	}
	return errors.Wrap(tx.Commit(), "commit")
}

func (r *SQLiteRecorder) LastRun() (RunRecord, []DecisionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var run RunRecord
	err := r.db.Get(&run, `SELECT id, source, started_at, total, alerts, failures
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, nil, ErrNoRuns
	}
	if err != nil {
		return RunRecord{}, nil, errors.Wrap(err, "select last run")
	}

	var decisions []DecisionRecord
	if err := r.db.Select(&decisions, `SELECT id, run_id, analyzed_at, symbol, action, title, message,
		price, rsi, recent_high, drop_percent, error
		FROM decisions WHERE run_id = ? ORDER BY id`, run.ID); err != nil {
		return RunRecord{}, nil, errors.Wrap(err, "select decisions")
	}
	return run, decisions, nil
}

func (r *SQLiteRecorder) Close() error {
	r.logger.Info("closing sqlite recorder")
	return r.db.Close()
}
