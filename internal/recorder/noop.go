package recorder

import (
	"time"

	"github.com/google/uuid"

	"CryptoSentinel/internal/model"
)

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordRun(uuid.UUID, string, time.Time, model.ConsolidatedAlertResult) error {
	return nil
}

func (n *NoopRecorder) LastRun() (RunRecord, []DecisionRecord, error) {
	return RunRecord{}, nil, ErrNoRuns
}

func (n *NoopRecorder) Close() error { return nil }
