package domain

import (
	"context"
	"time"
)

// RunType distinguishes deliberate full recomputes from watermark-driven
// incremental runs.
type RunType string

const (
	RunTypeFull        RunType = "FULL"
	RunTypeIncremental RunType = "INCREMENTAL"
)

// RunStatus is the lifecycle state of one run-ledger entry.
type RunStatus string

const (
	RunStatusRunning RunStatus = "RUNNING"
	RunStatusSuccess RunStatus = "SUCCESS"
	RunStatusFailed  RunStatus = "FAILED"
)

// RunRecord is one ledger entry: opened RUNNING at run start, closed exactly
// once at run end, never mutated afterwards. Observability only — control
// flow never consults the ledger.
type RunRecord struct {
	ID           int64      `json:"id"`
	RunID        string     `json:"run_id"` // correlation id shared with log lines
	StreamName   string     `json:"stream_name"`
	RunType      RunType    `json:"run_type"`
	StartAt      time.Time  `json:"start_at"`
	EndAt        *time.Time `json:"end_at,omitempty"`
	Status       RunStatus  `json:"status"`
	ErrMsg       *string    `json:"err_msg,omitempty"`
	RequestCount int        `json:"request_count"`
	FailCount    int        `json:"fail_count"`
}

// RunLogRepository appends and closes run-ledger entries.
type RunLogRepository interface {
	// Start inserts a RUNNING entry and returns its id.
	Start(ctx context.Context, runID, stream string, runType RunType) (int64, error)

	// Finish closes the entry with a terminal status and counters.
	Finish(ctx context.Context, id int64, status RunStatus, errMsg *string, requestCount, failCount int) error

	// ListRecent returns the most recent entries, newest first.
	ListRecent(ctx context.Context, limit int) ([]RunRecord, error)

	// MarkStaleFailed transitions RUNNING entries started before cutoff to
	// FAILED with reason appended to any existing error text. Returns the
	// ids of mutated rows. When dryRun is set it only reports.
	MarkStaleFailed(ctx context.Context, cutoff time.Time, reason string, dryRun bool) ([]int64, error)
}
