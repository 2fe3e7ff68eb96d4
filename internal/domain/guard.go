package domain

import (
	"context"
	"time"
)

// GuardStatus is the state of one (task, key) guard record.
type GuardStatus string

const (
	GuardStatusRunning GuardStatus = "RUNNING"
	GuardStatusSuccess GuardStatus = "SUCCESS"
	GuardStatusFailed  GuardStatus = "FAILED"
)

// GuardRecord is the persisted attempt state for one logical task
// invocation, keyed by (TaskName, IdempotencyKey). SUCCESS is terminal: any
// later invocation with the same key short-circuits without re-executing.
type GuardRecord struct {
	TaskName       string
	IdempotencyKey string
	Status         GuardStatus
	Attempt        int
	StartedAt      time.Time
	FinishedAt     *time.Time
	TimeoutSec     int
	ErrMsg         *string
}

// GuardRepository persists idempotency guard records. All writes are
// upserts so reruns never hit duplicate-key errors.
type GuardRepository interface {
	Get(ctx context.Context, task, key string) (*GuardRecord, error)
	Upsert(ctx context.Context, rec *GuardRecord) error

	// MarkStaleFailed transitions RUNNING records started before cutoff to
	// FAILED, appending reason to any prior error text. Returns the
	// (task, key) pairs mutated. When dryRun is set it only reports.
	MarkStaleFailed(ctx context.Context, cutoff time.Time, reason string, dryRun bool) ([]GuardKey, error)
}

// GuardKey identifies one guard record.
type GuardKey struct {
	TaskName       string
	IdempotencyKey string
}
