package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tidemark/internal/domain"
)

type GuardRepo struct {
	conn *sql.DB
}

func NewGuardRepo(conn *sql.DB) *GuardRepo {
	return &GuardRepo{conn: conn}
}

func (r *GuardRepo) Get(ctx context.Context, task, key string) (*domain.GuardRecord, error) {
	row := r.conn.QueryRowContext(ctx, `
		SELECT task_name, idempotency_key, status, attempt, started_at, finished_at, timeout_sec, err_msg
		FROM idempotency_guard WHERE task_name = ? AND idempotency_key = ?`, task, key)

	var rec domain.GuardRecord
	var finishedAt sql.NullTime
	var errMsg sql.NullString
	err := row.Scan(&rec.TaskName, &rec.IdempotencyKey, &rec.Status, &rec.Attempt,
		&rec.StartedAt, &finishedAt, &rec.TimeoutSec, &errMsg)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get guard record %s/%s: %w", task, key, err)
	}
	if finishedAt.Valid {
		rec.FinishedAt = &finishedAt.Time
	}
	if errMsg.Valid {
		rec.ErrMsg = &errMsg.String
	}
	return &rec, nil
}

func (r *GuardRepo) Upsert(ctx context.Context, rec *domain.GuardRecord) error {
	var finishedAt interface{}
	if rec.FinishedAt != nil {
		finishedAt = rec.FinishedAt.UTC()
	}
	var errMsg interface{}
	if rec.ErrMsg != nil {
		errMsg = truncate(*rec.ErrMsg, 2000)
	}
	_, err := r.conn.ExecContext(ctx, `
		INSERT INTO idempotency_guard
			(task_name, idempotency_key, status, attempt, started_at, finished_at, timeout_sec, err_msg)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(task_name, idempotency_key) DO UPDATE SET
			status      = excluded.status,
			attempt     = excluded.attempt,
			started_at  = excluded.started_at,
			finished_at = excluded.finished_at,
			timeout_sec = excluded.timeout_sec,
			err_msg     = excluded.err_msg`,
		rec.TaskName, rec.IdempotencyKey, rec.Status, rec.Attempt,
		rec.StartedAt.UTC(), finishedAt, rec.TimeoutSec, errMsg)
	if err != nil {
		return fmt.Errorf("upsert guard record %s/%s: %w", rec.TaskName, rec.IdempotencyKey, err)
	}
	return nil
}

func (r *GuardRepo) MarkStaleFailed(ctx context.Context, cutoff time.Time, reason string, dryRun bool) ([]domain.GuardKey, error) {
	rows, err := r.conn.QueryContext(ctx, `
		SELECT task_name, idempotency_key FROM idempotency_guard
		WHERE status = 'RUNNING' AND started_at < ?`, cutoff.UTC())
	if err != nil {
		return nil, fmt.Errorf("select stale guard records: %w", err)
	}
	var keys []domain.GuardKey
	for rows.Next() {
		var k domain.GuardKey
		if err := rows.Scan(&k.TaskName, &k.IdempotencyKey); err != nil {
			rows.Close()
			return nil, err
		}
		keys = append(keys, k)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if dryRun || len(keys) == 0 {
		return keys, nil
	}

	for _, k := range keys {
		_, err := r.conn.ExecContext(ctx, `
			UPDATE idempotency_guard
			SET status = 'FAILED',
			    finished_at = ?,
			    err_msg = CASE WHEN err_msg IS NULL OR err_msg = '' THEN ?
			              ELSE err_msg || '; ' || ? END
			WHERE task_name = ? AND idempotency_key = ? AND status = 'RUNNING'`,
			time.Now().UTC(), reason, reason, k.TaskName, k.IdempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("reap guard record %s/%s: %w", k.TaskName, k.IdempotencyKey, err)
		}
	}
	return keys, nil
}

var _ domain.GuardRepository = (*GuardRepo)(nil)
