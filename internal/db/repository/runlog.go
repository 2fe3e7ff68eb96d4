package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tidemark/internal/domain"
)

type RunLogRepo struct {
	conn *sql.DB
}

func NewRunLogRepo(conn *sql.DB) *RunLogRepo {
	return &RunLogRepo{conn: conn}
}

func (r *RunLogRepo) Start(ctx context.Context, runID, stream string, runType domain.RunType) (int64, error) {
	res, err := r.conn.ExecContext(ctx, `
		INSERT INTO run_log (run_id, stream_name, run_type, start_at, status)
		VALUES (?, ?, ?, ?, 'RUNNING')`,
		runID, stream, runType, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("start run log for %s: %w", stream, err)
	}
	return res.LastInsertId()
}

// Finish closes the entry exactly once. A second Finish on the same id is a
// no-op because the row is no longer RUNNING.
func (r *RunLogRepo) Finish(ctx context.Context, id int64, status domain.RunStatus, errMsg *string, requestCount, failCount int) error {
	var msg interface{}
	if errMsg != nil {
		msg = truncate(*errMsg, 2000)
	}
	_, err := r.conn.ExecContext(ctx, `
		UPDATE run_log
		SET end_at = ?, status = ?, err_msg = ?, request_count = ?, fail_count = ?
		WHERE id = ? AND status = 'RUNNING'`,
		time.Now().UTC(), status, msg, requestCount, failCount, id)
	if err != nil {
		return fmt.Errorf("finish run log %d: %w", id, err)
	}
	return nil
}

func (r *RunLogRepo) ListRecent(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.conn.QueryContext(ctx, `
		SELECT id, run_id, stream_name, run_type, start_at, end_at, status, err_msg, request_count, fail_count
		FROM run_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list run log: %w", err)
	}
	defer rows.Close()

	var out []domain.RunRecord
	for rows.Next() {
		var rec domain.RunRecord
		var endAt sql.NullTime
		var errMsg sql.NullString
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.StreamName, &rec.RunType, &rec.StartAt,
			&endAt, &rec.Status, &errMsg, &rec.RequestCount, &rec.FailCount); err != nil {
			return nil, err
		}
		if endAt.Valid {
			rec.EndAt = &endAt.Time
		}
		if errMsg.Valid {
			rec.ErrMsg = &errMsg.String
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *RunLogRepo) MarkStaleFailed(ctx context.Context, cutoff time.Time, reason string, dryRun bool) ([]int64, error) {
	rows, err := r.conn.QueryContext(ctx, `
		SELECT id FROM run_log WHERE status = 'RUNNING' AND start_at < ?`, cutoff.UTC())
	if err != nil {
		return nil, fmt.Errorf("select stale runs: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if dryRun || len(ids) == 0 {
		return ids, nil
	}

	// Prior error text is preserved by appending, not overwriting.
	for _, id := range ids {
		_, err := r.conn.ExecContext(ctx, `
			UPDATE run_log
			SET status = 'FAILED',
			    end_at = ?,
			    err_msg = CASE WHEN err_msg IS NULL OR err_msg = '' THEN ?
			              ELSE err_msg || '; ' || ? END
			WHERE id = ? AND status = 'RUNNING'`,
			time.Now().UTC(), reason, reason, id)
		if err != nil {
			return nil, fmt.Errorf("reap run log %d: %w", id, err)
		}
	}
	return ids, nil
}

var _ domain.RunLogRepository = (*RunLogRepo)(nil)
