// Package repository provides SQL implementations of the control-plane
// repository interfaces.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"tidemark/internal/domain"
)

type WatermarkRepo struct {
	conn *sql.DB
}

func NewWatermarkRepo(conn *sql.DB) *WatermarkRepo {
	return &WatermarkRepo{conn: conn}
}

func (r *WatermarkRepo) Get(ctx context.Context, stream string) (*domain.Watermark, error) {
	row := r.conn.QueryRowContext(ctx, `
		SELECT stream_name, water_mark, status, last_run_at, last_err
		FROM watermark WHERE stream_name = ?`, stream)

	var wm domain.Watermark
	var lastErr sql.NullString
	err := row.Scan(&wm.StreamName, &wm.WaterMark, &wm.Status, &wm.LastRunAt, &lastErr)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get watermark %s: %w", stream, err)
	}
	if lastErr.Valid {
		wm.LastErr = &lastErr.String
	}
	return &wm, nil
}

// Advance upserts (unit, SUCCESS). MAX keeps the boundary monotonic: a full
// recompute of a historical range can never regress the stream.
func (r *WatermarkRepo) Advance(ctx context.Context, stream string, unit domain.Unit) error {
	_, err := r.conn.ExecContext(ctx, `
		INSERT INTO watermark (stream_name, water_mark, status, last_run_at, last_err)
		VALUES (?, ?, 'SUCCESS', ?, NULL)
		ON CONFLICT(stream_name) DO UPDATE SET
			water_mark  = MAX(water_mark, excluded.water_mark),
			status      = 'SUCCESS',
			last_run_at = excluded.last_run_at,
			last_err    = NULL`,
		stream, int(unit), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("advance watermark %s to %d: %w", stream, int(unit), err)
	}
	return nil
}

// MarkFailed rewrites the row with the last good boundary and status FAILED.
// The boundary is the previous success, never the failed unit, so the stream
// resumes exactly where it broke.
func (r *WatermarkRepo) MarkFailed(ctx context.Context, stream string, boundary domain.Unit, errMsg string) error {
	_, err := r.conn.ExecContext(ctx, `
		INSERT INTO watermark (stream_name, water_mark, status, last_run_at, last_err)
		VALUES (?, ?, 'FAILED', ?, ?)
		ON CONFLICT(stream_name) DO UPDATE SET
			water_mark  = MAX(water_mark, excluded.water_mark),
			status      = 'FAILED',
			last_run_at = excluded.last_run_at,
			last_err    = excluded.last_err`,
		stream, int(boundary), time.Now().UTC(), truncate(errMsg, 2000))
	if err != nil {
		return fmt.Errorf("mark watermark %s failed: %w", stream, err)
	}
	return nil
}

func (r *WatermarkRepo) Init(ctx context.Context, stream string, boundary domain.Unit) error {
	_, err := r.conn.ExecContext(ctx, `
		INSERT INTO watermark (stream_name, water_mark, status, last_run_at, last_err)
		VALUES (?, ?, 'SUCCESS', ?, NULL)`,
		stream, int(boundary), time.Now().UTC())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return domain.ErrConfiguration("stream %s is already initialized", stream)
		}
		return fmt.Errorf("init watermark %s: %w", stream, err)
	}
	return nil
}

func (r *WatermarkRepo) List(ctx context.Context) ([]domain.Watermark, error) {
	rows, err := r.conn.QueryContext(ctx, `
		SELECT stream_name, water_mark, status, last_run_at, last_err
		FROM watermark ORDER BY stream_name`)
	if err != nil {
		return nil, fmt.Errorf("list watermarks: %w", err)
	}
	defer rows.Close()

	var out []domain.Watermark
	for rows.Next() {
		var wm domain.Watermark
		var lastErr sql.NullString
		if err := rows.Scan(&wm.StreamName, &wm.WaterMark, &wm.Status, &wm.LastRunAt, &lastErr); err != nil {
			return nil, err
		}
		if lastErr.Valid {
			wm.LastErr = &lastErr.String
		}
		out = append(out, wm)
	}
	return out, rows.Err()
}

// truncate bounds stored error excerpts.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

var _ domain.WatermarkRepository = (*WatermarkRepo)(nil)
