package repository

import (
	"context"
	"database/sql"
	"fmt"

	"tidemark/internal/domain"
)

type CalendarRepo struct {
	conn *sql.DB
}

func NewCalendarRepo(conn *sql.DB) *CalendarRepo {
	return &CalendarRepo{conn: conn}
}

func (r *CalendarRepo) ListOpenDates(ctx context.Context, lower, upper domain.Unit) ([]domain.Unit, error) {
	rows, err := r.conn.QueryContext(ctx, `
		SELECT cal_date FROM trading_calendar
		WHERE is_open = 1 AND cal_date BETWEEN ? AND ?
		ORDER BY cal_date`, int(lower), int(upper))
	if err != nil {
		return nil, fmt.Errorf("list open dates: %w", err)
	}
	defer rows.Close()

	var out []domain.Unit
	for rows.Next() {
		var d int
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		out = append(out, domain.Unit(d))
	}
	return out, rows.Err()
}

func (r *CalendarRepo) ReplaceRange(ctx context.Context, days []domain.CalendarDay) error {
	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin calendar tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trading_calendar (cal_date, is_open) VALUES (?, ?)
		ON CONFLICT(cal_date) DO UPDATE SET is_open = excluded.is_open`)
	if err != nil {
		return fmt.Errorf("prepare calendar upsert: %w", err)
	}
	defer stmt.Close()

	for _, d := range days {
		open := 0
		if d.IsOpen {
			open = 1
		}
		if _, err := stmt.ExecContext(ctx, int(d.Date), open); err != nil {
			return fmt.Errorf("upsert calendar day %d: %w", int(d.Date), err)
		}
	}
	return tx.Commit()
}

var _ domain.CalendarRepository = (*CalendarRepo)(nil)
