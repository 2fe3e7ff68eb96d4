package domain

import "context"

// CalendarDay is one row of the trading calendar.
type CalendarDay struct {
	Date   Unit
	IsOpen bool
}

// CalendarRepository reads the authoritative trading calendar. Days are
// returned in ascending date order.
type CalendarRepository interface {
	// ListOpenDates returns the open trading dates in [lower, upper],
	// inclusive on both ends.
	ListOpenDates(ctx context.Context, lower, upper Unit) ([]Unit, error)

	// ReplaceRange upserts calendar days, used by the calendar sync job.
	ReplaceRange(ctx context.Context, days []CalendarDay) error
}
