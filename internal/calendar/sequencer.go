// Package calendar turns the trading calendar into ordered processing-unit
// lists for the layer runners.
package calendar

import (
	"context"
	"time"

	"tidemark/internal/domain"
)

// Sequencer produces the ordered list of units to process. The calendar may
// list dates that have not yet occurred, so every listing is capped at "now".
type Sequencer struct {
	cal domain.CalendarRepository
	now func() time.Time
}

func NewSequencer(cal domain.CalendarRepository) *Sequencer {
	return &Sequencer{cal: cal, now: time.Now}
}

// WithClock overrides the clock; tests pin it.
func (s *Sequencer) WithClock(now func() time.Time) *Sequencer {
	s.now = now
	return s
}

// ListUnits returns the open trading dates in [lower, upper], ascending and
// deduplicated by the calendar's primary key. upper == 0 means "up to now".
// Units beyond the current date are always excluded, even when upper names
// them explicitly.
func (s *Sequencer) ListUnits(ctx context.Context, lower, upper domain.Unit) ([]domain.Unit, error) {
	today := domain.UnitFromTime(s.now())
	if upper == 0 || upper > today {
		upper = today
	}
	if lower > upper {
		return nil, nil
	}
	return s.cal.ListOpenDates(ctx, lower, upper)
}
