package domain

import (
	"fmt"
	"strconv"
	"time"
)

// Unit is one atomic granule of incremental work: a trading date encoded as
// yyyymmdd (e.g. 20240105). Units are ordered and comparable as integers;
// the trading calendar decides which integers are valid.
type Unit int

// UnitFromTime converts a wall-clock time to its calendar-date unit.
func UnitFromTime(t time.Time) Unit {
	y, m, d := t.Date()
	return Unit(y*10000 + int(m)*100 + d)
}

// ParseUnit parses a yyyymmdd string into a Unit.
func ParseUnit(s string) (Unit, error) {
	n, err := strconv.Atoi(s)
	if err != nil || len(s) != 8 {
		return 0, ErrConfiguration("invalid processing unit %q: want yyyymmdd", s)
	}
	u := Unit(n)
	if _, err := u.Time(); err != nil {
		return 0, err
	}
	return u, nil
}

// Time converts the unit back to a UTC midnight time, validating the date.
func (u Unit) Time() (time.Time, error) {
	y, m, d := int(u)/10000, int(u)/100%100, int(u)%100
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Year() != y || int(t.Month()) != m || t.Day() != d {
		return time.Time{}, ErrConfiguration("invalid processing unit %d: not a calendar date", int(u))
	}
	return t, nil
}

func (u Unit) String() string { return fmt.Sprintf("%08d", int(u)) }
