package cron

import (
	"errors"
	"time"
)

// ErrNoMatch is returned when no occurrence exists within the search bound.
// Expressions like "0 0 30 2 *" (Feb 30) can never match; surfacing the error
// lets the caller mark the schedule unschedulable instead of firing at an
// arbitrary time.
var ErrNoMatch = errors.New("cron: no matching time within one year")

// searchBound limits the minute walk. One year covers every satisfiable
// 5-field expression (the rarest is a specific date, which recurs annually).
const searchBound = 366 * 24 * time.Hour

// Next returns the first instant strictly after `after` that matches the
// schedule, evaluated against wall-clock time in loc. Seconds and smaller
// units of `after` are discarded; the result is always on a minute boundary.
func (s *Schedule) Next(after time.Time, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}

	// Start at the minute after `after`. Truncate operates on absolute time,
	// which is safe here because minute boundaries agree across zones.
	t := after.In(loc).Truncate(time.Minute).Add(time.Minute)
	limit := after.Add(searchBound)

	for !t.After(limit) {
		if !s.months.has(int(t.Month())) {
			// Jump to the first minute of the next month.
			t = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc).AddDate(0, 1, 0)
			continue
		}
		if !s.dayMatches(t) {
			// Jump to midnight of the next day.
			t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)
			continue
		}
		if !s.hours.has(t.Hour()) || !s.minutes.has(t.Minute()) {
			t = t.Add(time.Minute)
			continue
		}
		return t, nil
	}
	return time.Time{}, ErrNoMatch
}

// dayMatches implements standard cron day semantics: when both day-of-month
// and day-of-week are restricted, either one matching is enough (OR, not AND).
func (s *Schedule) dayMatches(t time.Time) bool {
	domOK := s.dom.has(t.Day())
	dowOK := s.dow.has(int(t.Weekday()))

	switch {
	case s.dom.star && s.dow.star:
		return true
	case s.dom.star:
		return dowOK
	case s.dow.star:
		return domOK
	default:
		return domOK || dowOK
	}
}

// Next is a convenience that parses expr, resolves the IANA timezone and
// computes the next occurrence after the given instant.
func Next(expr, timezone string, after time.Time) (time.Time, error) {
	s, err := Parse(expr)
	if err != nil {
		return time.Time{}, err
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.Time{}, err
	}
	return s.Next(after, loc)
}
