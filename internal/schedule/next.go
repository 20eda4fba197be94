package schedule

import (
	"fmt"
	"time"
)

// nextFireHorizon is the number of day offsets probed beyond today. Seven
// guarantees a hit for a single enabled weekday whose slot already passed
// today: the same weekday next week is still inside the window.
const nextFireHorizon = 7

// NextFire returns the nearest start of the entry strictly after now.
//
// For each candidate date (now's date plus 0..7 days) whose weekday is in
// the entry's day set, the start TimeSpec is resolved against that date; a
// fixed time becomes the date at HH:MM:00 in now's location, a solar time
// becomes the sun lookup for that date plus the signed offset. The
// smallest future candidate wins. All arithmetic is whole-second.
func NextFire(e Entry, now time.Time, sun SunTimes) (time.Time, error) {
	if len(e.Days) == 0 {
		return time.Time{}, fmt.Errorf("%w: empty day set", ErrNoUpcomingOccurrence)
	}
	now = now.Truncate(time.Second)

	var best time.Time
	for d := 0; d <= nextFireHorizon; d++ {
		day := now.AddDate(0, 0, d)
		if !e.onDay(day.Weekday()) {
			continue
		}
		ts, err := resolveOnDay(e.Start, day, sun)
		if err != nil {
			return time.Time{}, err
		}
		if !ts.After(now) {
			continue
		}
		if best.IsZero() || ts.Before(best) {
			best = ts
		}
	}
	if best.IsZero() {
		// Day set holds no weekday that can fire (e.g. only values the
		// calendar never produces).
		return time.Time{}, fmt.Errorf("%w: no enabled weekday within %d days", ErrNoUpcomingOccurrence, nextFireHorizon)
	}
	return best, nil
}

// Resolve materializes the time spec on a concrete calendar date: fixed
// specs take the date's wall clock, solar specs go through the sun lookup
// plus offset.
func (t TimeSpec) Resolve(day time.Time, sun SunTimes) (time.Time, error) {
	return resolveOnDay(t, day, sun)
}

// resolveOnDay materializes a TimeSpec on a concrete calendar date.
func resolveOnDay(t TimeSpec, day time.Time, sun SunTimes) (time.Time, error) {
	switch t.Kind {
	case TimeFixed:
		return time.Date(day.Year(), day.Month(), day.Day(), t.Hour, t.Minute, 0, 0, day.Location()), nil
	case TimeSolar:
		if sun == nil {
			return time.Time{}, fmt.Errorf("%w: entry needs %s", ErrNoSunData, t.Event)
		}
		ts, ok := sun.Lookup(t.Event, day)
		if !ok {
			return time.Time{}, fmt.Errorf("%w: lookup failed for %s", ErrNoSunData, t.Event)
		}
		return ts.Add(t.Offset).Truncate(time.Second), nil
	default:
		return time.Time{}, fmt.Errorf("%w: neither fixed nor solar", ErrInvalidTimeSpec)
	}
}
