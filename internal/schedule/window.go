package schedule

import "time"

// Active reports whether now falls inside the entry's [start, end) window,
// with both bounds resolved against now's calendar date. A window whose
// end does not come after its start wraps midnight and covers
// [start, next midnight) plus [midnight, end).
//
// Entries without an end time are never active. The check is deliberately
// not gated on the entry's day set; callers that want day-gated behavior
// combine this with Entry.Days themselves.
func Active(e Entry, now time.Time, sun SunTimes) (bool, error) {
	if e.End == nil {
		return false, nil
	}
	now = now.Truncate(time.Second)

	start, err := resolveOnDay(e.Start, now, sun)
	if err != nil {
		return false, err
	}
	end, err := resolveOnDay(*e.End, now, sun)
	if err != nil {
		return false, err
	}

	if !end.After(start) {
		return !now.Before(start) || now.Before(end), nil
	}
	return !now.Before(start) && now.Before(end), nil
}
