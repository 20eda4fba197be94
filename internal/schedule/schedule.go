package schedule

import (
	"fmt"
	"time"
)

// Drift band for sun snapshot installs. Shifts below the floor are noise;
// shifts above the ceiling mean the snapshot rolled over to the next day's
// event, not that the event moved.
const (
	driftFloor   = time.Minute
	driftCeiling = time.Hour
)

// Schedule owns an ordered list of entries and the action table they
// reference, plus display metadata and the currently installed sun
// snapshot. The zero value is usable.
type Schedule struct {
	Name    string
	Icon    string
	Entries []Entry
	Actions []Action

	sun SunTimes
}

// Sun returns the currently installed sun snapshot, or nil before the
// first install.
func (s *Schedule) Sun() SunTimes { return s.sun }

// NextFireAt returns the next occurrence of the entry at index i.
func (s *Schedule) NextFireAt(i int, now time.Time) (time.Time, error) {
	if i < 0 || i >= len(s.Entries) {
		return time.Time{}, fmt.Errorf("entry index %d out of range", i)
	}
	return NextFire(s.Entries[i], now, s.sun)
}

// ClosestUpcoming returns the index and timestamp of the entry that fires
// soonest after now. Ties go to the earliest entry in list order. Errors
// from individual entries are not suppressed; a schedule with a broken
// entry is the caller's problem to resolve.
func (s *Schedule) ClosestUpcoming(now time.Time) (int, time.Time, error) {
	if len(s.Entries) == 0 {
		return -1, time.Time{}, fmt.Errorf("%w: schedule has no entries", ErrNoUpcomingOccurrence)
	}
	best := -1
	var bestAt time.Time
	for i, e := range s.Entries {
		at, err := NextFire(e, now, s.sun)
		if err != nil {
			return -1, time.Time{}, fmt.Errorf("entry %d: %w", i, err)
		}
		if best < 0 || at.Before(bestAt) {
			best = i
			bestAt = at
		}
	}
	return best, bestAt, nil
}

// FirstActiveEntry returns the index of the first entry (in list order)
// whose start/end window contains now. The second result is false when no
// entry is active.
func (s *Schedule) FirstActiveEntry(now time.Time) (int, bool, error) {
	for i, e := range s.Entries {
		if e.End == nil {
			continue
		}
		ok, err := Active(e, now, s.sun)
		if err != nil {
			return -1, false, fmt.Errorf("entry %d: %w", i, err)
		}
		if ok {
			return i, true, nil
		}
	}
	return -1, false, nil
}

// ServiceCalls resolves the action references of the entry at index i.
func (s *Schedule) ServiceCalls(i int) ([]ActionCall, error) {
	if i < 0 || i >= len(s.Entries) {
		return nil, fmt.Errorf("entry index %d out of range", i)
	}
	return ResolveCalls(s.Entries[i], s.Actions)
}

// HasSolar reports whether any entry's start time tracks a sun event.
// Schedules without solar entries never need sun refreshes.
func (s *Schedule) HasSolar() bool {
	for _, e := range s.Entries {
		if e.Solar() {
			return true
		}
	}
	return false
}

// EntryHasSolar reports whether the entry at index i tracks a sun event.
func (s *Schedule) EntryHasSolar(i int) bool {
	return i >= 0 && i < len(s.Entries) && s.Entries[i].Solar()
}

// InstallSunData stores a new sun snapshot and reports whether the entry
// at index `entry` (negative for none) drifted enough that its armed timer
// should be rebuilt.
//
// The first install never asks for a reschedule. Later installs compare
// the entry's next occurrence under the old and new snapshots; only a
// shift inside [1min, 1h] counts as drift. The snapshot is committed in
// every branch, so after a "reschedule" answer the schedule already holds
// the data the caller should re-arm against.
func (s *Schedule) InstallSunData(now time.Time, sun SunTimes, entry int) (bool, error) {
	if s.sun == nil {
		s.sun = sun
		return false, nil
	}
	if entry < 0 || entry >= len(s.Entries) {
		s.sun = sun
		return false, nil
	}

	oldAt, oldErr := NextFire(s.Entries[entry], now, s.sun)
	newAt, newErr := NextFire(s.Entries[entry], now, sun)
	s.sun = sun
	if oldErr != nil {
		return false, oldErr
	}
	if newErr != nil {
		return false, newErr
	}

	delta := oldAt.Sub(newAt)
	if delta < 0 {
		delta = -delta
	}
	return delta >= driftFloor && delta <= driftCeiling, nil
}
