package schedule

import (
	"errors"
	"testing"
	"time"
)

// sunTable is a fixed clock-time-per-event lookup for tests.
type sunTable map[SolarEvent][2]int

func (s sunTable) Lookup(ev SolarEvent, day time.Time) (time.Time, bool) {
	hm, ok := s[ev]
	if !ok {
		return time.Time{}, false
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hm[0], hm[1], 0, 0, day.Location()), true
}

// Wednesday, 2026-03-04.
var wednesdayNoon = time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)

func TestNextFireSameDay(t *testing.T) {
	t.Parallel()
	e := Entry{Start: FixedAt(18, 0), Days: []int{3}, Actions: []int{0}}
	got, err := NextFire(e, wednesdayNoon, nil)
	if err != nil {
		t.Fatalf("NextFire error: %v", err)
	}
	want := time.Date(2026, 3, 4, 18, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("NextFire = %v, want %v", got, want)
	}
}

func TestNextFireJustPassedRollsToNextWeek(t *testing.T) {
	t.Parallel()
	// Only today's weekday enabled and the slot passed one second ago:
	// the next occurrence is exactly one week out.
	now := time.Date(2026, 3, 4, 12, 0, 1, 0, time.UTC)
	e := Entry{Start: FixedAt(12, 0), Days: []int{3}, Actions: []int{0}}
	got, err := NextFire(e, now, nil)
	if err != nil {
		t.Fatalf("NextFire error: %v", err)
	}
	want := time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("NextFire = %v, want %v", got, want)
	}
}

func TestNextFireExactNowIsNotACandidate(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 4, 18, 0, 0, 0, time.UTC)
	e := Entry{Start: FixedAt(18, 0), Days: []int{3}, Actions: []int{0}}
	got, err := NextFire(e, now, nil)
	if err != nil {
		t.Fatalf("NextFire error: %v", err)
	}
	want := time.Date(2026, 3, 11, 18, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("NextFire = %v, want %v", got, want)
	}
}

func TestNextFireSkipsDisabledDays(t *testing.T) {
	t.Parallel()
	// Friday-only entry evaluated on Wednesday.
	e := Entry{Start: FixedAt(9, 0), Days: []int{5}, Actions: []int{0}}
	got, err := NextFire(e, wednesdayNoon, nil)
	if err != nil {
		t.Fatalf("NextFire error: %v", err)
	}
	want := time.Date(2026, 3, 6, 9, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("NextFire = %v, want %v", got, want)
	}
}

func TestNextFireSolarOffset(t *testing.T) {
	t.Parallel()
	sun := sunTable{Sunrise: {6, 12}, Sunset: {18, 40}}
	everyDay := []int{0, 1, 2, 3, 4, 5, 6}

	e := Entry{Start: SolarAt(Sunrise, 30 * time.Minute), Days: everyDay, Actions: []int{0}}
	got, err := NextFire(e, wednesdayNoon, sun)
	if err != nil {
		t.Fatalf("NextFire error: %v", err)
	}
	// Today's 06:42 already passed; tomorrow's is next.
	want := time.Date(2026, 3, 5, 6, 42, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("NextFire = %v, want %v", got, want)
	}

	e = Entry{Start: SolarAt(Sunset, -15 * time.Minute), Days: everyDay, Actions: []int{0}}
	got, err = NextFire(e, wednesdayNoon, sun)
	if err != nil {
		t.Fatalf("NextFire error: %v", err)
	}
	want = time.Date(2026, 3, 4, 18, 25, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("NextFire = %v, want %v", got, want)
	}
}

func TestNextFireEmptyDays(t *testing.T) {
	t.Parallel()
	e := Entry{Start: FixedAt(9, 0), Actions: []int{0}}
	if _, err := NextFire(e, wednesdayNoon, nil); !errors.Is(err, ErrNoUpcomingOccurrence) {
		t.Fatalf("NextFire = %v, want ErrNoUpcomingOccurrence", err)
	}
}

func TestNextFireSolarWithoutSunData(t *testing.T) {
	t.Parallel()
	e := Entry{Start: SolarAt(Sunrise, 0), Days: []int{3}, Actions: []int{0}}
	if _, err := NextFire(e, wednesdayNoon, nil); !errors.Is(err, ErrNoSunData) {
		t.Fatalf("NextFire = %v, want ErrNoSunData", err)
	}

	if _, err := NextFire(e, wednesdayNoon, sunTable{}); !errors.Is(err, ErrNoSunData) {
		t.Fatalf("NextFire with empty table = %v, want ErrNoSunData", err)
	}
}

func TestNextFireMonotonicWithinDay(t *testing.T) {
	t.Parallel()
	e := Entry{Start: FixedAt(18, 0), Days: []int{3, 5}, Actions: []int{0}}
	prev := time.Time{}
	for hour := 0; hour < 24; hour++ {
		now := time.Date(2026, 3, 4, hour, 30, 0, 0, time.UTC)
		got, err := NextFire(e, now, nil)
		if err != nil {
			t.Fatalf("NextFire at %v error: %v", now, err)
		}
		if got.Before(prev) {
			t.Fatalf("NextFire went backwards: %v after %v", got, prev)
		}
		prev = got
	}
}
