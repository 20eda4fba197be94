package schedule

import (
	"time"
)

// SolarEvent identifies the sun event a relative time is anchored to.
type SolarEvent string

const (
	Sunrise SolarEvent = "sunrise"
	Sunset  SolarEvent = "sunset"
	Dawn    SolarEvent = "dawn"
	Dusk    SolarEvent = "dusk"
)

// TimeSpecKind discriminates the TimeSpec variants.
type TimeSpecKind int

const (
	// TimeUnset is the zero value; encoding it fails with ErrInvalidTimeSpec.
	TimeUnset TimeSpecKind = iota
	TimeFixed
	TimeSolar
)

// TimeSpec is either a fixed clock time or a solar event with a signed
// offset. Offsets have minute resolution.
type TimeSpec struct {
	Kind TimeSpecKind

	// Fixed variant.
	Hour   int // 0..23
	Minute int // 0..59

	// Solar variant.
	Event  SolarEvent
	Offset time.Duration
}

// FixedAt returns a fixed clock TimeSpec.
func FixedAt(hour, minute int) TimeSpec {
	return TimeSpec{Kind: TimeFixed, Hour: hour, Minute: minute}
}

// SolarAt returns a solar-relative TimeSpec. A negative offset means
// "before the event".
func SolarAt(event SolarEvent, offset time.Duration) TimeSpec {
	return TimeSpec{Kind: TimeSolar, Event: event, Offset: offset}
}

// Entry is one recurring rule: a start time, an optional end time, the
// enabled weekdays and ordered references into the owning schedule's
// action table.
//
// Days follows the time.Weekday convention (Sunday == 0). The slice keeps
// the order the compact form was written in so strings round-trip byte for
// byte; membership checks treat it as a set, so duplicates are harmless.
//
// Action references past the end of the action table are not an error;
// they are silently skipped at resolution time. That leniency is part of
// the persisted-data contract.
type Entry struct {
	Start   TimeSpec
	End     *TimeSpec
	Days    []int
	Actions []int
}

func (e Entry) onDay(wd time.Weekday) bool {
	for _, d := range e.Days {
		if d == int(wd) {
			return true
		}
	}
	return false
}

// Solar reports whether the entry's start time tracks a sun event.
func (e Entry) Solar() bool { return e.Start.Kind == TimeSolar }

// Action is a reusable, parameterized service-call template referenced by
// index from one or more entries.
type Action struct {
	Service string         // optionally namespaced "<domain>.<name>"
	Entity  string         // optional, optionally namespaced "<domain>.<id>"
	Params  map[string]any // remaining service-call arguments
}

// ActionCall is a fully qualified invocation ready for an execution sink.
// Service is always dot-qualified on the resolver's output.
type ActionCall struct {
	Service  string
	EntityID string
	Data     map[string]any
}

// Domain returns the service's namespace prefix.
func (c ActionCall) Domain() string {
	for i := 0; i < len(c.Service); i++ {
		if c.Service[i] == '.' {
			return c.Service[:i]
		}
	}
	return c.Service
}

// SunTimes resolves solar event timestamps for arbitrary calendar dates.
// NextFire probes up to seven days ahead, so implementations must answer
// for future dates, not just today.
type SunTimes interface {
	Lookup(event SolarEvent, day time.Time) (time.Time, bool)
}
