package sundata

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"sunsched/internal/schedule"
)

// Snapshot is one day's solar event timestamps, as produced by an external
// ephemeris source. It answers lookups for arbitrary calendar dates by
// projecting each event's clock time onto the requested date, which is
// exactly the precision the drift detector needs: a fresh snapshot arrives
// before the clock times have moved far.
type Snapshot struct {
	times map[schedule.SolarEvent]time.Time
}

// New builds a snapshot from per-event timestamps.
func New(times map[schedule.SolarEvent]time.Time) *Snapshot {
	cp := make(map[schedule.SolarEvent]time.Time, len(times))
	for ev, ts := range times {
		cp[ev] = ts
	}
	return &Snapshot{times: cp}
}

// Lookup implements schedule.SunTimes.
func (s *Snapshot) Lookup(ev schedule.SolarEvent, day time.Time) (time.Time, bool) {
	if s == nil {
		return time.Time{}, false
	}
	base, ok := s.times[ev]
	if !ok {
		return time.Time{}, false
	}
	return time.Date(day.Year(), day.Month(), day.Day(),
		base.Hour(), base.Minute(), base.Second(), 0, day.Location()), true
}

// Events lists the events the snapshot can answer for.
func (s *Snapshot) Events() []schedule.SolarEvent {
	if s == nil {
		return nil
	}
	out := make([]schedule.SolarEvent, 0, len(s.times))
	for ev := range s.times {
		out = append(out, ev)
	}
	return out
}

var knownEvents = map[string]schedule.SolarEvent{
	string(schedule.Sunrise): schedule.Sunrise,
	string(schedule.Sunset):  schedule.Sunset,
	string(schedule.Dawn):    schedule.Dawn,
	string(schedule.Dusk):    schedule.Dusk,
}

// LoadFile reads a sun file: a JSON object mapping event names to RFC 3339
// timestamps, e.g. {"sunrise": "2026-08-30T06:12:00+02:00"}.
func LoadFile(path string) (*Snapshot, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

// Parse decodes the sun file payload.
func Parse(b []byte) (*Snapshot, error) {
	var raw map[string]string
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("sun file: %w", err)
	}
	if len(raw) == 0 {
		return nil, errors.New("sun file: no events")
	}

	times := make(map[schedule.SolarEvent]time.Time, len(raw))
	for name, val := range raw {
		ev, ok := knownEvents[name]
		if !ok {
			return nil, fmt.Errorf("sun file: unknown event %q", name)
		}
		ts, err := time.Parse(time.RFC3339, val)
		if err != nil {
			return nil, fmt.Errorf("sun file: event %q: %w", name, err)
		}
		times[ev] = ts
	}
	return &Snapshot{times: times}, nil
}
