package schedule

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Data is the persisted shape of a whole schedule: compact entry strings
// plus the action table and display metadata.
type Data struct {
	Name    string   `json:"friendly_name,omitempty"`
	Icon    string   `json:"icon,omitempty"`
	Entries []string `json:"entries"`
	Actions []Action `json:"actions"`
}

// ImportData loads a persisted schedule. Records without an entry list or
// an action table are rejected outright; a single undecodable entry fails
// the whole record rather than loading it partially.
func (s *Schedule) ImportData(d Data) error {
	if d.Entries == nil || d.Actions == nil {
		return fmt.Errorf("%w: record missing entries or actions", ErrMalformedEntry)
	}
	entries := make([]Entry, 0, len(d.Entries))
	for _, raw := range d.Entries {
		e, err := DecodeEntry(raw)
		if err != nil {
			return err
		}
		entries = append(entries, e)
	}
	s.Entries = append(s.Entries, entries...)
	s.Actions = d.Actions
	if d.Name != "" {
		s.Name = d.Name
	}
	if d.Icon != "" {
		s.Icon = d.Icon
	}
	return nil
}

// ExportData renders the schedule in its persisted shape.
func (s *Schedule) ExportData() (Data, error) {
	out := Data{
		Name:    s.Name,
		Icon:    s.Icon,
		Entries: make([]string, 0, len(s.Entries)),
		Actions: s.Actions,
	}
	for _, e := range s.Entries {
		raw, err := EncodeEntry(e)
		if err != nil {
			return Data{}, err
		}
		out.Entries = append(out.Entries, raw)
	}
	if out.Actions == nil {
		out.Actions = []Action{}
	}
	return out, nil
}

// Actions persist as a flat object: service, optional entity, and every
// remaining key as a parameter.

func (a Action) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(a.Params)+2)
	for k, v := range a.Params {
		m[k] = v
	}
	m["service"] = a.Service
	if a.Entity != "" {
		m["entity"] = a.Entity
	}
	return json.Marshal(m)
}

func (a *Action) UnmarshalJSON(b []byte) error {
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	svc, _ := m["service"].(string)
	if svc == "" {
		return errors.New("action missing service")
	}
	a.Service = svc
	delete(m, "service")
	if ent, ok := m["entity"].(string); ok {
		a.Entity = ent
		delete(m, "entity")
	} else {
		a.Entity = ""
	}
	if len(m) > 0 {
		a.Params = m
	} else {
		a.Params = nil
	}
	return nil
}

// ServiceImport is the verbose authoring form of a schedule, as written in
// the config file. It is consumed once; it is not required to round-trip.
type ServiceImport struct {
	Name    string         `json:"name,omitempty"`
	Icon    string         `json:"icon,omitempty"`
	Entries []EntryImport  `json:"entries"`
	Actions []ActionImport `json:"actions"`
}

type EntryImport struct {
	Time    TimeImport  `json:"time"`
	EndTime *TimeImport `json:"end_time,omitempty"`
	Days    []int       `json:"days,omitempty"`
	Actions []int       `json:"actions"`
}

// TimeImport is either a literal clock time (At) or a solar event with a
// signed offset.
type TimeImport struct {
	At     string `json:"at,omitempty"`     // "HH:MM"
	Event  string `json:"event,omitempty"`  // sunrise|sunset|dawn|dusk
	Offset string `json:"offset,omitempty"` // "+HH:MM" or "-HH:MM"
}

type ActionImport struct {
	Service     string         `json:"service"`
	Entity      string         `json:"entity,omitempty"`
	ServiceData map[string]any `json:"service_data,omitempty"`
}

// ImportService loads the verbose form: actions first (normalizing entity
// and domain placement), then entries. Entries without an explicit day
// list default to weekday 0, a plain placeholder rather than "today".
func (s *Schedule) ImportService(in ServiceImport) error {
	for i, a := range in.Actions {
		act, err := importAction(a)
		if err != nil {
			return fmt.Errorf("action %d: %w", i, err)
		}
		s.Actions = append(s.Actions, act)
	}
	for i, e := range in.Entries {
		ent, err := importEntry(e)
		if err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
		s.Entries = append(s.Entries, ent)
	}
	if in.Name != "" {
		s.Name = in.Name
	}
	if in.Icon != "" {
		s.Icon = in.Icon
	}
	return nil
}

func importAction(in ActionImport) (Action, error) {
	service := strings.TrimSpace(in.Service)
	if service == "" {
		return Action{}, errors.New("missing service")
	}

	// An entity_id inside service_data wins over the entity key.
	entity := ""
	params := make(map[string]any, len(in.ServiceData))
	for k, v := range in.ServiceData {
		if k == "entity_id" {
			if s, ok := v.(string); ok {
				entity = s
				continue
			}
		}
		params[k] = v
	}
	if entity == "" {
		entity = strings.TrimSpace(in.Entity)
	}

	if entity != "" {
		serviceDomain, _, svcQualified := strings.Cut(service, ".")
		entityDomain, _, entQualified := strings.Cut(entity, ".")
		switch {
		case !entQualified && svcQualified:
			entity = serviceDomain + "." + entity
		case entQualified && svcQualified && entityDomain == serviceDomain:
			// Redundant domain: store the bare service name, the resolver
			// re-derives it from the entity.
			service = service[len(serviceDomain)+1:]
		}
	}

	if len(params) == 0 {
		params = nil
	}
	return Action{Service: service, Entity: entity, Params: params}, nil
}

func importEntry(in EntryImport) (Entry, error) {
	start, err := importTime(in.Time)
	if err != nil {
		return Entry{}, err
	}
	e := Entry{Start: start, Actions: append([]int(nil), in.Actions...)}

	if in.EndTime != nil {
		end, err := importTime(*in.EndTime)
		if err != nil {
			return Entry{}, err
		}
		e.End = &end
	}

	if len(in.Days) > 0 {
		for _, d := range in.Days {
			if d < 0 || d > 6 {
				return Entry{}, fmt.Errorf("weekday %d out of range", d)
			}
		}
		e.Days = append([]int(nil), in.Days...)
		sort.Ints(e.Days)
	} else {
		e.Days = []int{0}
	}
	return e, nil
}

func importTime(in TimeImport) (TimeSpec, error) {
	switch {
	case in.At != "":
		hh, mm, err := parseClock(in.At)
		if err != nil {
			return TimeSpec{}, err
		}
		return FixedAt(hh, mm), nil
	case in.Event != "":
		ev := SolarEvent(strings.ToLower(strings.TrimSpace(in.Event)))
		if _, ok := eventCodes[ev]; !ok {
			return TimeSpec{}, fmt.Errorf("unknown solar event %q", in.Event)
		}
		var off time.Duration
		if in.Offset != "" {
			var err error
			off, err = parseSignedOffset(in.Offset)
			if err != nil {
				return TimeSpec{}, err
			}
		}
		return SolarAt(ev, off), nil
	default:
		return TimeSpec{}, errors.New(`time needs either "at" or "event"`)
	}
}

func parseClock(s string) (int, int, error) {
	hh, mm, err := parseHHMM(s)
	if err != nil {
		return 0, 0, err
	}
	if hh > 23 {
		return 0, 0, fmt.Errorf("hour %d out of range in %q", hh, s)
	}
	return hh, mm, nil
}

func parseSignedOffset(s string) (time.Duration, error) {
	v := strings.TrimSpace(s)
	neg := false
	switch {
	case strings.HasPrefix(v, "-"):
		neg = true
		v = v[1:]
	case strings.HasPrefix(v, "+"):
		v = v[1:]
	}
	hh, mm, err := parseHHMM(v)
	if err != nil {
		return 0, err
	}
	d := time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute
	if neg {
		d = -d
	}
	return d, nil
}

func parseHHMM(s string) (int, int, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid HH:MM %q", s)
	}
	hh, err := strconv.Atoi(h)
	if err != nil || hh < 0 {
		return 0, 0, fmt.Errorf("invalid hours in %q", s)
	}
	mm, err := strconv.Atoi(m)
	if err != nil || mm < 0 || mm > 59 {
		return 0, 0, fmt.Errorf("invalid minutes in %q", s)
	}
	return hh, mm, nil
}
