package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Compact entry grammar, used for persistence:
//
//	Entry     := "D" Days "T" Time ("T" Time)? "A" Actions
//	Days      := digit+                  (each digit 0..6, any order)
//	Time      := FixedTime | SolarTime
//	FixedTime := HHMM                    (4 digits, 24h clock)
//	SolarTime := (HHMM)? EventCode (HHMM)?
//	EventCode := "SR" | "SS" | "DW" | "DU"
//	Actions   := index ("A" index)*
//
// A solar time carries at most one offset: digits before the event code
// mean "event minus HHMM", digits after mean "event plus HHMM".

var eventCodes = map[SolarEvent]string{
	Sunrise: "SR",
	Sunset:  "SS",
	Dawn:    "DW",
	Dusk:    "DU",
}

var codeEvents = map[string]SolarEvent{
	"SR": Sunrise,
	"SS": Sunset,
	"DW": Dawn,
	"DU": Dusk,
}

// DecodeEntry parses the compact persisted form of one entry. Strings that
// do not match the grammar fail with ErrMalformedEntry.
func DecodeEntry(s string) (Entry, error) {
	p := entryParser{src: s}
	e, err := p.entry()
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %q: %v", ErrMalformedEntry, s, err)
	}
	return e, nil
}

// EncodeEntry renders the entry in the compact persisted form. The sign of
// a solar offset picks the side the digits are written on; a zero offset
// writes the bare event code.
func EncodeEntry(e Entry) (string, error) {
	var b strings.Builder
	b.WriteByte('D')
	for _, d := range e.Days {
		b.WriteString(strconv.Itoa(d))
	}
	start, err := encodeTimeSpec(e.Start)
	if err != nil {
		return "", err
	}
	b.WriteByte('T')
	b.WriteString(start)
	if e.End != nil {
		end, err := encodeTimeSpec(*e.End)
		if err != nil {
			return "", err
		}
		b.WriteByte('T')
		b.WriteString(end)
	}
	b.WriteByte('A')
	for i, ref := range e.Actions {
		if i > 0 {
			b.WriteByte('A')
		}
		b.WriteString(strconv.Itoa(ref))
	}
	return b.String(), nil
}

func encodeTimeSpec(t TimeSpec) (string, error) {
	switch t.Kind {
	case TimeFixed:
		return fmt.Sprintf("%02d%02d", t.Hour, t.Minute), nil
	case TimeSolar:
		code, ok := eventCodes[t.Event]
		if !ok {
			return "", fmt.Errorf("%w: unknown solar event %q", ErrInvalidTimeSpec, t.Event)
		}
		switch {
		case t.Offset < 0:
			return offsetDigits(-t.Offset) + code, nil
		case t.Offset > 0:
			return code + offsetDigits(t.Offset), nil
		default:
			return code, nil
		}
	default:
		return "", fmt.Errorf("%w: neither fixed nor solar", ErrInvalidTimeSpec)
	}
}

func offsetDigits(d time.Duration) string {
	mins := int(d / time.Minute)
	return fmt.Sprintf("%02d%02d", mins/60, mins%60)
}

// entryParser is a recursive-descent parser over the compact grammar.
type entryParser struct {
	src string
	pos int
}

func (p *entryParser) eat(c byte) bool {
	if p.pos < len(p.src) && p.src[p.pos] == c {
		p.pos++
		return true
	}
	return false
}

func (p *entryParser) entry() (Entry, error) {
	var e Entry
	if !p.eat('D') {
		return e, errors.New(`missing "D" prefix`)
	}
	days, err := p.days()
	if err != nil {
		return e, err
	}
	e.Days = days

	if !p.eat('T') {
		return e, errors.New("missing start time")
	}
	start, err := p.timeSpec()
	if err != nil {
		return e, err
	}
	e.Start = start

	if p.eat('T') {
		end, err := p.timeSpec()
		if err != nil {
			return e, err
		}
		e.End = &end
	}

	if !p.eat('A') {
		return e, errors.New("missing action list")
	}
	refs, err := p.actions()
	if err != nil {
		return e, err
	}
	e.Actions = refs

	if p.pos != len(p.src) {
		return e, fmt.Errorf("trailing characters at offset %d", p.pos)
	}
	return e, nil
}

func (p *entryParser) days() ([]int, error) {
	start := p.pos
	for p.pos < len(p.src) && isDigit(p.src[p.pos]) {
		if p.src[p.pos] > '6' {
			return nil, fmt.Errorf("weekday digit %q out of range", p.src[p.pos])
		}
		p.pos++
	}
	if p.pos == start {
		return nil, errors.New("empty day list")
	}
	days := make([]int, 0, p.pos-start)
	for _, c := range []byte(p.src[start:p.pos]) {
		days = append(days, int(c-'0'))
	}
	return days, nil
}

// timeSpec consumes the maximal run of time characters and parses it as
// either a fixed or a solar time. "T" and "A" never occur inside a time
// segment, so the run is unambiguous.
func (p *entryParser) timeSpec() (TimeSpec, error) {
	start := p.pos
	for p.pos < len(p.src) && isTimeChar(p.src[p.pos]) {
		p.pos++
	}
	seg := p.src[start:p.pos]
	if seg == "" {
		return TimeSpec{}, errors.New("empty time segment")
	}
	return parseTimeSegment(seg)
}

func parseTimeSegment(seg string) (TimeSpec, error) {
	if len(seg) == 4 && isDigits(seg) {
		hh := digits2(seg[0:2])
		mm := digits2(seg[2:4])
		if hh > 23 || mm > 59 {
			return TimeSpec{}, fmt.Errorf("fixed time %q out of range", seg)
		}
		return FixedAt(hh, mm), nil
	}

	rest := seg
	var prefix string
	if len(rest) >= 4 && isDigits(rest[:4]) {
		prefix = rest[:4]
		rest = rest[4:]
	}
	if len(rest) < 2 {
		return TimeSpec{}, fmt.Errorf("time segment %q matches neither fixed nor solar form", seg)
	}
	ev, ok := codeEvents[rest[:2]]
	if !ok {
		return TimeSpec{}, fmt.Errorf("unknown event code in %q", seg)
	}
	suffix := rest[2:]
	if suffix != "" {
		if prefix != "" {
			return TimeSpec{}, fmt.Errorf("offset on both sides of event in %q", seg)
		}
		if len(suffix) != 4 || !isDigits(suffix) {
			return TimeSpec{}, fmt.Errorf("bad offset suffix in %q", seg)
		}
	}

	var offset time.Duration
	switch {
	case prefix != "":
		d, err := parseOffsetDigits(prefix)
		if err != nil {
			return TimeSpec{}, err
		}
		offset = -d
	case suffix != "":
		d, err := parseOffsetDigits(suffix)
		if err != nil {
			return TimeSpec{}, err
		}
		offset = d
	}
	return SolarAt(ev, offset), nil
}

func parseOffsetDigits(s string) (time.Duration, error) {
	hh := digits2(s[0:2])
	mm := digits2(s[2:4])
	if mm > 59 {
		return 0, fmt.Errorf("offset minutes %q out of range", s)
	}
	return time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute, nil
}

func (p *entryParser) actions() ([]int, error) {
	first, err := p.index()
	if err != nil {
		return nil, err
	}
	refs := []int{first}
	for p.eat('A') {
		n, err := p.index()
		if err != nil {
			return nil, err
		}
		refs = append(refs, n)
	}
	return refs, nil
}

func (p *entryParser) index() (int, error) {
	start := p.pos
	for p.pos < len(p.src) && isDigit(p.src[p.pos]) {
		p.pos++
	}
	if p.pos == start {
		return 0, errors.New("missing action index")
	}
	n, err := strconv.Atoi(p.src[start:p.pos])
	if err != nil {
		return 0, fmt.Errorf("bad action index: %v", err)
	}
	return n, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isTimeChar(c byte) bool {
	return isDigit(c) || c == 'S' || c == 'R' || c == 'D' || c == 'W' || c == 'U'
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return len(s) > 0
}

// digits2 assumes s is two ASCII digits.
func digits2(s string) int {
	return int(s[0]-'0')*10 + int(s[1]-'0')
}
