// Package ics renders schedules as an iCalendar feed so a phone or
// desktop calendar can show what the daemon will do and when.
package ics

import (
	"fmt"
	"sort"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"sunsched/internal/schedule"
)

const prodID = "-//sunsched//schedule export//EN"

// Sunday-first, matching the day digits in the compact entry form.
var rruleWeekdays = [7]rrule.Weekday{
	rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA,
}

// Export serializes every upcoming entry of the given schedules as a
// weekly recurring VEVENT anchored at its next occurrence after now.
// Solar entries are projected through the given sun snapshot, so their
// clock times are a point-in-time approximation. Entries with no
// upcoming occurrence (or solar entries without sun data) are left out
// rather than failing the whole feed.
func Export(scheds []*schedule.Schedule, sun schedule.SunTimes, now time.Time) (string, error) {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(prodID)

	for _, s := range scheds {
		for i, e := range s.Entries {
			start, err := schedule.NextFire(e, now, sun)
			if err != nil {
				continue
			}
			ev := cal.AddEvent(entryUID(s.Name, i))
			ev.SetDtStampTime(now)
			ev.SetStartAt(start)
			if e.End != nil {
				end, err := e.End.Resolve(start, sun)
				if err == nil {
					if !end.After(start) {
						end = end.AddDate(0, 0, 1)
					}
					ev.SetEndAt(end)
				}
			}
			ev.SetSummary(entrySummary(s, i))
			if desc := entryDescription(s, i); desc != "" {
				ev.SetDescription(desc)
			}
			if rr := weeklyRule(e.Days); rr != "" {
				ev.SetProperty(ical.ComponentPropertyRrule, rr)
			}
		}
	}
	return cal.Serialize(), nil
}

// weeklyRule builds a FREQ=WEEKLY rule over the entry's day set. Out of
// range or duplicate day values are dropped; an empty result means no
// rule applies.
func weeklyRule(days []int) string {
	seen := [7]bool{}
	var wd []rrule.Weekday
	for _, d := range days {
		if d < 0 || d > 6 || seen[d] {
			continue
		}
		seen[d] = true
		wd = append(wd, rruleWeekdays[d])
	}
	if len(wd) == 0 {
		return ""
	}
	sort.Slice(wd, func(i, j int) bool { return wd[i].Day() < wd[j].Day() })
	opt := rrule.ROption{Freq: rrule.WEEKLY, Byweekday: wd}
	return opt.RRuleString()
}

func entryUID(name string, i int) string {
	return fmt.Sprintf("%s-entry-%d@sunsched", slug(name), i)
}

func entrySummary(s *schedule.Schedule, i int) string {
	if s.Name != "" {
		return s.Name
	}
	return fmt.Sprintf("schedule entry %d", i)
}

// entryDescription lists the service calls the entry resolves to, one
// per line.
func entryDescription(s *schedule.Schedule, i int) string {
	calls, err := s.ServiceCalls(i)
	if err != nil || len(calls) == 0 {
		return ""
	}
	lines := make([]string, 0, len(calls))
	for _, c := range calls {
		if c.EntityID != "" {
			lines = append(lines, fmt.Sprintf("%s %s", c.Service, c.EntityID))
		} else {
			lines = append(lines, c.Service)
		}
	}
	return strings.Join(lines, "\n")
}

func slug(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	if b.Len() == 0 {
		return "schedule"
	}
	return b.String()
}
