package schedule

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestClosestUpcomingPicksMinimum(t *testing.T) {
	t.Parallel()
	s := &Schedule{
		Entries: []Entry{
			{Start: FixedAt(20, 0), Days: []int{3}, Actions: []int{0}},
			{Start: FixedAt(14, 0), Days: []int{3}, Actions: []int{0}},
			{Start: FixedAt(18, 0), Days: []int{3}, Actions: []int{0}},
		},
	}
	idx, at, err := s.ClosestUpcoming(wednesdayNoon)
	if err != nil {
		t.Fatalf("ClosestUpcoming error: %v", err)
	}
	if idx != 1 {
		t.Fatalf("idx = %d, want 1", idx)
	}
	want := time.Date(2026, 3, 4, 14, 0, 0, 0, time.UTC)
	if !at.Equal(want) {
		t.Fatalf("at = %v, want %v", at, want)
	}
}

func TestClosestUpcomingTieGoesToListOrder(t *testing.T) {
	t.Parallel()
	s := &Schedule{
		Entries: []Entry{
			{Start: FixedAt(14, 0), Days: []int{3}, Actions: []int{0}},
			{Start: FixedAt(14, 0), Days: []int{3}, Actions: []int{1}},
		},
	}
	idx, _, err := s.ClosestUpcoming(wednesdayNoon)
	if err != nil {
		t.Fatalf("ClosestUpcoming error: %v", err)
	}
	if idx != 0 {
		t.Fatalf("idx = %d, want 0 (first entry wins ties)", idx)
	}
}

func TestClosestUpcomingEmptySchedule(t *testing.T) {
	t.Parallel()
	s := &Schedule{}
	if _, _, err := s.ClosestUpcoming(wednesdayNoon); !errors.Is(err, ErrNoUpcomingOccurrence) {
		t.Fatalf("ClosestUpcoming = %v, want ErrNoUpcomingOccurrence", err)
	}
}

func TestFirstActiveEntry(t *testing.T) {
	t.Parallel()
	end := FixedAt(19, 0)
	s := &Schedule{
		Entries: []Entry{
			{Start: FixedAt(7, 0), Days: []int{3}, Actions: []int{0}}, // no end, never active
			{Start: FixedAt(7, 0), End: &end, Days: []int{3}, Actions: []int{0}},
		},
	}
	idx, ok, err := s.FirstActiveEntry(wednesdayNoon)
	if err != nil {
		t.Fatalf("FirstActiveEntry error: %v", err)
	}
	if !ok || idx != 1 {
		t.Fatalf("FirstActiveEntry = (%d, %v), want (1, true)", idx, ok)
	}

	night := time.Date(2026, 3, 4, 22, 0, 0, 0, time.UTC)
	_, ok, err = s.FirstActiveEntry(night)
	if err != nil {
		t.Fatalf("FirstActiveEntry error: %v", err)
	}
	if ok {
		t.Fatal("FirstActiveEntry reported active outside the window")
	}
}

func solarSchedule() *Schedule {
	return &Schedule{
		Entries: []Entry{
			{Start: SolarAt(Sunrise, 0), Days: []int{0, 1, 2, 3, 4, 5, 6}, Actions: []int{0}},
		},
	}
}

func TestInstallSunDataFirstInstall(t *testing.T) {
	t.Parallel()
	s := solarSchedule()
	resched, err := s.InstallSunData(wednesdayNoon, sunTable{Sunrise: {6, 12}}, 0)
	if err != nil {
		t.Fatalf("InstallSunData error: %v", err)
	}
	if resched {
		t.Fatal("first install asked for a reschedule")
	}
	if s.Sun() == nil {
		t.Fatal("first install did not commit the snapshot")
	}
}

func TestInstallSunDataDriftBand(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		next    sunTable
		resched bool
	}{
		{name: "no drift", next: sunTable{Sunrise: {6, 12}}, resched: false},
		{name: "inside band", next: sunTable{Sunrise: {6, 32}}, resched: true},
		{name: "one minute earlier", next: sunTable{Sunrise: {6, 11}}, resched: true},
		{name: "day boundary artifact", next: sunTable{Sunrise: {8, 30}}, resched: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			s := solarSchedule()
			if _, err := s.InstallSunData(wednesdayNoon, sunTable{Sunrise: {6, 12}}, 0); err != nil {
				t.Fatalf("first install error: %v", err)
			}
			resched, err := s.InstallSunData(wednesdayNoon, tt.next, 0)
			if err != nil {
				t.Fatalf("second install error: %v", err)
			}
			if resched != tt.resched {
				t.Fatalf("resched = %v, want %v", resched, tt.resched)
			}
			// The snapshot is committed whether or not a reschedule was asked.
			if !reflect.DeepEqual(s.Sun(), SunTimes(tt.next)) {
				t.Fatal("new snapshot was not committed")
			}
		})
	}
}

func TestInstallSunDataWithoutTargetEntry(t *testing.T) {
	t.Parallel()
	s := solarSchedule()
	if _, err := s.InstallSunData(wednesdayNoon, sunTable{Sunrise: {6, 12}}, -1); err != nil {
		t.Fatalf("install error: %v", err)
	}
	resched, err := s.InstallSunData(wednesdayNoon, sunTable{Sunrise: {6, 42}}, -1)
	if err != nil {
		t.Fatalf("install error: %v", err)
	}
	if resched {
		t.Fatal("install without target entry asked for a reschedule")
	}
}

func TestImportServiceDefaults(t *testing.T) {
	t.Parallel()
	s := &Schedule{}
	err := s.ImportService(ServiceImport{
		Name: "Morning lights",
		Entries: []EntryImport{
			{Time: TimeImport{At: "07:15"}, Actions: []int{0}},
			{Time: TimeImport{Event: "sunset", Offset: "-00:15"}, Days: []int{5, 1, 3}, Actions: []int{0}},
		},
		Actions: []ActionImport{
			{Service: "light.turn_on", ServiceData: map[string]any{"entity_id": "light.kitchen", "brightness": 120}},
		},
	})
	if err != nil {
		t.Fatalf("ImportService error: %v", err)
	}

	if s.Name != "Morning lights" {
		t.Fatalf("Name = %q", s.Name)
	}
	if !reflect.DeepEqual(s.Entries[0].Days, []int{0}) {
		t.Fatalf("default Days = %v, want [0]", s.Entries[0].Days)
	}
	if s.Entries[0].Start != FixedAt(7, 15) {
		t.Fatalf("Start = %+v, want fixed 07:15", s.Entries[0].Start)
	}
	if !reflect.DeepEqual(s.Entries[1].Days, []int{1, 3, 5}) {
		t.Fatalf("Days = %v, want sorted [1 3 5]", s.Entries[1].Days)
	}
	if s.Entries[1].Start != SolarAt(Sunset, -15*time.Minute) {
		t.Fatalf("Start = %+v, want sunset-15m", s.Entries[1].Start)
	}

	// service_data.entity_id became the entity; the shared domain collapsed
	// the service to its bare name.
	a := s.Actions[0]
	if a.Service != "turn_on" || a.Entity != "light.kitchen" {
		t.Fatalf("action = %+v, want bare turn_on with light.kitchen", a)
	}
	if !reflect.DeepEqual(a.Params, map[string]any{"brightness": 120}) {
		t.Fatalf("Params = %v", a.Params)
	}
}

func TestImportServiceQualifiesBareEntity(t *testing.T) {
	t.Parallel()
	s := &Schedule{}
	err := s.ImportService(ServiceImport{
		Entries: []EntryImport{{Time: TimeImport{At: "07:00"}, Actions: []int{0}}},
		Actions: []ActionImport{{Service: "switch.turn_off", Entity: "porch"}},
	})
	if err != nil {
		t.Fatalf("ImportService error: %v", err)
	}
	if s.Actions[0].Entity != "switch.porch" {
		t.Fatalf("Entity = %q, want \"switch.porch\"", s.Actions[0].Entity)
	}
}

func TestImportExportDataRoundTrip(t *testing.T) {
	t.Parallel()
	src := Data{
		Name:    "Garden",
		Icon:    "mdi:sprinkler",
		Entries: []string{"D135T0700T1900A0A1", "D0TSR0030A1"},
		Actions: []Action{
			{Service: "turn_on", Entity: "light.kitchen"},
			{Service: "switch.turn_off", Entity: "switch.pump", Params: map[string]any{"delay": "5s"}},
		},
	}
	s := &Schedule{}
	if err := s.ImportData(src); err != nil {
		t.Fatalf("ImportData error: %v", err)
	}
	out, err := s.ExportData()
	if err != nil {
		t.Fatalf("ExportData error: %v", err)
	}
	if !reflect.DeepEqual(out, src) {
		t.Fatalf("export = %+v, want %+v", out, src)
	}
}

func TestImportDataRejectsPartialRecords(t *testing.T) {
	t.Parallel()
	s := &Schedule{}
	if err := s.ImportData(Data{Entries: []string{"D0T0700A0"}}); !errors.Is(err, ErrMalformedEntry) {
		t.Fatalf("ImportData without actions = %v, want ErrMalformedEntry", err)
	}
	if err := s.ImportData(Data{Actions: []Action{}}); !errors.Is(err, ErrMalformedEntry) {
		t.Fatalf("ImportData without entries = %v, want ErrMalformedEntry", err)
	}

	s = &Schedule{}
	err := s.ImportData(Data{Entries: []string{"D0T0700A0", "broken"}, Actions: []Action{}})
	if !errors.Is(err, ErrMalformedEntry) {
		t.Fatalf("ImportData with broken entry = %v, want ErrMalformedEntry", err)
	}
	if len(s.Entries) != 0 {
		t.Fatalf("partial load: %d entries kept", len(s.Entries))
	}
}

func TestActionJSONFlattening(t *testing.T) {
	t.Parallel()
	a := Action{Service: "light.turn_on", Entity: "light.kitchen", Params: map[string]any{"brightness": float64(120)}}
	b, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal to map error: %v", err)
	}
	if m["service"] != "light.turn_on" || m["entity"] != "light.kitchen" || m["brightness"] != float64(120) {
		t.Fatalf("flattened form = %v", m)
	}

	var back Action
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if !reflect.DeepEqual(back, a) {
		t.Fatalf("round trip = %+v, want %+v", back, a)
	}
}

func TestServiceCallsBounds(t *testing.T) {
	t.Parallel()
	s := &Schedule{
		Entries: []Entry{{Start: FixedAt(7, 0), Days: []int{0}, Actions: []int{0}}},
		Actions: []Action{{Service: "light.turn_on", Entity: "light.kitchen"}},
	}
	if _, err := s.ServiceCalls(3); err == nil {
		t.Fatal("ServiceCalls(3) succeeded for out-of-range entry")
	}
	calls, err := s.ServiceCalls(0)
	if err != nil {
		t.Fatalf("ServiceCalls error: %v", err)
	}
	if len(calls) != 1 {
		t.Fatalf("got %d calls, want 1", len(calls))
	}
}

func TestHasSolar(t *testing.T) {
	t.Parallel()
	fixed := &Schedule{Entries: []Entry{{Start: FixedAt(7, 0), Days: []int{0}}}}
	if fixed.HasSolar() {
		t.Fatal("HasSolar = true for fixed-only schedule")
	}
	s := solarSchedule()
	if !s.HasSolar() {
		t.Fatal("HasSolar = false for solar schedule")
	}
	if !s.EntryHasSolar(0) || s.EntryHasSolar(7) {
		t.Fatal("EntryHasSolar bounds behavior wrong")
	}
}
