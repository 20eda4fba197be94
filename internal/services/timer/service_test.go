package timer

import (
	"context"
	"testing"
	"time"

	"sunsched/internal/dispatch"
	"sunsched/internal/eventbus"
	"sunsched/internal/schedule"
	"sunsched/internal/sundata"
	"sunsched/pkg/logx"
)

func mustEntry(t *testing.T, s string) schedule.Entry {
	t.Helper()
	e, err := schedule.DecodeEntry(s)
	if err != nil {
		t.Fatalf("DecodeEntry(%q) error = %v", s, err)
	}
	return e
}

func lightSchedule(t *testing.T, entry string) *schedule.Schedule {
	t.Helper()
	return &schedule.Schedule{
		Name:    "kitchen",
		Entries: []schedule.Entry{mustEntry(t, entry)},
		Actions: []schedule.Action{{Service: "turn_on", Entity: "light.kitchen"}},
	}
}

func waitEvent(t *testing.T, ch <-chan eventbus.Event, typ string) eventbus.Event {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev.Type == typ {
				return ev
			}
		case <-deadline:
			t.Fatalf("no %q event within deadline", typ)
		}
	}
}

func TestEntryFires(t *testing.T) {
	t.Parallel()

	bus := eventbus.New()
	events, unsub := bus.Subscribe(16)
	defer unsub()

	executed := make(chan schedule.ActionCall, 4)
	disp := dispatch.New(logx.Nop(), bus)
	disp.Register("light", dispatch.ExecutorFunc(func(ctx context.Context, call schedule.ActionCall) error {
		// The pinned clock makes the entry fire again after each re-arm,
		// so never block once the buffer is full.
		select {
		case executed <- call:
		default:
		}
		return nil
	}))

	svc := New(Config{Location: time.UTC}, logx.Nop(), bus, disp)
	// Pin the clock 100ms short of the entry time so the armed timer
	// fires almost immediately.
	svc.now = func() time.Time {
		return time.Date(2026, 3, 4, 12, 0, 59, int(900*time.Millisecond), time.UTC)
	}

	svc.Add("s1", lightSchedule(t, "D0123456T1201A0"))
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer svc.Stop()

	select {
	case call := <-executed:
		if call.Service != "light.turn_on" || call.EntityID != "light.kitchen" {
			t.Errorf("executed call = %+v, want light.turn_on on light.kitchen", call)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("entry did not fire")
	}

	ev := waitEvent(t, events, eventbus.TypeEntryFired)
	fired, ok := ev.Data.(Fired)
	if !ok {
		t.Fatalf("event data = %T, want Fired", ev.Data)
	}
	if fired.Schedule != "kitchen" || fired.Entry != 0 {
		t.Errorf("fired = %+v, want schedule kitchen entry 0", fired)
	}
}

func TestCatchUpReplaysActiveWindow(t *testing.T) {
	t.Parallel()

	bus := eventbus.New()
	executed := make(chan schedule.ActionCall, 4)
	disp := dispatch.New(logx.Nop(), bus)
	disp.Register("light", dispatch.ExecutorFunc(func(ctx context.Context, call schedule.ActionCall) error {
		executed <- call
		return nil
	}))

	svc := New(Config{Location: time.UTC}, logx.Nop(), bus, disp)
	svc.now = func() time.Time {
		return time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	}

	// The window 07:00-19:00 covers the pinned noon clock.
	svc.Add("s1", lightSchedule(t, "D0123456T0700T1900A0"))
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer svc.Stop()

	select {
	case call := <-executed:
		if call.Service != "light.turn_on" {
			t.Errorf("replayed call = %+v, want light.turn_on", call)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("active window entry was not replayed")
	}
}

func TestSunInstallArmsSolarEntry(t *testing.T) {
	t.Parallel()

	bus := eventbus.New()
	events, unsub := bus.Subscribe(16)
	defer unsub()
	disp := dispatch.New(logx.Nop(), bus)

	svc := New(Config{Location: time.UTC}, logx.Nop(), bus, disp)
	svc.now = func() time.Time {
		return time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	}

	sched := lightSchedule(t, "D0123456TSSA0")
	svc.Add("s1", sched)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer svc.Stop()

	snap := sundata.New(map[schedule.SolarEvent]time.Time{
		schedule.Sunset: time.Date(2026, 3, 4, 18, 30, 0, 0, time.UTC),
	})
	svc.applySun(snap)

	// The runner installs the snapshot before publishing, so receiving
	// the event orders this read after the install.
	waitEvent(t, events, eventbus.TypeSunInstalled)
	if sched.Sun() == nil {
		t.Fatal("sun snapshot was not installed on the schedule")
	}
}

func TestAddRemoveBeforeStart(t *testing.T) {
	t.Parallel()

	svc := New(Config{}, logx.Nop(), eventbus.New(), dispatch.New(logx.Nop(), eventbus.New()))
	svc.Add("s1", lightSchedule(t, "D0123456T1200A0"))
	svc.Add("s1", lightSchedule(t, "D0123456T1300A0"))
	svc.Remove("s1")
	svc.Stop()
}
