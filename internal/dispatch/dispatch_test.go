package dispatch

import (
	"context"
	"testing"

	"sunsched/internal/eventbus"
	"sunsched/internal/schedule"
	"sunsched/pkg/logx"
)

func TestDispatchRoutesByDomain(t *testing.T) {
	t.Parallel()
	d := New(logx.Nop(), nil)

	var lights []schedule.ActionCall
	d.Register("light", ExecutorFunc(func(_ context.Context, c schedule.ActionCall) error {
		lights = append(lights, c)
		return nil
	}))

	calls := []schedule.ActionCall{
		{Service: "light.turn_on", EntityID: "light.kitchen"},
		{Service: "switch.turn_off", EntityID: "switch.porch"}, // no executor; dropped
		{Service: "light.turn_off", EntityID: "light.kitchen"},
	}
	d.Dispatch(context.Background(), "morning", 0, calls)

	if len(lights) != 2 {
		t.Fatalf("light executor received %d calls, want 2", len(lights))
	}
	if lights[0].Service != "light.turn_on" || lights[1].Service != "light.turn_off" {
		t.Fatalf("call order = %q, %q", lights[0].Service, lights[1].Service)
	}
}

func TestDispatchPublishesOnBus(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	ch, unsub := bus.Subscribe(4)
	defer unsub()

	d := New(logx.Nop(), bus)
	d.Dispatch(context.Background(), "morning", 2, []schedule.ActionCall{
		{Service: "light.turn_on", EntityID: "light.kitchen"},
	})

	ev := <-ch
	if ev.Type != eventbus.TypeActionDispatched {
		t.Fatalf("event type = %q, want %q", ev.Type, eventbus.TypeActionDispatched)
	}
	fc, ok := ev.Data.(FiredCall)
	if !ok {
		t.Fatalf("event data = %T, want FiredCall", ev.Data)
	}
	if fc.Schedule != "morning" || fc.Entry != 2 || fc.Call.Service != "light.turn_on" {
		t.Fatalf("fired call = %+v", fc)
	}
}

func TestDispatchContinuesAfterExecutorError(t *testing.T) {
	t.Parallel()
	d := New(logx.Nop(), nil)

	ran := 0
	d.Register("light", ExecutorFunc(func(_ context.Context, c schedule.ActionCall) error {
		ran++
		if ran == 1 {
			return context.DeadlineExceeded
		}
		return nil
	}))

	d.Dispatch(context.Background(), "s", 0, []schedule.ActionCall{
		{Service: "light.turn_on"},
		{Service: "light.turn_off"},
	})
	if ran != 2 {
		t.Fatalf("executor ran %d times, want 2 (errors must not stop the entry)", ran)
	}
}
