package timer

import (
	"context"
	"errors"
	"time"

	"sunsched/internal/dispatch"
	"sunsched/internal/eventbus"
	"sunsched/internal/schedule"
	"sunsched/pkg/logx"
)

// Fired is the bus payload for an entry crossing its fire time.
type Fired struct {
	Schedule string    `json:"schedule"`
	Entry    int       `json:"entry"`
	At       time.Time `json:"at"`
}

// runner owns one schedule aggregate. All access to r.sched happens on
// the runner goroutine; the service only talks to it through sunCh and
// stop.
type runner struct {
	id    string
	sched *schedule.Schedule
	log   logx.Logger
	bus   eventbus.Bus
	disp  *dispatch.Dispatcher
	now   func() time.Time

	sunCh chan schedule.SunTimes
	stop  chan struct{}
	done  chan struct{}

	// running is set by the service under its mutex once the goroutine
	// has been launched; the service never waits on done otherwise.
	running bool
}

func newRunner(id string, sched *schedule.Schedule, log logx.Logger, bus eventbus.Bus, disp *dispatch.Dispatcher, now func() time.Time) *runner {
	return &runner{
		id:    id,
		sched: sched,
		log:   log.With(logx.String("schedule", sched.Name)),
		bus:   bus,
		disp:  disp,
		now:   now,
		sunCh: make(chan schedule.SunTimes, 1),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// pushSun hands a fresh sun snapshot to the runner, replacing any
// snapshot it has not consumed yet. Callers are serialized by the
// service mutex, so the drain-then-send pair cannot race another sender.
func (r *runner) pushSun(sun schedule.SunTimes) {
	select {
	case <-r.sunCh:
	default:
	}
	r.sunCh <- sun
}

func (r *runner) run(ctx context.Context) {
	defer close(r.done)

	r.catchUp(ctx)

	timer := time.NewTimer(time.Hour)
	stopTimer(timer)
	defer timer.Stop()

	armedIdx := -1
	rearm := func() {
		stopTimer(timer)
		armedIdx = -1
		idx, at, err := r.sched.ClosestUpcoming(r.now())
		switch {
		case err == nil:
			armedIdx = idx
			timer.Reset(at.Sub(r.now()))
			r.log.Debug("entry armed", logx.Int("entry", idx), logx.Time("at", at))
		case errors.Is(err, schedule.ErrNoUpcomingOccurrence), errors.Is(err, schedule.ErrNoSunData):
			r.log.Debug("nothing to arm", logx.Err(err))
		default:
			r.log.Warn("arming failed", logx.Err(err))
		}
	}
	rearm()

	for {
		var fireC <-chan time.Time
		if armedIdx >= 0 {
			fireC = timer.C
		}
		select {
		case <-ctx.Done():
			return
		case <-r.stop:
			return
		case sun := <-r.sunCh:
			resched, err := r.sched.InstallSunData(r.now(), sun, armedIdx)
			if err != nil {
				r.log.Warn("sun snapshot install", logx.Err(err))
			}
			r.bus.Publish(eventbus.Event{
				Type: eventbus.TypeSunInstalled,
				Time: r.now(),
				Data: r.sched.Name,
			})
			if resched || armedIdx < 0 {
				rearm()
			}
		case <-fireC:
			r.fire(ctx, armedIdx)
			rearm()
		}
	}
}

// catchUp dispatches the entry whose window covers the current moment, so
// a restart mid-window restores the state the window implies.
func (r *runner) catchUp(ctx context.Context) {
	idx, ok, err := r.sched.FirstActiveEntry(r.now())
	if err != nil {
		r.log.Warn("active window check", logx.Err(err))
		return
	}
	if !ok {
		return
	}
	r.log.Info("inside active window, replaying entry", logx.Int("entry", idx))
	r.fire(ctx, idx)
}

func (r *runner) fire(ctx context.Context, idx int) {
	calls, err := r.sched.ServiceCalls(idx)
	if err != nil {
		r.log.Error("resolve entry actions", logx.Int("entry", idx), logx.Err(err))
		return
	}
	now := r.now()
	r.bus.Publish(eventbus.Event{
		Type: eventbus.TypeEntryFired,
		Time: now,
		Data: Fired{Schedule: r.sched.Name, Entry: idx, At: now},
	})
	r.disp.Dispatch(ctx, r.sched.Name, idx, calls)
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
