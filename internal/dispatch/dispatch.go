package dispatch

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"sunsched/internal/eventbus"
	"sunsched/internal/schedule"
	"sunsched/pkg/logx"
)

// FiredCall carries one dispatched action on the event bus.
type FiredCall struct {
	Schedule string
	Entry    int
	Call     schedule.ActionCall
}

// Executor runs resolved calls for one service domain.
type Executor interface {
	Execute(ctx context.Context, call schedule.ActionCall) error
}

// ExecutorFunc adapts a plain function to Executor.
type ExecutorFunc func(ctx context.Context, call schedule.ActionCall) error

func (f ExecutorFunc) Execute(ctx context.Context, call schedule.ActionCall) error {
	return f(ctx, call)
}

// Dispatcher fans resolved calls out to per-domain executors and publishes
// every call on the bus. Calls whose domain has no executor are logged and
// dropped; the warning is rate-limited so a hot misconfigured schedule
// cannot flood the log.
type Dispatcher struct {
	log logx.Logger
	bus eventbus.Bus

	mu    sync.RWMutex
	execs map[string]Executor

	warnLimit *rate.Limiter
}

func New(log logx.Logger, bus eventbus.Bus) *Dispatcher {
	return &Dispatcher{
		log:       log,
		bus:       bus,
		execs:     map[string]Executor{},
		warnLimit: rate.NewLimiter(rate.Every(10*time.Second), 3),
	}
}

// Register installs the executor for a service domain ("light", "notify",
// ...). Later registrations for the same domain replace earlier ones.
func (d *Dispatcher) Register(domain string, ex Executor) {
	d.mu.Lock()
	d.execs[domain] = ex
	d.mu.Unlock()
}

// Dispatch runs the calls in order. Execution failures are logged, not
// propagated: one broken action must not stop the rest of the entry.
func (d *Dispatcher) Dispatch(ctx context.Context, scheduleName string, entry int, calls []schedule.ActionCall) {
	for _, call := range calls {
		if d.bus != nil {
			d.bus.Publish(eventbus.Event{
				Type: eventbus.TypeActionDispatched,
				Data: FiredCall{Schedule: scheduleName, Entry: entry, Call: call},
			})
		}

		d.mu.RLock()
		ex := d.execs[call.Domain()]
		d.mu.RUnlock()

		if ex == nil {
			if d.warnLimit.Allow() {
				d.log.Warn("no executor for service domain",
					logx.String("schedule", scheduleName),
					logx.String("service", call.Service))
			}
			continue
		}

		start := time.Now()
		if err := ex.Execute(ctx, call); err != nil {
			d.log.Error("action failed",
				logx.String("schedule", scheduleName),
				logx.String("service", call.Service),
				logx.String("entity_id", call.EntityID),
				logx.Err(err))
			continue
		}
		d.log.Info("action executed",
			logx.String("schedule", scheduleName),
			logx.String("service", call.Service),
			logx.String("entity_id", call.EntityID),
			logx.Duration("took", time.Since(start)))
	}
}
