package timer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"sunsched/internal/dispatch"
	"sunsched/internal/eventbus"
	"sunsched/internal/schedule"
	"sunsched/internal/sundata"
	"sunsched/pkg/logx"
)

const defaultSunRefresh = "@every 1h"

type Config struct {
	// SunFile is the ephemeris JSON maintained by an external producer.
	// Empty disables sun handling entirely.
	SunFile string
	// SunRefresh is a cron spec for periodic reloads. Descriptors like
	// "@every 30m" are accepted. Defaults to hourly.
	SunRefresh string
	// SunWatch additionally reloads on file write events.
	SunWatch bool
	// Location anchors the cron cadence. Defaults to the local zone.
	Location *time.Location
}

type Service struct {
	cfg  Config
	log  logx.Logger
	bus  eventbus.Bus
	disp *dispatch.Dispatcher
	now  func() time.Time

	mu      sync.Mutex
	runners map[string]*runner
	sun     *sundata.Snapshot
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func New(cfg Config, log logx.Logger, bus eventbus.Bus, disp *dispatch.Dispatcher) *Service {
	if cfg.SunRefresh == "" {
		cfg.SunRefresh = defaultSunRefresh
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Service{
		cfg:     cfg,
		log:     log,
		bus:     bus,
		disp:    disp,
		now:     time.Now,
		runners: map[string]*runner{},
	}
}

// Sun returns the most recently loaded snapshot, or nil before the first
// successful load.
func (s *Service) Sun() *sundata.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sun
}

// Add registers a schedule under a stable id and starts driving it if the
// service is running. Re-adding an id replaces the previous schedule.
func (s *Service) Add(id string, sched *schedule.Schedule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.runners[id]; ok {
		close(old.stop)
		if old.running {
			<-old.done
		}
	}
	if s.sun != nil {
		// First install, before the runner can observe the schedule.
		_, _ = sched.InstallSunData(s.now(), s.sun, -1)
	}
	r := newRunner(id, sched, s.log, s.bus, s.disp, s.now)
	s.runners[id] = r
	if s.ctx != nil {
		s.startRunnerLocked(r)
	}
}

// Remove stops and forgets the schedule under id.
func (s *Service) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runners[id]
	if !ok {
		return
	}
	delete(s.runners, id)
	close(r.stop)
	if r.running {
		<-r.done
	}
}

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx != nil {
		return nil
	}
	s.ctx, s.cancel = context.WithCancel(ctx)

	if s.cfg.SunFile != "" {
		if snap, err := sundata.LoadFile(s.cfg.SunFile); err != nil {
			s.log.Warn("sun file load", logx.String("path", s.cfg.SunFile), logx.Err(err))
		} else {
			s.sun = snap
		}

		s.cron = cron.New(cron.WithLocation(s.cfg.Location))
		if _, err := s.cron.AddFunc(s.cfg.SunRefresh, s.reloadSun); err != nil {
			s.cancel()
			s.ctx, s.cancel = nil, nil
			return fmt.Errorf("sun refresh spec %q: %w", s.cfg.SunRefresh, err)
		}
		s.cron.Start()

		if s.cfg.SunWatch {
			ctx := s.ctx
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				err := sundata.Watch(ctx, s.cfg.SunFile, s.log, s.applySun)
				if err != nil && ctx.Err() == nil {
					s.log.Warn("sun file watch stopped", logx.Err(err))
				}
			}()
		}
	}

	for _, r := range s.runners {
		if s.sun != nil {
			_, _ = r.sched.InstallSunData(s.now(), s.sun, -1)
		}
		s.startRunnerLocked(r)
	}
	s.log.Info("timer service started",
		logx.Int("schedules", len(s.runners)),
		logx.Bool("sun", s.cfg.SunFile != ""))
	return nil
}

func (s *Service) Stop() {
	s.mu.Lock()
	if s.ctx == nil {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	c := s.cron
	runners := make([]*runner, 0, len(s.runners))
	for _, r := range s.runners {
		runners = append(runners, r)
	}
	s.ctx, s.cancel, s.cron = nil, nil, nil
	s.mu.Unlock()

	cancel()
	if c != nil {
		<-c.Stop().Done()
	}
	for _, r := range runners {
		<-r.done
	}
	s.wg.Wait()
	s.log.Info("timer service stopped")
}

func (s *Service) startRunnerLocked(r *runner) {
	ctx := s.ctx
	r.done = make(chan struct{})
	r.running = true
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		r.run(ctx)
	}()
}

func (s *Service) reloadSun() {
	snap, err := sundata.LoadFile(s.cfg.SunFile)
	if err != nil {
		s.log.Warn("sun file reload", logx.String("path", s.cfg.SunFile), logx.Err(err))
		return
	}
	s.applySun(snap)
}

func (s *Service) applySun(snap *sundata.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sun = snap
	for _, r := range s.runners {
		r.pushSun(snap)
	}
	s.log.Debug("sun snapshot distributed", logx.Int("schedules", len(s.runners)))
}
