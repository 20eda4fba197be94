// Package app wires the daemon together: config, logging, storage, the
// dispatcher and the timer service. cmd/sunschedd owns the process
// lifecycle and delegates everything else here.
package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"sunsched/internal/config"
	"sunsched/internal/dispatch"
	"sunsched/internal/eventbus"
	"sunsched/internal/schedule"
	"sunsched/internal/services/timer"
	"sunsched/internal/storage"
	"sunsched/pkg/logx"
)

type App struct {
	cfgPath  string
	cfg      *config.Config
	log      logx.Logger
	closeLog func() error

	bus   eventbus.Bus
	store storage.Store
	disp  *dispatch.Dispatcher
	timer *timer.Service

	// mu guards schedules and configIDs. The aggregates themselves are
	// owned by their timer runners once added.
	mu        sync.Mutex
	schedules map[string]*schedule.Schedule
	// configIDs marks which schedule IDs came from the config file, so
	// a config reload knows which ones it is allowed to retire.
	configIDs map[string]bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, closeLog, err := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.ConsoleEnabled(),
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}

	a := &App{
		cfgPath:   cfgPath,
		cfg:       cfg,
		log:       log,
		closeLog:  closeLog,
		bus:       eventbus.New(),
		schedules: map[string]*schedule.Schedule{},
		configIDs: map[string]bool{},
	}

	if err := a.openStorage(); err != nil {
		a.close()
		return nil, err
	}
	if err := a.loadSchedules(); err != nil {
		a.close()
		return nil, err
	}

	a.disp = dispatch.New(log, a.bus)
	if cfg.Telegram.Enabled {
		n, err := dispatch.NewNotifier(dispatch.TelegramConfig{
			Enabled: true,
			Token:   cfg.Telegram.Token,
			ChatID:  cfg.Telegram.ChatID,
		}, log)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("telegram notifier: %w", err)
		}
		a.disp.Register("notify", n)
	}

	a.timer = timer.New(timer.Config{
		SunFile:    cfg.Sun.File,
		SunRefresh: cfg.Sun.Refresh,
		SunWatch:   cfg.Sun.Watch,
		Location:   cfg.Location(),
	}, log, a.bus, a.disp)
	for id, s := range a.schedules {
		a.timer.Add(id, s)
	}
	return a, nil
}

func (a *App) openStorage() error {
	timeout, err := config.ParseDurationField("storage.busy_timeout", a.cfg.Storage.BusyTimeout)
	if err != nil {
		return err
	}
	store, err := storage.Open(storage.Config{
		Driver:      a.cfg.Storage.Driver,
		Path:        a.cfg.Storage.Path,
		BusyTimeout: timeout,
	}, a.log)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	a.store = store
	return nil
}

// loadSchedules merges persisted records with schedules authored in the
// config file. Config schedules match stored records by name and replace
// them; new ones get a fresh ID and are persisted so they survive
// config edits.
func (a *App) loadSchedules() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	byName := map[string]string{}
	if a.store != nil {
		records, err := a.store.LoadSchedules(ctx)
		if err != nil {
			return fmt.Errorf("load stored schedules: %w", err)
		}
		for _, r := range records {
			s := &schedule.Schedule{}
			if err := s.ImportData(r.Data); err != nil {
				a.log.Warn("skipping corrupt stored schedule",
					logx.String("id", r.ID), logx.Err(err))
				continue
			}
			a.schedules[r.ID] = s
			byName[s.Name] = r.ID
		}
	}

	for i, imp := range a.cfg.Schedules {
		s := &schedule.Schedule{}
		if err := s.ImportService(imp); err != nil {
			return fmt.Errorf("config schedule %d (%q): %w", i, imp.Name, err)
		}
		id, ok := byName[s.Name]
		if !ok {
			id = uuid.NewString()
		}
		a.schedules[id] = s
		a.configIDs[id] = true
		byName[s.Name] = id
		if a.store != nil {
			data, err := s.ExportData()
			if err != nil {
				return fmt.Errorf("config schedule %q: %w", s.Name, err)
			}
			if err := a.store.SaveSchedule(ctx, storage.Record{ID: id, Data: data}); err != nil {
				return fmt.Errorf("persist schedule %q: %w", s.Name, err)
			}
		}
	}

	a.log.Info("schedules loaded", logx.Int("count", len(a.schedules)))
	return nil
}

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if err := a.timer.Start(runCtx); err != nil {
		cancel()
		return err
	}

	if a.cfg.ICS.File != "" {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.runICSExport(runCtx)
		}()
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		err := config.Watch(runCtx, a.cfgPath, a.log, a.applyConfig)
		if err != nil && runCtx.Err() == nil {
			a.log.Warn("config watch stopped", logx.Err(err))
		}
	}()

	a.log.Info("sunsched started",
		logx.Int("schedules", len(a.schedules)),
		logx.String("storage", a.cfg.Storage.Driver))
	return nil
}

func (a *App) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.timer != nil {
		a.timer.Stop()
	}
	a.wg.Wait()
	a.close()
	a.log.Info("sunsched stopped")
}

func (a *App) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("storage close", logx.Err(err))
		}
		a.store = nil
	}
	if a.closeLog != nil {
		_ = a.closeLog()
		a.closeLog = nil
	}
}

// applyConfig handles a config file reload. Only the schedule list is
// hot-swappable: config schedules are re-imported, upserted by name and
// pushed to the timer service; config-born schedules that vanished from
// the file are retired. Everything else needs a restart.
func (a *App) applyConfig(cfg *config.Config) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a.mu.Lock()
	defer a.mu.Unlock()

	byName := map[string]string{}
	for id, s := range a.schedules {
		byName[s.Name] = id
	}

	seen := map[string]bool{}
	for i, imp := range cfg.Schedules {
		s := &schedule.Schedule{}
		if err := s.ImportService(imp); err != nil {
			a.log.Warn("reloaded schedule rejected",
				logx.Int("index", i), logx.String("name", imp.Name), logx.Err(err))
			continue
		}
		id, ok := byName[s.Name]
		if !ok {
			id = uuid.NewString()
		}
		a.schedules[id] = s
		a.configIDs[id] = true
		byName[s.Name] = id
		seen[id] = true
		if a.store != nil {
			data, err := s.ExportData()
			if err == nil {
				err = a.store.SaveSchedule(ctx, storage.Record{ID: id, Data: data})
			}
			if err != nil {
				a.log.Warn("persist reloaded schedule",
					logx.String("name", s.Name), logx.Err(err))
			}
		}
		a.timer.Add(id, s)
	}

	for id := range a.configIDs {
		if seen[id] {
			continue
		}
		name := ""
		if s, ok := a.schedules[id]; ok {
			name = s.Name
		}
		a.timer.Remove(id)
		delete(a.schedules, id)
		delete(a.configIDs, id)
		if a.store != nil {
			if err := a.store.DeleteSchedule(ctx, id); err != nil {
				a.log.Warn("delete retired schedule", logx.String("id", id), logx.Err(err))
			}
		}
		a.log.Info("schedule retired", logx.String("name", name))
	}
	a.log.Info("schedules reloaded", logx.Int("count", len(a.schedules)))
}

// orderedSchedules returns the aggregates in a stable name order for
// export.
func (a *App) orderedSchedules() []*schedule.Schedule {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*schedule.Schedule, 0, len(a.schedules))
	for _, s := range a.schedules {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
