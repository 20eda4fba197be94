package app

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"sunsched/internal/eventbus"
	"sunsched/internal/ics"
	"sunsched/internal/schedule"
	"sunsched/pkg/logx"
)

const icsRewriteDebounce = 2 * time.Second

// runICSExport writes the calendar feed once at startup and again,
// debounced, whenever a sun snapshot lands, so the exported solar times
// track the ephemeris.
func (a *App) runICSExport(ctx context.Context) {
	events, unsub := a.bus.Subscribe(16)
	defer unsub()

	a.writeICS()

	var debounce *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			if ev.Type != eventbus.TypeSunInstalled {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(icsRewriteDebounce)
			} else {
				if !debounce.Stop() {
					select {
					case <-debounce.C:
					default:
					}
				}
				debounce.Reset(icsRewriteDebounce)
			}
			fire = debounce.C
		case <-fire:
			fire = nil
			a.writeICS()
		}
	}
}

func (a *App) writeICS() {
	var sun schedule.SunTimes
	if snap := a.timer.Sun(); snap != nil {
		sun = snap
	}
	feed, err := ics.Export(a.orderedSchedules(), sun, time.Now())
	if err != nil {
		a.log.Warn("ics export", logx.Err(err))
		return
	}
	path := a.cfg.ICS.File
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(feed), 0o644); err != nil {
		a.log.Warn("ics write", logx.String("path", path), logx.Err(err))
		return
	}
	if err := os.Rename(tmp, path); err != nil {
		a.log.Warn("ics write", logx.String("path", path), logx.Err(err))
		return
	}
	a.log.Debug("ics feed written",
		logx.String("path", filepath.Clean(path)))
}
