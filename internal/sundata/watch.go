package sundata

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"sunsched/pkg/logx"
)

// debounce window for editors/producers that emit several write events
// for a single rewrite.
const reloadDebounce = 250 * time.Millisecond

// Watch reloads the sun file whenever the external producer rewrites it
// and hands each successfully parsed snapshot to onUpdate. It watches the
// parent directory so atomic rename-into-place is seen too. The goroutine
// exits when ctx is done.
func Watch(ctx context.Context, path string, log logx.Logger, onUpdate func(*Snapshot)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		_ = w.Close()
		return err
	}
	target := filepath.Clean(path)

	go func() {
		defer w.Close()

		var pending *time.Timer
		var pendC <-chan time.Time

		for {
			select {
			case <-ctx.Done():
				return

			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if pending == nil {
					pending = time.NewTimer(reloadDebounce)
					pendC = pending.C
				} else {
					if !pending.Stop() {
						select {
						case <-pendC:
						default:
						}
					}
					pending.Reset(reloadDebounce)
				}

			case <-pendC:
				snap, err := LoadFile(path)
				if err != nil {
					log.Warn("sun file reload failed", logx.String("path", path), logx.Err(err))
					continue
				}
				log.Debug("sun file reloaded", logx.String("path", path))
				onUpdate(snap)

			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warn("sun file watcher error", logx.Err(err))
			}
		}
	}()
	return nil
}
