package catalog

import (
	"context"
	"time"

	"connectord/pkg/logging"

	"github.com/fsnotify/fsnotify"
)

// rediscoverDebounce coalesces bursts of filesystem events (editors tend to
// write, chmod and rename in quick succession) into one re-discovery.
const rediscoverDebounce = 500 * time.Millisecond

// Watch re-discovers the catalog whenever manifest files change, until the
// context is cancelled. The catalog directory must exist when Watch is
// called; a missing directory disables watching but is not an error, since
// the daemon can run with a static (or empty) catalog.
func (c *Catalog) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	if err := watcher.Add(c.dir); err != nil {
		watcher.Close()
		logging.Warn("Catalog", "Not watching catalog directory %s: %v", c.dir, err)
		return nil
	}

	go func() {
		defer watcher.Close()

		var debounce *time.Timer
		var debounceC <-chan time.Time

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				if debounce == nil {
					debounce = time.NewTimer(rediscoverDebounce)
					debounceC = debounce.C
				} else {
					debounce.Reset(rediscoverDebounce)
				}
			case <-debounceC:
				debounce = nil
				debounceC = nil
				logging.Debug("Catalog", "Manifest change detected, re-discovering")
				c.Discover()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logging.Warn("Catalog", "Watcher error: %v", err)
			}
		}
	}()

	return nil
}
