// Package watch reports changes made to file-backed store keys by other
// processes.
package watch

import (
	"context"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Debounce is how long the watcher waits for a burst of events to settle.
const Debounce = 200 * time.Millisecond

// Callback receives the sorted set of keys touched during one burst.
type Callback func(keys []string)

// Watch watches root (a kv.FS directory) for changes to the given keys and
// calls cb once per debounced burst until ctx is cancelled.
func Watch(ctx context.Context, root string, keys []string, logger *slog.Logger, cb Callback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(root); err != nil {
		return err
	}

	files := make(map[string]string, len(keys))
	for _, k := range keys {
		files[k+".json"] = k
	}

	logger.Info("watch: started", slog.String("root", root))

	var timer *time.Timer
	var fire <-chan time.Time
	pending := map[string]struct{}{}

	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(Debounce)
			fire = timer.C
		} else {
			timer.Reset(Debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watch: stopped")
			return nil

		case <-fire:
			changed := make([]string, 0, len(pending))
			for k := range pending {
				changed = append(changed, k)
			}
			slices.Sort(changed)
			clear(pending)
			logger.Debug("watch: keys changed", slog.String("keys", strings.Join(changed, ",")))
			if cb != nil && len(changed) > 0 {
				cb(changed)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			key, tracked := files[filepath.Base(ev.Name)]
			if !tracked || ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			pending[key] = struct{}{}
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watch: error", slog.String("error", watchErr.Error()))
		}
	}
}
