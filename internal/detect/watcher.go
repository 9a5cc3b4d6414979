package detect

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/duskd/internal/config"
	"github.com/dokzlo13/duskd/internal/event"
)

// reloadDebounce collapses the burst of filesystem events an editor
// save produces (truncate, write, rename) into one reload.
const reloadDebounce = 500 * time.Millisecond

// ConfigWatcher emits a Reload event when the configuration on disk
// changes. It watches directories rather than files so atomic-rename
// saves are seen, and follows the active preset directory as the
// daemon switches presets.
type ConfigWatcher struct {
	paths   config.Paths
	events  *event.Dispatcher
	watcher *fsnotify.Watcher

	mu        sync.Mutex
	presetDir string
	debounce  *time.Timer
}

func NewConfigWatcher(paths config.Paths, events *event.Dispatcher) (*ConfigWatcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating config watcher: %w", err)
	}
	w := &ConfigWatcher{paths: paths, events: events, watcher: fsWatcher}
	if err := fsWatcher.Add(paths.ConfigDir); err != nil {
		log.Warn().Err(err).Str("dir", paths.ConfigDir).Msg("Cannot watch config directory")
	}
	return w, nil
}

// WatchPreset points the watcher at the directory of the active
// preset. An empty dir clears the preset watch. The daemon calls this
// after every successful (re)load, so the watch follows preset
// switches.
func (w *ConfigWatcher) WatchPreset(dir string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if dir == w.presetDir {
		return
	}
	if w.presetDir != "" {
		_ = w.watcher.Remove(w.presetDir)
	}
	w.presetDir = dir
	if dir == "" {
		return
	}
	if err := w.watcher.Add(dir); err != nil {
		log.Warn().Err(err).Str("dir", dir).Msg("Cannot watch preset directory")
		w.presetDir = ""
		return
	}
	log.Debug().Str("dir", dir).Msg("Watching preset directory")
}

// Run dispatches filesystem events until ctx is cancelled.
func (w *ConfigWatcher) Run(ctx context.Context) error {
	defer w.close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("Config watcher error")
		}
	}
}

func (w *ConfigWatcher) close() {
	_ = w.watcher.Close()
	w.mu.Lock()
	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.mu.Unlock()
}

func (w *ConfigWatcher) handle(ev fsnotify.Event) {
	const ops = fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename
	if ev.Op&ops == 0 || !relevantFile(ev.Name) {
		return
	}
	log.Debug().Str("file", ev.Name).Str("op", ev.Op.String()).Msg("Configuration changed on disk")

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(reloadDebounce, func() {
		w.events.TrySend(event.Event{Kind: event.KindReload, Source: "watcher"})
	})
}

// relevantFile filters to the files Load actually reads.
func relevantFile(path string) bool {
	switch filepath.Base(path) {
	case "duskd.toml", "geo.toml", "active_preset":
		return true
	}
	return false
}
