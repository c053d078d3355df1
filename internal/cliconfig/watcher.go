package cliconfig

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Tunables are the settings safe to change while the agent runs. Everything
// else (directories, camera source, SMTP) requires a restart.
type Tunables struct {
	CaptureDelay    time.Duration
	MaxArchiveBytes int64
	RetentionDays   int
}

// ApplyFunc receives the new tunables after a config file change.
type ApplyFunc func(Tunables)

// Watcher monitors the config file via fsnotify and pushes runtime-safe
// changes to the running agent.
type Watcher struct {
	path   string
	apply  ApplyFunc
	logger zerolog.Logger

	mu       sync.Mutex
	debounce *time.Timer
}

// NewWatcher watches the config file at path.
func NewWatcher(path string, apply ApplyFunc, logger zerolog.Logger) *Watcher {
	return &Watcher{path: path, apply: apply, logger: logger}
}

// Run blocks until ctx ends. Editors typically replace the file rather than
// write in place, so the watch is on the directory and events are filtered
// by name and debounced.
func (w *Watcher) Run(ctx context.Context) {
	if w.path == "" {
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Error().Err(err).Msg("config watcher: create failed")
		return
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		w.logger.Error().Err(err).Str("dir", filepath.Dir(w.path)).Msg("config watcher: watch failed")
		return
	}
	w.logger.Info().Str("path", w.path).Msg("config watcher: watching for changes")

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.debounceReload(100 * time.Millisecond)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("config watcher: error")
		}
	}
}

func (w *Watcher) debounceReload(delay time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(delay, w.reload)
}

func (w *Watcher) reload() {
	fc, err := LoadFileConfig(w.path)
	if err != nil {
		w.logger.Warn().Err(err).Msg("config watcher: reload failed, keeping current settings")
		return
	}

	var t Tunables
	if fc.CaptureDelay != "" {
		d, err := time.ParseDuration(fc.CaptureDelay)
		if err != nil {
			w.logger.Warn().Err(err).Msg("config watcher: bad capture_delay, ignored")
		} else {
			t.CaptureDelay = d
		}
	}
	if fc.MaxArchiveMB > 0 {
		t.MaxArchiveBytes = int64(fc.MaxArchiveMB) << 20
	}
	if fc.RetentionDays > 0 {
		t.RetentionDays = fc.RetentionDays
	}

	w.logger.Info().
		Dur("capture_delay", t.CaptureDelay).
		Int64("max_archive_bytes", t.MaxArchiveBytes).
		Int("retention_days", t.RetentionDays).
		Msg("config watcher: applying updated tunables")
	w.apply(t)
}
