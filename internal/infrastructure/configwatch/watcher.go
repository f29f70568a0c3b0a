// Package configwatch reloads the application configuration when the
// config file changes on disk. Editors and sync tools tend to fire
// bursts of events per save, so changes are debounced before reload.
package configwatch

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jbctechsolutions/yardsync/internal/infrastructure/config"
	"github.com/jbctechsolutions/yardsync/internal/infrastructure/logging"
)

// ReloadFunc receives the freshly loaded configuration after a change.
type ReloadFunc func(cfg *config.Config)

// WatcherConfig holds tuning for the config file watcher.
type WatcherConfig struct {
	DebounceDuration time.Duration
}

// DefaultWatcherConfig returns sensible default configuration.
func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{
		DebounceDuration: 200 * time.Millisecond,
	}
}

// Watcher monitors one config file and reloads it on change.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	loader    *config.Loader
	path      string
	onReload  ReloadFunc
	logger    *logging.Logger
	cfg       WatcherConfig

	// Debouncing state
	pendingMu sync.Mutex
	pendingAt time.Time
	pending   bool

	// Lifecycle
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

// NewWatcher creates a watcher for the given config file path. The
// parent directory is watched so atomic rename-into-place saves are
// caught too.
func NewWatcher(loader *config.Loader, path string, onReload ReloadFunc, logger *logging.Logger, cfg WatcherConfig) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.DebounceDuration <= 0 {
		cfg.DebounceDuration = 200 * time.Millisecond
	}

	return &Watcher{
		fsWatcher: fsWatcher,
		loader:    loader,
		path:      filepath.Clean(path),
		onReload:  onReload,
		logger:    logger,
		cfg:       cfg,
	}, nil
}

// Start begins watching. It returns immediately; reloads happen on a
// background goroutine until Close.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.fsWatcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(1)
	go w.loop(ctx)
	return nil
}

// Close stops the watcher and releases resources.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	if w.cancel != nil {
		w.cancel()
	}
	err := w.fsWatcher.Close()
	w.wg.Wait()
	return err
}

// loop consumes fsnotify events and emits debounced reloads.
func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.DebounceDuration / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.pendingMu.Lock()
			w.pending = true
			w.pendingAt = time.Now()
			w.pendingMu.Unlock()

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.WarnContext(ctx, "config watcher error", "error", err.Error())

		case <-ticker.C:
			w.maybeReload(ctx)
		}
	}
}

// maybeReload fires the reload callback once the burst of events has
// settled.
func (w *Watcher) maybeReload(ctx context.Context) {
	w.pendingMu.Lock()
	ready := w.pending && time.Since(w.pendingAt) >= w.cfg.DebounceDuration
	if ready {
		w.pending = false
	}
	w.pendingMu.Unlock()

	if !ready {
		return
	}

	cfg, err := w.loader.Load(w.path)
	if err != nil {
		w.logger.WarnContext(ctx, "config reload failed", "path", w.path, "error", err.Error())
		return
	}
	if err := cfg.Validate(); err != nil {
		w.logger.WarnContext(ctx, "changed config is invalid, keeping previous", "path", w.path, "error", err.Error())
		return
	}

	w.logger.InfoContext(ctx, "config reloaded", "path", w.path)
	w.onReload(cfg)
}
