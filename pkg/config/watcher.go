package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for writes to settle before
// reloading.
const DefaultDebounce = 250 * time.Millisecond

// Subscriber is notified after a successful reload.
type Subscriber func(previous, next *Config)

// Watcher reloads the configuration file when it changes and notifies
// subscribers. The containing directory is watched so that editors which
// replace the file by rename are handled.
type Watcher struct {
	path     string
	debounce time.Duration
	logger   *slog.Logger
	reload   func(path string) (*Config, *Config, error)

	mu          sync.Mutex
	subscribers []Subscriber
	timer       *time.Timer
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets the debounce interval.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithWatcherLogger sets the logger.
func WithWatcherLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewWatcher creates a watcher for the configuration file at path.
// Reloads go through ReloadConfig, so the global configuration is updated.
func NewWatcher(path string, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		path:     filepath.Clean(path),
		debounce: DefaultDebounce,
		logger:   slog.Default().With("component", "config.watcher"),
		reload:   ReloadConfig,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Subscribe registers fn to be called after every successful reload.
func (w *Watcher) Subscribe(fn Subscriber) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.subscribers = append(w.subscribers, fn)
}

// Run watches until ctx is cancelled. It blocks.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer fsw.Close()

	dir := filepath.Dir(w.path)
	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %q: %w", dir, err)
	}

	w.logger.Info("config watcher started",
		"path", w.path,
		"debounce_ms", w.debounce.Milliseconds(),
	)

	defer w.stopTimer()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("config watcher stopped")
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("config file event", "path", event.Name, "op", event.Op.String())
			w.schedule()

		case err, ok := <-fsw.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("config watcher error", "error", err)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&fsnotify.Chmod == fsnotify.Chmod {
		return false
	}
	return filepath.Clean(event.Name) == w.path
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.Reload)
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

// Reload reloads the file immediately and notifies subscribers on success.
// A failed reload is logged and the previous configuration stays active.
func (w *Watcher) Reload() {
	previous, next, err := w.reload(w.path)
	if err != nil {
		w.logger.Error("config reload failed, keeping previous configuration", "path", w.path, "error", err)
		return
	}

	w.logger.Info("config reloaded", "path", w.path)

	w.mu.Lock()
	subscribers := append([]Subscriber(nil), w.subscribers...)
	w.mu.Unlock()

	for _, fn := range subscribers {
		fn(previous, next)
	}
}
