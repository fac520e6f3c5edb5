package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0644)
}

func TestWatcher_ReloadNotifiesSubscribers(t *testing.T) {
	resetGlobal()
	t.Cleanup(resetGlobal)

	path := writeConfig(t, "rate_limit:\n  default_limit: 3\n")
	if err := Initialize(path); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}

	w := NewWatcher(path)
	var gotPrev, gotNext int
	w.Subscribe(func(previous, next *Config) {
		gotPrev = previous.RateLimit.DefaultLimit
		gotNext = next.RateLimit.DefaultLimit
	})

	if err := writeFile(path, "rate_limit:\n  default_limit: 9\n"); err != nil {
		t.Fatal(err)
	}
	w.Reload()

	if gotPrev != 3 || gotNext != 9 {
		t.Errorf("expected subscriber to see 3 -> 9, got %d -> %d", gotPrev, gotNext)
	}
}

func TestWatcher_FailedReloadSkipsSubscribers(t *testing.T) {
	w := NewWatcher("tollgate.yaml")
	w.reload = func(string) (*Config, *Config, error) {
		return nil, nil, errors.New("boom")
	}

	called := false
	w.Subscribe(func(previous, next *Config) { called = true })
	w.Reload()

	if called {
		t.Error("subscribers must not run after a failed reload")
	}
}

func TestWatcher_Relevant(t *testing.T) {
	w := NewWatcher("/etc/tollgate/tollgate.yaml")

	tests := []struct {
		name  string
		event fsnotify.Event
		want  bool
	}{
		{"write to file", fsnotify.Event{Name: "/etc/tollgate/tollgate.yaml", Op: fsnotify.Write}, true},
		{"create by rename", fsnotify.Event{Name: "/etc/tollgate/tollgate.yaml", Op: fsnotify.Create}, true},
		{"chmod only", fsnotify.Event{Name: "/etc/tollgate/tollgate.yaml", Op: fsnotify.Chmod}, false},
		{"sibling file", fsnotify.Event{Name: "/etc/tollgate/catalog.yaml", Op: fsnotify.Write}, false},
		{"editor swap file", fsnotify.Event{Name: "/etc/tollgate/.tollgate.yaml.swp", Op: fsnotify.Write}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := w.relevant(tt.event); got != tt.want {
				t.Errorf("relevant(%v) = %v, want %v", tt.event, got, tt.want)
			}
		})
	}
}

func TestWatcher_RunDetectsChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tollgate.yaml")
	if err := writeFile(path, ""); err != nil {
		t.Fatal(err)
	}

	w := NewWatcher(path, WithDebounce(20*time.Millisecond))
	var reloads atomic.Int32
	w.reload = func(string) (*Config, *Config, error) {
		reloads.Add(1)
		return Default(), Default(), nil
	}
	var notified atomic.Int32
	w.Subscribe(func(previous, next *Config) { notified.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// The watch is registered asynchronously; keep touching the file until
	// a reload lands.
	deadline := time.Now().Add(5 * time.Second)
	for notified.Load() == 0 && time.Now().Before(deadline) {
		if err := writeFile(path, "rate_limit:\n  default_limit: 1\n"); err != nil {
			t.Fatal(err)
		}
		time.Sleep(100 * time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run returned error: %v", err)
	}
	if notified.Load() == 0 || reloads.Load() == 0 {
		t.Fatal("expected at least one reload notification")
	}
}

func TestWatcher_RunMissingDirectory(t *testing.T) {
	w := NewWatcher(filepath.Join(t.TempDir(), "missing", "tollgate.yaml"))
	if err := w.Run(context.Background()); err == nil {
		t.Error("expected error watching a missing directory")
	}
}
