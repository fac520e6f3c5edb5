package secrets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// FileProvider loads secrets from individual files in a directory.
//
// The file name is the secret name. Files must be regular files with 0600
// or 0400 permissions. An empty file counts as missing. Values are trimmed
// and cached until Refresh, which the watcher calls on any change in the
// directory.
type FileProvider struct {
	dir    string
	logger *slog.Logger

	mu        sync.RWMutex
	cache     map[string]string
	listeners []func()

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewFileProvider creates a provider reading from dir. With watch set, the
// directory is watched with fsnotify and the cache is dropped on change.
func NewFileProvider(dir string, watch bool) (*FileProvider, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat secrets directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("secrets path is not a directory: %s", dir)
	}

	p := &FileProvider{
		dir:    dir,
		logger: slog.Default().With("component", "secrets.file"),
		cache:  make(map[string]string),
		done:   make(chan struct{}),
	}

	if watch {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, fmt.Errorf("failed to create file watcher: %w", err)
		}
		if err := watcher.Add(dir); err != nil {
			_ = watcher.Close()
			return nil, fmt.Errorf("failed to watch secrets directory: %w", err)
		}
		p.watcher = watcher
		p.wg.Add(1)
		go p.watchLoop()
	}

	p.logger.Info("file secret provider started", "path", dir, "watch", watch)
	return p, nil
}

// Secret reads the file named name.
func (p *FileProvider) Secret(ctx context.Context, name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("invalid secret name %q", name)
	}

	p.mu.RLock()
	value, ok := p.cache[name]
	p.mu.RUnlock()
	if ok {
		return value, nil
	}

	path := filepath.Join(p.dir, name)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s (file)", ErrNotFound, redactSecretName(name))
		}
		return "", fmt.Errorf("failed to stat secret file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("secret path is not a regular file: %s", redactSecretName(name))
	}
	if mode := info.Mode().Perm(); mode != 0600 && mode != 0400 {
		return "", fmt.Errorf("insecure permissions on secret %s: %o (expected 0600 or 0400)", redactSecretName(name), mode)
	}

	// #nosec G304 - name is a single path element inside dir
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read secret file: %w", err)
	}
	value = strings.TrimSpace(string(data))
	if value == "" {
		return "", fmt.Errorf("%w: %s (empty file)", ErrNotFound, redactSecretName(name))
	}

	p.mu.Lock()
	p.cache[name] = value
	p.mu.Unlock()

	return value, nil
}

// Name returns "file".
func (p *FileProvider) Name() string {
	return "file"
}

// Refresh drops cached values so the next read hits the files.
func (p *FileProvider) Refresh() {
	p.mu.Lock()
	p.cache = make(map[string]string)
	p.mu.Unlock()
}

// OnChange registers fn to run after the watcher refreshes the cache.
func (p *FileProvider) OnChange(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}

// Close stops the watcher.
func (p *FileProvider) Close() error {
	if p.watcher == nil {
		return nil
	}
	close(p.done)
	err := p.watcher.Close()
	p.wg.Wait()
	return err
}

func (p *FileProvider) watchLoop() {
	defer p.wg.Done()

	for {
		select {
		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			// Kubernetes swaps a ..data symlink, which surfaces as create
			// and remove events rather than writes.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			p.logger.Debug("secret files changed, refreshing",
				"file", filepath.Base(event.Name),
				"op", event.Op.String(),
			)
			p.Refresh()

			p.mu.RLock()
			listeners := append([]func(){}, p.listeners...)
			p.mu.RUnlock()
			for _, fn := range listeners {
				fn()
			}

		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("secret file watcher error", "error", err)

		case <-p.done:
			return
		}
	}
}
