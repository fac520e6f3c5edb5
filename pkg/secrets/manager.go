package secrets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// Manager resolves secrets through an ordered list of providers and caches
// the results.
type Manager struct {
	providers []Provider
	cache     *Cache
	logger    *slog.Logger
}

// NewManager creates a manager. Providers that detect rotation themselves
// also clear the manager's cache when they do.
func NewManager(providers []Provider, cacheConfig CacheConfig) *Manager {
	m := &Manager{
		providers: providers,
		cache:     NewCache(cacheConfig),
		logger:    slog.Default().With("component", "secrets"),
	}
	for _, p := range providers {
		if n, ok := p.(changeNotifier); ok {
			n.OnChange(m.cache.Clear)
		}
	}
	return m
}

// Secret returns the value from the first provider that has it.
func (m *Manager) Secret(ctx context.Context, name string) (string, error) {
	if value, ok := m.cache.Get(name); ok {
		return value, nil
	}

	var lastErr error
	for _, p := range m.providers {
		value, err := p.Secret(ctx, name)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				lastErr = err
				m.logger.Debug("secret provider failed",
					"provider", p.Name(),
					"name", redactSecretName(name),
					"error", err,
				)
			}
			continue
		}

		m.cache.Set(name, value)
		m.logger.Debug("secret resolved", "provider", p.Name(), "name", redactSecretName(name))
		return value, nil
	}

	if lastErr != nil {
		return "", fmt.Errorf("failed to get secret %s: %w", redactSecretName(name), lastErr)
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, redactSecretName(name))
}

// Lookup binds name, for use as a token source.
func (m *Manager) Lookup(name string) func(context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		return m.Secret(ctx, name)
	}
}

// Refresh drops the manager's cache and those of its providers.
func (m *Manager) Refresh() {
	for _, p := range m.providers {
		if r, ok := p.(Refresher); ok {
			r.Refresh()
		}
	}
	m.cache.Clear()
}

// Close closes providers that hold resources.
func (m *Manager) Close() error {
	var errs []error
	for _, p := range m.providers {
		if c, ok := p.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}

// redactSecretName keeps enough of a name to tell secrets apart in logs.
func redactSecretName(name string) string {
	if len(name) <= 4 {
		return "***"
	}
	return name[:2] + "..." + name[len(name)-2:]
}
