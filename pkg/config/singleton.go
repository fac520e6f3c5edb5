package config

import (
	"fmt"
	"sync"
	"sync/atomic"
)

var (
	// current holds the process-wide configuration.
	current atomic.Pointer[Config]

	// initOnce ensures configuration is initialized only once.
	initOnce sync.Once

	// reloadMu serializes reloads so subscribers observe them in order.
	reloadMu sync.Mutex
)

// Initialize loads configuration from the specified path with environment
// variable overrides and stores it as the global configuration.
// Subsequent calls are ignored.
func Initialize(path string) error {
	var initErr error

	initOnce.Do(func() {
		cfg, err := LoadConfigWithEnvOverrides(path)
		if err != nil {
			initErr = err
			return
		}
		current.Store(cfg)
	})

	return initErr
}

// GetConfig returns the global configuration, or nil if Initialize has not
// succeeded. Callers must treat the returned value as read-only; a reload
// swaps in a new instance rather than mutating it.
func GetConfig() *Config {
	return current.Load()
}

// SetConfig replaces the global configuration. Intended for tests and for
// embedding applications that build their Config programmatically.
func SetConfig(cfg *Config) {
	current.Store(cfg)
}

// ReloadConfig reloads the configuration from path and swaps it in only if
// loading and validation succeed. It returns the previous and new
// configurations. On error the existing configuration remains in place.
func ReloadConfig(path string) (previous, next *Config, err error) {
	reloadMu.Lock()
	defer reloadMu.Unlock()

	next, err = LoadConfigWithEnvOverrides(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to reload configuration: %w", err)
	}

	previous = current.Swap(next)
	return previous, next, nil
}

// MustGetConfig returns the global configuration and panics if it has not
// been initialized.
func MustGetConfig() *Config {
	cfg := GetConfig()
	if cfg == nil {
		panic("configuration not initialized: call Initialize first")
	}
	return cfg
}
