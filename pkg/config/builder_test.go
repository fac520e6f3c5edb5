package config

import "time"

// ConfigBuilder provides a fluent API for building Config instances in tests.
// It starts with default values and allows selective overrides.
type ConfigBuilder struct {
	cfg *Config
}

// NewTestConfig creates a new ConfigBuilder with valid defaults. Audit
// storage is in memory so tests never touch the filesystem.
func NewTestConfig() *ConfigBuilder {
	cfg := Default()
	cfg.Audit.Backend = "memory"
	return &ConfigBuilder{cfg: cfg}
}

// Build returns the built Config instance.
func (b *ConfigBuilder) Build() *Config {
	return b.cfg
}

// WithListenAddress sets the server listen address.
func (b *ConfigBuilder) WithListenAddress(addr string) *ConfigBuilder {
	b.cfg.Server.ListenAddress = addr
	return b
}

// WithRedis selects the Redis rate limit backend.
func (b *ConfigBuilder) WithRedis(url string) *ConfigBuilder {
	b.cfg.RateLimit.Backend = "redis"
	b.cfg.RateLimit.Redis.URL = url
	return b
}

// WithWindow sets the rate limit window and default limit.
func (b *ConfigBuilder) WithWindow(window time.Duration, limit int) *ConfigBuilder {
	b.cfg.RateLimit.Window = window
	b.cfg.RateLimit.DefaultLimit = limit
	return b
}

// WithExpiredTrialPolicy sets the expired trial policy.
func (b *ConfigBuilder) WithExpiredTrialPolicy(policy string) *ConfigBuilder {
	b.cfg.Plans.ExpiredTrialPolicy = policy
	return b
}

// WithRetry sets the retry policy basics.
func (b *ConfigBuilder) WithRetry(maxRetries int, base, maxDelay time.Duration) *ConfigBuilder {
	b.cfg.Retry.MaxRetries = maxRetries
	b.cfg.Retry.BaseDelay = base
	b.cfg.Retry.MaxDelay = maxDelay
	return b
}

// WithLoggingLevel sets the logging level.
func (b *ConfigBuilder) WithLoggingLevel(level string) *ConfigBuilder {
	b.cfg.Telemetry.Logging.Level = level
	return b
}
