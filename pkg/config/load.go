package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment variable override.
const EnvPrefix = "TOLLGATE_"

// LoadConfig loads configuration from a YAML file at the specified path.
// The file is decoded on top of Default, then defaults are applied to any
// field the file set to a zero value, and the result is validated.
// The configuration is not modified by environment variables; use
// LoadConfigWithEnvOverrides for that functionality.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML configuration on top of the defaults without
// validating it.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention TOLLGATE_SECTION_FIELD (e.g., TOLLGATE_SERVER_LISTEN_ADDRESS).
// Environment variables always take precedence over file-based configuration.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Values that fail to parse are ignored.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	envString("SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	envDuration("SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	envDuration("SERVER_IDLE_TIMEOUT", &cfg.Server.IdleTimeout)
	envDuration("SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	envString("SERVER_API_KEYS_SECRET", &cfg.Server.APIKeysSecret)

	// Rate limit overrides
	envString("RATE_LIMIT_BACKEND", &cfg.RateLimit.Backend)
	envDuration("RATE_LIMIT_WINDOW", &cfg.RateLimit.Window)
	envDuration("RATE_LIMIT_GRACE", &cfg.RateLimit.Grace)
	envInt("RATE_LIMIT_DEFAULT_LIMIT", &cfg.RateLimit.DefaultLimit)
	envBool("RATE_LIMIT_STRICT_TENANT_KEY", &cfg.RateLimit.StrictTenantKey)
	envString("RATE_LIMIT_REDIS_URL", &cfg.RateLimit.Redis.URL)
	envString("RATE_LIMIT_REDIS_KEY_PREFIX", &cfg.RateLimit.Redis.KeyPrefix)

	// Plan overrides
	envString("PLANS_CATALOG_PATH", &cfg.Plans.CatalogPath)
	envString("PLANS_EXPIRED_TRIAL_POLICY", &cfg.Plans.ExpiredTrialPolicy)
	envString("PLANS_FALLBACK_TIER", &cfg.Plans.FallbackTier)

	// Subscription overrides
	envString("SUBSCRIPTIONS_BACKEND", &cfg.Subscriptions.Backend)
	envString("SUBSCRIPTIONS_SQLITE_PATH", &cfg.Subscriptions.SQLitePath)

	// Retry overrides
	envInt("RETRY_MAX_RETRIES", &cfg.Retry.MaxRetries)
	envDuration("RETRY_BASE_DELAY", &cfg.Retry.BaseDelay)
	envDuration("RETRY_MAX_DELAY", &cfg.Retry.MaxDelay)
	envString("RETRY_MODE", &cfg.Retry.Mode)
	envFloat("RETRY_JITTER", &cfg.Retry.Jitter)
	envDuration("RETRY_MAX_ELAPSED", &cfg.Retry.MaxElapsed)

	// Collab overrides
	envString("COLLAB_BASE_URL", &cfg.Collab.BaseURL)
	envDuration("COLLAB_TIMEOUT", &cfg.Collab.Timeout)
	envFloat("COLLAB_REQUESTS_PER_SECOND", &cfg.Collab.RequestsPerSecond)
	envInt("COLLAB_BURST", &cfg.Collab.Burst)
	envString("COLLAB_TOKEN_SECRET", &cfg.Collab.TokenSecret)

	// Secrets overrides
	envString("SECRETS_ENV_PREFIX", &cfg.Secrets.EnvPrefix)
	envString("SECRETS_DIR", &cfg.Secrets.Dir)
	envBool("SECRETS_WATCH", &cfg.Secrets.Watch)

	// Audit overrides
	envBool("AUDIT_ENABLED", &cfg.Audit.Enabled)
	envString("AUDIT_BACKEND", &cfg.Audit.Backend)
	envInt("AUDIT_BUFFER_SIZE", &cfg.Audit.BufferSize)
	envString("AUDIT_SQLITE_PATH", &cfg.Audit.SQLite.Path)
	envString("AUDIT_NATS_URL", &cfg.Audit.NATS.URL)
	envString("AUDIT_NATS_SUBJECT_PREFIX", &cfg.Audit.NATS.SubjectPrefix)
	envInt("AUDIT_RETENTION_DAYS", &cfg.Audit.Retention.Days)
	envString("AUDIT_RETENTION_SCHEDULE", &cfg.Audit.Retention.Schedule)

	// Telemetry overrides
	envString("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	envBool("TELEMETRY_LOGGING_REDACT", &cfg.Telemetry.Logging.Redact)
	envBool("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	envString("TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
	envBool("TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	envString("TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	envFloat("TELEMETRY_TRACING_SAMPLE_RATIO", &cfg.Telemetry.Tracing.SampleRatio)
}

func envString(name string, dst *string) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		*dst = val
	}
}

func envInt(name string, dst *int) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func envFloat(name string, dst *float64) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			*dst = f
		}
	}
}

func envBool(name string, dst *bool) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func envDuration(name string, dst *time.Duration) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}
