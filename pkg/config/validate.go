package config

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// HasField reports whether any error refers to field.
func (e ValidationError) HasField(field string) bool {
	for _, err := range e.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateRateLimit(&cfg.RateLimit)...)
	errs = append(errs, validatePlans(&cfg.Plans)...)
	errs = append(errs, validateSubscriptions(&cfg.Subscriptions)...)
	errs = append(errs, validateRetry(&cfg.Retry)...)
	errs = append(errs, validateCollab(&cfg.Collab)...)
	errs = append(errs, validateSecrets(&cfg.Secrets)...)
	errs = append(errs, validateAudit(&cfg.Audit)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

// validateServer validates server configuration.
func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	} else if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: fmt.Sprintf("invalid host:port: %v", err),
		})
	}

	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.read_timeout",
			Message: "read timeout must be positive",
		})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.write_timeout",
			Message: "write timeout must be positive",
		})
	}
	if cfg.IdleTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.idle_timeout",
			Message: "idle timeout must be positive",
		})
	}
	if cfg.ShutdownTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.shutdown_timeout",
			Message: "shutdown timeout must be positive",
		})
	}
	if strings.ContainsAny(cfg.APIKeysSecret, `/\`) {
		errs = append(errs, FieldError{
			Field:   "server.api_keys_secret",
			Message: "secret name must not contain path separators",
		})
	}

	return errs
}

// validateRateLimit validates rate limiting configuration.
func validateRateLimit(cfg *RateLimitConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "memory":
		if cfg.Memory.Shards < 0 {
			errs = append(errs, FieldError{
				Field:   "rate_limit.memory.shards",
				Message: "shards must be non-negative",
			})
		}
		if cfg.Memory.MaxEntries < 0 {
			errs = append(errs, FieldError{
				Field:   "rate_limit.memory.max_entries",
				Message: "max entries must be non-negative",
			})
		}
		if cfg.Memory.MaxCounters < 0 {
			errs = append(errs, FieldError{
				Field:   "rate_limit.memory.max_counters",
				Message: "max counters must be non-negative",
			})
		}
	case "redis":
		if cfg.Redis.URL == "" {
			errs = append(errs, FieldError{
				Field:   "rate_limit.redis.url",
				Message: "redis URL is required when backend is redis",
			})
		} else if u, err := url.Parse(cfg.Redis.URL); err != nil || (u.Scheme != "redis" && u.Scheme != "rediss") {
			errs = append(errs, FieldError{
				Field:   "rate_limit.redis.url",
				Message: "redis URL must use the redis:// or rediss:// scheme",
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "rate_limit.backend",
			Message: fmt.Sprintf("invalid backend %q (must be 'memory' or 'redis')", cfg.Backend),
		})
	}

	if cfg.Window <= 0 {
		errs = append(errs, FieldError{
			Field:   "rate_limit.window",
			Message: "window must be positive",
		})
	}
	if cfg.Grace < 0 {
		errs = append(errs, FieldError{
			Field:   "rate_limit.grace",
			Message: "grace must be non-negative",
		})
	}
	if cfg.DefaultLimit < 0 {
		errs = append(errs, FieldError{
			Field:   "rate_limit.default_limit",
			Message: "default limit must be non-negative",
		})
	}

	return errs
}

var tierNames = map[string]bool{
	"starter":      true,
	"professional": true,
	"business":     true,
	"enterprise":   true,
}

// validatePlans validates plan configuration.
func validatePlans(cfg *PlansConfig) []FieldError {
	var errs []FieldError

	if cfg.ExpiredTrialPolicy != "downgrade" && cfg.ExpiredTrialPolicy != "block" {
		errs = append(errs, FieldError{
			Field:   "plans.expired_trial_policy",
			Message: fmt.Sprintf("invalid policy %q (must be 'downgrade' or 'block')", cfg.ExpiredTrialPolicy),
		})
	}
	if !tierNames[cfg.FallbackTier] {
		errs = append(errs, FieldError{
			Field:   "plans.fallback_tier",
			Message: fmt.Sprintf("unknown tier %q", cfg.FallbackTier),
		})
	}

	return errs
}

// validateSubscriptions validates the subscription source configuration.
func validateSubscriptions(cfg *SubscriptionsConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "memory":
	case "sqlite":
		if cfg.SQLitePath == "" {
			errs = append(errs, FieldError{
				Field:   "subscriptions.sqlite_path",
				Message: "sqlite path is required when backend is sqlite",
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "subscriptions.backend",
			Message: fmt.Sprintf("invalid backend %q (must be 'memory' or 'sqlite')", cfg.Backend),
		})
	}

	return errs
}

// validateRetry validates the retry policy.
func validateRetry(cfg *RetryConfig) []FieldError {
	var errs []FieldError

	if cfg.MaxRetries < 0 {
		errs = append(errs, FieldError{
			Field:   "retry.max_retries",
			Message: "max retries must be non-negative",
		})
	}
	if cfg.MaxRetries > 10 {
		errs = append(errs, FieldError{
			Field:   "retry.max_retries",
			Message: "max retries exceeds reasonable limit (10)",
		})
	}
	if cfg.BaseDelay <= 0 {
		errs = append(errs, FieldError{
			Field:   "retry.base_delay",
			Message: "base delay must be positive",
		})
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		errs = append(errs, FieldError{
			Field:   "retry.max_delay",
			Message: "max delay must be at least the base delay",
		})
	}
	if cfg.Mode != "exponential" && cfg.Mode != "linear" {
		errs = append(errs, FieldError{
			Field:   "retry.mode",
			Message: fmt.Sprintf("invalid mode %q (must be 'exponential' or 'linear')", cfg.Mode),
		})
	}
	if cfg.Jitter < 0 || cfg.Jitter > 1 {
		errs = append(errs, FieldError{
			Field:   "retry.jitter",
			Message: "jitter must be between 0.0 and 1.0",
		})
	}
	if cfg.MaxElapsed < 0 {
		errs = append(errs, FieldError{
			Field:   "retry.max_elapsed",
			Message: "max elapsed must be non-negative",
		})
	}

	return errs
}

// validateCollab validates the collaboration API client configuration.
func validateCollab(cfg *CollabConfig) []FieldError {
	var errs []FieldError

	if cfg.BaseURL != "" {
		u, err := url.Parse(cfg.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, FieldError{
				Field:   "collab.base_url",
				Message: "base URL must be an absolute http or https URL",
			})
		}
	}
	if cfg.Timeout < 0 {
		errs = append(errs, FieldError{
			Field:   "collab.timeout",
			Message: "timeout must be positive",
		})
	}
	if cfg.RequestsPerSecond < 0 {
		errs = append(errs, FieldError{
			Field:   "collab.requests_per_second",
			Message: "requests per second must be non-negative",
		})
	}
	if cfg.Burst < 0 {
		errs = append(errs, FieldError{
			Field:   "collab.burst",
			Message: "burst must be non-negative",
		})
	}
	if strings.ContainsAny(cfg.TokenSecret, `/\`) {
		errs = append(errs, FieldError{
			Field:   "collab.token_secret",
			Message: "secret name must not contain path separators",
		})
	}

	return errs
}

// validateSecrets validates secret provider configuration.
func validateSecrets(cfg *SecretsConfig) []FieldError {
	var errs []FieldError

	if cfg.CacheTTL < 0 {
		errs = append(errs, FieldError{
			Field:   "secrets.cache_ttl",
			Message: "cache TTL must be non-negative",
		})
	}
	if cfg.Watch && cfg.Dir == "" {
		errs = append(errs, FieldError{
			Field:   "secrets.watch",
			Message: "watching requires secrets.dir",
		})
	}

	return errs
}

// validateAudit validates audit configuration.
func validateAudit(cfg *AuditConfig) []FieldError {
	var errs []FieldError

	if !cfg.Enabled {
		return errs
	}

	switch cfg.Backend {
	case "memory":
	case "sqlite":
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{
				Field:   "audit.sqlite.path",
				Message: "sqlite path is required when backend is sqlite",
			})
		}
		if cfg.SQLite.MaxOpenConns < 0 {
			errs = append(errs, FieldError{
				Field:   "audit.sqlite.max_open_conns",
				Message: "max open connections must be non-negative",
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "audit.backend",
			Message: fmt.Sprintf("invalid backend %q (must be 'sqlite' or 'memory')", cfg.Backend),
		})
	}

	if cfg.BufferSize <= 0 {
		errs = append(errs, FieldError{
			Field:   "audit.buffer_size",
			Message: "buffer size must be positive",
		})
	}
	if cfg.WriteTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "audit.write_timeout",
			Message: "write timeout must be positive",
		})
	}

	if cfg.NATS.URL != "" {
		u, err := url.Parse(cfg.NATS.URL)
		if err != nil || (u.Scheme != "nats" && u.Scheme != "tls") {
			errs = append(errs, FieldError{
				Field:   "audit.nats.url",
				Message: "NATS URL must use the nats:// or tls:// scheme",
			})
		}
	}

	if cfg.Retention.Days < 0 {
		errs = append(errs, FieldError{
			Field:   "audit.retention.days",
			Message: "retention days must be non-negative",
		})
	}
	if cfg.Retention.MaxRecords < 0 {
		errs = append(errs, FieldError{
			Field:   "audit.retention.max_records",
			Message: "max records must be non-negative",
		})
	}
	if _, err := cron.ParseStandard(cfg.Retention.Schedule); err != nil {
		errs = append(errs, FieldError{
			Field:   "audit.retention.schedule",
			Message: fmt.Sprintf("invalid cron expression: %v", err),
		})
	}
	if cfg.Retention.ArchiveBeforeDelete && cfg.Retention.ArchivePath == "" {
		errs = append(errs, FieldError{
			Field:   "audit.retention.archive_path",
			Message: "archive path is required when archive_before_delete is enabled",
		})
	}

	return errs
}

// validateTelemetry validates telemetry configuration.
func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid log level %q (must be debug, info, warn, or error)", cfg.Logging.Level),
		})
	}

	validFormats := map[string]bool{"json": true, "text": true, "console": true}
	if !validFormats[strings.ToLower(cfg.Logging.Format)] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid log format %q (must be json, text, or console)", cfg.Logging.Format),
		})
	}

	for i, p := range cfg.Logging.RedactPatterns {
		field := fmt.Sprintf("telemetry.logging.redact_patterns[%d]", i)
		if p.Name == "" {
			errs = append(errs, FieldError{Field: field + ".name", Message: "name is required"})
		}
		if _, err := regexp.Compile(p.Pattern); err != nil {
			errs = append(errs, FieldError{
				Field:   field + ".pattern",
				Message: fmt.Sprintf("invalid regular expression: %v", err),
			})
		}
	}

	if cfg.Metrics.Enabled {
		if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.path",
				Message: "metrics path must start with '/'",
			})
		}
		if cfg.Metrics.MaxCardinality < 0 {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.max_cardinality",
				Message: "max cardinality must be non-negative",
			})
		}
		for i := 1; i < len(cfg.Metrics.DurationBuckets); i++ {
			if cfg.Metrics.DurationBuckets[i] <= cfg.Metrics.DurationBuckets[i-1] {
				errs = append(errs, FieldError{
					Field:   "telemetry.metrics.duration_buckets",
					Message: "buckets must be in increasing order",
				})
				break
			}
		}
	}

	if cfg.Tracing.Enabled {
		if cfg.Tracing.Endpoint == "" {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.endpoint",
				Message: "tracing endpoint is required when tracing is enabled",
			})
		}
		if cfg.Tracing.Exporter != "otlp" {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.exporter",
				Message: fmt.Sprintf("unsupported exporter %q (must be otlp)", cfg.Tracing.Exporter),
			})
		}
	}
	validSamplers := map[string]bool{"always": true, "never": true, "ratio": true}
	if !validSamplers[cfg.Tracing.Sampler] {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sampler",
			Message: fmt.Sprintf("invalid sampler %q (must be always, never, or ratio)", cfg.Tracing.Sampler),
		})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1.0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sample_ratio",
			Message: "sample ratio must be between 0.0 and 1.0",
		})
	}

	if !strings.HasPrefix(cfg.Health.LivenessPath, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.health.liveness_path",
			Message: "liveness path must start with '/'",
		})
	}
	if !strings.HasPrefix(cfg.Health.ReadinessPath, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.health.readiness_path",
			Message: "readiness path must start with '/'",
		})
	}

	return errs
}
