package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestValidate_ValidConfig(t *testing.T) {
	if err := Validate(NewTestConfig().Build()); err != nil {
		t.Errorf("expected valid config to pass validation, got error: %v", err)
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	err := Validate(&Config{})
	if err == nil {
		t.Fatal("expected validation to fail")
	}

	var validationErr ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if len(validationErr.Errors) < 2 {
		t.Errorf("expected multiple errors, got %d", len(validationErr.Errors))
	}
	if !strings.Contains(validationErr.Error(), "validation failed with") {
		t.Errorf("error message should mention multiple errors: %s", validationErr.Error())
	}
}

func TestValidationError_Error(t *testing.T) {
	single := ValidationError{Errors: []FieldError{{Field: "retry.mode", Message: "bad"}}}
	if got := single.Error(); got != "configuration validation failed: retry.mode: bad" {
		t.Errorf("unexpected single error message %q", got)
	}
	if got := (ValidationError{}).Error(); got != "configuration validation failed" {
		t.Errorf("unexpected empty error message %q", got)
	}
}

func TestValidate_Fields(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{
			name:   "bad listen address",
			modify: func(c *Config) { c.Server.ListenAddress = "localhost" },
			field:  "server.listen_address",
		},
		{
			name:   "negative read timeout",
			modify: func(c *Config) { c.Server.ReadTimeout = -time.Second },
			field:  "server.read_timeout",
		},
		{
			name:   "unknown rate limit backend",
			modify: func(c *Config) { c.RateLimit.Backend = "etcd" },
			field:  "rate_limit.backend",
		},
		{
			name: "negative memory max counters",
			modify: func(c *Config) {
				c.RateLimit.Backend = "memory"
				c.RateLimit.Memory.MaxCounters = -1
			},
			field: "rate_limit.memory.max_counters",
		},
		{
			name: "redis with wrong scheme",
			modify: func(c *Config) {
				c.RateLimit.Backend = "redis"
				c.RateLimit.Redis.URL = "http://cache:6379"
			},
			field: "rate_limit.redis.url",
		},
		{
			name:   "zero window",
			modify: func(c *Config) { c.RateLimit.Window = 0 },
			field:  "rate_limit.window",
		},
		{
			name:   "negative default limit",
			modify: func(c *Config) { c.RateLimit.DefaultLimit = -1 },
			field:  "rate_limit.default_limit",
		},
		{
			name:   "unknown trial policy",
			modify: func(c *Config) { c.Plans.ExpiredTrialPolicy = "ignore" },
			field:  "plans.expired_trial_policy",
		},
		{
			name:   "unknown fallback tier",
			modify: func(c *Config) { c.Plans.FallbackTier = "platinum" },
			field:  "plans.fallback_tier",
		},
		{
			name: "sqlite subscriptions without path",
			modify: func(c *Config) {
				c.Subscriptions.Backend = "sqlite"
				c.Subscriptions.SQLitePath = ""
			},
			field: "subscriptions.sqlite_path",
		},
		{
			name:   "negative retries",
			modify: func(c *Config) { c.Retry.MaxRetries = -1 },
			field:  "retry.max_retries",
		},
		{
			name:   "max delay below base",
			modify: func(c *Config) { c.Retry.MaxDelay = c.Retry.BaseDelay / 2 },
			field:  "retry.max_delay",
		},
		{
			name:   "unknown retry mode",
			modify: func(c *Config) { c.Retry.Mode = "fibonacci" },
			field:  "retry.mode",
		},
		{
			name:   "jitter above one",
			modify: func(c *Config) { c.Retry.Jitter = 1.5 },
			field:  "retry.jitter",
		},
		{
			name:   "relative collab url",
			modify: func(c *Config) { c.Collab.BaseURL = "/v1" },
			field:  "collab.base_url",
		},
		{
			name:   "unknown audit backend",
			modify: func(c *Config) { c.Audit.Backend = "postgres" },
			field:  "audit.backend",
		},
		{
			name:   "bad nats url",
			modify: func(c *Config) { c.Audit.NATS.URL = "amqp://broker" },
			field:  "audit.nats.url",
		},
		{
			name:   "bad retention schedule",
			modify: func(c *Config) { c.Audit.Retention.Schedule = "every night" },
			field:  "audit.retention.schedule",
		},
		{
			name: "archive without path",
			modify: func(c *Config) {
				c.Audit.Retention.ArchiveBeforeDelete = true
				c.Audit.Retention.ArchivePath = ""
			},
			field: "audit.retention.archive_path",
		},
		{
			name:   "bad log level",
			modify: func(c *Config) { c.Telemetry.Logging.Level = "verbose" },
			field:  "telemetry.logging.level",
		},
		{
			name: "bad redact pattern",
			modify: func(c *Config) {
				c.Telemetry.Logging.RedactPatterns = []RedactPattern{{Name: "x", Pattern: "("}}
			},
			field: "telemetry.logging.redact_patterns[0].pattern",
		},
		{
			name:   "api keys secret with path",
			modify: func(c *Config) { c.Server.APIKeysSecret = "keys/api" },
			field:  "server.api_keys_secret",
		},
		{
			name:   "token secret with path",
			modify: func(c *Config) { c.Collab.TokenSecret = "../collab-token" },
			field:  "collab.token_secret",
		},
		{
			name:   "watch without secrets dir",
			modify: func(c *Config) { c.Secrets.Watch = true },
			field:  "secrets.watch",
		},
		{
			name:   "relative metrics path",
			modify: func(c *Config) { c.Telemetry.Metrics.Path = "metrics" },
			field:  "telemetry.metrics.path",
		},
		{
			name:   "tracing without endpoint",
			modify: func(c *Config) { c.Telemetry.Tracing.Enabled = true },
			field:  "telemetry.tracing.endpoint",
		},
		{
			name:   "sample ratio above one",
			modify: func(c *Config) { c.Telemetry.Tracing.SampleRatio = 1.5 },
			field:  "telemetry.tracing.sample_ratio",
		},
		{
			name:   "unknown sampler",
			modify: func(c *Config) { c.Telemetry.Tracing.Sampler = "sometimes" },
			field:  "telemetry.tracing.sampler",
		},
		{
			name:   "unsorted buckets",
			modify: func(c *Config) { c.Telemetry.Metrics.DurationBuckets = []float64{1, 0.5} },
			field:  "telemetry.metrics.duration_buckets",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewTestConfig().Build()
			tt.modify(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatalf("expected validation error for %s", tt.field)
			}
			var validationErr ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected ValidationError, got %T", err)
			}
			if !validationErr.HasField(tt.field) {
				t.Errorf("expected error on %s, got %v", tt.field, validationErr.Errors)
			}
		})
	}
}

func TestValidate_DisabledAuditSkipsChecks(t *testing.T) {
	cfg := NewTestConfig().Build()
	cfg.Audit.Enabled = false
	cfg.Audit.Backend = "postgres"
	cfg.Audit.Retention.Schedule = "nonsense"

	if err := Validate(cfg); err != nil {
		t.Errorf("expected disabled audit section to be ignored, got %v", err)
	}
}

func TestValidate_Builder(t *testing.T) {
	cfg := NewTestConfig().
		WithListenAddress("0.0.0.0:9000").
		WithRedis("rediss://cache:6380").
		WithWindow(10*time.Second, 5).
		WithExpiredTrialPolicy("block").
		WithRetry(5, 100*time.Millisecond, 5*time.Second).
		WithLoggingLevel("warn").
		Build()

	if err := Validate(cfg); err != nil {
		t.Errorf("expected built config to be valid, got %v", err)
	}
}
