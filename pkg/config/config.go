package config

import "time"

// Config is the root configuration structure for Tollgate.
// It contains all configuration sections for the HTTP server, rate limiter,
// plan enforcement, retry policy, collaboration API client, audit trail, and
// telemetry.
type Config struct {
	// Server contains HTTP server configuration including listen address
	// and timeouts.
	Server ServerConfig `yaml:"server"`

	// RateLimit contains per-tenant rate limiting configuration including
	// window length, default limit, and storage backend.
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// Plans contains plan catalog and enforcement configuration.
	Plans PlansConfig `yaml:"plans"`

	// Subscriptions selects where tenant subscription rows are read from.
	Subscriptions SubscriptionsConfig `yaml:"subscriptions"`

	// Retry contains the retry policy for calls to the collaboration API.
	Retry RetryConfig `yaml:"retry"`

	// Collab contains the collaboration API client configuration.
	Collab CollabConfig `yaml:"collab"`

	// Secrets configures where credentials such as the collaboration API
	// token are read from.
	Secrets SecretsConfig `yaml:"secrets"`

	// Audit contains audit recording, storage, and retention configuration.
	Audit AuditConfig `yaml:"audit"`

	// Telemetry contains configuration for logging, metrics, and health checks.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port for the server to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:8080", "0.0.0.0:8080").
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. It must cover the full retry budget of governed operations.
	// Default: 60s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// APIKeysSecret names the secret holding the API keys accepted on the
	// /v1 routes, one "name=key" pair per line. Empty leaves the routes
	// open, for deployments behind an authenticating gateway.
	APIKeysSecret string `yaml:"api_keys_secret"`
}

// RateLimitConfig contains per-tenant rate limiting configuration.
type RateLimitConfig struct {
	// Backend selects the window store.
	// Options: "memory", "redis"
	// Default: "memory"
	Backend string `yaml:"backend"`

	// Window is the fixed window length.
	// Default: 1m
	Window time.Duration `yaml:"window"`

	// Grace is how long an idle window outlives its end before it expires.
	// Default: 1m
	Grace time.Duration `yaml:"grace"`

	// DefaultLimit is the per-window limit used when a caller passes none.
	// Zero disables limiting for such callers.
	// Default: 100
	DefaultLimit int `yaml:"default_limit"`

	// StrictTenantKey rejects checks made without a tenant key instead of
	// letting them through.
	// Default: false
	StrictTenantKey bool `yaml:"strict_tenant_key"`

	// Memory configures the in-memory backend.
	Memory RateLimitMemoryConfig `yaml:"memory"`

	// Redis configures the Redis backend.
	Redis RedisConfig `yaml:"redis"`
}

// RateLimitMemoryConfig configures the in-memory window store.
type RateLimitMemoryConfig struct {
	// Shards is the number of independently locked partitions.
	// Default: 64
	Shards int `yaml:"shards"`

	// MaxEntries is the maximum number of rate limit windows kept.
	// Default: 100000
	MaxEntries int `yaml:"max_entries"`

	// MaxCounters is the maximum number of usage counters kept.
	// Default: 100000
	MaxCounters int `yaml:"max_counters"`

	// CleanupInterval is how often expired entries are removed.
	// Default: 1m
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// RedisConfig configures the Redis window store.
type RedisConfig struct {
	// URL is a redis:// or rediss:// connection URL.
	// Default: "redis://localhost:6379"
	URL string `yaml:"url"`

	// KeyPrefix namespaces all keys.
	// Default: "tollgate"
	KeyPrefix string `yaml:"key_prefix"`

	// DialTimeout bounds the initial connectivity check.
	// Default: 2s
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// PlansConfig contains plan catalog and enforcement configuration.
type PlansConfig struct {
	// CatalogPath is an optional YAML plan catalog. When empty the built-in
	// catalog is used.
	CatalogPath string `yaml:"catalog_path"`

	// ExpiredTrialPolicy decides how tenants on an expired trial are treated.
	// Options: "downgrade", "block"
	// Default: "downgrade"
	ExpiredTrialPolicy string `yaml:"expired_trial_policy"`

	// FallbackTier is the tier applied to tenants without an authoritative
	// subscription.
	// Default: "starter"
	FallbackTier string `yaml:"fallback_tier"`
}

// SubscriptionsConfig selects the subscription source.
type SubscriptionsConfig struct {
	// Backend selects the source.
	// Options: "memory", "sqlite"
	// Default: "memory"
	Backend string `yaml:"backend"`

	// SQLitePath is the subscription database path for the sqlite backend.
	// Default: "data/subscriptions.db"
	SQLitePath string `yaml:"sqlite_path"`

	// BusyTimeout is how long SQLite waits on a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// RetryConfig contains the retry policy for external calls.
type RetryConfig struct {
	// MaxRetries is the number of retries after the initial attempt.
	// Default: 3
	MaxRetries int `yaml:"max_retries"`

	// BaseDelay is the delay before the first retry.
	// Default: 500ms
	BaseDelay time.Duration `yaml:"base_delay"`

	// MaxDelay caps every computed delay.
	// Default: 30s
	MaxDelay time.Duration `yaml:"max_delay"`

	// Mode is the backoff growth.
	// Options: "exponential", "linear"
	// Default: "exponential"
	Mode string `yaml:"mode"`

	// Jitter spreads each delay by up to ±Jitter*delay (0.0 to 1.0).
	// Default: 0.2
	Jitter float64 `yaml:"jitter"`

	// MaxElapsed is an optional overall deadline across all attempts.
	// Default: 0 (disabled)
	MaxElapsed time.Duration `yaml:"max_elapsed"`
}

// CollabConfig contains the collaboration API client configuration.
type CollabConfig struct {
	// BaseURL is the API root. When empty the spaces endpoint is disabled.
	BaseURL string `yaml:"base_url"`

	// Timeout is the per-request timeout.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	// RequestsPerSecond paces outbound calls. Zero disables pacing.
	// Default: 10
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// Burst is the number of requests allowed at once when pacing.
	// Default: 5
	Burst int `yaml:"burst"`

	// TokenSecret names the secret holding the bearer token. With the
	// default secrets settings it is read from TOLLGATE_SECRET_COLLAB_TOKEN
	// or from <secrets.dir>/collab-token.
	// Default: "collab-token"
	TokenSecret string `yaml:"token_secret"`
}

// SecretsConfig contains secret provider configuration.
type SecretsConfig struct {
	// EnvPrefix is prepended to the upper-cased secret name to form the
	// environment variable name.
	// Default: "TOLLGATE_SECRET_"
	EnvPrefix string `yaml:"env_prefix"`

	// Dir is a directory of secret files, one file per secret (Kubernetes
	// secret mounts). Files take precedence over environment variables.
	// Empty disables file secrets.
	Dir string `yaml:"dir"`

	// Watch reloads secret files when they change, so rotated tokens are
	// picked up without a restart.
	Watch bool `yaml:"watch"`

	// CacheTTL bounds how long a resolved secret is reused.
	// Default: 5m
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// AuditConfig contains audit trail configuration.
type AuditConfig struct {
	// Enabled controls whether audit records are written.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Backend selects the queryable store.
	// Options: "sqlite", "memory"
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// BufferSize is the recorder's channel capacity.
	// Default: 1000
	BufferSize int `yaml:"buffer_size"`

	// WriteTimeout bounds each sink write.
	// Default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// MaxFieldLength truncates free-text fields.
	// Default: 500
	MaxFieldLength int `yaml:"max_field_length"`

	// SQLite configures the SQLite store.
	SQLite AuditSQLiteConfig `yaml:"sqlite"`

	// NATS optionally publishes every record to NATS as well.
	NATS NATSConfig `yaml:"nats"`

	// Retention configures pruning.
	Retention RetentionConfig `yaml:"retention"`
}

// AuditSQLiteConfig configures the SQLite audit store.
type AuditSQLiteConfig struct {
	// Path is the database file path.
	// Default: "data/audit.db"
	Path string `yaml:"path"`

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// WALMode enables write-ahead logging.
	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is how long to wait when the database is locked.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// NATSConfig configures the NATS audit publisher.
type NATSConfig struct {
	// URL of the NATS server. Empty disables publishing.
	URL string `yaml:"url"`

	// SubjectPrefix is prepended to <tenant>.<outcome>.
	// Default: "tollgate.audit"
	SubjectPrefix string `yaml:"subject_prefix"`
}

// RetentionConfig configures audit record pruning.
type RetentionConfig struct {
	// Days is how long records are kept. Zero keeps them forever.
	// Default: 90
	Days int `yaml:"days"`

	// Schedule is a standard cron expression for the pruning job.
	// Default: "0 3 * * *"
	Schedule string `yaml:"schedule"`

	// MaxRecords caps the number of stored records. Zero means no cap.
	// Default: 0
	MaxRecords int64 `yaml:"max_records"`

	// ArchiveBeforeDelete writes pruned records to ArchivePath first.
	// Default: false
	ArchiveBeforeDelete bool `yaml:"archive_before_delete"`

	// ArchivePath is the archive directory.
	// Default: "data/archives/"
	ArchivePath string `yaml:"archive_path"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`

	// Health contains health check configuration.
	Health HealthConfig `yaml:"health"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text", "console"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// Redact enables redaction of tokens, keys and emails in log output.
	// Default: true
	Redact bool `yaml:"redact"`

	// RedactPatterns contains custom redaction patterns.
	RedactPatterns []RedactPattern `yaml:"redact_patterns"`
}

// RedactPattern defines a custom redaction pattern.
type RedactPattern struct {
	// Name is a descriptive name for the pattern.
	Name string `yaml:"name"`

	// Pattern is the regular expression to match.
	Pattern string `yaml:"pattern"`

	// Replacement is the string to replace matches with.
	Replacement string `yaml:"replacement"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "tollgate"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem name.
	// Default: "governance"
	Subsystem string `yaml:"subsystem"`

	// DurationBuckets defines histogram buckets for governed operation
	// duration (seconds).
	// Default: [0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30]
	DurationBuckets []float64 `yaml:"duration_buckets"`

	// MaxCardinality caps the number of distinct label sets tracked.
	// Default: 10000
	MaxCardinality int `yaml:"max_cardinality"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether spans are exported.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Only used when Sampler is "ratio".
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// Exporter determines the trace exporter to use.
	// Options: "otlp"
	// Default: "otlp"
	Exporter string `yaml:"exporter"`

	// Endpoint is the OTLP gRPC collector endpoint, e.g. "localhost:4317".
	Endpoint string `yaml:"endpoint"`

	// ServiceName is the service name in traces.
	// Default: "tollgate"
	ServiceName string `yaml:"service_name"`

	// OTLP contains OTLP exporter specific configuration.
	OTLP OTLPConfig `yaml:"otlp"`
}

// OTLPConfig contains OTLP exporter configuration.
type OTLPConfig struct {
	// Insecure disables TLS for the OTLP connection.
	Insecure bool `yaml:"insecure"`

	// Timeout is the timeout for OTLP exports.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// HealthConfig contains health check endpoint configuration.
type HealthConfig struct {
	// LivenessPath is the path for the liveness endpoint.
	// Default: "/health"
	LivenessPath string `yaml:"liveness_path"`

	// ReadinessPath is the path for the readiness endpoint.
	// Default: "/ready"
	ReadinessPath string `yaml:"readiness_path"`

	// CheckTimeout is the timeout for individual component health checks.
	// Default: 5s
	CheckTimeout time.Duration `yaml:"check_timeout"`
}
