package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 60 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	// Rate limit defaults
	DefaultRateLimitBackend         = "memory"
	DefaultRateLimitWindow          = time.Minute
	DefaultRateLimitGrace           = time.Minute
	DefaultRateLimitLimit           = 100
	DefaultRateLimitStrictTenantKey = false
	DefaultMemoryShards             = 64
	DefaultMemoryMaxEntries         = 100000
	DefaultMemoryMaxCounters        = 100000
	DefaultMemoryCleanupInterval    = time.Minute
	DefaultRedisURL                 = "redis://localhost:6379"
	DefaultRedisKeyPrefix           = "tollgate"
	DefaultRedisDialTimeout         = 2 * time.Second

	// Plan defaults
	DefaultExpiredTrialPolicy = "downgrade"
	DefaultFallbackTier       = "starter"

	// Subscription defaults
	DefaultSubscriptionsBackend     = "memory"
	DefaultSubscriptionsSQLitePath  = "data/subscriptions.db"
	DefaultSubscriptionsBusyTimeout = 5 * time.Second

	// Retry defaults
	DefaultRetryMaxRetries = 3
	DefaultRetryBaseDelay  = 500 * time.Millisecond
	DefaultRetryMaxDelay   = 30 * time.Second
	DefaultRetryMode       = "exponential"
	DefaultRetryJitter     = 0.2

	// Collab defaults
	DefaultCollabTimeout           = 30 * time.Second
	DefaultCollabRequestsPerSecond = 10.0
	DefaultCollabBurst             = 5
	DefaultCollabTokenSecret       = "collab-token"

	// Secrets defaults
	DefaultSecretsEnvPrefix = "TOLLGATE_SECRET_"
	DefaultSecretsCacheTTL  = 5 * time.Minute

	// Audit defaults
	DefaultAuditEnabled             = true
	DefaultAuditBackend             = "sqlite"
	DefaultAuditBufferSize          = 1000
	DefaultAuditWriteTimeout        = 5 * time.Second
	DefaultAuditMaxFieldLength      = 500
	DefaultAuditSQLitePath          = "data/audit.db"
	DefaultAuditSQLiteMaxOpenConns  = 10
	DefaultAuditSQLiteWALMode       = true
	DefaultAuditSQLiteBusyTimeout   = 5 * time.Second
	DefaultAuditNATSSubjectPrefix   = "tollgate.audit"
	DefaultAuditRetentionDays       = 90
	DefaultAuditRetentionSchedule   = "0 3 * * *"
	DefaultAuditRetentionArchive    = false
	DefaultAuditRetentionArchiveDir = "data/archives/"

	// Telemetry defaults
	DefaultLoggingLevel       = "info"
	DefaultLoggingFormat      = "json"
	DefaultLoggingRedact      = true
	DefaultMetricsEnabled     = true
	DefaultMetricsPath        = "/metrics"
	DefaultMetricsNamespace   = "tollgate"
	DefaultMetricsSubsystem   = "governance"
	DefaultMaxCardinality     = 10000
	DefaultTracingEnabled     = false
	DefaultTracingSampler     = "ratio"
	DefaultTracingSampleRatio = 1.0
	DefaultTracingExporter    = "otlp"
	DefaultTracingService     = "tollgate"
	DefaultTracingOTLPTimeout = 10 * time.Second
	DefaultLivenessPath       = "/health"
	DefaultReadinessPath      = "/ready"
	DefaultHealthCheckTimeout = 5 * time.Second
)

// DefaultDurationBuckets are the governed operation duration histogram
// buckets in seconds.
var DefaultDurationBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// Default returns a configuration with every field at its default value.
// LoadConfig decodes the file on top of it, so booleans and other fields
// whose zero value is meaningful keep their defaults unless the file sets
// them explicitly.
func Default() *Config {
	cfg := &Config{}
	cfg.RateLimit.StrictTenantKey = DefaultRateLimitStrictTenantKey
	cfg.Retry.MaxRetries = DefaultRetryMaxRetries
	cfg.Retry.Jitter = DefaultRetryJitter
	cfg.Collab.RequestsPerSecond = DefaultCollabRequestsPerSecond
	cfg.Audit.Enabled = DefaultAuditEnabled
	cfg.Audit.SQLite.WALMode = DefaultAuditSQLiteWALMode
	cfg.Audit.Retention.Days = DefaultAuditRetentionDays
	cfg.Audit.Retention.ArchiveBeforeDelete = DefaultAuditRetentionArchive
	cfg.Telemetry.Logging.Redact = DefaultLoggingRedact
	cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
//
// Fields whose zero value is meaningful (booleans, retry count, jitter,
// retention days, pacing rate) are not touched here; Default sets them.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	applyRateLimitDefaults(&cfg.RateLimit)

	// Plan defaults
	if cfg.Plans.ExpiredTrialPolicy == "" {
		cfg.Plans.ExpiredTrialPolicy = DefaultExpiredTrialPolicy
	}
	if cfg.Plans.FallbackTier == "" {
		cfg.Plans.FallbackTier = DefaultFallbackTier
	}

	// Subscription defaults
	if cfg.Subscriptions.Backend == "" {
		cfg.Subscriptions.Backend = DefaultSubscriptionsBackend
	}
	if cfg.Subscriptions.SQLitePath == "" {
		cfg.Subscriptions.SQLitePath = DefaultSubscriptionsSQLitePath
	}
	if cfg.Subscriptions.BusyTimeout == 0 {
		cfg.Subscriptions.BusyTimeout = DefaultSubscriptionsBusyTimeout
	}

	// Retry defaults
	if cfg.Retry.BaseDelay == 0 {
		cfg.Retry.BaseDelay = DefaultRetryBaseDelay
	}
	if cfg.Retry.MaxDelay == 0 {
		cfg.Retry.MaxDelay = DefaultRetryMaxDelay
	}
	if cfg.Retry.Mode == "" {
		cfg.Retry.Mode = DefaultRetryMode
	}

	// Collab defaults
	if cfg.Collab.Timeout == 0 {
		cfg.Collab.Timeout = DefaultCollabTimeout
	}
	if cfg.Collab.Burst == 0 {
		cfg.Collab.Burst = DefaultCollabBurst
	}
	if cfg.Collab.TokenSecret == "" {
		cfg.Collab.TokenSecret = DefaultCollabTokenSecret
	}

	// Secrets defaults
	if cfg.Secrets.EnvPrefix == "" {
		cfg.Secrets.EnvPrefix = DefaultSecretsEnvPrefix
	}
	if cfg.Secrets.CacheTTL == 0 {
		cfg.Secrets.CacheTTL = DefaultSecretsCacheTTL
	}

	applyAuditDefaults(&cfg.Audit)
	applyTelemetryDefaults(&cfg.Telemetry)
}

func applyRateLimitDefaults(cfg *RateLimitConfig) {
	if cfg.Backend == "" {
		cfg.Backend = DefaultRateLimitBackend
	}
	if cfg.Window == 0 {
		cfg.Window = DefaultRateLimitWindow
	}
	if cfg.Grace == 0 {
		cfg.Grace = DefaultRateLimitGrace
	}
	if cfg.DefaultLimit == 0 {
		cfg.DefaultLimit = DefaultRateLimitLimit
	}
	if cfg.Memory.Shards == 0 {
		cfg.Memory.Shards = DefaultMemoryShards
	}
	if cfg.Memory.MaxEntries == 0 {
		cfg.Memory.MaxEntries = DefaultMemoryMaxEntries
	}
	if cfg.Memory.MaxCounters == 0 {
		cfg.Memory.MaxCounters = DefaultMemoryMaxCounters
	}
	if cfg.Memory.CleanupInterval == 0 {
		cfg.Memory.CleanupInterval = DefaultMemoryCleanupInterval
	}
	if cfg.Redis.URL == "" {
		cfg.Redis.URL = DefaultRedisURL
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}
	if cfg.Redis.DialTimeout == 0 {
		cfg.Redis.DialTimeout = DefaultRedisDialTimeout
	}
}

func applyAuditDefaults(cfg *AuditConfig) {
	if cfg.Backend == "" {
		cfg.Backend = DefaultAuditBackend
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = DefaultAuditBufferSize
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultAuditWriteTimeout
	}
	if cfg.MaxFieldLength == 0 {
		cfg.MaxFieldLength = DefaultAuditMaxFieldLength
	}
	if cfg.SQLite.Path == "" {
		cfg.SQLite.Path = DefaultAuditSQLitePath
	}
	if cfg.SQLite.MaxOpenConns == 0 {
		cfg.SQLite.MaxOpenConns = DefaultAuditSQLiteMaxOpenConns
	}
	if cfg.SQLite.BusyTimeout == 0 {
		cfg.SQLite.BusyTimeout = DefaultAuditSQLiteBusyTimeout
	}
	if cfg.NATS.SubjectPrefix == "" {
		cfg.NATS.SubjectPrefix = DefaultAuditNATSSubjectPrefix
	}
	if cfg.Retention.Schedule == "" {
		cfg.Retention.Schedule = DefaultAuditRetentionSchedule
	}
	if cfg.Retention.ArchivePath == "" {
		cfg.Retention.ArchivePath = DefaultAuditRetentionArchiveDir
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Metrics.Subsystem == "" {
		cfg.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if len(cfg.Metrics.DurationBuckets) == 0 {
		cfg.Metrics.DurationBuckets = append([]float64(nil), DefaultDurationBuckets...)
	}
	if cfg.Metrics.MaxCardinality == 0 {
		cfg.Metrics.MaxCardinality = DefaultMaxCardinality
	}
	if cfg.Tracing.Sampler == "" {
		cfg.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Tracing.SampleRatio == 0 {
		cfg.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if cfg.Tracing.Exporter == "" {
		cfg.Tracing.Exporter = DefaultTracingExporter
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = DefaultTracingService
	}
	if cfg.Tracing.OTLP.Timeout == 0 {
		cfg.Tracing.OTLP.Timeout = DefaultTracingOTLPTimeout
	}
	if cfg.Health.LivenessPath == "" {
		cfg.Health.LivenessPath = DefaultLivenessPath
	}
	if cfg.Health.ReadinessPath == "" {
		cfg.Health.ReadinessPath = DefaultReadinessPath
	}
	if cfg.Health.CheckTimeout == 0 {
		cfg.Health.CheckTimeout = DefaultHealthCheckTimeout
	}
}
