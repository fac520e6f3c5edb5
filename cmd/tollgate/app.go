package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"mercator-hq/tollgate/pkg/audit"
	"mercator-hq/tollgate/pkg/audit/recorder"
	"mercator-hq/tollgate/pkg/audit/retention"
	auditstorage "mercator-hq/tollgate/pkg/audit/storage"
	"mercator-hq/tollgate/pkg/collab"
	"mercator-hq/tollgate/pkg/config"
	"mercator-hq/tollgate/pkg/limits"
	"mercator-hq/tollgate/pkg/limits/enforcement"
	"mercator-hq/tollgate/pkg/limits/plans"
	"mercator-hq/tollgate/pkg/limits/ratelimit"
	"mercator-hq/tollgate/pkg/limits/storage"
	"mercator-hq/tollgate/pkg/limits/subscriptions"
	"mercator-hq/tollgate/pkg/limits/usage"
	"mercator-hq/tollgate/pkg/retry"
	"mercator-hq/tollgate/pkg/secrets"
	"mercator-hq/tollgate/pkg/server"
	"mercator-hq/tollgate/pkg/telemetry"
	"mercator-hq/tollgate/pkg/telemetry/health"
)

// tracerFlushTimeout bounds how long Close waits for pending spans.
const tracerFlushTimeout = 5 * time.Second

// meteredQuotas are counted by the usage meter rather than by live
// resource counts.
var meteredQuotas = []plans.Quota{plans.QuotaAIRequestsPerMonth}

// subscriptionStore is what the app needs from a subscription source.
type subscriptionStore interface {
	enforcement.SubscriptionSource
	subscriptions.ResourceCounter
	server.ResourceTracker
	io.Closer
}

// app holds every long-lived component of a running Tollgate process.
type app struct {
	cfg       *config.Config
	telemetry *telemetry.Telemetry
	logger    *slog.Logger

	backend   storage.Backend
	source    subscriptionStore
	catalog   *plans.Catalog
	limiter   *ratelimit.Limiter
	enforcer  *enforcement.Enforcer
	executor  *retry.Executor
	meter     *usage.Meter
	secrets   *secrets.Manager
	collab    *collab.Client
	auditLog  audit.Store
	auditSink audit.Sink
	recorder  *recorder.Recorder
	pruner    *retention.Pruner
	manager   *limits.Manager
	server    *server.Server

	closers []func() error
}

// newApp wires the components described by cfg. Log output goes to w.
// On error, everything opened so far is closed.
func newApp(cfg *config.Config, info health.VersionInfo, w io.Writer) (_ *app, err error) {
	a := &app{cfg: cfg}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.telemetry, err = telemetry.New(&cfg.Telemetry, info, w)
	if err != nil {
		return nil, err
	}
	a.logger = a.telemetry.Logger().With("component", "app")
	collector := a.telemetry.Metrics()
	a.closers = append(a.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), tracerFlushTimeout)
		defer cancel()
		return a.telemetry.Shutdown(ctx)
	})

	if a.backend, err = newRateLimitBackend(&cfg.RateLimit); err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.backend.Close)

	if a.source, err = newSubscriptionSource(&cfg.Subscriptions); err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.source.Close)

	if a.catalog, err = loadCatalog(cfg.Plans.CatalogPath); err != nil {
		return nil, err
	}

	a.limiter = ratelimit.NewLimiter(a.backend, ratelimit.Config{
		Window:          cfg.RateLimit.Window,
		Grace:           cfg.RateLimit.Grace,
		DefaultLimit:    cfg.RateLimit.DefaultLimit,
		StrictTenantKey: cfg.RateLimit.StrictTenantKey,
	}, ratelimit.WithObserver(collector))

	a.enforcer = enforcement.NewEnforcer(a.catalog, a.source, enforcerConfig(&cfg.Plans),
		enforcement.WithObserver(collector))
	// Scoped quotas stay unregistered: the subscription store only keeps
	// tenant-wide counts, so they deny until an embedder supplies a
	// per-scope counter.
	for _, q := range plans.Quotas {
		if !isMetered(q) && !q.Scoped() {
			a.enforcer.RegisterCounter(q, subscriptions.CounterFor(a.source, q))
		}
	}

	a.executor = retry.NewExecutor(retryPolicy(&cfg.Retry), retry.WithObserver(collector))
	a.meter = usage.NewMeter(a.backend)

	if a.secrets, err = openSecrets(&cfg.Secrets); err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.secrets.Close)

	if cfg.Collab.BaseURL != "" {
		if _, terr := a.secrets.Secret(context.Background(), cfg.Collab.TokenSecret); terr != nil {
			a.logger.Warn("collaboration API token is not available", "secret", cfg.Collab.TokenSecret, "error", terr)
		}
		a.collab, err = collab.NewClient(collab.Config{
			BaseURL:           cfg.Collab.BaseURL,
			Timeout:           cfg.Collab.Timeout,
			RequestsPerSecond: cfg.Collab.RequestsPerSecond,
			Burst:             cfg.Collab.Burst,
			UserAgent:         "tollgate/" + info.Version,
		}, collab.TokenSourceFunc(a.secrets.Lookup(cfg.Collab.TokenSecret)))
		if err != nil {
			return nil, fmt.Errorf("failed to create collaboration API client: %w", err)
		}
		a.closers = append(a.closers, a.collab.Close)
	}

	managerOpts := []limits.Option{
		limits.WithMeter(a.meter, meteredQuotas...),
		limits.WithObserver(collector),
		limits.WithTracer(a.telemetry.Tracer().Tracer()),
	}
	if cfg.Audit.Enabled {
		if err := a.openAudit(); err != nil {
			return nil, err
		}
		managerOpts = append(managerOpts, limits.WithAuditor(a.recorder))
	}
	a.manager = limits.NewManager(a.limiter, a.enforcer, a.executor, managerOpts...)

	a.registerHealthChecks()

	serverOpts := []server.Option{
		server.WithResourceTracker(a.source),
		server.WithMount(a.telemetry),
		server.WithTracer(a.telemetry.Tracer()),
	}
	if a.collab != nil {
		serverOpts = append(serverOpts, server.WithSites(a.collab))
	}
	if a.auditLog != nil {
		serverOpts = append(serverOpts, server.WithAuditReader(a.auditLog))
	}
	if name := cfg.Server.APIKeysSecret; name != "" {
		serverOpts = append(serverOpts, server.WithAPIKeys(func(ctx context.Context) ([]server.APIKey, error) {
			value, err := a.secrets.Secret(ctx, name)
			if err != nil {
				return nil, err
			}
			return server.ParseAPIKeys(value)
		}))
	}
	a.server = server.NewServer(&cfg.Server, a.manager, serverOpts...)

	return a, nil
}

// openAudit opens the audit store, the optional NATS publisher and the
// recorder in front of them. The recorder owns the sinks: closing it drains
// the buffer and then closes them.
func (a *app) openAudit() error {
	store, err := openAuditStore(&a.cfg.Audit)
	if err != nil {
		return err
	}

	var sink audit.Sink = store
	if a.cfg.Audit.NATS.URL != "" {
		natsSink, err := auditstorage.NewNATSSink(&auditstorage.NATSConfig{
			URL:           a.cfg.Audit.NATS.URL,
			SubjectPrefix: a.cfg.Audit.NATS.SubjectPrefix,
		})
		if err != nil {
			_ = store.Close()
			return fmt.Errorf("failed to connect audit publisher: %w", err)
		}
		sink = auditstorage.NewMultiSink(store, natsSink)
	}

	a.auditLog = store
	a.auditSink = sink
	a.recorder = recorder.New(sink, &recorder.Config{
		Enabled:        true,
		BufferSize:     a.cfg.Audit.BufferSize,
		WriteTimeout:   a.cfg.Audit.WriteTimeout,
		MaxFieldLength: a.cfg.Audit.MaxFieldLength,
	}, recorder.WithObserver(a.telemetry.Metrics()))
	a.closers = append(a.closers, a.recorder.Close)

	a.pruner = retention.NewPruner(store, retentionConfig(&a.cfg.Audit.Retention),
		retention.WithObserver(a.telemetry.Metrics()))
	return nil
}

func (a *app) registerHealthChecks() {
	checker := a.telemetry.Health()

	checker.RegisterCheck("rate_limit_backend", func(ctx context.Context) error {
		_, err := a.backend.Window(ctx, "tollgate:health")
		return err
	})

	if a.auditLog != nil {
		checker.RegisterCriticalCheck("audit_store", func(ctx context.Context) error {
			_, err := a.auditLog.Count(ctx, &audit.Query{Limit: 1})
			return err
		})
	}

	if a.collab != nil {
		collector := a.telemetry.Metrics()
		checker.RegisterCheck("collab_api", func(ctx context.Context) error {
			h := a.collab.Health()
			collector.UpdateUpstreamHealth(h.Healthy)
			if !h.Healthy {
				return fmt.Errorf("%d consecutive failed requests", h.ConsecutiveFailures)
			}
			return nil
		})
	}
}

// reload applies the hot-reloadable parts of a new configuration: the
// default rate limit, the retry policy and the log level. Everything else
// needs a restart.
func (a *app) reload(previous, next *config.Config) {
	if next.RateLimit.DefaultLimit != previous.RateLimit.DefaultLimit {
		a.limiter.SetDefaultLimit(next.RateLimit.DefaultLimit)
		a.logger.Info("default rate limit changed",
			"from", previous.RateLimit.DefaultLimit,
			"to", next.RateLimit.DefaultLimit,
		)
	}

	if next.Retry != previous.Retry {
		a.executor.SetPolicy(retryPolicy(&next.Retry))
		a.logger.Info("retry policy changed", "max_retries", next.Retry.MaxRetries, "mode", next.Retry.Mode)
	}

	if err := a.telemetry.SetLevel(next.Telemetry.Logging.Level); err != nil {
		a.logger.Warn("ignoring invalid log level", "level", next.Telemetry.Logging.Level, "error", err)
	}
}

// Close releases every component in reverse order of creation.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func newRateLimitBackend(cfg *config.RateLimitConfig) (storage.Backend, error) {
	switch cfg.Backend {
	case "", "memory":
		return storage.NewMemoryBackendWithConfig(storage.MemoryBackendConfig{
			Shards:          cfg.Memory.Shards,
			MaxEntries:      cfg.Memory.MaxEntries,
			MaxCounters:     cfg.Memory.MaxCounters,
			CleanupInterval: cfg.Memory.CleanupInterval,
		}), nil
	case "redis":
		backend, err := storage.NewRedisBackend(storage.RedisConfig{
			URL:         cfg.Redis.URL,
			KeyPrefix:   cfg.Redis.KeyPrefix,
			DialTimeout: cfg.Redis.DialTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect rate limit backend: %w", err)
		}
		return backend, nil
	default:
		return nil, fmt.Errorf("unsupported rate limit backend: %s", cfg.Backend)
	}
}

func newSubscriptionSource(cfg *config.SubscriptionsConfig) (subscriptionStore, error) {
	switch cfg.Backend {
	case "", "memory":
		return subscriptions.NewMemorySource(), nil
	case "sqlite":
		source, err := subscriptions.NewSQLiteSourceWithConfig(subscriptions.SQLiteConfig{
			DBPath:      cfg.SQLitePath,
			BusyTimeout: cfg.BusyTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open subscription database: %w", err)
		}
		return source, nil
	default:
		return nil, fmt.Errorf("unsupported subscription backend: %s", cfg.Backend)
	}
}

func openAuditStore(cfg *config.AuditConfig) (audit.Store, error) {
	switch cfg.Backend {
	case "sqlite":
		store, err := auditstorage.NewSQLiteStore(&auditstorage.SQLiteConfig{
			Path:         cfg.SQLite.Path,
			MaxOpenConns: cfg.SQLite.MaxOpenConns,
			WALMode:      cfg.SQLite.WALMode,
			BusyTimeout:  cfg.SQLite.BusyTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open audit store: %w", err)
		}
		return store, nil
	case "memory":
		return auditstorage.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported audit backend: %s", cfg.Backend)
	}
}

// openSecrets chains the secret file directory, when configured, in front
// of the environment.
func openSecrets(cfg *config.SecretsConfig) (*secrets.Manager, error) {
	var providers []secrets.Provider
	if cfg.Dir != "" {
		files, err := secrets.NewFileProvider(cfg.Dir, cfg.Watch)
		if err != nil {
			return nil, fmt.Errorf("failed to open secrets directory: %w", err)
		}
		providers = append(providers, files)
	}
	providers = append(providers, secrets.NewEnvProvider(cfg.EnvPrefix))

	return secrets.NewManager(providers, secrets.CacheConfig{
		Enabled: cfg.CacheTTL > 0,
		TTL:     cfg.CacheTTL,
	}), nil
}

func loadCatalog(path string) (*plans.Catalog, error) {
	if path == "" {
		return plans.DefaultCatalog(), nil
	}
	catalog, err := plans.LoadCatalog(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load plan catalog: %w", err)
	}
	return catalog, nil
}

func enforcerConfig(cfg *config.PlansConfig) enforcement.Config {
	return enforcement.Config{
		ExpiredTrialPolicy: enforcement.ExpiredTrialPolicy(cfg.ExpiredTrialPolicy),
		FallbackTier:       plans.Tier(cfg.FallbackTier),
	}
}

func retryPolicy(cfg *config.RetryConfig) retry.Policy {
	return retry.Policy{
		MaxRetries: cfg.MaxRetries,
		BaseDelay:  cfg.BaseDelay,
		MaxDelay:   cfg.MaxDelay,
		Mode:       retry.Mode(cfg.Mode),
		Jitter:     cfg.Jitter,
		MaxElapsed: cfg.MaxElapsed,
	}
}

func retentionConfig(cfg *config.RetentionConfig) *retention.Config {
	return &retention.Config{
		RetentionDays:       cfg.Days,
		PruneSchedule:       cfg.Schedule,
		ArchiveBeforeDelete: cfg.ArchiveBeforeDelete,
		ArchivePath:         cfg.ArchivePath,
		MaxRecords:          cfg.MaxRecords,
	}
}

func isMetered(q plans.Quota) bool {
	for _, m := range meteredQuotas {
		if q == m {
			return true
		}
	}
	return false
}
