package telemetry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"mercator-hq/tollgate/pkg/config"
	"mercator-hq/tollgate/pkg/telemetry/health"
	"mercator-hq/tollgate/pkg/telemetry/logging"
	"mercator-hq/tollgate/pkg/telemetry/metrics"
	"mercator-hq/tollgate/pkg/telemetry/tracing"
)

// Telemetry bundles the process logger, the metrics collector, the tracer
// and the health checker.
type Telemetry struct {
	cfg     *config.TelemetryConfig
	info    health.VersionInfo
	level   *slog.LevelVar
	logger  *slog.Logger
	metrics *metrics.Collector
	tracer  *tracing.Tracer
	health  *health.Checker
}

// New builds the telemetry bundle from cfg. The logger is installed as
// slog's default. Logs go to w, or stdout when w is nil.
func New(cfg *config.TelemetryConfig, info health.VersionInfo, w io.Writer) (*Telemetry, error) {
	level := new(slog.LevelVar)

	patterns := make([]logging.Pattern, 0, len(cfg.Logging.RedactPatterns))
	for _, p := range cfg.Logging.RedactPatterns {
		patterns = append(patterns, logging.Pattern{
			Name:        p.Name,
			Pattern:     p.Pattern,
			Replacement: p.Replacement,
		})
	}

	logger, err := logging.Setup(logging.Config{
		Level:          cfg.Logging.Level,
		Format:         cfg.Logging.Format,
		AddSource:      cfg.Logging.AddSource,
		Redact:         cfg.Logging.Redact,
		RedactPatterns: patterns,
		Writer:         w,
		LevelVar:       level,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}

	tracer, err := tracing.New(&cfg.Tracing, info.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to set up tracing: %w", err)
	}
	if tracer.Enabled() {
		logger.Info("tracing enabled",
			"endpoint", cfg.Tracing.Endpoint,
			"sampler", cfg.Tracing.Sampler,
		)
	}

	return &Telemetry{
		cfg:     cfg,
		info:    info,
		level:   level,
		logger:  logger,
		metrics: metrics.NewCollector(&cfg.Metrics, nil),
		tracer:  tracer,
		health:  health.New(cfg.Health.CheckTimeout),
	}, nil
}

// Logger returns the process logger.
func (t *Telemetry) Logger() *slog.Logger { return t.logger }

// Metrics returns the metrics collector.
func (t *Telemetry) Metrics() *metrics.Collector { return t.metrics }

// Tracer returns the tracer.
func (t *Telemetry) Tracer() *tracing.Tracer { return t.tracer }

// Shutdown flushes pending spans.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return t.tracer.Shutdown(ctx)
}

// Health returns the health checker.
func (t *Telemetry) Health() *health.Checker { return t.health }

// SetLevel changes the log level at runtime. It is used as a config reload
// subscriber; format and redaction changes need a restart.
func (t *Telemetry) SetLevel(level string) error {
	parsed, err := logging.ParseLevel(level)
	if err != nil {
		return err
	}
	if t.level.Level() != parsed {
		t.logger.Info("log level changed", "from", t.level.Level().String(), "to", parsed.String())
		t.level.Set(parsed)
	}
	return nil
}

// Mount registers the health, readiness, version and (when enabled) metrics
// endpoints on mux.
func (t *Telemetry) Mount(mux *http.ServeMux) {
	health.Mount(mux, t.health, health.Paths{
		Liveness:  t.cfg.Health.LivenessPath,
		Readiness: t.cfg.Health.ReadinessPath,
	}, t.info)

	if t.cfg.Metrics.Enabled {
		path := t.cfg.Metrics.Path
		if path == "" {
			path = config.DefaultMetricsPath
		}
		mux.Handle(path, t.metrics.Handler())
	}
}
