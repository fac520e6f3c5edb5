// Package telemetry provides observability for Tollgate.
//
// # Components
//
//   - logging: structured slog logging with credential and PII redaction
//   - metrics: Prometheus metrics for every governance stage
//   - tracing: OpenTelemetry spans for requests and governed operations
//   - health: liveness, readiness and version endpoints
//
// # Usage
//
//	cfg := config.GetConfig()
//	tel, err := telemetry.New(&cfg.Telemetry, health.NewVersionInfo(version, commit, buildTime), nil)
//	if err != nil {
//		return err
//	}
//
//	limiter := ratelimit.NewLimiter(backend, rlCfg, ratelimit.WithObserver(tel.Metrics()))
//	tel.Health().RegisterCheck("rate_limit_backend", backendCheck)
//
//	mux := http.NewServeMux()
//	tel.Mount(mux)
//
// The log level follows configuration reloads through SetLevel. Format and
// redaction settings are fixed at startup.
//
// # Redaction
//
// With redaction enabled (the default), bearer tokens, API keys and email
// addresses are scrubbed from log attributes before they are written.
// Custom patterns extend the built-ins.
package telemetry
