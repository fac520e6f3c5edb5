// Package config provides configuration management for Tollgate.
//
// This package handles loading, validating, and managing configuration from
// YAML files with environment variable overrides.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("tollgate.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("tollgate.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention TOLLGATE_SECTION_FIELD.
// For example:
//
//   - TOLLGATE_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - TOLLGATE_RATE_LIMIT_DEFAULT_LIMIT overrides rate_limit.default_limit
//   - TOLLGATE_PLANS_EXPIRED_TRIAL_POLICY overrides plans.expired_trial_policy
//
// # Configuration Precedence
//
// Configuration values are applied in the following order (later overrides earlier):
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Hot Reload
//
// A Watcher reloads the file on change and notifies subscribers with the
// previous and new configuration. Only settings that are safe to change at
// runtime are picked up by subscribers (the limiter default limit, the retry
// policy, the log level); everything else requires a restart.
//
//	w := config.NewWatcher("tollgate.yaml")
//	w.Subscribe(func(prev, next *config.Config) {
//	    limiter.SetDefaultLimit(next.RateLimit.DefaultLimit)
//	})
//	go w.Run(ctx)
//
// # Example Configuration
//
//	server:
//	  listen_address: "0.0.0.0:8080"
//
//	rate_limit:
//	  backend: "redis"
//	  window: "1m"
//	  default_limit: 120
//	  redis:
//	    url: "redis://localhost:6379/0"
//
//	plans:
//	  expired_trial_policy: "downgrade"
//
//	audit:
//	  sqlite:
//	    path: "data/audit.db"
//	  retention:
//	    days: 90
package config
