package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/tollgate/pkg/cli"
	"mercator-hq/tollgate/pkg/config"
)

// startupTimeout bounds how long run waits for the listener to come up.
const startupTimeout = 5 * time.Second

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
	watch         bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Tollgate server",
	Long: `Start the Tollgate server with the specified configuration.

The server exposes the governed tenant API, the plan catalog, rate limit
status, audit export, health checks and Prometheus metrics. With --watch
(the default), edits to the config file change the default rate limit,
the retry policy and the log level without a restart.

Examples:
  # Start with default config
  tollgate run

  # Start with custom config
  tollgate run --config /etc/tollgate/tollgate.yaml

  # Override listen address
  tollgate run --listen 0.0.0.0:8080

  # Validate config without starting server
  tollgate run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
	runCmd.Flags().BoolVar(&runFlags.watch, "watch", true, "reload the config file when it changes")
}

func runServer(cmd *cobra.Command, args []string) error {
	loaded, err := loadConfig()
	if err != nil {
		return err
	}

	// The global config is read-only; overrides go on a copy.
	cfg := *loaded
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if err := config.Validate(&cfg); err != nil {
		return cli.NewConfigError("", err.Error())
	}

	out := cmd.OutOrStdout()
	if runFlags.dryRun {
		fmt.Fprintln(out, "✓ Configuration valid")
		return nil
	}

	a, err := newApp(&cfg, versionInfo(), os.Stdout)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Error("failed to close components", "error", err)
		}
	}()

	ctx, stop := cli.SignalContext(cmd.Context())
	defer stop()

	printBanner(a)

	if a.pruner != nil {
		if err := a.pruner.Start(ctx); err != nil {
			slog.Warn("failed to start retention scheduler", "error", err)
		} else {
			defer a.pruner.Stop()
			if next := a.pruner.NextPruning(); next != nil {
				slog.Debug("audit retention scheduler started", "next_pruning", next)
			}
		}
	}

	if runFlags.watch {
		watcher := config.NewWatcher(cfgFile)
		watcher.Subscribe(a.reload)
		go func() {
			if err := watcher.Run(ctx); err != nil {
				slog.Warn("config watcher stopped", "error", err)
			}
		}()
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- a.server.Start(ctx)
	}()

	if err := waitForListener(a, errChan, startupTimeout); err != nil {
		return cli.NewCommandError("run", err)
	}

	addr := a.server.Addr().String()
	fmt.Fprintln(out)
	fmt.Fprintf(out, "✓ Server listening on %s\n", addr)
	fmt.Fprintf(out, "✓ Health endpoint: http://%s%s\n", addr, cfg.Telemetry.Health.LivenessPath)
	if cfg.Telemetry.Metrics.Enabled {
		fmt.Fprintf(out, "✓ Metrics endpoint: http://%s%s\n", addr, cfg.Telemetry.Metrics.Path)
	}
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")

	if err := <-errChan; err != nil {
		return cli.NewCommandError("run", err)
	}
	fmt.Fprintln(out, "✓ Server stopped")
	return nil
}

func printBanner(a *app) {
	fmt.Printf("Tollgate v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)
	fmt.Println("✓ Configuration loaded")
	fmt.Printf("✓ Rate limiting: %s backend, %d per %s\n",
		a.cfg.RateLimit.Backend, a.cfg.RateLimit.DefaultLimit, a.cfg.RateLimit.Window)
	fmt.Printf("✓ Plans: %d tiers, fallback %s\n", len(a.catalog.Definitions()), a.enforcer.GetConfig().FallbackTier)
	if a.collab != nil {
		fmt.Printf("✓ Collaboration API: %s\n", a.cfg.Collab.BaseURL)
	} else {
		slog.Warn("collaboration API not configured, client space creation is disabled")
	}
	if a.auditLog != nil {
		fmt.Printf("✓ Audit store initialized (%s)\n", a.cfg.Audit.Backend)
	}
}

// waitForListener returns once the server is accepting connections, the
// server fails, or timeout elapses.
func waitForListener(a *app, errChan <-chan error, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()

	for {
		if a.server.Addr() != nil {
			return nil
		}
		select {
		case err := <-errChan:
			if err == nil {
				return fmt.Errorf("server stopped during startup")
			}
			return err
		case <-deadline.C:
			return fmt.Errorf("server did not start within %s", timeout)
		case <-tick.C:
		}
	}
}
