package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"mercator-hq/tollgate/pkg/audit"
	"mercator-hq/tollgate/pkg/collab"
	"mercator-hq/tollgate/pkg/config"
	"mercator-hq/tollgate/pkg/limits"
	"mercator-hq/tollgate/pkg/limits/plans"
	"mercator-hq/tollgate/pkg/telemetry/tracing"
)

// SiteProvisioner creates client spaces on the collaboration API.
// *collab.Client satisfies it.
type SiteProvisioner interface {
	CreateSite(ctx context.Context, req collab.CreateSiteRequest) (*collab.Site, error)
}

// AuditReader reads audit records back for export. The audit stores
// satisfy it.
type AuditReader interface {
	Query(ctx context.Context, query *audit.Query) ([]*audit.Record, error)
}

// ResourceTracker adjusts live resource counts after a governed operation
// creates a resource. *subscriptions.SQLiteSource satisfies it.
type ResourceTracker interface {
	AdjustResourceCount(ctx context.Context, tenantID string, quota plans.Quota, delta int64) (int64, error)
}

// Mounter registers extra endpoints, such as health and metrics, on the
// server's mux. *telemetry.Telemetry satisfies it.
type Mounter interface {
	Mount(mux *http.ServeMux)
}

// Server is the Tollgate HTTP API server.
type Server struct {
	config  *config.ServerConfig
	manager *limits.Manager

	sites     SiteProvisioner
	auditLog  AuditReader
	resources ResourceTracker
	mounts    []Mounter
	apiKeys   KeySource
	tracer    *tracing.Tracer
	logger    *slog.Logger

	httpServer   *http.Server
	listener     net.Listener
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// Option configures a Server.
type Option func(*Server)

// WithSites enables POST /v1/tenants/{tenant}/spaces.
func WithSites(p SiteProvisioner) Option {
	return func(s *Server) {
		s.sites = p
	}
}

// WithAuditReader enables the audit export endpoint.
func WithAuditReader(r AuditReader) Option {
	return func(s *Server) {
		s.auditLog = r
	}
}

// WithResourceTracker keeps client space counts current after creation.
func WithResourceTracker(t ResourceTracker) Option {
	return func(s *Server) {
		s.resources = t
	}
}

// WithAPIKeys requires one of the keys from source on every /v1 route.
func WithAPIKeys(source KeySource) Option {
	return func(s *Server) {
		s.apiKeys = source
	}
}

// WithTracer starts a server span for every request.
func WithTracer(t *tracing.Tracer) Option {
	return func(s *Server) {
		s.tracer = t
	}
}

// WithMount registers extra endpoints on the server's mux.
func WithMount(m Mounter) Option {
	return func(s *Server) {
		if m != nil {
			s.mounts = append(s.mounts, m)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a server for the given governance manager.
func NewServer(cfg *config.ServerConfig, manager *limits.Manager, opts ...Option) *Server {
	s := &Server{
		config:  cfg,
		manager: manager,
		logger:  slog.Default().With("component", "server"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start listens on the configured address and serves until ctx is
// cancelled or Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}

	listener, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}

	s.listener = listener
	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
	s.isRunning = true
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "address", listener.Addr().String())
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err, ok := <-errChan:
		if ok {
			return err
		}
		return nil
	}
}

// Addr returns the listening address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("server stopped")
	})

	return shutdownErr
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the configured HTTP handler with its middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.routes(mux)
	for _, m := range s.mounts {
		m.Mount(mux)
	}

	var handler http.Handler = mux
	if s.apiKeys != nil {
		handler = apiKeyMiddleware(s.apiKeys, s.logger)(handler)
	}
	handler = timeoutMiddleware(s.config.WriteTimeout)(handler)
	handler = loggingMiddleware(s.logger)(handler)
	if s.tracer != nil {
		handler = tracing.Middleware(s.tracer)(handler)
	}
	handler = requestIDMiddleware(handler)
	handler = recoveryMiddleware(s.logger)(handler)
	return handler
}
