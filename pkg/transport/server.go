package transport

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onedayrun/platform/pkg/api"
	"github.com/onedayrun/platform/pkg/catalog"
	"github.com/onedayrun/platform/pkg/deploy"
	"github.com/onedayrun/platform/pkg/provider"
	"github.com/onedayrun/platform/pkg/repository"
	"github.com/onedayrun/platform/pkg/session"
	"github.com/onedayrun/platform/pkg/storage"
	"github.com/onedayrun/platform/pkg/tools"
)

// Config holds the transport server configuration. MetricsDisabled is
// inverted so the zero value serves /metrics; a plain enabled bool could
// not be defaulted to true from an empty Config.
type Config struct {
	Addr              string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	ShutdownTimeout   time.Duration
	HeartbeatInterval time.Duration
	DefaultPlatform   string
	MetricsDisabled   bool
	MetricsPath       string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:              ":8080",
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
		ShutdownTimeout:   10 * time.Second,
		HeartbeatInterval: 30 * time.Second,
		DefaultPlatform:   "railway",
		MetricsPath:       "/metrics",
	}
}

// applyDefaults fills in zero-value fields.
func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Addr == "" {
		c.Addr = def.Addr
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = def.ReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = def.ShutdownTimeout
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = def.HeartbeatInterval
	}
	if c.DefaultPlatform == "" {
		c.DefaultPlatform = def.DefaultPlatform
	}
	if c.MetricsPath == "" {
		c.MetricsPath = def.MetricsPath
	}
}

// Deps are the collaborators the transport layer serves. GitHub may be
// nil when no token is configured; the GitHub routes then answer with a
// server error.
type Deps struct {
	Provider     provider.Provider
	EngineConfig session.Config
	Registry     *session.Registry
	Archive      storage.Archive
	Library      *catalog.Library
	GitHub       *repository.Service
	Deployments  *deploy.Manager
	Logger       *slog.Logger
}

// Server exposes the platform API over HTTP and WebSocket and manages
// the full lifecycle including startup and graceful shutdown.
type Server struct {
	cfg         Config
	provider    provider.Provider
	engineCfg   session.Config
	registry    *session.Registry
	archive     storage.Archive
	library     *catalog.Library
	github      *repository.Service
	deployments *deploy.Manager
	logger      *slog.Logger

	httpServer *http.Server
	handler    http.Handler
}

// NewServer creates a transport server. Default middleware (recovery,
// request ID, logging) is applied automatically; extra middleware (auth,
// metrics) wraps inside the defaults, in the order given.
func NewServer(cfg Config, deps Deps, extra ...Middleware) *Server {
	cfg.applyDefaults()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:         cfg,
		provider:    deps.Provider,
		engineCfg:   deps.EngineConfig,
		registry:    deps.Registry,
		archive:     deps.Archive,
		library:     deps.Library,
		github:      deps.GitHub,
		deployments: deps.Deployments,
		logger:      logger,
	}

	middlewares := []Middleware{
		Recovery(logger),
		RequestID(),
		Logging(logger),
	}
	middlewares = append(middlewares, extra...)
	s.handler = Chain(middlewares...)(s.routes())

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s
}

// Handler returns the fully wrapped HTTP handler. Used for testing.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// routes builds the route table.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /projects", s.handleCreateProject)
	mux.HandleFunc("GET /projects/{id}", s.handleGetProject)
	mux.HandleFunc("POST /projects/{id}/github", s.handleSetupGithub)
	mux.HandleFunc("POST /projects/{id}/deploy", s.handleDeployProject)
	mux.HandleFunc("GET /components", s.handleListComponents)
	mux.HandleFunc("GET /components/search", s.handleSearchComponents)
	mux.HandleFunc("GET /pricing", s.handlePricing)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /ws/{id}", s.handleWebsocket)

	if !s.cfg.MetricsDisabled {
		mux.Handle("GET "+s.cfg.MetricsPath, promhttp.Handler())
	}

	return mux
}

// newEngine builds a session engine wired to the server's collaborators.
func (s *Server) newEngine() *session.Engine {
	deps := tools.Deps{
		Library:     s.library,
		GitHub:      s.github,
		Deployments: s.deployments,
	}
	return session.NewEngine(s.provider, deps, s.engineCfg, s.logger)
}

// saveSnapshot archives the current project state. Archive failures are
// logged, never surfaced: the live session stays authoritative.
func (s *Server) saveSnapshot(ctx context.Context, p *api.ProjectContext) {
	if s.archive == nil || p == nil {
		return
	}
	if err := s.archive.Save(ctx, p); err != nil {
		s.logger.Warn("archiving project snapshot failed",
			"project_id", p.ProjectID, "error", err)
	}
}

// ListenAndServe starts the server and blocks until a shutdown signal
// (SIGINT or SIGTERM) is received. It then gracefully shuts down,
// waiting for in-flight requests to complete within the configured timeout.
func (s *Server) ListenAndServe() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return s.listenAndServeWithContext(ctx)
}

func (s *Server) listenAndServeWithContext(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("server starting", slog.String("addr", s.cfg.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	}

	return s.shutdown()
}

// ServeOn starts the server on the given listener. Used for testing.
func (s *Server) ServeOn(ln net.Listener) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	return s.shutdown()
}

func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("graceful shutdown failed", slog.String("error", err.Error()))
		return err
	}

	s.logger.Info("server stopped")
	return nil
}
