// Package httpserver wires the botpack HTTP endpoints onto one server.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/net/netutil"
	"golang.org/x/time/rate"

	"git.home.luguber.info/inful/botpack/internal/config"
	derrors "git.home.luguber.info/inful/botpack/internal/foundation/errors"
	"git.home.luguber.info/inful/botpack/internal/logfields"
	"git.home.luguber.info/inful/botpack/internal/packaging"
	"git.home.luguber.info/inful/botpack/internal/server/handlers"
	smw "git.home.luguber.info/inful/botpack/internal/server/middleware"
)

const shutdownTimeout = 10 * time.Second

// Options configures optional server wiring.
type Options struct {
	// MetricsHandler is mounted at the configured metrics path when set.
	MetricsHandler http.Handler
	Logger         *slog.Logger
}

// Server serves the selector UI, API, and health endpoints. The packaging
// service can be replaced at runtime with Swap.
type Server struct {
	cfg     config.ServerConfig
	metrics config.MetricsConfig
	opts    Options
	logger  *slog.Logger

	service      atomic.Pointer[packaging.Service]
	errorAdapter *derrors.HTTPErrorAdapter
	startTime    time.Time

	httpServer *http.Server
	listener   net.Listener
	serveErr   chan error
}

// New constructs a server around svc.
func New(cfg *config.Config, svc *packaging.Service, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:          cfg.Server,
		metrics:      cfg.Metrics,
		opts:         opts,
		logger:       logger,
		errorAdapter: derrors.NewHTTPErrorAdapter(logger),
		startTime:    time.Now(),
	}
	s.service.Store(svc)
	return s
}

// Swap installs a new packaging service. Requests already running keep the
// service they started with.
func (s *Server) Swap(svc *packaging.Service) {
	s.service.Store(svc)
	s.logger.Info("Packaging service replaced")
}

func (s *Server) current() handlers.Packager { return s.service.Load() }

// Handler builds the routed, middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	pages := handlers.NewPageHandlers(s.current, s.logger)
	api := handlers.NewAPIHandlers(s.current, s.cfg.AssembleTimeout, s.logger)
	monitoring := handlers.NewMonitoringHandlers(s.current, s.startTime, s.logger)

	var limiter *rate.Limiter
	if rl := s.cfg.RateLimit; rl.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(rl.RequestsPerSecond), max(rl.Burst, 1))
	}
	limit := smw.RateLimit(limiter, s.errorAdapter)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", pages.HandleSelector)
	mux.HandleFunc("GET /guide", pages.HandleGuide)
	mux.HandleFunc("GET /api/modules", api.HandleModules)
	mux.Handle("POST /process", limit(http.HandlerFunc(api.HandleProcess)))
	mux.HandleFunc("GET /health", monitoring.HandleHealthCheck)
	mux.HandleFunc("GET /healthz", monitoring.HandleHealthCheck)
	mux.HandleFunc("GET /ready", monitoring.HandleReadiness)
	if s.metrics.Enabled && s.opts.MetricsHandler != nil {
		mux.Handle("GET "+s.metrics.Path, s.opts.MetricsHandler)
	}
	if s.cfg.StaticDir != "" {
		mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(s.cfg.StaticDir))))
	}

	return smw.Chain(s.logger, s.errorAdapter)(mux)
}

// Start binds the listener and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("http startup failed: %w", err)
	}
	if s.cfg.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, s.cfg.MaxConnections)
	}

	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	s.serveErr = make(chan error, 1)

	go func() {
		err := s.httpServer.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", logfields.Error(err))
			s.serveErr <- err
		}
		close(s.serveErr)
	}()

	s.logger.Info("HTTP server started",
		slog.String("addr", ln.Addr().String()),
		slog.Int("max_connections", s.cfg.MaxConnections))
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	s.logger.Info("HTTP server stopped")
	return nil
}

// Run starts the server and blocks until ctx ends or serving fails, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}

	select {
	case err, ok := <-s.serveErr:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return s.Stop(shutdownCtx)
}
