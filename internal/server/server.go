package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/teemow/inboxsense/internal/instrumentation"
	"github.com/teemow/inboxsense/internal/logging"
)

const (
	// DefaultAddr is the API listen address.
	DefaultAddr = ":3000"

	// DefaultReadHeaderTimeout bounds reading request headers.
	DefaultReadHeaderTimeout = 10 * time.Second

	// DefaultWriteTimeout covers a full pipeline run.
	DefaultWriteTimeout = 2 * time.Minute
)

// Config configures a Server.
type Config struct {
	Addr string

	Auth     Authorizer
	Pipeline Pipeline
	Sessions *SessionManager

	// AIConfigured is reported by the detailed health check.
	AIConfigured bool

	Metrics *instrumentation.Metrics
	Logger  *slog.Logger
}

// Server is the HTTP API.
type Server struct {
	sc         *ServerContext
	health     *HealthChecker
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a Server. ctx is the parent of the server context.
func New(ctx context.Context, cfg Config) (*Server, error) {
	if cfg.Pipeline == nil {
		return nil, errors.New("pipeline is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logging.WithService(logger, "http")

	sc := NewServerContext(ctx, cfg.Auth, cfg.Pipeline, cfg.Sessions, cfg.AIConfigured)
	health := NewHealthChecker(sc)

	mux := http.NewServeMux()
	health.RegisterHealthEndpoints(mux)
	(&handlers{sc: sc, logger: logger}).register(mux)

	return &Server{
		sc:     sc,
		health: health,
		logger: logger,
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           instrument(mux, cfg.Metrics, logger),
			ReadHeaderTimeout: DefaultReadHeaderTimeout,
			WriteTimeout:      DefaultWriteTimeout,
			BaseContext:       func(net.Listener) context.Context { return sc.Context() },
		},
	}, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start serves until Shutdown. It returns http.ErrServerClosed after a
// graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("server listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown marks the server not ready, drains in-flight requests and then
// cancels the server context.
func (s *Server) Shutdown(ctx context.Context) error {
	s.health.SetReady(false)
	s.logger.Info("shutting down server")
	err := s.httpServer.Shutdown(ctx)
	_ = s.sc.Shutdown()
	return err
}
