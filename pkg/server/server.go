package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/getmockd/odatad/pkg/config"
	"github.com/getmockd/odatad/pkg/logging"
	"github.com/getmockd/odatad/pkg/ratelimit"
	"github.com/getmockd/odatad/pkg/resource"
	"github.com/getmockd/odatad/pkg/seed"
	"github.com/getmockd/odatad/pkg/validation"
)

// Server is the HTTP transport in front of a Bridge.
type Server struct {
	bridge   *resource.Bridge
	metrics  *resource.MetricsObserver
	limiter  *ratelimit.Limiter
	cfg      *config.ServerConfiguration
	log      *slog.Logger
	version  string
	document []byte

	// reset, when set, is the dataset POST /$reset restores.
	reset *seed.Dataset
	started  time.Time

	handler    http.Handler
	httpServer *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger used for access and lifecycle logs.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// WithMetrics exposes the observer's counters at GET /$stats. Without it the
// endpoint reports entity counts only.
func WithMetrics(m *resource.MetricsObserver) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithRateLimiter throttles clients with l. The limiter's idle sweeper runs
// while the server serves.
func WithRateLimiter(l *ratelimit.Limiter) Option {
	return func(s *Server) {
		s.limiter = l
	}
}

// WithReset enables POST /$reset, which replaces the store contents with d
// and zeroes the operation counters.
func WithReset(d seed.Dataset) Option {
	return func(s *Server) {
		s.reset = &d
	}
}

// WithVersion sets the version reported by the service document.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// New builds a server for bridge. The OpenAPI document is generated and
// validated here, once.
func New(ctx context.Context, bridge *resource.Bridge, cfg *config.ServerConfiguration, opts ...Option) (*Server, error) {
	if bridge == nil {
		panic("server.New: bridge must not be nil")
	}
	if cfg == nil {
		cfg = config.DefaultServerConfiguration()
	}
	s := &Server{
		bridge:  bridge,
		cfg:     cfg,
		log:     logging.Nop(),
		version: "dev",
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	doc, err := validation.BuildDocument(ctx, bridge.Model(), s.version)
	if err != nil {
		return nil, fmt.Errorf("building service document: %w", err)
	}
	s.document, err = json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding service document: %w", err)
	}

	s.handler = s.withMiddleware(http.HandlerFunc(s.route))
	return s, nil
}

// Handler returns the server's HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
}

// ListenAndServe listens on the configured address and serves until ctx is
// canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is canceled. In-flight requests
// get up to the configured shutdown timeout to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadTimeout:       s.cfg.ReadTimeoutDuration(),
		ReadHeaderTimeout: s.cfg.ReadTimeoutDuration(),
		WriteTimeout:      s.cfg.WriteTimeoutDuration(),
		ErrorLog:          slog.NewLogLogger(s.log.Handler(), slog.LevelWarn),
	}

	if s.limiter != nil {
		go s.limiter.Run(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(ln)
	}()
	s.log.Info("server started", "addr", ln.Addr().String(), "version", s.version)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP server error: %w", err)
	case <-ctx.Done():
	}

	s.log.Info("shutting down", "timeout", s.cfg.ShutdownTimeoutDuration())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeoutDuration())
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	s.log.Info("server stopped")
	return nil
}
