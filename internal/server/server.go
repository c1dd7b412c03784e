// Package server exposes the governance engine over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	sharedcfg "github.com/leapstack-labs/leapgov/internal/config"
	"github.com/leapstack-labs/leapgov/internal/engine"
	"github.com/leapstack-labs/leapgov/internal/notifier"
	"golang.org/x/sync/errgroup"
)

// Server serves the governance API.
type Server struct {
	engine   *engine.Engine
	notifier *notifier.Notifier
	cfg      sharedcfg.ServerConfig
	logger   *slog.Logger
}

// Config holds configuration for the HTTP server.
type Config struct {
	Engine   *engine.Engine
	Notifier *notifier.Notifier
	Server   sharedcfg.ServerConfig
	Logger   *slog.Logger
}

// New creates a server. Unset server settings take their defaults.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	n := cfg.Notifier
	if n == nil {
		n = notifier.New()
	}
	srvCfg := cfg.Server
	sharedcfg.ApplyServerDefaults(&srvCfg)

	return &Server{
		engine:   cfg.Engine,
		notifier: n,
		cfg:      srvCfg,
		logger:   logger,
	}
}

// Notifier returns the server's run event notifier.
func (s *Server) Notifier() *notifier.Notifier {
	return s.notifier
}

// Handler returns the HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.Recoverer,
		s.logRequests,
	)
	s.routes(r)
	return r
}

// logRequests logs each request through the structured logger.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// Serve starts the server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until the context is cancelled, then shuts
// down gracefully.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	s.logger.Info("starting API server", "addr", ln.Addr().String())

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
	}

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()

		s.logger.Debug("shutting down API server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
