// Package server exposes the agent runtime over HTTP: conversation
// endpoints with SSE streaming, the status endpoint, health, and metrics.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/leadflowhq/leadflow/pkg/agent"
	"github.com/leadflowhq/leadflow/pkg/auth"
	"github.com/leadflowhq/leadflow/pkg/config"
	"github.com/leadflowhq/leadflow/pkg/conversation"
)

// Server wires the runtime, agent registry, and store into an HTTP server.
type Server struct {
	cfg       *config.ServerConfig
	runtime   *agent.Runtime
	agents    *agent.Registry
	store     conversation.Store
	heartbeat time.Duration

	metricsHandler http.Handler
	httpServer     *http.Server
}

// New creates a server. metricsHandler may be nil when metrics are
// disabled.
func New(cfg *config.ServerConfig, runtime *agent.Runtime, agents *agent.Registry, store conversation.Store, metricsHandler http.Handler) (*Server, error) {
	s := &Server{
		cfg:            cfg,
		runtime:        runtime,
		agents:         agents,
		store:          store,
		heartbeat:      cfg.Heartbeat(),
		metricsHandler: metricsHandler,
	}

	identityMiddleware, err := auth.Middleware(&cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to build auth middleware: %w", err)
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(observabilityMiddleware)

	router.Get("/healthz", s.handleHealth)
	if metricsHandler != nil {
		router.Handle("/metrics", metricsHandler)
	}

	router.Route("/v1/agents/{agent}/conversations", func(r chi.Router) {
		r.Use(identityMiddleware)
		r.Post("/", s.handleStartConversation)
		r.Post("/{id}/messages", s.handleMessage)
		r.Get("/{id}/status", s.handleStatus)
	})

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: router,
		// No WriteTimeout: turns stream indefinitely and are bounded, if at
		// all, by proxy-level timeouts.
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

// Handler exposes the router, primarily for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		slog.Info("HTTP server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		slog.Info("Shutting down HTTP server")
		return s.httpServer.Shutdown(shutdownCtx)
	})

	return group.Wait()
}
