// Package api exposes the campaign management HTTP API and the gateway
// webhook endpoints.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ptrelli/wadrip/internal/config"
	"github.com/ptrelli/wadrip/internal/engine"
	"github.com/ptrelli/wadrip/internal/metrics"
	"github.com/ptrelli/wadrip/internal/store"
)

// Server is the HTTP API server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	engine     *engine.Engine
	store      *store.Store
	metrics    *metrics.Metrics
	config     *config.Config
	logger     *slog.Logger
	startTime  time.Time
}

// NewServer creates a new API server. metrics may be nil when disabled.
func NewServer(e *engine.Engine, st *store.Store, m *metrics.Metrics, cfg *config.Config, logger *slog.Logger) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		engine:    e,
		store:     st,
		metrics:   m,
		config:    cfg,
		logger:    logger.With("component", "api"),
		startTime: time.Now(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Recoverer)

	// Health check (no auth required)
	s.router.Get("/health", s.handleHealth)

	if s.metrics != nil && s.config.Metrics.Enabled {
		s.router.Method(http.MethodGet, s.config.Metrics.Path, s.metrics.Handler())
	}

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Post("/campaigns", s.handleCreateCampaign)
		r.Get("/campaigns", s.handleListCampaigns)
		r.Get("/campaigns/{id}", s.handleGetCampaign)
		r.Get("/campaigns/{id}/stats", s.handleCampaignStats)
		r.Get("/campaigns/{id}/queue", s.handleCampaignQueue)
		r.Post("/campaigns/{id}/start", s.handleStart)
		r.Post("/campaigns/{id}/pause", s.handlePause)
		r.Post("/campaigns/{id}/resume", s.handleResume)
		r.Post("/campaigns/{id}/cancel", s.handleCancel)

		r.Post("/webhooks/inbound", s.handleInboundWebhook)
		r.Post("/webhooks/status", s.handleStatusWebhook)
		r.Post("/webhooks/response", s.handleResponseWebhook)
	})
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe() error {
	s.httpServer = &http.Server{
		Addr:         s.config.Server.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  s.config.Server.IdleTimeout,
	}

	s.logger.Info("starting HTTP API server", "addr", s.config.Server.ListenAddr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP API server")
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
