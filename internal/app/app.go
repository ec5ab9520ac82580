// Package app wires configuration, storage, the campaign engine, the
// dispatch driver and the HTTP API into one runnable application.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ptrelli/wadrip/internal/api"
	"github.com/ptrelli/wadrip/internal/config"
	"github.com/ptrelli/wadrip/internal/contacts"
	"github.com/ptrelli/wadrip/internal/driver"
	"github.com/ptrelli/wadrip/internal/engine"
	"github.com/ptrelli/wadrip/internal/metrics"
	"github.com/ptrelli/wadrip/internal/store"
	"github.com/ptrelli/wadrip/internal/transport"
)

// App is the main application
type App struct {
	config    *config.Config
	store     *store.Store
	contacts  *contacts.Store
	registry  *transport.Registry
	engine    *engine.Engine
	driver    *driver.Driver
	apiServer *api.Server
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New creates a new application
func New(cfg *config.Config) (*App, error) {
	logger := setupLogger(cfg.Logging)

	st, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open campaign store: %w", err)
	}

	dir, err := contacts.Open(cfg.Contacts.Path)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to open contact directory: %w", err)
	}

	registry := transport.NewRegistry()
	for _, s := range cfg.Transport.Sessions {
		registry.Register(s.Name, transport.NewHTTPClient(s.BaseURL, s.APIKey, s.Name, cfg.Transport.Timeout))
	}
	logger.Info("transport sessions registered", "sessions", registry.Sessions())

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		logger.Info("metrics enabled", "path", cfg.Metrics.Path)
	}

	eng := engine.New(st, dir, logger, m)

	drv := driver.New(eng, st, registry, m, driver.Config{
		PollInterval: cfg.Dispatcher.PollInterval,
		BatchSize:    cfg.Dispatcher.BatchSize,
		Concurrency:  cfg.Dispatcher.Concurrency,
		SendTimeout:  cfg.Dispatcher.SendTimeout,
	}, logger)

	apiServer := api.NewServer(eng, st, m, cfg, logger)

	return &App{
		config:    cfg,
		store:     st,
		contacts:  dir,
		registry:  registry,
		engine:    eng,
		driver:    drv,
		apiServer: apiServer,
		metrics:   m,
		logger:    logger,
	}, nil
}

// Run starts all components and waits for shutdown
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("starting wadrip",
		"api_addr", a.config.Server.ListenAddr,
		"storage", a.config.Storage.Path,
		"poll_interval", a.config.Dispatcher.PollInterval,
	)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a.driver.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		if err := a.apiServer.ListenAndServe(); err != nil {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		a.logger.Error("server error", "error", err)
		cancel()
	}

	return a.Shutdown(context.Background())
}

// Shutdown gracefully shuts down all components
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// Stop the driver first so no new sends start mid-shutdown
	a.driver.Stop()

	if err := a.apiServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("api server shutdown error", "error", err)
	}

	if err := a.contacts.Close(); err != nil {
		a.logger.Error("contact directory close error", "error", err)
	}
	if err := a.store.Close(); err != nil {
		a.logger.Error("store close error", "error", err)
	}

	a.logger.Info("shutdown complete")
	return nil
}

// setupLogger creates a logger based on configuration
func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
