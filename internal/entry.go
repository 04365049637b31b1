// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/worklog/internal/api"
	"github.com/starford/worklog/internal/index"
	"github.com/starford/worklog/internal/jobs"
	"github.com/starford/worklog/internal/mcpserver"
	"github.com/starford/worklog/internal/sse"
)

var errConfigRequired = errors.New("config is required")

// Run starts the HTTP server, the vault watcher and the job registry.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := app.logger
	if logger == nil {
		logger = NewLogger(cfg.App, os.Stdout)
	}
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Paths.Vault),
		slog.String("sqlite_path", cfg.Paths.SQLitePath()),
		slog.String("llm_provider", cfg.LLM.Provider),
		slog.String("log_level", cfg.App.LogLevel.String()))

	svc, err := NewServices(cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	// Run initial sync.
	if err := svc.Sync(ctx); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	g, gCtx := errgroup.WithContext(ctx)

	registry := jobs.NewRegistry(gCtx,
		jobs.WithLogger(logger),
		jobs.WithNotifier(func(j jobs.Job) { broker.PublishJobEvent(string(j.Status), j) }))

	apiRouter := api.NewRouter(api.Deps{
		Service:    svc.Service,
		Processor:  svc.Pipeline,
		Aggregator: svc.Timeline,
		Jobs:       registry,
		Inbox:      svc.Inbox,
	}, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Keep the index current while notes are edited outside the server.
	watcher := index.NewWatcher(svc.Index, svc.Vault, svc.Vault.Root(), logger, broker.PublishNoteEvent)
	g.Go(func() error {
		if err := watcher.Run(gCtx); err != nil {
			logger.Error("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}
	registry.Wait()

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the watcher and running jobs stop.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools over stdio. Logs go to stderr.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.logger
	if logger == nil {
		logger = NewLogger(app.config.App, os.Stderr)
	}
	slog.SetDefault(logger)

	svc, err := NewServices(app.config, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := svc.Sync(ctx); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	srv := mcpserver.New(mcpserver.Deps{
		Service:    svc.Service,
		Processor:  svc.Pipeline,
		Aggregator: svc.Timeline,
		Inbox:      svc.Inbox,
		Logger:     logger,
	})
	logger.Info("mcp: serving on stdio", slog.String("vault_path", app.config.Paths.Vault))
	return srv.ServeStdio()
}
