// linear-agent-v0 - Linear agent session orchestrator for v0 UI generation
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frasergibbs/linear-agent-v0/internal/api"
	"github.com/frasergibbs/linear-agent-v0/internal/config"
	"github.com/frasergibbs/linear-agent-v0/internal/linear"
	"github.com/frasergibbs/linear-agent-v0/internal/metrics"
	"github.com/frasergibbs/linear-agent-v0/internal/router"
	"github.com/frasergibbs/linear-agent-v0/internal/store"
	"github.com/frasergibbs/linear-agent-v0/internal/v0"
	"github.com/frasergibbs/linear-agent-v0/internal/vercel"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port)

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	// External API clients, constructed once and injected.
	var linearOpts []linear.ClientOption
	if cfg.LinearEndpoint != "" {
		linearOpts = append(linearOpts, linear.WithEndpoint(cfg.LinearEndpoint))
	}
	linearClient := linear.NewClient(cfg.LinearAPIKey, linearOpts...)

	var v0Opts []v0.ClientOption
	if cfg.V0BaseURL != "" {
		v0Opts = append(v0Opts, v0.WithBaseURL(cfg.V0BaseURL))
	}
	v0Client := v0.NewClient(cfg.V0APIKey, v0Opts...)

	var vercelOpts []vercel.ClientOption
	if cfg.VercelBaseURL != "" {
		vercelOpts = append(vercelOpts, vercel.WithBaseURL(cfg.VercelBaseURL))
	}
	vercelClient := vercel.NewClient(cfg.VercelToken, vercelOpts...)

	rec := metrics.NewRecorder(prometheus.DefaultRegisterer)
	eventRouter := router.New(repo, linearClient, v0Client, vercelClient, rec)
	handler := api.NewHandler(eventRouter, repo, cfg.LinearWebhookSecret, cfg.ProcessTimeout)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))

	handler.RegisterRoutes(r)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start session cleanup worker.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store.StartCleanupWorker(ctx, repo, cfg.SessionTTL, cfg.CleanupInterval)
	slog.Info("Session cleanup worker started", "session_ttl", cfg.SessionTTL)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
