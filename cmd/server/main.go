// Package main is the entrypoint for the Kariro AI jobs API server.
package main

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

	"github.com/kariro/kariro/internal/ai"
	"github.com/kariro/kariro/internal/api"
	"github.com/kariro/kariro/internal/api/handler"
	mw "github.com/kariro/kariro/internal/api/middleware"
	"github.com/kariro/kariro/internal/api/response"
	"github.com/kariro/kariro/internal/cache"
	"github.com/kariro/kariro/internal/config"
	"github.com/kariro/kariro/internal/fetch"
	"github.com/kariro/kariro/internal/queue"
	"github.com/kariro/kariro/internal/store"
	"github.com/kariro/kariro/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "ai_provider", cfg.AI.Provider, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create work queue
	jobQueue, err := queue.New(cfg.Redis.URL, cfg.Queue.Name, cfg.Queue.Backoff, cfg.Queue.Lease, slog.Default())
	if err != nil {
		return fmt.Errorf("create queue: %w", err)
	}
	defer jobQueue.Close()

	// 6. Create AI provider
	aiProvider, err := ai.NewProvider(cfg.AI)
	if err != nil {
		return fmt.Errorf("create AI provider: %w", err)
	}
	slog.Info("AI provider initialized", "provider", aiProvider.Name())

	// 7. Create store and services
	pgStore := store.NewPostgresStore(pool)

	fetcher := fetch.New(cfg.Fetch.Timeout, cfg.Fetch.MaxBytes, cfg.Fetch.MaxChars, nil)
	aiService := ai.NewService(pgStore, jobQueue, redisCache, cfg.Limits, cfg.Queue)

	// 8. Start worker pool consuming the queue
	jobWorker := worker.New(pgStore, redisCache, aiProvider, fetcher, cfg.AI.InferenceTimeout, slog.Default())
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		jobQueue.Run(ctx, jobWorker.Handle, cfg.Queue.Concurrency)
	}()
	slog.Info("worker pool started", "concurrency", cfg.Queue.Concurrency)

	// 9. Build router with dependencies
	auth := mw.NewAuth(pgStore)
	limiter := mw.NewLimiter(cfg.RateLimit.Window, cfg.RateLimit.Max)
	limiter.Start()
	defer limiter.Stop()

	deps := api.Dependencies{
		Auth:    auth,
		Limiter: limiter,

		HealthHandler:        healthHandler(pgStore, redisCache),
		AnalyzeJobHandler:    handler.NewAnalyzeJobHandler(aiService),
		CoverLetterHandler:   handler.NewCoverLetterHandler(aiService),
		InterviewPrepHandler: handler.NewInterviewPrepHandler(aiService),
		ResumeGapHandler:     handler.NewResumeGapHandler(aiService),
		PollJobHandler:       handler.NewPollJobHandler(aiService),
	}

	router := api.NewRouter(deps)

	// 10. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	// Workers finish their in-flight attempt after ctx cancellation.
	select {
	case <-workerDone:
	case <-time.After(shutdownTimeout):
		slog.Warn("worker pool did not drain in time")
	}

	slog.Info("server stopped gracefully")
	return nil
}

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
