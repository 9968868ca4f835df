// Package main is the entrypoint for the Medalyze dashboard server.
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

	"github.com/kiranshivaraju/medalyze/internal/api"
	"github.com/kiranshivaraju/medalyze/internal/api/handler"
	mw "github.com/kiranshivaraju/medalyze/internal/api/middleware"
	"github.com/kiranshivaraju/medalyze/internal/cache"
	"github.com/kiranshivaraju/medalyze/internal/config"
	"github.com/kiranshivaraju/medalyze/internal/dashboard"
	"github.com/kiranshivaraju/medalyze/internal/neuralseek"
	"github.com/kiranshivaraju/medalyze/internal/session"
	"github.com/kiranshivaraju/medalyze/internal/store"
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
	slog.Info("config loaded",
		"env", cfg.Server.Env,
		"analysis_concurrency", cfg.Analysis.Concurrency,
		"auth_enabled", cfg.AuthEnabled(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Cache: Redis when configured, otherwise process memory
	c, err := openCache(ctx, cfg.Redis.URL)
	if err != nil {
		return err
	}
	defer c.Close()

	// 3. Optional database for API keys
	var keyStore store.Store
	if cfg.AuthEnabled() {
		pool, err := store.Connect(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer pool.Close()
		slog.Info("database connected")

		if err := store.RunMigrations(cfg.Database.URL); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		slog.Info("database migrations applied")

		keyStore = store.NewPostgresStore(pool)

		if cfg.Database.AdminBootstrapKey != "" {
			if err := store.EnsureBootstrapKey(ctx, keyStore, cfg.Database.AdminBootstrapKey); err != nil {
				return fmt.Errorf("bootstrap admin key: %w", err)
			}
		}
	} else {
		slog.Warn("DATABASE_URL not set, dashboard routes are unauthenticated")
	}

	// 4. Analysis client and dashboard service
	client := neuralseek.NewHTTPClient(cfg.Analysis.BaseURL, cfg.Analysis.APIKey, cfg.Analysis.Timeout)

	router := api.NewRouter(buildDependencies(cfg, c, client, keyStore))

	// 5. Start HTTP server. Uploads wait on the analysis service, so the write
	// timeout follows the analysis timeout.
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: writeTimeout(cfg.Analysis.Timeout),
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

func openCache(ctx context.Context, redisURL string) (cache.Cache, error) {
	if redisURL == "" {
		slog.Info("REDIS_URL not set, using in-memory cache")
		return cache.NewMemoryCache(), nil
	}

	rc, err := cache.NewRedisCache(redisURL)
	if err != nil {
		return nil, fmt.Errorf("create redis cache: %w", err)
	}
	if err := rc.Ping(ctx); err != nil {
		rc.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")
	return rc, nil
}

// buildDependencies wires handlers and middleware. A nil keyStore leaves the
// dashboard unauthenticated and the admin routes unregistered.
func buildDependencies(cfg *config.Config, c cache.Cache, client neuralseek.Client, keyStore store.Store) api.Dependencies {
	svc := dashboard.NewService(client, c, cfg.Session.TTL, cfg.Analysis.Concurrency)
	sessions := session.NewStore(c, cfg.Session.TTL)

	deps := api.Dependencies{
		RateLimit: mw.NewRateLimit(c, cfg.RateLimit.RequestsPerMinute),
		Sessions:  mw.NewSessions(cfg.Session.TTL, cfg.Server.Env == "production"),

		IndexHandler:             handler.NewIndexHandler(),
		HealthHandler:            handler.NewHealthHandler(c, nil),
		UploadTranscriptsHandler: handler.NewUploadTranscriptsHandler(svc, sessions, cfg.Server.MaxUploadBytes),
		ListTranscriptsHandler:   handler.NewListTranscriptsHandler(sessions),
		ClearTranscriptsHandler:  handler.NewClearTranscriptsHandler(sessions),
		VisualizationHandler:     handler.NewVisualizationHandler(svc, sessions),
		ScoresCSVHandler:         handler.NewScoresCSVHandler(svc, sessions),
		HeatmapHandler:           handler.NewHeatmapHandler(svc, sessions),
		SendHeatmapHandler:       handler.NewSendHeatmapHandler(svc, sessions),
	}

	if keyStore != nil {
		deps.Auth = mw.NewAuth(keyStore)
		deps.HealthHandler = handler.NewHealthHandler(c, keyStore)
		deps.CreateKeyHandler = handler.NewCreateKeyHandler(keyStore)
		deps.ListKeysHandler = handler.NewListKeysHandler(keyStore)
		deps.RevokeKeyHandler = handler.NewRevokeKeyHandler(keyStore)
	}

	return deps
}

// writeTimeout leaves room past the analysis timeout for rendering and the
// response itself.
func writeTimeout(analysis time.Duration) time.Duration {
	return analysis + time.Minute
}
