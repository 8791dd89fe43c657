// Package main provides the API server entry point
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

	"github.com/chicogong/slidegraph/pkg/api"
	"github.com/chicogong/slidegraph/pkg/auth"
	"github.com/chicogong/slidegraph/pkg/compiler"
	"github.com/chicogong/slidegraph/pkg/config"
	"github.com/chicogong/slidegraph/pkg/executor"
	"github.com/chicogong/slidegraph/pkg/prober"
	"github.com/chicogong/slidegraph/pkg/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting slidegraph API",
		slog.Int("port", cfg.Port),
		slog.String("work_dir", cfg.WorkDir),
		slog.String("ffmpeg", cfg.FFmpegPath),
		slog.Int("max_batch_inputs", cfg.MaxBatchInputs),
		slog.Int("max_concurrent_renders", cfg.MaxConcurrentRenders),
		slog.Bool("auth_required", cfg.AuthRequired),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	comp := compiler.New(
		compiler.WithMaxBatchInputs(cfg.MaxBatchInputs),
		compiler.WithLogger(logger),
	)
	exec := executor.NewExecutor(
		executor.WithFFmpegPath(cfg.FFmpegPath),
		executor.WithWorkDir(cfg.WorkDir),
		executor.WithParallelism(cfg.StageParallelism),
		executor.WithStorageManager(executor.NewStorageManager(ctx, cfg.S3Region, logger)),
		executor.WithProber(prober.NewProber(prober.WithFFprobePath(cfg.FFprobePath))),
		executor.WithCompiler(comp),
		executor.WithLogger(logger),
	)

	server := api.NewServer(
		api.WithStore(store.NewMemoryStore()),
		api.WithCompiler(comp),
		api.WithRenderer(exec),
		api.WithFFmpegPath(cfg.FFmpegPath),
		api.WithMaxConcurrentRenders(cfg.MaxConcurrentRenders),
		api.WithLogger(logger),
	)

	authMiddleware, err := newAuthMiddleware(cfg, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Port),
		Handler: api.NewRouter(server, api.RouterConfig{
			AllowedOrigins: cfg.AllowedOrigins,
			Auth:           authMiddleware,
			Logger:         logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server failed: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info("shutting down server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	if err := server.Close(shutdownCtx); err != nil {
		return fmt.Errorf("stop renders: %w", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}

// newAuthMiddleware returns nil when no credentials are configured, which
// leaves the API open.
func newAuthMiddleware(cfg *config.Config, logger *slog.Logger) (*auth.AuthMiddleware, error) {
	var jwtManager *auth.JWTManager
	if cfg.JWTSecret != "" {
		jwtManager = auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)
	}

	var keys *auth.APIKeyManager
	if len(cfg.APIKeys) > 0 {
		keys = auth.NewAPIKeyManager()
		for _, spec := range cfg.APIKeys {
			userID, role, key, err := auth.ParseKeySpec(spec)
			if err != nil {
				return nil, fmt.Errorf("API_KEYS: %w", err)
			}
			if _, err := keys.Add(key, userID, userID, role, nil); err != nil {
				return nil, fmt.Errorf("API_KEYS: %w", err)
			}
		}
		logger.Info("API keys loaded", slog.Int("count", keys.Count()))
	}

	if jwtManager == nil && keys == nil {
		logger.Warn("authentication disabled")
		return nil, nil
	}
	return auth.NewAuthMiddleware(jwtManager, keys, !cfg.AuthRequired).WithLogger(logger), nil
}
