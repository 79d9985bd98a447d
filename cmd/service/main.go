// cmd/service/main.go
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

	"portfolio-aggregator/internal/aggregator"
	"portfolio-aggregator/internal/api"
	"portfolio-aggregator/internal/cache"
	"portfolio-aggregator/internal/config"
	"portfolio-aggregator/internal/github"
	"portfolio-aggregator/internal/vercel"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Application startup error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Initialize structured logger
	logLevel := new(slog.LevelVar)
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	// 2. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	setLogLevel(cfg.LogLevel, logLevel)
	logger.Info("Configuration loaded successfully")

	// 3. Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 4. Initialize application components. Missing credentials leave the
	// corresponding source nil; the aggregator serves fallback or degraded
	// data instead of calling out.
	var repoSource aggregator.RepositorySource
	if cfg.GithubToken != "" && cfg.GithubUsername != "" {
		repoSource = github.NewClient(cfg.GithubToken, cfg.GithubUsername, cfg.RequestTimeout, logger)
	} else {
		logger.Warn("Repository source credential or username not configured, serving fallback data")
	}

	var deploySource aggregator.DeploymentSource
	if cfg.VercelToken != "" {
		deploySource = vercel.NewClient(cfg.VercelToken, cfg.RequestTimeout, logger)
	} else {
		logger.Warn("Deployment source credential not configured, live URLs disabled")
	}

	agg := aggregator.New(repoSource, deploySource, cache.New(), logger, aggregator.Options{
		Owner:            cfg.GithubUsername,
		FeaturedProjects: cfg.FeaturedProjects,
		MaxProjects:      cfg.MaxProjects,
		RepositoryTTL:    cfg.RepositoryTTL,
		DeploymentTTL:    cfg.DeploymentTTL,
		UserProfileTTL:   cfg.UserProfileTTL,
		StatsTTL:         cfg.StatsTTL,
	})

	// 5. Start the HTTP server
	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: api.NewRouter(agg, logger),
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// 6. Wait for shutdown signal or server failure
	select {
	case err := <-serverErr:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
		logger.Info("Shutdown signal received. Exiting.")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	return nil
}

func setLogLevel(level string, v *slog.LevelVar) {
	switch level {
	case "debug":
		v.Set(slog.LevelDebug)
	case "warn":
		v.Set(slog.LevelWarn)
	case "error":
		v.Set(slog.LevelError)
	default:
		v.Set(slog.LevelInfo)
	}
}
