package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/ResumeMatch/internal/config"
	"github.com/JonMunkholm/ResumeMatch/internal/logging"
	"github.com/JonMunkholm/ResumeMatch/internal/matchclient"
	"github.com/JonMunkholm/ResumeMatch/internal/metrics"
	"github.com/JonMunkholm/ResumeMatch/internal/resultstore"
	"github.com/JonMunkholm/ResumeMatch/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded", "config", cfg.String())

	m := metrics.New()

	client, err := matchclient.New(matchclient.Options{
		BaseURL:         cfg.Upstream.URL,
		UploadPath:      cfg.Upstream.UploadPath,
		DownloadPath:    cfg.Upstream.DownloadPath,
		Timeout:         cfg.Upstream.Timeout,
		MaxConcurrent:   cfg.Upload.MaxConcurrent,
		MaxWait:         cfg.Upload.MaxWaitTime,
		BreakerFailures: cfg.Breaker.Failures,
		BreakerCooldown: cfg.Breaker.Cooldown,
		Metrics:         m,
	})
	if err != nil {
		slog.Error("failed to create matching service client", "error", err)
		os.Exit(1)
	}

	store := resultstore.New(cfg.Results.TTL)
	server := web.NewServer(cfg, client, store, m)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(server.Start)

	g.Go(func() error {
		server.SweepLimiters(gctx)
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Wait for in-flight submissions before closing connections
		if status := client.Limiter().Status(); status.Active > 0 {
			slog.Info("waiting for submissions to complete", "active", status.Active)
			if err := client.Limiter().WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("submissions did not complete in time", "error", err)
			} else {
				slog.Info("all submissions completed")
			}
		}

		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
