package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/ministats/internal/config"
	"github.com/JonMunkholm/ministats/internal/core"
	"github.com/JonMunkholm/ministats/internal/logging"
	"github.com/JonMunkholm/ministats/internal/web"
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

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"max_rows", cfg.Upload.MaxRows,
		"max_file_size", cfg.Upload.MaxFileSize.String(),
		"upload_max_concurrent", cfg.Upload.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
		"persistent_history", cfg.History.Persistent(),
	)
	slog.Debug("effective configuration", "config", cfg.String())

	ctx := context.Background()

	history, closeHistory, err := openHistory(ctx, cfg.History)
	if err != nil {
		slog.Error("failed to open upload history", "error", err)
		os.Exit(1)
	}
	defer closeHistory()

	service := core.NewService(core.Options{
		MaxRows:     cfg.Upload.MaxRows,
		FilterLimit: cfg.Query.FilterMaxRecords,
		DefaultBins: cfg.Query.PlotDefaultBins,
		MaxBins:     cfg.Query.PlotMaxBins,
	}, core.NewIngestLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime), history)

	server := web.NewServer(service, cfg)

	// Create cancellable context for background jobs
	jobCtx, cancelJobs := context.WithCancel(ctx)

	go service.StartHistoryPruner(jobCtx, core.RetentionConfig{
		Retention:     cfg.History.Retention,
		CheckInterval: cfg.History.PruneInterval,
	})

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Let in-flight uploads finish parsing before the listener closes.
		if status := service.IngestStatus(); status.Active > 0 {
			slog.Info("waiting for uploads to complete", "active", status.Active)
			if err := service.Drain(shutdownCtx); err != nil {
				slog.Warn("uploads did not complete in time", "error", err)
			} else {
				slog.Info("all uploads completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// openHistory returns the upload history store: PostgreSQL when a database
// URL is configured, otherwise an in-memory ring. The returned func releases
// the store.
func openHistory(ctx context.Context, hc config.HistoryConfig) (core.HistoryStore, func(), error) {
	if !hc.Persistent() {
		slog.Info("upload history kept in memory", "capacity", hc.Capacity)
		return core.NewMemoryHistory(hc.Capacity), func() {}, nil
	}

	poolConfig, err := pgxpool.ParseConfig(hc.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	poolConfig.MaxConns = int32(hc.MaxConns)
	poolConfig.MinConns = int32(hc.MinConns)
	poolConfig.MaxConnLifetime = hc.MaxConnLifetime
	poolConfig.MaxConnIdleTime = hc.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	store, err := core.NewPostgresHistory(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	slog.Info("upload history stored in PostgreSQL", "database", poolConfig.ConnConfig.Database)
	return store, pool.Close, nil
}
