package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/csvvault/internal/auth"
	"github.com/JonMunkholm/csvvault/internal/config"
	"github.com/JonMunkholm/csvvault/internal/core"
	"github.com/JonMunkholm/csvvault/internal/database"
	"github.com/JonMunkholm/csvvault/internal/events"
	"github.com/JonMunkholm/csvvault/internal/logging"
	"github.com/JonMunkholm/csvvault/internal/storage"
	"github.com/JonMunkholm/csvvault/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"addr", cfg.Server.Addr(),
		"db_max_conns", cfg.Database.MaxConns,
		"upload_max_concurrent", cfg.Upload.MaxConcurrent,
		"upload_max_file_size", cfg.Upload.MaxFileSize,
		"rate_limit_enabled", cfg.Rate.Enabled,
		"storage_driver", cfg.Storage.Driver,
	)
	slog.Debug("effective configuration", "config", cfg.String())

	ctx := context.Background()

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, pool); err != nil {
			slog.Error("failed to apply migrations", "error", err)
			os.Exit(1)
		}
	}

	blobs, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		slog.Error("failed to open blob storage", "error", err)
		os.Exit(1)
	}

	revoker := auth.NewRedisRevoker(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	defer func() { _ = revoker.Close() }()
	if revoker.Enabled() {
		if err := revoker.Ping(ctx); err != nil {
			slog.Warn("redis unreachable, logout revocation degraded", "addr", cfg.Redis.Addr, "error", err)
		} else {
			slog.Info("session revocation enabled", "addr", cfg.Redis.Addr)
		}
	}

	var opts []core.Option
	if len(cfg.Events.Brokers) > 0 {
		publisher, err := events.NewKafkaPublisher(ctx, cfg.Events.Brokers, cfg.Events.Topic)
		if err != nil {
			slog.Error("failed to start event publisher", "error", err)
			os.Exit(1)
		}
		defer func() { _ = publisher.Close() }()
		opts = append(opts, core.WithEventPublisher(publisher))
		slog.Info("upload events enabled", "brokers", cfg.Events.Brokers, "topic", cfg.Events.Topic)
	}

	uploads := core.NewService(database.NewUploadRepository(pool), blobs, cfg.Upload, opts...)

	authn := auth.NewService(
		auth.NewGoogleProvider(cfg.Auth),
		database.NewUserRepository(pool),
		auth.NewSessionManager(cfg.Security.SessionSecret, cfg.Security.SessionTTL),
		revoker,
		cfg.Security.IsAdminEmail,
	)

	server := web.NewServer(uploads, authn, cfg)

	// Graceful shutdown
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Wait for active uploads to complete (with timeout)
		if status := uploads.LimiterStatus(); status.Active > 0 {
			slog.Info("waiting for uploads to complete", "active", status.Active)
			if err := uploads.WaitForUploads(shutdownCtx); err != nil {
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
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
	<-stopped
	slog.Info("server stopped")
}
