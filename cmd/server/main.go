package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/aeshabb/is-lab3/internal/blob"
	"github.com/aeshabb/is-lab3/internal/config"
	"github.com/aeshabb/is-lab3/internal/importer"
	"github.com/aeshabb/is-lab3/internal/logging"
	"github.com/aeshabb/is-lab3/internal/notify"
	"github.com/aeshabb/is-lab3/internal/postgres"
	"github.com/aeshabb/is-lab3/internal/web"
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
		"port", cfg.Server.Port,
		"db_max_conns", cfg.Database.MaxConns,
		"blob_provider", cfg.Blob.Provider,
		"import_max_file_size", cfg.Import.MaxFileSize,
	)

	ctx := context.Background()

	// Connect to database
	pool, err := postgres.Connect(ctx, cfg.Database.URL,
		cfg.Database.MaxConns, cfg.Database.MinConns,
		cfg.Database.MaxConnLifetime, cfg.Database.MaxConnIdleTime)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Log which database we connected to
	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}

	// Apply schema migrations
	if err := postgres.Migrate(ctx, cfg.Database.URL); err != nil {
		slog.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	// Pick the blob store backend
	var blobs blob.Store
	switch cfg.Blob.Provider {
	case "memory":
		blobs = blob.NewMemoryStore()
	default:
		gcs, err := blob.NewGCSStore(ctx, cfg.Blob.Bucket)
		if err != nil {
			slog.Error("failed to create blob store", "error", err)
			os.Exit(1)
		}
		blobs = gcs
	}

	// Wire the import pipeline
	store := postgres.NewStore(pool)
	hub := notify.NewHub()
	validator := importer.NewBatchValidator(store)
	saga := importer.NewSaga(blobs, store, validator, hub)

	server := web.NewServer(cfg, saga, store, blobs, hub)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(cfg.Server.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
