// Command modulebox serves the module upload and comment API.
//
// Configuration is read from the file named by MODULEBOX_CONFIG (TOML or
// YAML, default modulebox.toml) and overridden by MODULEBOX_* env vars.
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

	"github.com/nevindra/modulebox"
	"github.com/nevindra/modulebox/extract"
	"github.com/nevindra/modulebox/internal/config"
	"github.com/nevindra/modulebox/internal/server"
	"github.com/nevindra/modulebox/internal/upload"
	"github.com/nevindra/modulebox/observer"
	"github.com/nevindra/modulebox/store/postgres"
	"github.com/nevindra/modulebox/store/sqlite"
)

func main() {
	// 1. Load config
	cfg := config.Load(os.Getenv("MODULEBOX_CONFIG"))
	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("modulebox: exiting", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	// 2. Open the store
	store, closeStore, err := openStore(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.Init(ctx); err != nil {
		return err
	}

	var extractor modulebox.Extractor = extract.New(extract.WithLogger(logger))
	opts := []server.Option{
		server.WithLogger(logger),
		server.WithMaxUploadBytes(cfg.Server.MaxUploadBytes),
	}

	// 3. Observability
	if cfg.Observer.Enabled {
		inst, shutdown, err := observer.Init(ctx)
		if err != nil {
			return err
		}
		defer func() {
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutCtx); err != nil {
				logger.Warn("modulebox: observer shutdown", "error", err)
			}
		}()
		extractor = observer.WrapExtractor(extractor, inst)
		store = observer.WrapStore(store, inst)
		opts = append(opts, server.WithTracer(observer.NewTracer()), server.WithHTTPInstrumentation())
		logger.Info("modulebox: observer enabled")
	}

	// 4. Build the HTTP server
	uploads := upload.New(cfg.Storage.UploadDir, upload.WithLogger(logger))
	api := server.New(store, extractor, uploads, opts...)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// 5. Run until signalled
	errc := make(chan error, 1)
	go func() {
		logger.Info("modulebox: listening", "addr", cfg.Server.Addr, "db", cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	logger.Info("modulebox: shutting down")

	shutCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		logger.Warn("modulebox: shutdown", "error", err)
	}
	logger.Info("modulebox: stopped")
	return nil
}

// openStore returns the configured Store and a function releasing it.
func openStore(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (modulebox.Store, func(), error) {
	switch cfg.Driver {
	case "postgres":
		pool, err := postgres.Connect(ctx, postgres.Config{
			DSN:             cfg.URL,
			MaxConns:        cfg.MaxConns,
			MinConns:        cfg.MinConns,
			DialTimeout:     cfg.DialTimeout,
			ConnectAttempts: cfg.ConnectAttempts,
			Logger:          logger,
		})
		if err != nil {
			return nil, nil, err
		}
		return postgres.New(pool, postgres.WithLogger(logger)), pool.Close, nil
	default:
		s := sqlite.New(cfg.Path, sqlite.WithLogger(logger))
		return s, func() { s.Close() }, nil
	}
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	hopts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, hopts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, hopts))
}
