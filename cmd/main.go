package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/okian/elorank/internal/adapters/http/api"
	"github.com/okian/elorank/internal/adapters/http/swagger"
	"github.com/okian/elorank/internal/adapters/repository"
	"github.com/okian/elorank/internal/adapters/snapshot"
	"github.com/okian/elorank/internal/app"
	"github.com/okian/elorank/internal/config"
	"github.com/okian/elorank/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	if err := logger.Init(); err != nil {
		// Logger isn't available yet.
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx)
	stop()
	_ = logger.Sync()
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	log := logger.Get()

	// Defaults -> optional file -> env; validated before any processing.
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn(ctx, "closing store", logger.Error(err))
		}
	}()
	snap := openSnapshot(cfg)
	defer func() {
		if err := snap.Close(); err != nil {
			log.Warn(ctx, "closing snapshot", logger.Error(err))
		}
	}()

	opts := append(app.FromConfig(cfg), app.WithSnapshot(snap), app.WithLogger(log.Named("engine")))
	engine := app.New(store, opts...)

	res, err := engine.Run(ctx)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}
	if err := engine.Persist(ctx, res); err != nil {
		return fmt.Errorf("persist failed: %w", err)
	}
	if !cfg.Serve {
		return nil
	}

	holder := &api.Holder{}
	holder.Publish(res.View())
	return serve(ctx, cfg.Addr, newRouter(ctx, holder))
}

// openStore connects the configured match, metadata and standings store.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pg, err := repository.OpenPostgres(ctx, cfg.PostgresDSN, repository.WithLogger(logger.Named("postgres")))
		if err != nil {
			return nil, err
		}
		return pg, nil
	case config.DriverFile:
		fs, err := repository.OpenFile(ctx, cfg.StorePath, cfg.StandingsDir, repository.WithLogger(logger.Named("store")))
		if err != nil {
			return nil, err
		}
		return fs, nil
	default:
		return nil, fmt.Errorf("%w: store_driver %q", config.ErrInvalidConfig, cfg.StoreDriver)
	}
}

// openSnapshot returns the configured rating snapshot backend.
func openSnapshot(cfg *config.Config) snapshot.Store {
	if cfg.SnapshotDriver == config.DriverRedis {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return snapshot.NewRedis(client, cfg.RedisKey)
	}
	return snapshot.NewFile(cfg.SnapshotPath)
}

func newRouter(ctx context.Context, holder *api.Holder) *mux.Router {
	r := mux.NewRouter()
	swagger.Register(ctx, r)
	api.NewServer(holder).Register(ctx, r)
	return r
}

// serve blocks until ctx is cancelled, then shuts the server down gracefully.
func serve(ctx context.Context, addr string, h http.Handler) error {
	log := logger.Get()
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !api.IsClosed(err) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Info(ctx, "server stopped")
	return nil
}
