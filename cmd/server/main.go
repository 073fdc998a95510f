package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hallpass-io/hallpass/internal/config"
	"github.com/hallpass-io/hallpass/internal/domain/auth"
	"github.com/hallpass-io/hallpass/internal/domain/backend"
	"github.com/hallpass-io/hallpass/internal/domain/call"
	"github.com/hallpass-io/hallpass/internal/domain/control"
	"github.com/hallpass-io/hallpass/internal/metrics"
	"github.com/hallpass-io/hallpass/internal/storage/memory"
	"github.com/hallpass-io/hallpass/internal/storage/sqlite"
	"github.com/hallpass-io/hallpass/internal/sweeper"
	"github.com/hallpass-io/hallpass/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))

	secret, err := cfg.Auth.Secret()
	if err != nil {
		logger.Error("auth secret", "error", err)
		os.Exit(1)
	}
	engine, err := auth.NewEngine(secret)
	if err != nil {
		logger.Error("credential engine", "error", err)
		os.Exit(1)
	}

	store, cleanup, err := openStore(cfg.Store)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	m := metrics.New(registry)

	callRegistry := call.NewRegistry(store, call.RetryPolicy{
		Attempts:    cfg.Store.RetryAttempts,
		BaseBackoff: cfg.Store.RetryBackoff.Std(),
	}, logger, m)
	directory := backend.NewDirectory(cfg.Directory.HeartbeatTimeout.Std(), logger, m)
	controlSvc := control.NewService(callRegistry, directory, engine, cfg.Auth.CredentialTTL.Std(), logger, m)

	sweep := sweeper.New(
		callRegistry,
		cfg.Sweeper.Interval.Std(),
		cfg.Sweeper.InactivityThreshold.Std(),
		cfg.Sweeper.BatchLimit,
		logger,
		m,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sweep.Run(ctx)

	router := transport.NewRouter(controlSvc, logger, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", addr, "store", cfg.Store.Driver)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
		}
	}()

	waitForShutdown(logger, httpServer, cancel)
}

func openStore(cfg config.StoreConfig) (call.Store, func(), error) {
	switch cfg.Driver {
	case "memory":
		return memory.NewStore(), func() {}, nil
	case "sqlite":
		db, err := sqlite.New(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, nil, err
		}
		return sqlite.NewStore(db), func() { db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func waitForShutdown(logger *slog.Logger, server *http.Server, cancel context.CancelFunc) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	cancel()

	ctx, cancelTimeout := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelTimeout()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
