// Package main is the entry point for the broadcast API server.
//
// It loads configuration, opens the database pool, wires the lifecycle
// manager to the broadcasts queue and the support backend, and serves the
// status endpoints until SIGINT or SIGTERM.
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

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/alphagov/emergency-alerts-api-sub001/internal/api/handlers"
	"github.com/alphagov/emergency-alerts-api-sub001/internal/broadcast"
	"github.com/alphagov/emergency-alerts-api-sub001/internal/config"
	"github.com/alphagov/emergency-alerts-api-sub001/internal/core"
	"github.com/alphagov/emergency-alerts-api-sub001/internal/db"
	"github.com/alphagov/emergency-alerts-api-sub001/internal/external"
	"github.com/alphagov/emergency-alerts-api-sub001/internal/queue"
	"github.com/alphagov/emergency-alerts-api-sub001/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig(config.SecretProviderFor(os.Getenv))
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("broadcast API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	ctx := context.Background()

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return err
	}

	awsCfg, err := cfg.AWS.LoadSDKConfig(ctx)
	if err != nil {
		return err
	}
	sqsClient := sqs.NewFromConfig(awsCfg)

	support, err := external.NewClientRegistry(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating external clients: %w", err)
	}

	typedLogger := types.NewSlogAdapter(logger)
	alerts := db.NewBroadcastRepository(pool)
	producer := queue.NewProducer(sqsClient, cfg.AWS, logger)
	enabled := cfg.CBC.EnabledProviders()

	lifecycle := broadcast.NewLifecycle(broadcast.LifecycleDeps{
		Alerts:     alerts,
		Services:   db.NewServiceRepository(pool),
		Emitter:    broadcast.NewEmitter(db.NewEventRepository(pool), producer, enabled, types.RealClock{}, typedLogger),
		Support:    support.Support,
		Enabled:    enabled,
		Production: cfg.IsProduction(),
		Logger:     typedLogger,
	})

	srv, err := buildServer(cfg, logger, alerts, lifecycle, []core.HealthProbe{
		core.ProbeFunc{ProbeName: "database", Fn: pool.Ping},
		core.ProbeFunc{ProbeName: "sqs", Fn: func(ctx context.Context) error {
			_, err := sqsClient.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{QueueUrl: aws.String(cfg.AWS.BroadcastQueue)})
			return err
		}},
	})
	if err != nil {
		return err
	}
	srv.Closers = append(srv.Closers,
		func(context.Context) error { lifecycle.Wait(); return nil },
		func(context.Context) error { pool.Close(); return nil },
	)

	return runHTTPServer(srv, cfg, logger)
}

// buildServer assembles the chassis and mounts the broadcast routes.
func buildServer(cfg *config.Config, logger *slog.Logger, alerts handlers.AlertReader, lifecycle handlers.StatusChanger, probes []core.HealthProbe) (*core.Server, error) {
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}
	srv.HealthProbes = probes

	h := handlers.NewBroadcastHandler(alerts, lifecycle, srv.Validator, logger)
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, h.RegisterRoutes)
	srv.MountRoutes()
	return srv, nil
}

// runHTTPServer serves until a shutdown signal or a listener error, then
// drains in-flight requests and releases server resources.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
