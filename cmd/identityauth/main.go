// Command identityauth serves the login, refresh and registration API over
// HTTP, backed by an SQL user directory and optional Redis and Kafka.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/MrEthical07/identityauth"
	"github.com/MrEthical07/identityauth/audit/kafkasink"
	"github.com/MrEthical07/identityauth/directory/sqlstore"
	"github.com/MrEthical07/identityauth/internal/appconfig"
	"github.com/MrEthical07/identityauth/internal/httpapi"
	"github.com/MrEthical07/identityauth/internal/logging"
	"github.com/MrEthical07/identityauth/metrics/export/prometheus"
	"github.com/redis/go-redis/v9"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "identityauth: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to YAML configuration (defaults and environment only when empty)")
	flag.Parse()

	cfg := appconfig.Default()
	if *configPath != "" {
		loaded, err := appconfig.Load(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	} else if err := appconfig.FromEnv(cfg); err != nil {
		return err
	}

	logger := logging.New(cfg.Logging, version)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// -------- DIRECTORY --------
	hasher, err := identityauth.NewHasher(cfg.Auth.Password)
	if err != nil {
		return err
	}
	dir, err := sqlstore.Open(ctx, cfg.Database.Driver, cfg.Database.DSN, hasher, sqlstore.WithPolicy(cfg.Auth.Password.Policy))
	if err != nil {
		return fmt.Errorf("opening directory: %w", err)
	}
	defer dir.Close()
	logger.Info("directory ready", "driver", cfg.Database.Driver)

	builder := identityauth.New().
		WithConfig(cfg.Auth).
		WithDirectory(dir).
		WithLogger(logger)

	// -------- REDIS --------
	if cfg.Redis.Enabled {
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.Redis.Addr},
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		builder = builder.WithRedis(client)
		logger.Info("redis refresh store enabled", "addr", cfg.Redis.Addr)
	}

	// -------- AUDIT --------
	sinks := identityauth.MultiSink{identityauth.NewSlogSink(logger)}
	if cfg.Kafka.Enabled {
		ks := kafkasink.New(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		defer ks.Close()
		sinks = append(sinks, ks)
		logger.Info("kafka audit sink enabled", "topic", cfg.Kafka.Topic)
	}
	builder = builder.WithAuditSink(sinks)

	engine, err := builder.Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	var metricsHandler http.Handler
	if cfg.Auth.Metrics.Enabled {
		metricsHandler = prometheus.NewPrometheusExporter(engine).Handler()
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      httpapi.New(engine, metricsHandler, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Server.Addr, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
