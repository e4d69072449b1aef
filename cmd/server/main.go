package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hongminglow/portal-gateway/internal/auth"
	"github.com/hongminglow/portal-gateway/internal/catalog"
	"github.com/hongminglow/portal-gateway/internal/config"
	"github.com/hongminglow/portal-gateway/internal/gateway"
	"github.com/hongminglow/portal-gateway/internal/logging"
	"github.com/hongminglow/portal-gateway/internal/observability"
	"github.com/hongminglow/portal-gateway/internal/portal"
	"github.com/hongminglow/portal-gateway/internal/server"
	"github.com/hongminglow/portal-gateway/internal/session"
	"github.com/hongminglow/portal-gateway/internal/storage"
	"github.com/hongminglow/portal-gateway/internal/storage/memory"
	postgres "github.com/hongminglow/portal-gateway/internal/storage/postgres"
	"github.com/hongminglow/portal-gateway/internal/storage/redis"
	"github.com/hongminglow/portal-gateway/internal/storage/sqlite"
)

const serviceName = "portal-gateway"

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	zap.ReplaceGlobals(logger)
	if envErr != nil {
		logger.Info("no .env file found; relying on existing environment")
	}

	err = run(cfg, logger)
	if err != nil {
		logger.Error("portal gateway stopped", zap.Error(err))
	}
	_ = logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx := context.Background()

	deployment, err := loadDeployment(cfg)
	if err != nil {
		return err
	}
	logger = logger.With(zap.String("deployment", deployment.Name))

	shutdownTracing, err := observability.Init(ctx, observability.Config{
		ServiceName: serviceName,
		Deployment:  deployment.Name,
		Exporter:    cfg.TracesExporter,
	}, logger)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	records, err := openSessionRecords(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init session storage: %w", err)
	}
	defer records.Close()

	sealer, err := auth.NewSealer(cfg.SessionSecret, deployment.Name, cfg.SessionTTL)
	if err != nil {
		return err
	}
	store := session.NewStore(records, sealer, deployment.Name, logger)
	if err := store.Restore(ctx); err != nil {
		return err
	}

	gw := gateway.New(deployment, store, gateway.Options{
		Timeout:   cfg.RequestTimeout,
		Logger:    logger,
		UserAgent: serviceName,
	})
	client := portal.New(gw, store, logger)
	srv := server.New(cfg, client, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("portal gateway listening", zap.String("addr", cfg.HTTPAddress()), zap.String("session_backend", cfg.SessionBackend))
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.Warn("graceful shutdown error", zap.Error(err))
	}
	return nil
}

func loadDeployment(cfg config.Config) (*catalog.Deployment, error) {
	if cfg.DeploymentFile != "" {
		return catalog.LoadFile(cfg.DeploymentFile)
	}
	return catalog.Load(cfg.Deployment)
}

func openSessionRecords(ctx context.Context, cfg config.Config) (storage.SessionRecords, error) {
	switch cfg.SessionBackend {
	case config.BackendPostgres:
		return postgres.NewSessionStore(ctx, cfg.DatabaseURL)
	case config.BackendRedis:
		return redis.New(ctx, cfg.RedisURL, cfg.SessionTTL)
	case config.BackendMemory:
		return memory.New(), nil
	default:
		return sqlite.New(ctx, cfg.SQLitePath)
	}
}
