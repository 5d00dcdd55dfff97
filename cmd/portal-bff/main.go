package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/config"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/bootstrap"
)

func main() {
	ctx := context.Background()
	logger := bootstrap.InitLogger(slog.LevelInfo)
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, logger *slog.Logger) (err error) {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}

	// Re-create the logger now that LOG_LEVEL is known.
	logger = bootstrap.InitLogger(cfg.Observability.SlogLevel())
	logStartupInfo(ctx, logger, &cfg)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient, err := initInfrastructure(ctx, &cfg, logger)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer func() {
			if cerr := redisClient.Close(); cerr != nil {
				logger.ErrorContext(ctx, "close redis failed", "error", cerr)
			}
		}()
	}

	app, err := bootstrap.New(ctx, bootstrap.AppDeps{
		Config: &cfg,
		Redis:  redisClient,
		Logger: logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := app.Close(ctx); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close app: %w", cerr))
		}
	}()

	return app.Run(ctx)
}

func logStartupInfo(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig) {
	logger.InfoContext(ctx, "starting portal-bff",
		"addr", cfg.HTTP.Addr,
		"backend_mode", cfg.Backend.Mode,
		"dev", cfg.IsDev,
		"revocation", cfg.Revocation.Enabled,
		"metrics", cfg.Observability.Metrics.IsEnabled(),
		"tracing", cfg.Observability.Tracing.IsEnabled(),
	)
}

// initInfrastructure connects Redis when the deny-list needs it.
//
//nolint:ireturn // returning redis.UniversalClient keeps sentinel/cluster support flexible.
func initInfrastructure(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (redis.UniversalClient, error) {
	if !cfg.Revocation.Enabled {
		return nil, nil
	}
	client, err := bootstrap.ConnectRedis(bootstrap.RedisConnectConfig{
		Context: ctx,
		Redis:   cfg.Redis,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return client, nil
}
