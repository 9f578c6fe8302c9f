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
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/agrimarket/agrimarket-backend/internal/cron"
	"github.com/agrimarket/agrimarket-backend/internal/orders"
	"github.com/agrimarket/agrimarket-backend/pkg/config"
	"github.com/agrimarket/agrimarket-backend/pkg/db"
	"github.com/agrimarket/agrimarket-backend/pkg/logger"
	"github.com/agrimarket/agrimarket-backend/pkg/metrics"
	"github.com/agrimarket/agrimarket-backend/pkg/migrate"
	"github.com/agrimarket/agrimarket-backend/pkg/outbox"
	"github.com/agrimarket/agrimarket-backend/pkg/redis"
)

const lockPrefixFormat = "agrimarket:%s:cron-lease"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(context.Background(), "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, dbClient.Close())
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, redisClient.Close())
	}()

	registry := prometheus.NewRegistry()
	conn := dbClient.DB()
	outboxRepo := outbox.NewRepository(conn)

	expiry, err := cron.NewOrderExpiryJob(cron.OrderExpiryJobParams{
		Logger:    logg,
		DB:        dbClient,
		Orders:    orders.NewRepository(conn),
		Outbox:    outbox.NewService(outboxRepo, logg),
		TTL:       cfg.Cron.PendingOrderTTL,
		BatchSize: cfg.Cron.OrderExpiryBatchSize,
	})
	if err != nil {
		return err
	}
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outboxRepo,
		Retention:  cfg.Cron.OutboxRetentionPeriod,
	})
	if err != nil {
		return err
	}

	locker, err := cron.NewRedisLocker(redisClient, lockPrefix(cfg.App.Env), cfg.Cron.LeaseTTL)
	if err != nil {
		return err
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Jobs:     []cron.Job{expiry, retention},
		Locker:   locker,
		Metrics:  metrics.NewCronJobMetrics(registry),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		return err
	}

	metricsServer := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           metrics.Handler(registry),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": "cron-worker",
	})
	logg.Info(ctx, "starting cron worker")

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return service.Run(groupCtx)
	})
	group.Go(func() error {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})

	err = group.Wait()
	logg.Info(ctx, "cron worker shutting down gracefully")
	return err
}

func lockPrefix(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockPrefixFormat, env)
}
