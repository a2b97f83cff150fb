package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/angelmondragon/scrapfield-backend/internal/cron"
	"github.com/angelmondragon/scrapfield-backend/pkg/config"
	"github.com/angelmondragon/scrapfield-backend/pkg/db"
	"github.com/angelmondragon/scrapfield-backend/pkg/lock"
	"github.com/angelmondragon/scrapfield-backend/pkg/instance"
	"github.com/angelmondragon/scrapfield-backend/pkg/logger"
	"github.com/angelmondragon/scrapfield-backend/pkg/metrics"
	"github.com/angelmondragon/scrapfield-backend/pkg/migrate"
	"github.com/angelmondragon/scrapfield-backend/pkg/outbox"
	"github.com/angelmondragon/scrapfield-backend/pkg/redis"
)

const cycleLockTTL = 10 * time.Minute

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
		Format:      cfg.App.LogFormat,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, dbClient.Close())
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	var locker lock.Locker = lock.NewLocalLocker()
	if cfg.Redis.Enabled() {
		var redisClient *redis.Client
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return err
		}
		defer func() {
			err = multierr.Append(err, redisClient.Close())
		}()
		// A replica that finds the lock held skips the cycle instead of queueing behind it.
		locker, err = lock.NewRedisLocker(redisClient,
			lock.WithTTL(cycleLockTTL),
			lock.WithWait(25*time.Millisecond, time.Millisecond),
			lock.WithKeyFunc(func(k string) string { return redisClient.LockKey("cron", k) }),
		)
		if err != nil {
			return err
		}
	} else {
		logg.Warn(ctx, "redis not configured, cron cycles are not coordinated across replicas")
	}

	repo := outbox.NewRepository(dbClient.DB())
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionParams{
		Logger:        logg,
		Tx:            dbClient,
		Repository:    repo,
		RetentionDays: cfg.Cron.OutboxRetentionDays,
		MaxAttempts:   cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		return err
	}
	backlog, err := cron.NewOutboxBacklogJob(logg, repo, metrics.NewOutboxMetrics(prometheus.DefaultRegisterer), cfg.Outbox.MaxAttempts)
	if err != nil {
		return err
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Jobs:     []cron.Job{retention, backlog},
		Locker:   locker,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		return err
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"instance": instance.ID("cron-worker"),
		"env":      cfg.App.Env,
		"interval": cfg.Cron.Interval.String(),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
	return nil
}
