package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/scrapfield-backend/api/routes"
	"github.com/angelmondragon/scrapfield-backend/internal/assignments"
	"github.com/angelmondragon/scrapfield-backend/internal/fieldorders"
	"github.com/angelmondragon/scrapfield-backend/internal/refcache"
	"github.com/angelmondragon/scrapfield-backend/internal/timeline"
	"github.com/angelmondragon/scrapfield-backend/internal/workorders"
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

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loc, err := cfg.App.Location()
	if err != nil {
		return err
	}

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

	deps := routes.Dependencies{
		Config: cfg,
		Logger: logg,
		DB:     dbClient,
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return err
		}
		defer func() {
			err = multierr.Append(err, redisClient.Close())
		}()
		deps.Redis = redisClient
	} else {
		logg.Warn(ctx, "redis not configured, using in-process locks and reference cache")
	}

	locker, err := lock.New(redisClient, cfg.FeatureFlags.DistributedLocks)
	if err != nil {
		return err
	}

	var refs *refcache.Cache
	if redisClient != nil {
		refs = refcache.NewRedis(dbClient.DB(), redisClient, cfg.Cache.ReferenceTTL)
	} else {
		refs = refcache.New(dbClient.DB(), refcache.NewMemoryStore(), cfg.Cache.ReferenceTTL)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	workOrderMetrics := metrics.NewWorkOrderMetrics(registry)
	deps.Gatherer = registry

	emitter := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	timelineService, err := timeline.NewService(timeline.NewRepository(dbClient.DB()), emitter, nil)
	if err != nil {
		return err
	}

	orderRepo := workorders.NewRepository(dbClient.DB())
	deps.WorkOrders, err = workorders.NewService(workorders.ServiceParams{
		Repository: orderRepo,
		Tx:         dbClient,
		Timeline:   timelineService,
		Outbox:     emitter,
		Locker:     locker,
		Metrics:    workOrderMetrics,
		Logger:     logg,
		Location:   loc,
	})
	if err != nil {
		return err
	}

	deps.Assignments, err = assignments.NewService(assignments.ServiceParams{
		Repository: assignments.NewRepository(dbClient.DB()),
		Orders:     orderRepo,
		Tx:         dbClient,
		Timeline:   timelineService,
		Outbox:     emitter,
		References: refs,
		Metrics:    workOrderMetrics,
		Logger:     logg,
	})
	if err != nil {
		return err
	}

	deps.FieldOrders, err = fieldorders.NewService(fieldorders.ServiceParams{
		Repository:      fieldorders.NewRepository(dbClient.DB()),
		Tx:              dbClient,
		Timeline:        timelineService,
		Collectors:      refs,
		Metrics:         workOrderMetrics,
		Logger:          logg,
		Location:        loc,
		DefaultRadiusKm: cfg.Field.DefaultRadiusKm,
		AverageSpeedKmh: cfg.Field.AverageSpeedKmh,
	})
	if err != nil {
		return err
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logCtx := logg.WithFields(ctx, map[string]any{
		"instance": instance.ID("api"),
		"env":      cfg.App.Env,
		"addr":     addr,
	})
	logg.Info(logCtx, "starting api server")

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logg.Info(logCtx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
