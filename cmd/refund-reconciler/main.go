package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/angelmondragon/fulfillment-backend/internal/jobs"
	"github.com/angelmondragon/fulfillment-backend/internal/returns"
	"github.com/angelmondragon/fulfillment-backend/internal/wiring"
	"github.com/angelmondragon/fulfillment-backend/pkg/config"
	"github.com/angelmondragon/fulfillment-backend/pkg/db"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
	"github.com/angelmondragon/fulfillment-backend/pkg/metrics"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox"
	"github.com/angelmondragon/fulfillment-backend/pkg/redis"
	"github.com/angelmondragon/fulfillment-backend/pkg/stripe"
)

const (
	serviceName = "refund-reconciler"
	lockKey     = "fulfillment:jobs:refund-reconciler"
	lockTTL     = 30 * time.Minute
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: serviceName})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)
	cfg.Service.Kind = serviceName

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "failed to close database", err)
		}
	}()

	stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
	requireResource(ctx, logg, "stripe", err)

	registry := prometheus.NewRegistry()
	jobMetrics := metrics.NewJobMetrics(registry)

	services, err := wiring.Build(wiring.Params{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		OnlineRefunds: returns.NewStripeGateway(stripeClient),
		Metrics:       metrics.NewFulfillment(registry),
	})
	requireResource(ctx, logg, "domain services", err)

	refundJob, err := jobs.NewRefundReconcileJob(jobs.RefundReconcileJobParams{
		Logger:    logg,
		Returns:   services.Returns,
		Metrics:   jobMetrics,
		BatchSize: cfg.Reconciler.BatchSize,
	})
	requireResource(ctx, logg, "refund reconcile job", err)

	retentionJob, err := jobs.NewOutboxRetentionJob(jobs.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outbox.NewRepository(dbClient.DB()),
	})
	requireResource(ctx, logg, "outbox retention job", err)

	params := jobs.RunnerParams{
		Logger:   logg,
		Registry: jobs.NewRegistry(refundJob, retentionJob),
		Metrics:  jobMetrics,
	}
	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(ctx, cfg.Redis, logg)
		requireResource(ctx, logg, "redis", err)
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(ctx, "failed to close redis client", err)
			}
		}()
		lock, err := jobs.NewRedisLock(redisClient, lockKey, lockTTL)
		requireResource(ctx, logg, "job lock", err)
		params.Lock = lock
	}

	runner, err := jobs.NewRunner(params)
	requireResource(ctx, logg, "job runner", err)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"stripe_env":  stripeClient.Environment(),
	})

	runErr := runner.RunOnce(runCtx)
	if url := cfg.Reconciler.PushgatewayURL; url != "" {
		if err := push.New(url, serviceName).Gatherer(registry).PushContext(runCtx); err != nil {
			logg.Error(runCtx, "failed to push job metrics", err)
		}
	}
	if runErr != nil {
		logg.Error(runCtx, "scheduled run finished with errors", runErr)
		stop()
		os.Exit(1)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
