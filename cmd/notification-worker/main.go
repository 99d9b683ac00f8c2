package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/finxan/finxan-backend/internal/alerts"
	"github.com/finxan/finxan-backend/internal/users"
	"github.com/finxan/finxan-backend/pkg/config"
	"github.com/finxan/finxan-backend/pkg/db"
	"github.com/finxan/finxan-backend/pkg/events/idempotency"
	"github.com/finxan/finxan-backend/pkg/logger"
	"github.com/finxan/finxan-backend/pkg/metrics"
	"github.com/finxan/finxan-backend/pkg/pubsub"
	"github.com/finxan/finxan-backend/pkg/redis"
	"github.com/finxan/finxan-backend/pkg/sendgrid"
)

const processedEventTTL = 7 * 24 * time.Hour

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "notification-worker"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	cfg.Service.Kind = "notification-worker"

	logg = logger.New(logger.Options{
		ServiceName: "notification-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if !cfg.FeatureFlags.AlertEmails {
		logg.Warn(ctx, "alert emails disabled by feature flag, exiting")
		return
	}
	if !cfg.Sendgrid.Enabled() {
		requireResource(ctx, logg, "sendgrid", errors.New("sendgrid api key and from address are required"))
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "failed to close database", err)
		}
	}()

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "failed to close redis client", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, true, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(ctx, "failed to close pubsub client", err)
		}
	}()

	subscription := pubsubClient.AlertsSubscription()
	if subscription == nil {
		requireResource(ctx, logg, "alerts subscription", errors.New("subscription not configured"))
	}

	mailer, err := sendgrid.NewClient(cfg.Sendgrid)
	requireResource(ctx, logg, "sendgrid client", err)

	manager, err := idempotency.NewManager(redisClient, processedEventTTL)
	requireResource(ctx, logg, "idempotency manager", err)

	notifier, err := alerts.NewNotifier(alerts.NotifierParams{
		Alerts:      alerts.NewRepository(dbClient.DB()),
		Users:       users.NewRepository(dbClient.DB()),
		Mailer:      mailer,
		FrontendURL: cfg.App.FrontendURL,
		Metrics:     metrics.NewAlertMetrics(prometheus.DefaultRegisterer),
		Logger:      logg,
	})
	requireResource(ctx, logg, "alert notifier", err)

	consumer, err := alerts.NewConsumer(subscription, notifier, manager, logg)
	requireResource(ctx, logg, "alerts consumer", err)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(runCtx, "notification worker ready")

	if err := consumer.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "notification worker failed", err)
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
