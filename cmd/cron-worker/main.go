package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/finxan/finxan-backend/internal/aggregate"
	"github.com/finxan/finxan-backend/internal/alerts"
	"github.com/finxan/finxan-backend/internal/cron"
	"github.com/finxan/finxan-backend/internal/files"
	"github.com/finxan/finxan-backend/internal/sources"
	"github.com/finxan/finxan-backend/pkg/config"
	"github.com/finxan/finxan-backend/pkg/db"
	"github.com/finxan/finxan-backend/pkg/logger"
	"github.com/finxan/finxan-backend/pkg/metrics"
	"github.com/finxan/finxan-backend/pkg/migrate"
	"github.com/finxan/finxan-backend/pkg/pubsub"
	"github.com/finxan/finxan-backend/pkg/redis"
	"github.com/finxan/finxan-backend/pkg/sheets"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	requireResource(ctx, logg, "dev migrations", migrate.MaybeRunDev(ctx, cfg, logg, dbClient))

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	var publisher alerts.Publisher
	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, false, logg)
	if err != nil {
		logg.WarnErr(ctx, "pubsub unavailable, scheduled scans will not notify", err)
	} else {
		publisher = pubsubClient
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logg.Error(ctx, "error closing pubsub", err)
			}
		}()
	}

	sheetsClient, err := sheets.NewClient(ctx, cfg.Sheets, cfg.GCP)
	requireResource(ctx, logg, "sheets client", err)

	cronMetrics := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	ingestMetrics := metrics.NewIngestMetrics(prometheus.DefaultRegisterer)
	alertMetrics := metrics.NewAlertMetrics(prometheus.DefaultRegisterer)

	sourcesRepo := sources.NewRepository(dbClient.DB())
	sheetRepo := sources.NewSheetRepository(dbClient.DB())

	sheetService, err := sources.NewSheetService(sources.SheetServiceParams{
		DB:      dbClient,
		Sources: sourcesRepo,
		Sheets:  sheetRepo,
		Fetcher: sheetsClient,
		Metrics: ingestMetrics,
		Logger:  logg,
	})
	requireResource(ctx, logg, "sheet service", err)

	resolver, err := sources.NewResolver(sheetRepo, sourcesRepo)
	requireResource(ctx, logg, "source resolver", err)

	inventory, err := aggregate.NewService(aggregate.ServiceParams{
		Sources:          resolver,
		Files:            files.NewRepository(dbClient.DB()),
		DisplayThreshold: cfg.Alerts.DisplayThreshold,
		Logger:           logg,
	})
	requireResource(ctx, logg, "inventory service", err)

	engine, err := alerts.NewEngine(alerts.EngineParams{
		Items:     inventory,
		Alerts:    alerts.NewRepository(dbClient.DB()),
		Locker:    redisClient,
		Publisher: publisher,
		Metrics:   alertMetrics,
		Logger:    logg,
		Rules: alerts.Rules{
			DefaultThreshold: cfg.Alerts.DefaultThreshold,
			CriticalBelow:    cfg.Alerts.CriticalBelow,
		},
		LockTTL:       cfg.Alerts.ScanLockTTL,
		NotifyTimeout: cfg.Alerts.NotificationDeadline,
	})
	requireResource(ctx, logg, "alert engine", err)

	resyncJob, err := cron.NewSheetResyncJob(cron.SheetResyncJobParams{
		Logger: logg,
		Sheets: sheetRepo,
		Syncer: sheetService,
	})
	requireResource(ctx, logg, "sheet resync job", err)

	scanJob, err := cron.NewAlertScanJob(cron.AlertScanJobParams{
		Logger:  logg,
		Tenants: sourcesRepo,
		Engine:  engine,
	})
	requireResource(ctx, logg, "alert scan job", err)

	// resync first so the scan sees fresh sheet data
	registry := cron.NewRegistry(resyncJob, scanJob)

	lock, err := cron.NewRedisLock(redisClient, cfg.App.Env, cfg.Cron.LockTTL)
	requireResource(ctx, logg, "cron lock", err)

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  cronMetrics,
		Interval: cfg.Cron.Interval,
	})
	requireResource(ctx, logg, "cron service", err)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(runCtx, "starting cron worker")

	if err := service.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(runCtx, "cron worker shutting down gracefully")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
