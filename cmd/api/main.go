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
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/finxan/finxan-backend/api/routes"
	"github.com/finxan/finxan-backend/internal/aggregate"
	"github.com/finxan/finxan-backend/internal/alerts"
	"github.com/finxan/finxan-backend/internal/chat"
	"github.com/finxan/finxan-backend/internal/files"
	"github.com/finxan/finxan-backend/internal/sources"
	"github.com/finxan/finxan-backend/internal/users"
	"github.com/finxan/finxan-backend/pkg/ai"
	"github.com/finxan/finxan-backend/pkg/auth"
	"github.com/finxan/finxan-backend/pkg/config"
	"github.com/finxan/finxan-backend/pkg/db"
	"github.com/finxan/finxan-backend/pkg/logger"
	"github.com/finxan/finxan-backend/pkg/metrics"
	"github.com/finxan/finxan-backend/pkg/migrate"
	"github.com/finxan/finxan-backend/pkg/pubsub"
	"github.com/finxan/finxan-backend/pkg/redis"
	"github.com/finxan/finxan-backend/pkg/sheets"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	// alert notifications are best-effort; the API keeps serving without Pub/Sub
	var publisher alerts.Publisher
	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, false, logg)
	if err != nil {
		logg.WarnErr(ctx, "pubsub unavailable, alert notifications disabled", err)
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

	aiClient, err := ai.NewClient(cfg.AI.ServiceURL, cfg.AI.Timeout, ai.WithModel(cfg.AI.Model))
	requireResource(ctx, logg, "ai client", err)

	verifier, err := auth.NewVerifier(ctx, cfg.Firebase, cfg.GCP)
	requireResource(ctx, logg, "firebase verifier", err)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	ingestMetrics := metrics.NewIngestMetrics(registry)
	alertMetrics := metrics.NewAlertMetrics(registry)

	usersRepo := users.NewRepository(dbClient.DB())
	sourcesRepo := sources.NewRepository(dbClient.DB())
	sheetRepo := sources.NewSheetRepository(dbClient.DB())
	filesRepo := files.NewRepository(dbClient.DB())
	alertsRepo := alerts.NewRepository(dbClient.DB())

	usersService, err := users.NewService(usersRepo)
	requireResource(ctx, logg, "users service", err)

	resolver, err := sources.NewResolver(sheetRepo, sourcesRepo)
	requireResource(ctx, logg, "source resolver", err)

	inventory, err := aggregate.NewService(aggregate.ServiceParams{
		Sources:          resolver,
		Files:            filesRepo,
		DisplayThreshold: cfg.Alerts.DisplayThreshold,
		ContextLimits:    aggregate.DefaultContextLimits(),
		Logger:           logg,
	})
	requireResource(ctx, logg, "inventory service", err)

	sheetService, err := sources.NewSheetService(sources.SheetServiceParams{
		DB:      dbClient,
		Sources: sourcesRepo,
		Sheets:  sheetRepo,
		Fetcher: sheetsClient,
		Metrics: ingestMetrics,
		Logger:  logg,
	})
	requireResource(ctx, logg, "sheet service", err)

	filesService, err := files.NewService(files.ServiceParams{
		DB:           dbClient,
		Files:        filesRepo,
		Sources:      sourcesRepo,
		MaxBytes:     cfg.Uploads.MaxUploadBytes(),
		ParseTimeout: cfg.Uploads.ParseTimeout,
		Metrics:      ingestMetrics,
		Logger:       logg,
	})
	requireResource(ctx, logg, "files service", err)

	engine, err := alerts.NewEngine(alerts.EngineParams{
		Items:     inventory,
		Alerts:    alertsRepo,
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

	alertsService, err := alerts.NewService(alertsRepo, engine)
	requireResource(ctx, logg, "alerts service", err)

	chatService, err := chat.NewService(chat.ServiceParams{
		Sessions:  chat.NewRepository(dbClient.DB()),
		Inventory: inventory,
		AI:        aiClient,
		Cache:     redisClient,
		StaleTTL:  cfg.Chat.StaleCacheTTL,
		Logger:    logg,
	})
	requireResource(ctx, logg, "chat service", err)

	handler := routes.NewRouter(routes.Deps{
		Config:    cfg,
		Logger:    logg,
		DB:        dbClient,
		Redis:     redisClient,
		Limiter:   redisClient,
		Verifier:  verifier,
		Gatherer:  registry,
		Users:     usersService,
		Inventory: inventory,
		Alerts:    alertsService,
		Sheets:    sheetService,
		Files:     filesService,
		Chat:      chatService,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	runCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(runCtx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(runCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logg.Info(runCtx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(runCtx, "graceful shutdown failed", err)
		}
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
