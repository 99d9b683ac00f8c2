package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/finxan/finxan-backend/api/controllers"
	"github.com/finxan/finxan-backend/api/middleware"
	"github.com/finxan/finxan-backend/api/responses"
	"github.com/finxan/finxan-backend/internal/aggregate"
	"github.com/finxan/finxan-backend/internal/alerts"
	"github.com/finxan/finxan-backend/internal/chat"
	"github.com/finxan/finxan-backend/internal/files"
	"github.com/finxan/finxan-backend/internal/users"
	pkgAuth "github.com/finxan/finxan-backend/pkg/auth"
	"github.com/finxan/finxan-backend/pkg/config"
	pkgerrors "github.com/finxan/finxan-backend/pkg/errors"
	"github.com/finxan/finxan-backend/pkg/logger"
	"github.com/finxan/finxan-backend/pkg/redis"
)

// Deps carries everything the HTTP surface needs. Nil services answer 500 on their routes.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       controllers.Pinger
	Redis    controllers.Pinger
	Limiter  redis.RateLimiter
	Verifier pkgAuth.TokenVerifier
	// Gatherer backs /metrics; nil falls back to the default registry.
	Gatherer prometheus.Gatherer

	Users     users.Service
	Inventory aggregate.Service
	Alerts    alerts.Service
	Sheets    controllers.SheetsService
	Files     files.Service
	Chat      chat.Service
}

func NewRouter(d Deps) http.Handler {
	cfg := d.Config
	logg := d.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.FrontendURL),
	)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		responses.WriteError(req.Context(), nil, w, pkgerrors.New(pkgerrors.CodeNotFound, "Route not found"))
	})

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, map[string]controllers.Pinger{
			"db":    d.DB,
			"redis": d.Redis,
		}, logg))
	})

	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	chatPolicy := middleware.RateLimitPolicy{
		Name:   "chat",
		Window: cfg.Chat.RateLimitWindow,
		Limit:  cfg.Chat.RateLimit,
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(d.Verifier, d.Users, logg))

		r.Get("/auth/profile", controllers.GetProfile(d.Users, logg))

		r.Get("/dashboard/stats", controllers.DashboardStats(d.Inventory, logg))

		r.Route("/inventory", func(r chi.Router) {
			r.Get("/", controllers.ListInventory(d.Inventory, logg))
			r.Get("/stats", controllers.InventoryStats(d.Inventory, logg))
			r.Get("/low-stock", controllers.LowStockItems(d.Inventory, logg))
		})

		r.Get("/analytics", controllers.Analytics(d.Inventory, logg))

		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", controllers.ListAlerts(d.Alerts, logg))
			r.Post("/generate", controllers.GenerateAlerts(d.Alerts, logg))
			r.Post("/dismiss-all", controllers.DismissAllAlerts(d.Alerts, logg))
			r.Patch("/{alertId}", controllers.UpdateAlertStatus(d.Alerts, logg))
		})

		r.Route("/sheets", func(r chi.Router) {
			r.Get("/", controllers.ListSheets(d.Sheets, logg))
			r.Get("/active", controllers.ListActiveSheets(d.Sheets, logg))
			r.Post("/preview", controllers.PreviewSheet(d.Sheets, logg))
			r.Post("/connect-specific", controllers.ConnectSheet(d.Sheets, logg))
			r.Post("/sync", controllers.SyncSheet(d.Sheets, logg))
			r.Post("/disconnect", controllers.DisconnectSheet(d.Sheets, logg))
			r.Post("/set-active", controllers.ActivateSheet(d.Sheets, logg))
			r.Post("/deactivate", controllers.DeactivateSheet(d.Sheets, logg))
		})

		r.Route("/files", func(r chi.Router) {
			r.Get("/", controllers.ListFiles(d.Files, logg))
			r.Post("/upload", controllers.UploadFile(d.Files, cfg.Uploads.MaxUploadBytes(), logg))
			r.Get("/{id}", controllers.GetFile(d.Files, logg))
			r.Delete("/{id}", controllers.DeleteFile(d.Files, logg))
		})

		r.Route("/chat", func(r chi.Router) {
			r.With(middleware.UserRateLimit(chatPolicy, d.Limiter, logg)).Post("/message", controllers.SendChatMessage(d.Chat, logg))
			r.Post("/session", controllers.NewChatSession(d.Chat, logg))
			r.Get("/history/{sessionId}", controllers.ChatHistory(d.Chat, logg))
			r.Delete("/session/{sessionId}", controllers.DeleteChatSession(d.Chat, logg))
		})

		r.Route("/settings", func(r chi.Router) {
			r.Get("/profile", controllers.GetProfile(d.Users, logg))
			r.Put("/profile", controllers.UpdateProfile(d.Users, logg))
			r.Get("/notifications", controllers.GetNotificationPreferences(d.Users, logg))
			r.Put("/notifications", controllers.UpdateNotificationPreferences(d.Users, logg))
		})
	})

	return r
}
