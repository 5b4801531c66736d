package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig carries everything the HTTP surface needs.
type RouterConfig struct {
	Webhooks      *WebhookHandler
	Notifications *NotificationHandler
	Provider      *ProviderHandler

	JWTSecret         string
	AdminRoles        []string
	WebhookSecretHash string
	RequestTimeout    time.Duration

	Logger *slog.Logger
}

// NewRouter builds the chi router. The SSE stream is mounted outside the
// request timeout.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	logger := cfg.Logger

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(PrometheusMetricsMiddleware)

	authMW := AuthMiddleware(cfg.JWTSecret, cfg.AdminRoles, logger)
	adminMW := RequireAdmin(logger)
	webhookMW := WebhookSecretMiddleware(cfg.WebhookSecretHash, logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(cfg.RequestTimeout))

		r.Route("/webhooks", func(wr chi.Router) {
			wr.Use(webhookMW)
			wr.Post("/orders", cfg.Webhooks.HandleOrderChange)
			wr.Post("/provider/authenticated", cfg.Webhooks.HandleProviderAuthenticated)
		})

		r.Group(func(ar chi.Router) {
			ar.Use(authMW)
			ar.Get("/notifications/pending", cfg.Notifications.HandleListPending)

			ar.Group(func(admin chi.Router) {
				admin.Use(adminMW)
				admin.Post("/notifications/admin", cfg.Notifications.HandleAdminNotification)
				admin.Route("/provider", func(pr chi.Router) {
					pr.Get("/status", cfg.Provider.HandleStatus)
					pr.Post("/connect", cfg.Provider.HandleConnect)
					pr.Post("/logout", cfg.Provider.HandleLogout)
					pr.Post("/reinitialize", cfg.Provider.HandleReinitialize)
				})
			})
		})
	})

	r.Group(func(sr chi.Router) {
		sr.Use(authMW)
		sr.Use(adminMW)
		sr.Get("/notifications/stream", cfg.Notifications.HandleStream)
	})

	return r
}
