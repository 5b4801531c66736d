package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"

	httpadapter "github.com/bettyorganic/golang_services/internal/order_notification_service/adapters/http"
	"github.com/bettyorganic/golang_services/internal/order_notification_service/app"
	"github.com/bettyorganic/golang_services/internal/order_notification_service/changefeed"
	"github.com/bettyorganic/golang_services/internal/order_notification_service/domain"
	"github.com/bettyorganic/golang_services/internal/order_notification_service/messaging"
	"github.com/bettyorganic/golang_services/internal/order_notification_service/provider"
	"github.com/bettyorganic/golang_services/internal/order_notification_service/repository/postgres"
	"github.com/bettyorganic/golang_services/internal/order_notification_service/session"
	"github.com/bettyorganic/golang_services/internal/platform/config"
	"github.com/bettyorganic/golang_services/internal/platform/logger"
	"github.com/bettyorganic/golang_services/internal/platform/messagebroker"
)

func loadConfigAndLogger() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(serviceName)
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat).With("service", serviceName)
	return cfg, log, nil
}

func statusFilter(cfg *config.Config) domain.StatusFilter {
	return domain.NewStatusFilter(cfg.StatusFilterValues())
}

func newPendingService(cfg *config.Config, orders domain.OrderReader, log *slog.Logger) *app.PendingNotificationService {
	return app.NewPendingNotificationService(orders, statusFilter(cfg), cfg.PendingPageSize, log)
}

// service holds the long-running parts of the pipeline.
type service struct {
	session    *session.Manager
	dispatcher *app.Dispatcher
	listener   *changefeed.PgListener
	httpServer *http.Server
}

func buildService(cfg *config.Config, db *pgxpool.Pool, nc *messagebroker.NATSClient, log *slog.Logger) (*service, error) {
	backend, err := provider.New(provider.Settings{
		Kind: cfg.ProviderKind,
		Transport: provider.TransportConfig{
			Timeout:           cfg.SendTimeout,
			SendRatePerMinute: cfg.SendRatePerMinute,
			SendRateBurst:     cfg.SendRateBurst,
			Breaker: provider.BreakerConfig{
				Name:             "messaging-provider",
				FailureThreshold: cfg.BreakerFailureThreshold,
				OpenTimeout:      cfg.BreakerOpenTimeout,
			},
		},
		SessionBridgeURL:      cfg.SessionBridgeURL,
		SessionBridgeAPIKey:   cfg.SessionBridgeAPIKey,
		CloudAPIBaseURL:       cfg.CloudAPIBaseURL,
		CloudAPIVersion:       cfg.CloudAPIVersion,
		CloudAPIPhoneNumberID: cfg.CloudAPIPhoneNumberID,
		CloudAPIAccessToken:   cfg.CloudAPIAccessToken,
	}, log)
	if err != nil {
		return nil, err
	}

	sessionManager := session.NewManager(backend, session.Config{
		Backoff: session.BackoffPolicy{
			InitialDelay: cfg.ReconnectInitialDelay,
			MaxDelay:     cfg.ReconnectMaxDelay,
			MaxAttempts:  cfg.ReconnectMaxAttempts,
		},
		HeartbeatInterval: cfg.HeartbeatInterval,
		SendTimeout:       cfg.SendTimeout,
	}, log)

	orders := postgres.NewPgOrderRepository(db, cfg.OrdersTable, log)

	liveBell := app.NewLiveBellChannel(nc, cfg.LiveBellTopic, cfg.BroadcastTimeout)
	messagingChannel := app.NewMessagingChannel(sessionManager, orders, app.MessagingChannelConfig{
		AdminRecipient: cfg.AdminRecipient,
		CountryCode:    cfg.DefaultCountryCode,
		Format: messaging.FormatOptions{
			StoreName:    cfg.StoreName,
			Currency:     cfg.Currency,
			DashboardURL: cfg.DashboardURL,
		},
		ItemsTimeout: cfg.SendTimeout,
	}, log)

	// a channel never runs longer than its own send plus the item lookup
	channelTimeout := 2*cfg.SendTimeout + cfg.BroadcastTimeout
	dispatcher := app.NewDispatcher([]app.DeliveryChannel{liveBell, messagingChannel}, app.DispatcherConfig{
		Workers:        cfg.DispatchWorkers,
		QueueSize:      cfg.DispatchQueueSize,
		ChannelTimeout: channelTimeout,
		DedupWindow:    cfg.DedupWindow,
	}, log)

	adapter := changefeed.NewAdapter(cfg.OrdersTable, statusFilter(cfg), log)
	feed := changefeed.NewFeed(adapter, dispatcher, log)

	var listener *changefeed.PgListener
	if cfg.ChangeFeedEnabled {
		listener = changefeed.NewPgListener(db, cfg.ChangeFeedChannel, feed, log)
	}

	validate := validator.New()
	router := httpadapter.NewRouter(httpadapter.RouterConfig{
		Webhooks:          httpadapter.NewWebhookHandler(feed, sessionManager, validate, log),
		Notifications:     httpadapter.NewNotificationHandler(newPendingService(cfg, orders, log), messagingChannel, nc, liveBell.Topic(), validate, log),
		Provider:          httpadapter.NewProviderHandler(sessionManager, log),
		JWTSecret:         cfg.JWTSecret,
		AdminRoles:        cfg.AdminRoleValues(),
		WebhookSecretHash: cfg.WebhookSecretHash,
		Logger:            log,
	})

	return &service{
		session:    sessionManager,
		dispatcher: dispatcher,
		listener:   listener,
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// connectProvider starts the provider session in the background so a slow
// backend does not delay startup.
func (s *service) connectProvider(ctx context.Context, log *slog.Logger) {
	if err := s.session.Connect(ctx); err != nil {
		log.WarnContext(ctx, "Initial provider connect failed; notifications will use manual links", "error", err)
		return
	}
	snap := s.session.Snapshot()
	log.InfoContext(ctx, "Provider session started", "state", snap.StateName, "provider_kind", snap.ProviderKind)
}
