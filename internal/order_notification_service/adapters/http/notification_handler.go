package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/nats-io/nats.go"

	"github.com/bettyorganic/golang_services/internal/order_notification_service/app"
)

const (
	streamHeartbeatInterval = 25 * time.Second
	streamBufferSize        = 16
)

// PendingFetcher runs the catch-up query.
type PendingFetcher interface {
	FetchPendingNotifications(ctx context.Context, scopeID string) app.PendingResult
}

// AdminNotifier sends free text to the admin recipient.
type AdminNotifier interface {
	SendAdminNotification(ctx context.Context, text string) app.AdminNotificationResult
}

// Subscriber is the pub/sub side of the live bell. *messagebroker.NATSClient
// implements it.
type Subscriber interface {
	Subscribe(subject string, handler nats.MsgHandler) (*nats.Subscription, error)
}

type NotificationHandler struct {
	pending    PendingFetcher
	admin      AdminNotifier
	subscriber Subscriber
	topic      string
	validate   *validator.Validate
	logger     *slog.Logger
}

func NewNotificationHandler(pending PendingFetcher, admin AdminNotifier, subscriber Subscriber, topic string, validate *validator.Validate, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		pending:    pending,
		admin:      admin,
		subscriber: subscriber,
		topic:      topic,
		validate:   validate,
		logger:     logger.With("handler", "notifications"),
	}
}

// HandleListPending serves the catch-up query. Admins may pass ?scope= or
// omit it for the global view; everyone else only sees their own orders.
// The response is always 200: failures travel in the body as success=false.
func (h *NotificationHandler) HandleListPending(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, _ := UserFromContext(ctx)

	scope := user.ID
	if user.IsAdmin {
		scope = r.URL.Query().Get("scope")
	}

	respondWithJSON(w, http.StatusOK, h.pending.FetchPendingNotifications(ctx, scope))
}

func (h *NotificationHandler) HandleAdminNotification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	var req AdminNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON format")
		return
	}
	if err := h.validate.StructCtx(ctx, req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	res := h.admin.SendAdminNotification(ctx, req.Message)
	if !res.Sent {
		logger.WarnContext(ctx, "Admin notification not delivered", "reason", string(res.FailureReason))
		respondWithJSON(w, http.StatusBadGateway, res)
		return
	}
	respondWithJSON(w, http.StatusOK, res)
}

// HandleStream relays live bell broadcasts as Server-Sent Events for as long
// as the client stays connected. Messages are dropped for slow clients.
func (h *NotificationHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	events := make(chan []byte, streamBufferSize)
	sub, err := h.subscriber.Subscribe(h.topic, func(msg *nats.Msg) {
		select {
		case events <- msg.Data:
		default:
			logger.Warn("Live bell stream buffer full, dropping event")
		}
	})
	if err != nil {
		logger.ErrorContext(ctx, "Failed to subscribe to live bell", "error", err, "topic", h.topic)
		respondWithError(w, http.StatusServiceUnavailable, "Live updates unavailable")
		return
	}
	defer func() { _ = sub.Unsubscribe() }()

	openEventStreams.Inc()
	defer openEventStreams.Dec()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(streamHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case data := <-events:
			if _, err := fmt.Fprintf(w, "event: new_pending_order\ndata: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
