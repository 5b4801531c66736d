package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/bettyorganic/golang_services/internal/order_notification_service/domain"
	"github.com/bettyorganic/golang_services/internal/order_notification_service/session"
)

// ChangeIngester feeds a change notification into the pipeline and reports
// whether it produced an order event. *changefeed.Feed implements it.
type ChangeIngester interface {
	Ingest(ctx context.Context, n domain.ChangeNotification) bool
}

// SessionController is the provider session surface exposed over HTTP.
// *session.Manager implements it.
type SessionController interface {
	Snapshot() domain.SessionSnapshot
	Connect(ctx context.Context) error
	ConfirmAuthentication(ctx context.Context) error
	Logout(ctx context.Context) error
	Reinitialize(ctx context.Context) error
}

type WebhookHandler struct {
	feed     ChangeIngester
	session  SessionController
	validate *validator.Validate
	logger   *slog.Logger
}

func NewWebhookHandler(feed ChangeIngester, sess SessionController, validate *validator.Validate, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		feed:     feed,
		session:  sess,
		validate: validate,
		logger:   logger.With("handler", "webhook"),
	}
}

// HandleOrderChange accepts a database webhook for the orders table. A change
// that does not produce a notification is acknowledged with ignored=true; the
// database never sees a server error for a dropped change.
func (h *WebhookHandler) HandleOrderChange(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	var n domain.ChangeNotification
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondWithError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		logger.WarnContext(ctx, "Failed to decode order change webhook", "error", err)
		respondWithError(w, http.StatusBadRequest, "Invalid JSON format")
		return
	}

	n.Canonicalize()
	if err := h.validate.StructCtx(ctx, n); err != nil {
		logger.WarnContext(ctx, "Order change webhook failed validation", "error", err)
		respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	if !h.feed.Ingest(ctx, n) {
		respondWithJSON(w, http.StatusOK, OrderChangeResponse{Ignored: true})
		return
	}
	logger.InfoContext(ctx, "Order change accepted", "type", n.Type, "table", n.Table)
	respondWithJSON(w, http.StatusAccepted, OrderChangeResponse{Status: "accepted"})
}

// HandleProviderAuthenticated is called by the session bridge once the QR
// challenge has been scanned.
func (h *WebhookHandler) HandleProviderAuthenticated(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.session.ConfirmAuthentication(ctx); err != nil {
		h.logger.WarnContext(ctx, "Provider authentication confirmation rejected", "error", err)
		respondWithSessionError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, toProviderStatusResponse(h.session.Snapshot()))
}

// respondWithSessionError maps session manager errors onto status codes
// without exposing backend details.
func respondWithSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrInvalidTransition), errors.Is(err, session.ErrSessionFailed):
		respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, session.ErrClosed):
		respondWithError(w, http.StatusServiceUnavailable, "Provider session is shutting down")
	default:
		respondWithError(w, http.StatusBadGateway, "Messaging provider request failed")
	}
}
