package http

import (
	"context"
	"log/slog"
	"net/http"

	chi_middleware "github.com/go-chi/chi/v5/middleware"
)

// ProviderHandler exposes the provider session lifecycle to admins.
type ProviderHandler struct {
	session SessionController
	logger  *slog.Logger
}

func NewProviderHandler(sess SessionController, logger *slog.Logger) *ProviderHandler {
	return &ProviderHandler{session: sess, logger: logger.With("handler", "provider")}
}

// HandleStatus returns the session snapshot. It never calls the backend.
func (h *ProviderHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, toProviderStatusResponse(h.session.Snapshot()))
}

func (h *ProviderHandler) HandleConnect(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, "connect", h.session.Connect)
}

func (h *ProviderHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, "logout", h.session.Logout)
}

func (h *ProviderHandler) HandleReinitialize(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, "reinitialize", h.session.Reinitialize)
}

func (h *ProviderHandler) run(w http.ResponseWriter, r *http.Request, action string, fn func(context.Context) error) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx), "action", action)
	if user, ok := UserFromContext(ctx); ok {
		logger = logger.With("user_id", user.ID)
	}

	if err := fn(ctx); err != nil {
		logger.WarnContext(ctx, "Provider session action failed", "error", err)
		respondWithSessionError(w, err)
		return
	}
	snap := h.session.Snapshot()
	logger.InfoContext(ctx, "Provider session action completed", "state", snap.StateName)
	respondWithJSON(w, http.StatusOK, toProviderStatusResponse(snap))
}
