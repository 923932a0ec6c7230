package sessions

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aegis-auth/aegis/internal/platform/httpx"
	"github.com/aegis-auth/aegis/internal/shared"
)

// Handler exposes session management endpoints for the authenticated user.
type Handler struct {
	logger  *slog.Logger
	manager *Manager
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, manager *Manager) *Handler {
	return &Handler{logger: logger, manager: manager}
}

// MountRoutes registers session routes. Runs behind the authenticate
// middleware.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listSessions)
	r.Delete("/{id}", h.deleteSession)
}

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrInvalidAccessToken("Not authorized"))
		return
	}
	entries, err := h.manager.List(r.Context(), principal.UserID, principal.SessionID)
	if err != nil {
		h.logger.Error("list sessions", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) deleteSession(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrInvalidAccessToken("Not authorized"))
		return
	}
	sessionID := chi.URLParam(r, "id")
	if err := h.manager.RevokeOwned(r.Context(), sessionID, principal.UserID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "Session removed"})
}
