package handlers

import (
	"net/http"

	"github.com/teilomillet/koreksi/errors"
	"github.com/teilomillet/koreksi/server/middleware"
	"github.com/teilomillet/koreksi/store"
	"go.uber.org/zap"
)

// MeHandler serves GET /api/me with a fresh copy of the caller's record.
type MeHandler struct {
	users  store.UserStore
	logger *zap.Logger
}

func NewMeHandler(users store.UserStore, logger *zap.Logger) *MeHandler {
	return &MeHandler{users: users, logger: nopIfNil(logger)}
}

func (h *MeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	fresh, err := h.users.Get(r.Context(), user.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		errors.WriteError(w, errors.NewNotFoundError(requestID, "User not found"))
	case err != nil:
		errors.LogError(h.logger, err, requestID)
		errors.WriteError(w, errors.NewInternalError(requestID, err))
	default:
		writeJSON(w, h.logger, http.StatusOK, fresh)
	}
}
