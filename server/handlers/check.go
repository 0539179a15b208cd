package handlers

import (
	"context"
	"net/http"

	"github.com/teilomillet/koreksi/errors"
	"github.com/teilomillet/koreksi/server/middleware"
	"github.com/teilomillet/koreksi/server/processing"
	"github.com/teilomillet/koreksi/server/validation"
	"github.com/teilomillet/koreksi/store"
	"go.uber.org/zap"
)

// Checker runs one grammar check. *processing.Processor implements it.
type Checker interface {
	Check(ctx context.Context, req *processing.CheckRequest) (*processing.CheckResponse, error)
}

// CheckHandler serves POST /api/check-grammar.
type CheckHandler struct {
	checker Checker
	users   store.UserStore
	logger  *zap.Logger
	maxBody int64
}

// NewCheckHandler creates the handler. users may be nil, in which case
// check counts are not recorded.
func NewCheckHandler(checker Checker, users store.UserStore, logger *zap.Logger, maxBody int64) *CheckHandler {
	return &CheckHandler{
		checker: checker,
		users:   users,
		logger:  nopIfNil(logger),
		maxBody: bodyLimit(maxBody),
	}
}

func (h *CheckHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req processing.CheckRequest
	if verr := validation.DecodeJSON(r, &req, h.maxBody, requestID); verr != nil {
		errors.WriteError(w, verr)
		return
	}

	resp, err := h.checker.Check(r.Context(), &req)
	if err != nil {
		var kerr *errors.KoreksiError
		if !errors.As(err, &kerr) {
			kerr = errors.NewInternalError("", err)
		}
		errors.WriteError(w, kerr.WithRequestID(requestID))
		return
	}

	if h.users != nil {
		// The check already succeeded; a lost increment is not worth a failed response.
		if err := h.users.IncrementChecks(r.Context(), user.ID); err != nil {
			h.logger.Warn("Failed to record check",
				zap.String("request_id", requestID),
				zap.String("user_id", user.ID),
				zap.Error(err),
			)
		}
	}

	writeJSON(w, h.logger, http.StatusOK, resp)
}
