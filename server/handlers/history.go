package handlers

import (
	"net/http"
	"strings"

	"github.com/teilomillet/koreksi/errors"
	"github.com/teilomillet/koreksi/server/middleware"
	"github.com/teilomillet/koreksi/server/validation"
	"github.com/teilomillet/koreksi/store"
	"go.uber.org/zap"
)

// SaveHistoryRequest is the body of POST /api/history.
type SaveHistoryRequest struct {
	OriginalText  string                  `json:"originalText" validate:"required"`
	CorrectedText string                  `json:"correctedText" validate:"required"`
	Suggestions   []store.SavedSuggestion `json:"suggestions" validate:"required"`
}

// DeleteHistoryRequest is the body of DELETE /api/history.
type DeleteHistoryRequest struct {
	ID string `json:"id"`
}

// HistoryHandler serves GET, POST and DELETE on /api/history. Every
// operation is scoped to the authenticated user.
type HistoryHandler struct {
	history store.HistoryStore
	logger  *zap.Logger
	maxBody int64
}

// NewHistoryHandler creates the handler.
func NewHistoryHandler(history store.HistoryStore, logger *zap.Logger, maxBody int64) *HistoryHandler {
	return &HistoryHandler{history: history, logger: nopIfNil(logger), maxBody: bodyLimit(maxBody)}
}

func (h *HistoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.save(w, r)
	case http.MethodDelete:
		h.delete(w, r)
	default:
		w.Header().Set("Allow", "GET, POST, DELETE")
		errors.WriteError(w, errors.NewError(errors.BadRequestError, "Method not allowed",
			http.StatusMethodNotAllowed, middleware.GetRequestID(r.Context()), nil, nil))
	}
}

func (h *HistoryHandler) list(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	page := max(1, parseLeadingInt(q.Get("page"), 1))
	limit := max(1, min(store.MaxPageLimit, parseLeadingInt(q.Get("limit"), store.DefaultPageLimit)))

	result, err := h.history.List(r.Context(), user.ID, page, limit)
	if err != nil {
		h.internal(w, err, requestID)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, result)
}

func (h *HistoryHandler) save(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req SaveHistoryRequest
	if verr := validation.DecodeJSON(r, &req, h.maxBody, requestID); verr != nil {
		errors.WriteError(w, verr)
		return
	}

	id, err := h.history.Save(r.Context(), &store.HistoryRecord{
		UserID:        user.ID,
		OriginalText:  req.OriginalText,
		CorrectedText: req.CorrectedText,
		Suggestions:   req.Suggestions,
	})
	if err != nil {
		h.internal(w, err, requestID)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, map[string]string{
		"message": "History saved successfully",
		"id":      id,
	})
}

func (h *HistoryHandler) delete(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req DeleteHistoryRequest
	if verr := validation.DecodeJSON(r, &req, h.maxBody, requestID); verr != nil {
		errors.WriteError(w, verr)
		return
	}
	if strings.TrimSpace(req.ID) == "" {
		errors.WriteError(w, errors.NewError(errors.BadRequestError, "Missing ID", http.StatusBadRequest, requestID, nil, nil))
		return
	}

	err := h.history.Delete(r.Context(), user.ID, req.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		errors.WriteError(w, errors.NewNotFoundError(requestID, "Item not found or unauthorized"))
	case err != nil:
		h.internal(w, err, requestID)
	default:
		writeJSON(w, h.logger, http.StatusOK, map[string]string{
			"message": "History item deleted successfully",
		})
	}
}

func (h *HistoryHandler) internal(w http.ResponseWriter, err error, requestID string) {
	errors.LogError(h.logger, err, requestID)
	errors.WriteError(w, errors.NewInternalError(requestID, err))
}

// parseLeadingInt reads an optional sign and leading digits, ignoring
// anything after them, so "3abc" is 3. Input without digits yields def.
func parseLeadingInt(s string, def int) int {
	s = strings.TrimSpace(s)
	neg := false
	if s != "" && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}
	n, digits := 0, 0
	for _, c := range s {
		if c < '0' || c > '9' {
			break
		}
		if n > (1<<31)/10 {
			// Large enough to clamp to any bound used here.
			break
		}
		n = n*10 + int(c-'0')
		digits++
	}
	if digits == 0 {
		return def
	}
	if neg {
		return -n
	}
	return n
}
