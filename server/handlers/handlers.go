// Package handlers provides the HTTP handlers of the koreksi API: grammar
// checks, saved history, the current user and health.
//
// Handlers assume the middleware chain has run: RequestID always, and
// Authentication on every /api route. Errors are written with the errors
// package so every failure has the same JSON shape.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/teilomillet/koreksi/errors"
	"github.com/teilomillet/koreksi/server/middleware"
	"github.com/teilomillet/koreksi/store"
	"go.uber.org/zap"
)

// DefaultMaxBodyBytes is used when a handler is built with maxBody <= 0.
const DefaultMaxBodyBytes = 64 << 10

func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Failed to encode response", zap.Error(err))
	}
}

// currentUser returns the authenticated user or writes a 401.
func currentUser(w http.ResponseWriter, r *http.Request) (*store.User, bool) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok {
		errors.WriteError(w, errors.NewAuthError(middleware.GetRequestID(r.Context()), "Unauthorized", nil))
		return nil, false
	}
	return u, true
}

func bodyLimit(n int64) int64 {
	if n <= 0 {
		return DefaultMaxBodyBytes
	}
	return n
}

func nopIfNil(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
