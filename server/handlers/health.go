package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/teilomillet/koreksi/server/provider"
	"go.uber.org/zap"
)

// ProviderHealth reports the model client's state. *provider.Manager
// implements it.
type ProviderHealth interface {
	Health() provider.HealthStatus
}

// Pinger checks a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status   string                 `json:"status"`
	Version  string                 `json:"version,omitempty"`
	Provider *provider.HealthStatus `json:"provider,omitempty"`
	Database string                 `json:"database,omitempty"`
}

// HealthHandler serves GET /health. It answers 200 when every dependency is
// healthy and 503 otherwise. Either dependency may be nil.
type HealthHandler struct {
	provider ProviderHealth
	db       Pinger
	version  string
	logger   *zap.Logger
	timeout  time.Duration
}

func NewHealthHandler(p ProviderHealth, db Pinger, version string, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{provider: p, db: db, version: version, logger: nopIfNil(logger), timeout: 2 * time.Second}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Version: h.version}

	if h.provider != nil {
		st := h.provider.Health()
		resp.Provider = &st
		if !st.Healthy {
			resp.Status = "degraded"
		}
	}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			h.logger.Warn("Database health check failed", zap.Error(err))
			resp.Database = "unreachable"
			resp.Status = "degraded"
		} else {
			resp.Database = "ok"
		}
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, h.logger, status, resp)
}
