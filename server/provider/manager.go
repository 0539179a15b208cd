package provider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
	"github.com/teilomillet/koreksi/config"
	"github.com/teilomillet/koreksi/server/circuitbreaker"
	"github.com/teilomillet/koreksi/server/metrics"
	"go.uber.org/zap"
)

// HealthStatus is the provider's passive health, derived from real calls.
type HealthStatus struct {
	Provider     string    `json:"provider"`
	Healthy      bool      `json:"healthy"`
	BreakerState string    `json:"breaker_state"`
	LastSuccess  time.Time `json:"last_success,omitempty"`
	LastFailure  time.Time `json:"last_failure,omitempty"`
	RequestCount int64     `json:"request_count"`
	ErrorCount   int64     `json:"error_count"`
}

// Manager guards a Client with a circuit breaker and records call metrics.
// It never retries: one Invoke is at most one provider call.
type Manager struct {
	client  Client
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu     sync.Mutex
	health HealthStatus
}

// NewManager wraps client. m may be nil, in which case nothing is recorded.
func NewManager(client Client, cbCfg config.CircuitBreakerConfig, logger *zap.Logger, m *metrics.Metrics) (*Manager, error) {
	if client == nil {
		return nil, fmt.Errorf("provider client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cb := circuitbreaker.Config{
		Name:             client.Name(),
		MaxRequests:      cbCfg.MaxRequests,
		Interval:         cbCfg.Interval,
		Timeout:          cbCfg.Timeout,
		FailureThreshold: cbCfg.FailureThreshold,
		TestMode:         m == nil,
	}
	var registry prometheus.Registerer
	if m != nil {
		registry = m.Registry()
	}
	breaker, err := circuitbreaker.NewCircuitBreaker(cb, logger, registry)
	if err != nil {
		return nil, fmt.Errorf("create circuit breaker: %w", err)
	}

	return &Manager{
		client:  client,
		breaker: breaker,
		logger:  logger.With(zap.String("provider", client.Name())),
		metrics: m,
		health:  HealthStatus{Provider: client.Name(), Healthy: true},
	}, nil
}

// Name reports the wrapped client's name.
func (m *Manager) Name() string { return m.client.Name() }

// Invoke forwards to the client through the breaker. Every failure,
// including an open circuit, is wrapped with ErrExternalService.
func (m *Manager) Invoke(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	var out string
	start := time.Now()
	err := m.breaker.Execute(func() error {
		var callErr error
		out, callErr = m.client.Invoke(ctx, systemPrompt, userPrompt)
		return callErr
	})
	elapsed := time.Since(start)

	m.record(err, elapsed)
	if err != nil {
		m.logger.Warn("Model call failed",
			zap.Error(err),
			zap.Duration("latency", elapsed),
			zap.String("breaker_state", m.breaker.State().String()),
		)
		return "", fmt.Errorf("%w: %s: %w", ErrExternalService, m.client.Name(), err)
	}

	m.logger.Debug("Model call succeeded",
		zap.Duration("latency", elapsed),
		zap.Int("response_length", len(out)),
	)
	return out, nil
}

func (m *Manager) record(err error, elapsed time.Duration) {
	name := m.client.Name()
	if m.metrics != nil {
		m.metrics.ModelLatency.WithLabelValues(name).Observe(elapsed.Seconds())
		if err != nil {
			m.metrics.ModelErrors.WithLabelValues(name).Inc()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.health.RequestCount++
	if err != nil {
		m.health.ErrorCount++
		m.health.LastFailure = time.Now()
		return
	}
	m.health.LastSuccess = time.Now()
}

// Health reports the provider as unhealthy while the breaker is open.
func (m *Manager) Health() HealthStatus {
	m.mu.Lock()
	h := m.health
	m.mu.Unlock()

	state := m.breaker.State()
	h.BreakerState = state.String()
	h.Healthy = state != gobreaker.StateOpen
	return h
}
