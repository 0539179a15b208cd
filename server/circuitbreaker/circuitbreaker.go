// Package circuitbreaker wraps sony/gobreaker with logging and a Prometheus
// state gauge. It guards the model provider so a failing upstream fails fast.
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Config holds configuration for the circuit breaker
type Config struct {
	Name             string
	MaxRequests      uint32        // Requests allowed through while half-open
	Interval         time.Duration // Closed-state period after which counts reset
	Timeout          time.Duration // Open-state period before trying half-open
	FailureThreshold uint32        // Consecutive failures that trip the breaker
	TestMode         bool          // Skip metric registration
}

// CircuitBreaker implements the circuit breaker pattern
type CircuitBreaker struct {
	name   string
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger

	stateGauge prometheus.Gauge
	tripsTotal prometheus.Counter
}

// NewCircuitBreaker creates a breaker. Metrics are registered on registry
// unless TestMode is set or registry is nil.
func NewCircuitBreaker(cfg Config, logger *zap.Logger, registry prometheus.Registerer) (*CircuitBreaker, error) {
	if cfg.FailureThreshold == 0 {
		return nil, fmt.Errorf("failure threshold must be positive")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &CircuitBreaker{
		name:   cfg.Name,
		logger: logger,
		stateGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "koreksi_circuit_breaker_state",
			Help:        "Current state of the circuit breaker (0=closed, 1=half-open, 2=open)",
			ConstLabels: prometheus.Labels{"name": cfg.Name},
		}),
		tripsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "koreksi_circuit_breaker_trips_total",
			Help:        "Total number of times the circuit breaker has tripped",
			ConstLabels: prometheus.Labels{"name": cfg.Name},
		}),
	}

	if !cfg.TestMode && registry != nil {
		if err := registry.Register(c.stateGauge); err != nil {
			return nil, fmt.Errorf("register state gauge: %w", err)
		}
		if err := registry.Register(c.tripsTotal); err != nil {
			return nil, fmt.Errorf("register trips counter: %w", err)
		}
	}

	threshold := cfg.FailureThreshold
	c.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// A caller hanging up says nothing about the provider's health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: c.onStateChange,
	})

	return c, nil
}

func (c *CircuitBreaker) onStateChange(name string, from, to gobreaker.State) {
	c.stateGauge.Set(float64(to))
	if to == gobreaker.StateOpen {
		c.tripsTotal.Inc()
		c.logger.Warn("Circuit breaker tripped",
			zap.String("name", name),
			zap.String("from", from.String()),
		)
		return
	}
	c.logger.Info("Circuit breaker state changed",
		zap.String("name", name),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)
}

// Execute runs f unless the breaker is open. A rejected call returns
// ErrCircuitOpen without invoking f.
func (c *CircuitBreaker) Execute(f func() error) error {
	_, err := c.cb.Execute(func() (interface{}, error) {
		return nil, f()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	return err
}

// State returns the current breaker state.
func (c *CircuitBreaker) State() gobreaker.State {
	return c.cb.State()
}

// Counts returns the counters of the current generation.
func (c *CircuitBreaker) Counts() gobreaker.Counts {
	return c.cb.Counts()
}

// Name returns the breaker name.
func (c *CircuitBreaker) Name() string {
	return c.name
}
