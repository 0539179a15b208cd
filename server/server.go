// Package server assembles the koreksi HTTP service. It wires the config
// watcher, the store, the model provider and the grammar pipeline into the
// configured routes and serves them until the context is cancelled.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teilomillet/koreksi/config"
	"github.com/teilomillet/koreksi/errors"
	"github.com/teilomillet/koreksi/server/handlers"
	"github.com/teilomillet/koreksi/server/metrics"
	"github.com/teilomillet/koreksi/server/middleware"
	"github.com/teilomillet/koreksi/server/processing"
	"github.com/teilomillet/koreksi/server/provider"
	"github.com/teilomillet/koreksi/server/routing"
	"github.com/teilomillet/koreksi/store"
	"go.uber.org/zap"
)

// Version is reported by /health and the CLI.
const Version = "v0.1.0"

const defaultShutdownTimeout = 30 * time.Second

// Option configures a Server.
type Option func(*Server)

// WithLevel lets config reloads change the log level.
func WithLevel(level zap.AtomicLevel) Option {
	return func(s *Server) { s.level = &level }
}

// WithStore replaces the store built from the database config. The server
// takes ownership and closes it on shutdown.
func WithStore(st store.Store) Option {
	return func(s *Server) { s.store = st }
}

// WithMetrics replaces the server's metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// Server is the koreksi HTTP service.
type Server struct {
	watcher config.Watcher
	logger  *zap.Logger
	level   *zap.AtomicLevel
	metrics *metrics.Metrics

	store    store.Store
	sweeper  *store.Sweeper
	provider *provider.Manager
	auth     *middleware.Authenticator
	limiter  *middleware.RateLimiter
	queue    *middleware.QueueMiddleware
	handlers map[string]http.Handler

	router atomic.Pointer[routing.Router]

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// NewServer loads configPath, watches it for changes and builds the
// provider client it names.
func NewServer(configPath string, logger *zap.Logger, opts ...Option) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	watcher, err := config.NewConfigWatcher(configPath, logger)
	if err != nil {
		return nil, err
	}

	cfg := watcher.GetCurrentConfig()
	client, err := provider.New(context.Background(), cfg.LLM)
	if err != nil {
		watcher.Close()
		return nil, fmt.Errorf("create provider client: %w", err)
	}

	s, err := NewServerWithConfig(watcher, client, logger, opts...)
	if err != nil {
		watcher.Close()
		return nil, err
	}
	return s, nil
}

// NewServerWithConfig builds a server around an existing watcher and model
// client. On success the server owns the watcher and closes it in Close.
func NewServerWithConfig(watcher config.Watcher, client provider.Client, logger *zap.Logger, opts ...Option) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		watcher: watcher,
		logger:  logger,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.NewMetrics()
	}

	cfg := watcher.GetCurrentConfig()
	if err := s.init(cfg, client); err != nil {
		if s.store != nil {
			s.store.Close()
		}
		return nil, err
	}

	s.wg.Add(1)
	go s.watchConfig(watcher.Subscribe())
	return s, nil
}

func (s *Server) init(cfg *config.Config, client provider.Client) error {
	if s.store == nil {
		st, err := store.New(cfg.Database, s.logger)
		if err != nil {
			return fmt.Errorf("create store: %w", err)
		}
		s.store = st
	}
	s.sweeper = store.NewSweeper(s.store, cfg.Database.HistoryTTL, cfg.Database.SweepInterval,
		s.logger.Named("sweeper"), s.metrics.HistoryPurged)

	manager, err := provider.NewManager(client, cfg.CircuitBreaker, s.logger, s.metrics)
	if err != nil {
		return fmt.Errorf("create provider manager: %w", err)
	}
	s.provider = manager

	processor, err := processing.NewProcessor(manager, s.logger, s.metrics)
	if err != nil {
		return fmt.Errorf("create processor: %w", err)
	}

	s.auth, err = middleware.NewAuthenticator(cfg.Auth, s.store, s.logger)
	if err != nil {
		return fmt.Errorf("create authenticator: %w", err)
	}
	s.limiter = middleware.NewRateLimiter(cfg.RateLimit, s.metrics)
	s.queue = middleware.NewQueueMiddleware(cfg.Queue.MaxSize, s.metrics)

	maxBody := cfg.Server.MaxBodyBytes
	s.handlers = map[string]http.Handler{
		"check":   handlers.NewCheckHandler(processor, s.store, s.logger, maxBody),
		"history": handlers.NewHistoryHandler(s.store, s.logger, maxBody),
		"me":      handlers.NewMeHandler(s.store, s.logger),
		"health":  handlers.NewHealthHandler(manager, s.store, Version, s.logger),
		"metrics": routing.MetricsHandler(s.metrics),
	}

	router, err := s.buildRouter(cfg)
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}
	s.router.Store(router)

	s.logger.Info("Server initialized",
		zap.String("provider", manager.Name()),
		zap.String("database", cfg.Database.Driver),
		zap.Int("routes", len(cfg.Routes)),
		zap.Int("api_keys", len(cfg.Auth.Keys)),
	)
	return nil
}

func (s *Server) buildRouter(cfg *config.Config) (*routing.Router, error) {
	queue := func(next http.Handler) http.Handler { return next }
	if cfg.Queue.Enabled {
		queue = s.queue.Handler
	}
	mws := map[string]routing.Middleware{
		"auth":      s.auth.Middleware,
		"ratelimit": s.limiter.Handler,
		"queue":     queue,
	}
	return routing.NewRouter(cfg, s.handlers, mws, s.metrics, s.logger)
}

// ServeHTTP dispatches to the current router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.Load().ServeHTTP(w, r)
}

func (s *Server) watchConfig(updates <-chan *config.Config) {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case cfg, ok := <-updates:
			if !ok {
				return
			}
			s.applyConfig(cfg)
		}
	}
}

// applyConfig takes the reloadable parts of cfg: log level, API keys, rate
// limits, queue size and the route table. Server, database, provider and
// circuit breaker settings need a restart.
func (s *Server) applyConfig(cfg *config.Config) {
	if s.level != nil {
		if err := s.level.UnmarshalText([]byte(cfg.Logging.Level)); err != nil {
			s.logger.Warn("Ignoring invalid log level", zap.String("level", cfg.Logging.Level))
		}
	}
	s.auth.UpdateKeys(cfg.Auth)
	s.limiter.Update(cfg.RateLimit)
	s.queue.SetMaxSize(cfg.Queue.MaxSize)

	router, err := s.buildRouter(cfg)
	if err != nil {
		s.logger.Error("Reloaded routes are invalid, keeping previous routes", zap.Error(err))
		return
	}
	s.router.Store(router)
	s.logger.Info("Applied configuration update",
		zap.Int("routes", len(cfg.Routes)),
		zap.Int("api_keys", len(cfg.Auth.Keys)),
	)
}

// Start listens on the configured port and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.watcher.GetCurrentConfig()
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.Port))
	if err != nil {
		s.Close()
		return fmt.Errorf("listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then drains the check queue, shuts
// the HTTP server down and releases everything the server owns.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	cfg := s.watcher.GetCurrentConfig()
	httpServer := &http.Server{
		Handler:        errors.ErrorHandler(s.logger)(s),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	s.sweeper.Start(ctx)

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("Server started",
			zap.String("address", ln.Addr().String()),
			zap.String("version", Version),
		)
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		timeout := cfg.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = defaultShutdownTimeout
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		s.logger.Info("Shutting down server", zap.Duration("timeout", timeout))
		var firstErr error
		if err := s.queue.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("Check queue did not drain", zap.Error(err))
			firstErr = err
		}
		if err := httpServer.Shutdown(shutdownCtx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("error during server shutdown: %w", err)
		}
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		return firstErr

	case err := <-errChan:
		s.Close()
		return err
	}
}

// Close stops the reload loop and the sweeper and closes the store and the
// watcher. It is safe to call more than once.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
		s.sweeper.Stop()
		if err := s.store.Close(); err != nil {
			s.closeErr = fmt.Errorf("close store: %w", err)
		}
		if err := s.watcher.Close(); err != nil && s.closeErr == nil {
			s.closeErr = fmt.Errorf("close config watcher: %w", err)
		}
	})
	return s.closeErr
}
