// Package routing builds the HTTP router from the route table in the
// configuration. Each route names a handler and an ordered list of
// middleware; both are looked up by name.
package routing

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/teilomillet/koreksi/config"
	"github.com/teilomillet/koreksi/errors"
	"github.com/teilomillet/koreksi/server/metrics"
	"github.com/teilomillet/koreksi/server/middleware"
	"go.uber.org/zap"
)

// Middleware wraps a handler.
type Middleware = func(http.Handler) http.Handler

// Router handles HTTP routing for the configured routes.
type Router struct {
	router     chi.Router
	handlers   map[string]http.Handler
	middleware map[string]Middleware
	logger     *zap.Logger
	cfg        *config.Config
}

// NewRouter creates a router with the global middleware stack and every
// configured route. A route naming an unknown handler or middleware is an
// error: silently skipping "auth" would expose the route. m may be nil.
func NewRouter(
	cfg *config.Config,
	handlers map[string]http.Handler,
	mws map[string]Middleware,
	m *metrics.Metrics,
	logger *zap.Logger,
) (*Router, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Router{
		router:     chi.NewRouter(),
		handlers:   handlers,
		middleware: mws,
		logger:     logger,
		cfg:        cfg,
	}

	r.router.Use(middleware.RequestID)
	r.router.Use(middleware.RequestTimer)
	r.router.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	r.router.Use(middleware.Logging(logger))
	if m != nil {
		r.router.Use(middleware.PrometheusMetrics(m))
	}
	// Innermost, so recovered panics are still logged and counted as 500s.
	r.router.Use(middleware.Recovery(logger))

	r.router.NotFound(func(w http.ResponseWriter, req *http.Request) {
		errors.WriteError(w, errors.NewNotFoundError(middleware.GetRequestID(req.Context()), "Route not found"))
	})
	r.router.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		errors.WriteError(w, errors.NewError(errors.BadRequestError, "Method not allowed",
			http.StatusMethodNotAllowed, middleware.GetRequestID(req.Context()), nil, nil))
	})

	if err := r.setupRoutes(); err != nil {
		return nil, err
	}
	return r, nil
}

// setupRoutes mounts each route in its own group so route middleware does
// not leak into other routes.
func (r *Router) setupRoutes() error {
	for _, route := range r.cfg.Routes {
		handler, ok := r.handlers[route.Handler]
		if !ok {
			return fmt.Errorf("route %s: handler %q not found", route.Path, route.Handler)
		}

		chain := make([]Middleware, 0, len(route.Middleware))
		for _, name := range route.Middleware {
			mw, ok := r.middleware[name]
			if !ok {
				return fmt.Errorf("route %s: middleware %q not found", route.Path, name)
			}
			chain = append(chain, mw)
		}

		path := route.Path
		if route.Version != "" {
			path = fmt.Sprintf("/%s%s", route.Version, path)
		}

		methods := route.Methods
		if len(methods) == 0 {
			methods = []string{http.MethodGet}
		}

		r.router.Group(func(router chi.Router) {
			router.Use(chain...)
			for _, method := range methods {
				router.Method(strings.ToUpper(method), path, handler)
			}
		})

		r.logger.Debug("Route registered",
			zap.String("path", path),
			zap.String("handler", route.Handler),
			zap.Strings("methods", methods),
			zap.Strings("middleware", route.Middleware),
		)
	}
	return nil
}

// ServeHTTP implements the http.Handler interface.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}
