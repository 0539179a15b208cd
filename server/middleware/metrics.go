package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/teilomillet/koreksi/server/metrics"
)

// PrometheusMetrics records request counts, latencies and error classes.
// Requests are labelled by the chi route pattern once one matched, so ids in
// paths do not blow up label cardinality. Unmatched requests share one label.
func PrometheusMetrics(m *metrics.Metrics) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			active := m.ActiveRequests.WithLabelValues(r.Method)
			active.Inc()
			defer active.Dec()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			code := statusOf(ww)
			endpoint := routeLabel(r)
			m.RequestsTotal.WithLabelValues(endpoint, strconv.Itoa(code)).Inc()
			m.RequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

			switch {
			case code >= 500:
				m.ErrorsTotal.WithLabelValues("server_error").Inc()
			case code >= 400:
				m.ErrorsTotal.WithLabelValues("client_error").Inc()
			}
		})
	}
}

func routeLabel(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return r.URL.Path
	}
	if pattern := rctx.RoutePattern(); pattern != "" {
		return pattern
	}
	return "unmatched"
}

// statusOf treats a handler that never wrote as 200, like net/http does.
func statusOf(ww middleware.WrapResponseWriter) int {
	if code := ww.Status(); code != 0 {
		return code
	}
	return http.StatusOK
}
