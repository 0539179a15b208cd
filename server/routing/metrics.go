package routing

import (
	"net/http"

	"github.com/teilomillet/koreksi/server/metrics"
)

// MetricsHandler serves m in the Prometheus text format. With no metrics
// configured the endpoint answers 404.
func MetricsHandler(m *metrics.Metrics) http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return m.Handler()
}
