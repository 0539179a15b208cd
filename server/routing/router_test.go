package routing

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teilomillet/koreksi/config"
	"github.com/teilomillet/koreksi/errors"
	"github.com/teilomillet/koreksi/server/metrics"
	"go.uber.org/zap"
)

func textHandler(body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	})
}

func serve(r http.Handler, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func TestRouter_NewRouter(t *testing.T) {
	cfg := &config.Config{
		Routes: []config.RouteConfig{{Path: "/test", Handler: "test"}},
	}
	handlers := map[string]http.Handler{"test": textHandler("ok")}

	router, err := NewRouter(cfg, handlers, nil, nil, zap.NewNop())
	require.NoError(t, err)
	assert.NotNil(t, router.router)
	assert.Equal(t, handlers, router.handlers)

	w := serve(router, "GET", "/test")
	assert.Equal(t, "ok", w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.NotEmpty(t, w.Header().Get("X-Response-Time"))
}

func TestRouter_VersionedRouting(t *testing.T) {
	cfg := &config.Config{
		Routes: []config.RouteConfig{
			{Path: "/test", Handler: "test", Version: "v1"},
			{Path: "/test", Handler: "test2", Version: "v2"},
		},
	}
	handlers := map[string]http.Handler{
		"test":  textHandler("v1"),
		"test2": textHandler("v2"),
	}
	router, err := NewRouter(cfg, handlers, nil, nil, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, "v1", serve(router, "GET", "/v1/test").Body.String())
	assert.Equal(t, "v2", serve(router, "GET", "/v2/test").Body.String())
}

func TestRouter_MethodRestriction(t *testing.T) {
	cfg := &config.Config{
		Routes: []config.RouteConfig{
			{Path: "/api/history", Handler: "history", Methods: []string{"get", "POST", "DELETE"}},
		},
	}
	router, err := NewRouter(cfg, map[string]http.Handler{"history": textHandler("ok")}, nil, nil, zap.NewNop())
	require.NoError(t, err)

	for _, method := range []string{"GET", "POST", "DELETE"} {
		assert.Equal(t, http.StatusOK, serve(router, method, "/api/history").Code, method)
	}

	w := serve(router, "PUT", "/api/history")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	var body errors.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Method not allowed", body.Message)
}

func TestRouter_NotFound(t *testing.T) {
	router, err := NewRouter(&config.Config{}, nil, nil, nil, zap.NewNop())
	require.NoError(t, err)

	w := serve(router, "GET", "/nope")
	assert.Equal(t, http.StatusNotFound, w.Code)
	var body errors.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, errors.NotFoundError, body.Type)
	assert.Equal(t, w.Header().Get("X-Request-ID"), body.RequestID)
}

func TestRouter_Middleware(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	cfg := &config.Config{
		Routes: []config.RouteConfig{
			{Path: "/guarded", Handler: "test", Middleware: []string{"auth", "ratelimit"}},
			{Path: "/open", Handler: "test"},
		},
	}
	mws := map[string]Middleware{"auth": tag("auth"), "ratelimit": tag("ratelimit")}
	router, err := NewRouter(cfg, map[string]http.Handler{"test": textHandler("ok")}, mws, nil, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, serve(router, "GET", "/guarded").Code)
	assert.Equal(t, []string{"auth", "ratelimit"}, order)

	order = nil
	assert.Equal(t, http.StatusOK, serve(router, "GET", "/open").Code)
	assert.Empty(t, order, "route middleware must not leak into other routes")
}

func TestRouter_UnknownNamesFail(t *testing.T) {
	_, err := NewRouter(&config.Config{
		Routes: []config.RouteConfig{{Path: "/x", Handler: "missing"}},
	}, map[string]http.Handler{}, nil, nil, zap.NewNop())
	assert.ErrorContains(t, err, `handler "missing"`)

	_, err = NewRouter(&config.Config{
		Routes: []config.RouteConfig{{Path: "/x", Handler: "test", Middleware: []string{"auth"}}},
	}, map[string]http.Handler{"test": textHandler("ok")}, nil, nil, zap.NewNop())
	assert.ErrorContains(t, err, `middleware "auth"`)
}

func TestRouter_RecordsMetricsAndRecoversPanics(t *testing.T) {
	m := metrics.NewMetrics()
	cfg := &config.Config{
		Routes: []config.RouteConfig{{Path: "/boom", Handler: "boom"}},
	}
	handlers := map[string]http.Handler{
		"boom": http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { panic("kaboom") }),
	}
	router, err := NewRouter(cfg, handlers, nil, m, zap.NewNop())
	require.NoError(t, err)

	w := serve(router, "GET", "/boom")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RequestsTotal.WithLabelValues("/boom", "500")))
}

func TestRouter_CORSPreflight(t *testing.T) {
	cfg := &config.Config{
		Server: config.ServerConfig{AllowedOrigins: []string{"https://app.example"}},
		Routes: []config.RouteConfig{{Path: "/api/check-grammar", Handler: "check", Methods: []string{"POST"}}},
	}
	router, err := NewRouter(cfg, map[string]http.Handler{"check": textHandler("ok")}, nil, nil, zap.NewNop())
	require.NoError(t, err)

	req := httptest.NewRequest("OPTIONS", "/api/check-grammar", nil)
	req.Header.Set("Origin", "https://app.example")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_DefaultRoutesAreUnversioned(t *testing.T) {
	handlers := map[string]http.Handler{}
	for _, name := range []string{"check", "history", "me", "health", "metrics"} {
		handlers[name] = textHandler(name)
	}
	pass := func(next http.Handler) http.Handler { return next }
	mws := map[string]Middleware{"auth": pass, "ratelimit": pass, "queue": pass}

	router, err := NewRouter(config.DefaultConfig(), handlers, mws, nil, zap.NewNop())
	require.NoError(t, err)

	tests := []struct {
		method, path, body string
	}{
		{"POST", "/api/check-grammar", "check"},
		{"GET", "/api/history", "history"},
		{"DELETE", "/api/history", "history"},
		{"GET", "/api/me", "me"},
		{"GET", "/health", "health"},
		{"GET", "/metrics", "metrics"},
	}
	for _, tt := range tests {
		w := serve(router, tt.method, tt.path)
		assert.Equal(t, http.StatusOK, w.Code, "%s %s", tt.method, tt.path)
		assert.Equal(t, tt.body, w.Body.String(), "%s %s", tt.method, tt.path)
	}

	assert.Equal(t, http.StatusNotFound, serve(router, "GET", "/v1/health").Code)
}
