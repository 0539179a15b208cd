package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teilomillet/koreksi/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRequestID(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		assert.Equal(t, seen, r.Header.Get(RequestIDHeader))
	}))

	tests := []struct {
		name           string
		providedReqID  string
		shouldBeReused bool
	}{
		{"generates new request ID", "", false},
		{"reuses provided request ID", "test-id-123", true},
		{"replaces unsafe request ID", "bad id\n", false},
		{"replaces oversized request ID", strings.Repeat("a", maxRequestIDLen+1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tt.providedReqID != "" {
				req.Header.Set(RequestIDHeader, tt.providedReqID)
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			respID := rec.Header().Get(RequestIDHeader)
			assert.NotEmpty(t, respID)
			assert.Equal(t, respID, seen)

			if tt.shouldBeReused {
				assert.Equal(t, tt.providedReqID, respID)
			} else {
				assert.NotEqual(t, tt.providedReqID, respID)
			}
		})
	}
}

func TestGetRequestIDWithoutMiddleware(t *testing.T) {
	assert.Empty(t, GetRequestID(context.Background()))
}

func TestRequestTimer(t *testing.T) {
	handler := RequestTimer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(10 * time.Millisecond)
		w.WriteHeader(http.StatusAccepted)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	respTime := rec.Header().Get("X-Response-Time")
	require.NotEmpty(t, respTime)

	duration, err := time.ParseDuration(respTime)
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, duration, 10*time.Millisecond)
}

func TestRecovery(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	handler := RequestID(Recovery(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	})))

	req := httptest.NewRequest("GET", "/boom", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body errors.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, errors.InternalError, body.Type)
	assert.Equal(t, rec.Header().Get(RequestIDHeader), body.RequestID)
	assert.NotContains(t, rec.Body.String(), "test panic")

	entries := logs.FilterMessage("Handler panicked").All()
	require.Len(t, entries, 1)
	assert.Equal(t, body.RequestID, entries[0].ContextMap()["request_id"])
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name           string
		allowed        []string
		origin         string
		method         string
		expectedStatus int
		expectedOrigin string
	}{
		{"preflight allow all", nil, "https://a.example", http.MethodOptions, http.StatusNoContent, "*"},
		{"normal request allow all", nil, "", http.MethodGet, http.StatusOK, "*"},
		{"listed origin", []string{"https://app.example"}, "https://app.example", http.MethodPost, http.StatusOK, "https://app.example"},
		{"unlisted origin", []string{"https://app.example"}, "https://evil.example", http.MethodGet, http.StatusOK, ""},
		{"wildcard entry", []string{"https://app.example", "*"}, "https://x.example", http.MethodGet, http.StatusOK, "*"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := CORS(tt.allowed)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(tt.method, "/", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Equal(t, tt.expectedOrigin, rr.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, corsMethods, rr.Header().Get("Access-Control-Allow-Methods"))
			assert.Contains(t, rr.Header().Get("Access-Control-Allow-Headers"), "X-API-Key")
		})
	}
}

func TestLogging(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	handler := RequestID(Logging(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("hello"))
	})))

	for _, path := range []string{"/ok", "/missing"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", path, strings.NewReader("secret text")))
	}

	entries := logs.FilterMessage("Request completed").All()
	require.Len(t, entries, 2)

	ok := entries[0].ContextMap()
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "/ok", ok["path"])
	assert.Equal(t, int64(200), ok["status"])
	assert.Equal(t, int64(5), ok["size"])
	assert.NotEmpty(t, ok["request_id"])

	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, int64(404), entries[1].ContextMap()["status"])

	for _, e := range entries {
		for _, v := range e.ContextMap() {
			assert.NotEqual(t, "secret text", v)
		}
	}
}
