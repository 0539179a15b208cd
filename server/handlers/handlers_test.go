package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/teilomillet/koreksi/errors"
	"github.com/teilomillet/koreksi/server/middleware"
	"github.com/teilomillet/koreksi/store"
)

// newAuthedRequest builds a request as it looks after the RequestID and
// Authentication middleware ran.
func newAuthedRequest(t *testing.T, method, target string, body any, u *store.User) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")

	ctx := context.WithValue(req.Context(), middleware.RequestIDKey, "req-test")
	if u != nil {
		ctx = middleware.WithUser(ctx, u)
	}
	return req.WithContext(ctx)
}

func signIn(t *testing.T, s store.UserStore, email string) *store.User {
	t.Helper()
	u, err := s.Upsert(context.Background(), store.Identity{Email: email, Name: "Test"})
	require.NoError(t, err)
	return u
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errors.ErrorResponse {
	t.Helper()
	var body errors.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func newMemoryStore() *store.MemoryStore {
	return store.NewMemoryStore(30 * 24 * time.Hour)
}
