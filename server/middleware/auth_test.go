package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teilomillet/koreksi/config"
	"github.com/teilomillet/koreksi/errors"
	"github.com/teilomillet/koreksi/store"
	"go.uber.org/zap/zaptest"
)

type countingUsers struct {
	store.UserStore
	upserts int
	fail    error
}

func (c *countingUsers) Upsert(ctx context.Context, id store.Identity) (*store.User, error) {
	c.upserts++
	if c.fail != nil {
		return nil, c.fail
	}
	return c.UserStore.Upsert(ctx, id)
}

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		Keys: map[string]config.Identity{
			"key-ana":  {Email: "ana@example.com", Name: "Ana"},
			"key-budi": {Email: "budi@example.com", Name: "Budi", Image: "https://img/b.png"},
		},
		CacheSize: 8,
	}
}

func newTestAuth(t *testing.T) (*Authenticator, *countingUsers) {
	t.Helper()
	users := &countingUsers{UserStore: store.NewMemoryStore(time.Hour)}
	a, err := NewAuthenticator(testAuthConfig(), users, zaptest.NewLogger(t))
	require.NoError(t, err)
	return a, users
}

func TestAPIKeyExtraction(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"bearer", map[string]string{"Authorization": "Bearer abc"}, "abc"},
		{"bearer lowercase scheme", map[string]string{"Authorization": "bearer abc"}, "abc"},
		{"x-api-key", map[string]string{"X-API-Key": " abc "}, "abc"},
		{"basic auth falls through", map[string]string{"Authorization": "Basic Zm9v", "X-API-Key": "k"}, "k"},
		{"bearer wins", map[string]string{"Authorization": "Bearer one", "X-API-Key": "two"}, "one"},
		{"none", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, APIKey(r))
		})
	}
}

func TestAuthenticationMiddleware(t *testing.T) {
	a, _ := newTestAuth(t)
	var got *store.User
	handler := RequestID(a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := UserFromContext(r.Context())
		require.True(t, ok)
		got = u
		w.WriteHeader(http.StatusOK)
	})))

	t.Run("valid key", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/me", nil)
		req.Header.Set("Authorization", "Bearer key-budi")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, got)
		assert.Equal(t, "budi@example.com", got.Email)
		assert.Equal(t, "https://img/b.png", got.Image)
	})

	for _, tc := range []struct {
		name, key, message string
	}{
		{"missing key", "", "Missing API key"},
		{"unknown key", "nope", "Invalid API key"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/me", nil)
			if tc.key != "" {
				req.Header.Set("X-API-Key", tc.key)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			var body errors.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, errors.AuthError, body.Type)
			assert.Equal(t, tc.message, body.Message)
			assert.NotEmpty(t, body.RequestID)
		})
	}
}

func TestResolveCachesSignIn(t *testing.T) {
	a, users := newTestAuth(t)
	ctx := context.Background()

	first, err := a.Resolve(ctx, "key-ana")
	require.NoError(t, err)
	second, err := a.Resolve(ctx, "key-ana")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, users.upserts)

	_, err = a.Resolve(ctx, "missing")
	assert.ErrorIs(t, err, ErrUnknownKey)
}

func TestResolveEvictionSignsInAgain(t *testing.T) {
	users := &countingUsers{UserStore: store.NewMemoryStore(time.Hour)}
	cfg := config.AuthConfig{Keys: map[string]config.Identity{}, CacheSize: 2}
	for i := 0; i < 3; i++ {
		cfg.Keys[fmt.Sprintf("k%d", i)] = config.Identity{Email: fmt.Sprintf("u%d@example.com", i)}
	}
	a, err := NewAuthenticator(cfg, users, nil)
	require.NoError(t, err)

	ctx := context.Background()
	for _, k := range []string{"k0", "k1", "k2", "k0"} {
		_, err := a.Resolve(ctx, k)
		require.NoError(t, err)
	}
	assert.Equal(t, 4, users.upserts, "k0 was evicted by k2 and signs in again")
}

func TestUpdateKeysRevokes(t *testing.T) {
	a, users := newTestAuth(t)
	ctx := context.Background()

	_, err := a.Resolve(ctx, "key-ana")
	require.NoError(t, err)

	a.UpdateKeys(config.AuthConfig{Keys: map[string]config.Identity{
		"key-new": {Email: "ana@example.com", Name: "Ana Baru"},
	}})

	_, err = a.Resolve(ctx, "key-ana")
	assert.ErrorIs(t, err, ErrUnknownKey)

	u, err := a.Resolve(ctx, "key-new")
	require.NoError(t, err)
	assert.Equal(t, "Ana Baru", u.Name)
	assert.Equal(t, 2, users.upserts)
}

func TestAuthenticationStoreFailure(t *testing.T) {
	users := &countingUsers{UserStore: store.NewMemoryStore(time.Hour), fail: fmt.Errorf("db down")}
	a, err := NewAuthenticator(testAuthConfig(), users, zaptest.NewLogger(t))
	require.NoError(t, err)

	handler := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-API-Key", "key-ana")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db down")
}

func TestNewAuthenticatorRequiresStore(t *testing.T) {
	_, err := NewAuthenticator(testAuthConfig(), nil, nil)
	assert.Error(t, err)
}

func TestUserFromContext(t *testing.T) {
	_, ok := UserFromContext(context.Background())
	assert.False(t, ok)

	ctx := WithUser(context.Background(), &store.User{ID: "u1"})
	u, ok := UserFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "u1", u.ID)
}
