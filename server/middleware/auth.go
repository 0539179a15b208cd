package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/teilomillet/koreksi/config"
	"github.com/teilomillet/koreksi/errors"
	"github.com/teilomillet/koreksi/store"
	"go.uber.org/zap"
)

// ErrUnknownKey is returned by Resolve for keys not in the key table.
var ErrUnknownKey = errors.New("unknown API key")

// Authenticator maps API keys to users. A key's first use, and any use after
// its cache entry was evicted, signs the identity in through the user store.
type Authenticator struct {
	users  store.UserStore
	logger *zap.Logger
	keys   atomic.Pointer[map[string]store.Identity]
	cache  *lru.Cache[string, *store.User]
}

// NewAuthenticator builds an Authenticator from the configured key table.
func NewAuthenticator(cfg config.AuthConfig, users store.UserStore, logger *zap.Logger) (*Authenticator, error) {
	if users == nil {
		return nil, fmt.Errorf("user store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	size := cfg.CacheSize
	if size <= 0 {
		size = 1024
	}
	cache, err := lru.New[string, *store.User](size)
	if err != nil {
		return nil, fmt.Errorf("create auth cache: %w", err)
	}
	a := &Authenticator{users: users, logger: logger, cache: cache}
	a.UpdateKeys(cfg)
	return a, nil
}

// UpdateKeys swaps in a new key table and forgets every resolved user.
// Revoked keys stop working immediately.
func (a *Authenticator) UpdateKeys(cfg config.AuthConfig) {
	table := make(map[string]store.Identity, len(cfg.Keys))
	for key, id := range cfg.Keys {
		table[fingerprint(key)] = store.Identity{Email: id.Email, Name: id.Name, Image: id.Image}
	}
	a.keys.Store(&table)
	a.cache.Purge()
	a.logger.Info("API key table loaded", zap.Int("keys", len(table)))
}

// Resolve returns the user signed in by key.
func (a *Authenticator) Resolve(ctx context.Context, key string) (*store.User, error) {
	fp := fingerprint(key)
	if u, ok := a.cache.Get(fp); ok {
		return u, nil
	}

	id, ok := (*a.keys.Load())[fp]
	if !ok {
		return nil, ErrUnknownKey
	}
	u, err := a.users.Upsert(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("sign in %s: %w", id.Email, err)
	}
	a.cache.Add(fp, u)
	a.logger.Debug("User signed in", zap.String("user_id", u.ID), zap.String("email", u.Email))
	return u, nil
}

// Middleware rejects requests without a valid key and stores the user in
// the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := GetRequestID(r.Context())
		key := APIKey(r)
		if key == "" {
			errors.WriteError(w, errors.NewAuthError(requestID, "Missing API key", nil))
			return
		}

		u, err := a.Resolve(r.Context(), key)
		switch {
		case errors.Is(err, ErrUnknownKey):
			errors.WriteError(w, errors.NewAuthError(requestID, "Invalid API key", nil))
			return
		case err != nil:
			errors.LogError(a.logger, err, requestID)
			errors.WriteError(w, errors.NewInternalError(requestID, err))
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
	})
}

// APIKey extracts the key from "Authorization: Bearer <key>" or X-API-Key.
func APIKey(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if scheme, token, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

// WithUser returns a copy of ctx carrying u.
func WithUser(ctx context.Context, u *store.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// UserFromContext returns the authenticated user, if any.
func UserFromContext(ctx context.Context) (*store.User, bool) {
	u, ok := ctx.Value(userKey).(*store.User)
	return u, ok && u != nil
}

// fingerprint keeps raw keys out of the lookup tables.
func fingerprint(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
