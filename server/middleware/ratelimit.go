package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/teilomillet/koreksi/config"
	"github.com/teilomillet/koreksi/errors"
	"github.com/teilomillet/koreksi/server/metrics"
	"golang.org/x/time/rate"
)

// maxTrackedClients bounds the limiter table. Evicted clients start over
// with a full bucket.
const maxTrackedClients = 10000

// RateLimiter applies a token bucket per user. Requests that reach it
// without an authenticated user are keyed by remote IP.
type RateLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters *lru.Cache[string, *rate.Limiter]
	metrics  *metrics.Metrics
}

// NewRateLimiter creates a limiter from cfg. m may be nil.
func NewRateLimiter(cfg config.RateLimitConfig, m *metrics.Metrics) *RateLimiter {
	// Size is a positive constant, so New cannot fail.
	cache, _ := lru.New[string, *rate.Limiter](maxTrackedClients)
	rl := &RateLimiter{limiters: cache, metrics: m}
	rl.Update(cfg)
	return rl
}

// Update changes the limits. Existing buckets are dropped.
func (rl *RateLimiter) Update(cfg config.RateLimitConfig) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if cfg.RequestsPerMinute <= 0 {
		rl.limit = rate.Inf
	} else {
		rl.limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
	}
	rl.burst = cfg.Burst
	if rl.burst <= 0 {
		rl.burst = 1
	}
	rl.limiters.Purge()
}

func (rl *RateLimiter) limiterFor(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if l, ok := rl.limiters.Get(key); ok {
		return l
	}
	l := rate.NewLimiter(rl.limit, rl.burst)
	rl.limiters.Add(key, l)
	return l
}

// Handler rejects requests over the limit with 429 and a Retry-After hint.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientKey(r)
		limiter := rl.limiterFor(key)

		if !limiter.Allow() {
			retryAfter := retryAfterSeconds(limiter.Limit())
			if rl.metrics != nil {
				rl.metrics.RateLimitHits.WithLabelValues(key).Inc()
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			errors.WriteError(w, errors.NewRateLimitError(GetRequestID(r.Context()), retryAfter))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	if u, ok := UserFromContext(r.Context()); ok {
		return u.ID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// retryAfterSeconds is the time for one token to refill, rounded up.
func retryAfterSeconds(l rate.Limit) int {
	if l == rate.Inf || l <= 0 {
		return 1
	}
	return int(math.Ceil(1 / float64(l)))
}
