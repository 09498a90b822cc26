package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/utafrali/WholesaleGo/pkg/httputil"
)

// RateLimitConfig sets a token bucket per key. A non-positive RPS disables
// limiting.
type RateLimitConfig struct {
	RPS   float64
	Burst int
	// Idle buckets are forgotten after TTL.
	TTL time.Duration
}

// KeyFunc picks the bucket for a request. An empty key is not limited.
type KeyFunc func(r *http.Request) string

// CompanyKey buckets requests by the authenticated tenant, so one company
// posting in a loop cannot starve the row locks of the others.
func CompanyKey(r *http.Request) string {
	id, ok := CompanyIDFromContext(r.Context())
	if !ok {
		return ""
	}
	return id.String()
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type limiterStore struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	cfg     RateLimitConfig
	lastGC  time.Time
	now     func() time.Time
}

func newLimiterStore(cfg RateLimitConfig) *limiterStore {
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	return &limiterStore{buckets: make(map[string]*bucket), cfg: cfg, now: time.Now}
}

// limiter returns the bucket for key, evicting idle buckets at most once per
// TTL.
func (s *limiterStore) limiter(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastGC) > s.cfg.TTL {
		for k, b := range s.buckets {
			if now.Sub(b.lastSeen) > s.cfg.TTL {
				delete(s.buckets, k)
			}
		}
		s.lastGC = now
	}

	b, ok := s.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(s.cfg.RPS), s.cfg.Burst)}
		s.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter
}

func (s *limiterStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}

// RateLimit rejects requests over the per-key budget with 429 RATE_LIMITED
// and a Retry-After hint.
func RateLimit(cfg RateLimitConfig, key KeyFunc, logger *slog.Logger) func(http.Handler) http.Handler {
	if cfg.RPS <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	store := newLimiterStore(cfg)
	retryAfter := strconv.Itoa(max(1, int(1/cfg.RPS)))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k == "" || store.limiter(k).Allow() {
				next.ServeHTTP(w, r)
				return
			}

			logger.WarnContext(r.Context(), "rate limit exceeded",
				slog.String("key", k),
				slog.String("path", r.URL.Path),
			)
			w.Header().Set("Retry-After", retryAfter)
			httputil.WriteErrorCode(w, r, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests")
		})
	}
}
