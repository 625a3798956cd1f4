package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Throttle applies a per-user token bucket. Buckets live in a mutex-
// guarded map and are evicted once idle longer than ttl, so the map
// cannot grow without bound under churn.
type Throttle struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time

	limit rate.Limit
	burst int
	ttl   time.Duration
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

func NewThrottle(limit rate.Limit, burst int, ttl time.Duration) *Throttle {
	return &Throttle{
		buckets:   make(map[string]*bucket),
		lastSweep: time.Now(),
		limit:     limit,
		burst:     burst,
		ttl:       ttl,
	}
}

// Middleware keys the bucket on the X-User-ID header the bot frontend
// sets, falling back to the remote address.
func (t *Throttle) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-User-ID")
		if key == "" {
			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				host = r.RemoteAddr
			}
			key = host
		}
		if !t.Allow(key) {
			w.Header().Set("Retry-After", "1")
			http.Error(w, `{"error":"too many requests"}`, http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Allow reports whether one event for key fits the bucket right now.
func (t *Throttle) Allow(key string) bool {
	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()

	if now.Sub(t.lastSweep) > t.ttl {
		for k, b := range t.buckets {
			if now.Sub(b.seen) > t.ttl {
				delete(t.buckets, k)
			}
		}
		t.lastSweep = now
	}

	b, ok := t.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(t.limit, t.burst)}
		t.buckets[key] = b
	}
	b.seen = now
	return b.lim.Allow()
}

// Len returns the live bucket count.
func (t *Throttle) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.buckets)
}
