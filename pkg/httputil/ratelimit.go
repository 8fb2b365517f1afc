package httputil

import (
	"net"
	"net/http"
	"time"

	"github.com/farmaflow/farmaflow-backend/pkg/errors"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

const visitorIdleTTL = 5 * time.Minute

// RateLimiter hands out one token bucket per client IP.
// Idle visitors expire from the cache after five minutes.
type RateLimiter struct {
	rps      rate.Limit
	burst    int
	visitors *cache.Cache
}

// NewRateLimiter creates a limiter allowing rps requests per second with the given burst
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		visitors: cache.New(visitorIdleTTL, time.Minute),
	}
}

// Allow reports whether the client at ip may make another request now
func (rl *RateLimiter) Allow(ip string) bool {
	return rl.visitor(ip).Allow()
}

func (rl *RateLimiter) visitor(ip string) *rate.Limiter {
	if v, ok := rl.visitors.Get(ip); ok {
		rl.visitors.SetDefault(ip, v)
		return v.(*rate.Limiter)
	}

	limiter := rate.NewLimiter(rl.rps, rl.burst)
	if err := rl.visitors.Add(ip, limiter, cache.DefaultExpiration); err != nil {
		// lost the race, use the limiter stored by the other request
		if v, ok := rl.visitors.Get(ip); ok {
			return v.(*rate.Limiter)
		}
	}
	return limiter
}

// Middleware rejects requests over the limit with 429
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(clientIP(r)) {
			w.Header().Set("Retry-After", "1")
			Error(w, errors.New("RATE_LIMITED", "too many requests", http.StatusTooManyRequests))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
