package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// ErrRateLimited is passed to the deny func when a client runs out of requests.
var ErrRateLimited = rateLimitError{}

type rateLimitError struct{}

func (rateLimitError) Error() string { return "rate limit exceeded" }

// RateLimiter allows each client IP a fixed number of requests per window.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int
	window   time.Duration
	now      func() time.Time
}

type visitor struct {
	remaining   int
	windowStart time.Time
}

// NewRateLimiter allows rate requests per window per IP. Stale entries are
// swept until ctx is cancelled.
func NewRateLimiter(ctx context.Context, rate int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   window,
		now:      time.Now,
	}
	go rl.sweep(ctx)
	return rl
}

func (rl *RateLimiter) sweep(ctx context.Context) {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.mu.Lock()
			for ip, v := range rl.visitors {
				if rl.now().Sub(v.windowStart) > 2*rl.window {
					delete(rl.visitors, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// Allow consumes one request for ip and reports whether it was available.
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	v, ok := rl.visitors[ip]
	if !ok || now.Sub(v.windowStart) >= rl.window {
		rl.visitors[ip] = &visitor{remaining: rl.rate - 1, windowStart: now}
		return rl.rate > 0
	}
	if v.remaining <= 0 {
		return false
	}
	v.remaining--
	return true
}

// Middleware rejects over-limit requests through deny after setting
// Retry-After.
func (rl *RateLimiter) Middleware(deny func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.Allow(ClientIP(r)) {
				w.Header().Set("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
				deny(w, r, ErrRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
