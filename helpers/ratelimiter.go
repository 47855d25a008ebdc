package helpers

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// RateLimiter is a per-client-IP token bucket.
type RateLimiter struct {
	rate         rate.Limit
	burst        int
	cleanupAfter time.Duration
	clients      sync.Map
	now          func() time.Time
}

type clientInfo struct {
	limiter  *rate.Limiter
	lastSeen int64
}

// NewRateLimiter allows max requests per window per client. Idle clients are
// forgotten until ctx is done.
func NewRateLimiter(ctx context.Context, max int, per time.Duration) *RateLimiter {
	rl := &RateLimiter{
		rate:         rate.Limit(float64(max) / per.Seconds()),
		burst:        max,
		cleanupAfter: 3 * time.Minute,
		now:          time.Now,
	}
	go rl.cleanupLoop(ctx)
	return rl
}

func (rl *RateLimiter) Middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		info := rl.getOrCreate(clientIP(c))
		atomic.StoreInt64(&info.lastSeen, rl.now().UnixNano())

		remaining := int(info.limiter.Tokens())
		if remaining < 0 {
			remaining = 0
		}
		c.Response().Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.burst))
		c.Response().Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !info.limiter.Allow() {
			c.Response().Header().Set("Retry-After", "1")
			return JSONError(c, http.StatusTooManyRequests, "rate limit exceeded")
		}
		return next(c)
	}
}

func (rl *RateLimiter) getOrCreate(key string) *clientInfo {
	if v, ok := rl.clients.Load(key); ok {
		return v.(*clientInfo)
	}
	info := &clientInfo{
		limiter:  rate.NewLimiter(rl.rate, rl.burst),
		lastSeen: rl.now().UnixNano(),
	}
	actual, _ := rl.clients.LoadOrStore(key, info)
	return actual.(*clientInfo)
}

func (rl *RateLimiter) cleanupLoop(ctx context.Context) {
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			rl.sweep()
		}
	}
}

func (rl *RateLimiter) sweep() {
	cutoff := rl.now().Add(-rl.cleanupAfter).UnixNano()
	rl.clients.Range(func(k, v any) bool {
		if atomic.LoadInt64(&v.(*clientInfo).lastSeen) < cutoff {
			rl.clients.Delete(k)
		}
		return true
	})
}

func clientIP(c echo.Context) string {
	if ip := c.RealIP(); ip != "" {
		if host, _, err := net.SplitHostPort(ip); err == nil {
			return host
		}
		return ip
	}
	if host, _, err := net.SplitHostPort(c.Request().RemoteAddr); err == nil {
		return host
	}
	return c.Request().RemoteAddr
}
