package middleware

import (
	"sync"
	"time"

	"creatorhub/pkg/config"
	apperrors "creatorhub/pkg/errors"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const visitorIdleTTL = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// visitorLimiters holds one token bucket per client IP. Buckets idle for
// longer than idleTTL are dropped on the next sweep.
type visitorLimiters struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	rate      rate.Limit
	burst     int
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func newVisitorLimiters(r rate.Limit, burst int, idleTTL time.Duration) *visitorLimiters {
	return &visitorLimiters{
		visitors:  make(map[string]*visitor),
		rate:      r,
		burst:     burst,
		idleTTL:   idleTTL,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

func (v *visitorLimiters) allow(key string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	now := v.now()
	if now.Sub(v.lastSweep) > v.idleTTL {
		for k, vis := range v.visitors {
			if now.Sub(vis.lastSeen) > v.idleTTL {
				delete(v.visitors, k)
			}
		}
		v.lastSweep = now
	}

	vis, ok := v.visitors[key]
	if !ok {
		vis = &visitor{limiter: rate.NewLimiter(v.rate, v.burst)}
		v.visitors[key] = vis
	}
	vis.lastSeen = now
	return vis.limiter.AllowN(now, 1)
}

func (v *visitorLimiters) size() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.visitors)
}

// NewHTTPRateLimitMiddleware applies per-IP token buckets and an optional
// cap on concurrent requests. Rejections go through the error middleware.
// The IP is gin's ClientIP, so forwarding headers count only from the
// router's trusted proxies.
func NewHTTPRateLimitMiddleware(cfg *config.Config) gin.HandlerFunc {
	if !cfg.RateLimiting.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	limiters := newVisitorLimiters(rate.Limit(cfg.RateLimiting.HTTP.RequestsPerSecond), cfg.RateLimiting.HTTP.Burst, visitorIdleTTL)

	var inflight chan struct{}
	if cfg.RateLimiting.HTTP.MaxConcurrent > 0 {
		inflight = make(chan struct{}, cfg.RateLimiting.HTTP.MaxConcurrent)
	}

	return func(c *gin.Context) {
		if !limiters.allow(c.ClientIP()) {
			c.Header("Retry-After", "1")
			_ = c.Error(apperrors.NewRateLimitError())
			c.Abort()
			return
		}

		if inflight != nil {
			select {
			case inflight <- struct{}{}:
				defer func() { <-inflight }()
			default:
				_ = c.Error(apperrors.NewServiceUnavailableError("too many concurrent requests"))
				c.Abort()
				return
			}
		}
		c.Next()
	}
}
