package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/b3datalake/datalake-api/pkg/metrics"
)

// limiterStore holds one token bucket per key. Buckets idle for longer than
// idle are dropped on a later get; a dropped bucket was full again anyway.
type limiterStore struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	rps       float64
	burst     int
	idle      time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func newLimiterStore(rps float64, burst int) *limiterStore {
	idle := time.Minute
	if rps > 0 {
		if refill := time.Duration(float64(burst) / rps * float64(time.Second)); refill > idle {
			idle = refill
		}
	}
	return &limiterStore{
		limiters: map[string]*limiterEntry{},
		rps:      rps,
		burst:    burst,
		idle:     idle,
		now:      time.Now,
	}
}

func (s *limiterStore) get(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if now.Sub(s.lastSweep) > s.idle {
		s.sweep(now)
	}
	e, ok := s.limiters[key]
	if !ok {
		e = &limiterEntry{lim: rate.NewLimiter(rate.Limit(s.rps), s.burst)}
		s.limiters[key] = e
	}
	e.lastSeen = now
	return e.lim
}

func (s *limiterStore) sweep(now time.Time) {
	for k, e := range s.limiters {
		if now.Sub(e.lastSeen) > s.idle {
			delete(s.limiters, k)
		}
	}
	s.lastSweep = now
}

func (s *limiterStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limiters)
}

// limitKey prefers the authenticated subject so users behind one NAT do not
// share a bucket; anonymous requests (register, token) fall back to the IP.
func limitKey(c *gin.Context) string {
	if sub := c.GetString("sub"); sub != "" {
		return "sub:" + sub
	}
	ip := c.ClientIP()
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}

// RateLimitMiddleware enforces an in-process token bucket per key.
// rps = allowed events per second, burst = maximum tokens in bucket.
func RateLimitMiddleware(rps float64, burst int) gin.HandlerFunc {
	return newLimiterStore(rps, burst).middleware()
}

func (s *limiterStore) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.get(limitKey(c)).Allow() {
			c.Header("Retry-After", "1")
			metrics.RateLimitRejected.WithLabelValues("memory").Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		metrics.RateLimitAllowed.WithLabelValues("memory").Inc()
		c.Next()
	}
}
