package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/b3datalake/datalake-api/pkg/logger"
	"github.com/b3datalake/datalake-api/pkg/metrics"
)

// RedisRateLimitMiddleware is a fixed-window limiter shared by every API
// replica. The first request of a window creates a counter that expires
// with the window; up to floor(rps*window)+burst requests pass per window.
func RedisRateLimitMiddleware(client *redis.Client, rps float64, burst int, window time.Duration) gin.HandlerFunc {
	if client == nil {
		return RateLimitMiddleware(rps, burst)
	}
	windowSeconds := int(window.Seconds())
	if windowSeconds <= 0 {
		windowSeconds = 1
	}
	ttl := time.Duration(windowSeconds) * time.Second
	allowed := int64(rps*float64(windowSeconds)) + int64(burst)
	return func(c *gin.Context) {
		key := "rl:" + limitKey(c)
		ctx := c.Request.Context()

		cnt, err := client.Incr(ctx, key).Result()
		if err != nil {
			logger.Errorf("rate limit: redis incr: %v", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "rate limit check failed"})
			return
		}
		if cnt == 1 {
			if err := client.Expire(ctx, key, ttl).Err(); err != nil {
				logger.Warnf("rate limit: redis expire %s: %v", key, err)
			}
		}
		if cnt > allowed {
			c.Header("Retry-After", fmt.Sprintf("%d", windowSeconds))
			metrics.RateLimitRejected.WithLabelValues("redis").Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		metrics.RateLimitAllowed.WithLabelValues("redis").Inc()
		c.Next()
	}
}
