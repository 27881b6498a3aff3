package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/b3datalake/datalake-api/handlers"
	"github.com/b3datalake/datalake-api/internal/config"
	"github.com/b3datalake/datalake-api/internal/datalake/handler"
	"github.com/b3datalake/datalake-api/internal/datalake/service"
	"github.com/b3datalake/datalake-api/internal/tokens"
	"github.com/b3datalake/datalake-api/internal/users"
	"github.com/b3datalake/datalake-api/pkg/logger"
	"github.com/b3datalake/datalake-api/pkg/middleware"
)

type routerDeps struct {
	users  *users.Service
	issuer *tokens.Issuer
	ingest *service.IngestService
	query  *service.QueryService
	rdb    *redis.Client
	ready  gin.HandlerFunc
}

// newRouter mounts every route. The limiter on /auth sees no subject and keys
// on the client IP; the one on the protected group runs after
// AuthMiddleware and keys on the token subject.
func newRouter(cfg *config.Config, d routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(cors(), logger.GinMiddleware(), gin.Recovery())

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Welcome to the B3 datalake API"})
	})
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})
	if d.ready != nil {
		r.GET("/ready", d.ready)
	}
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.RegisterSwagger(r)

	handlers.NewAuthHandler(d.users, d.issuer).Register(r, rateLimiter(cfg.RateLimit, d.rdb)...)

	protected := append([]gin.HandlerFunc{middleware.AuthMiddleware(d.issuer)}, rateLimiter(cfg.RateLimit, d.rdb)...)
	authed := r.Group("/", protected...)
	handler.New(d.ingest, d.query, cfg.Upload.MaxBytes).RegisterRoutes(authed)
	return r
}

// rateLimiter returns a fresh limiter, or nothing when limiting is off.
// Redis is used only when configured and reachable.
func rateLimiter(cfg config.RateLimitConfig, rdb *redis.Client) []gin.HandlerFunc {
	if !cfg.Enabled {
		return nil
	}
	if cfg.UseRedis && rdb != nil {
		win := time.Duration(cfg.WindowSeconds) * time.Second
		return []gin.HandlerFunc{middleware.RedisRateLimitMiddleware(rdb, cfg.RPS, cfg.Burst, win)}
	}
	return []gin.HandlerFunc{middleware.RateLimitMiddleware(cfg.RPS, cfg.Burst)}
}

// cors is a permissive policy for browser clients of the API.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}
