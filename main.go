package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/b3datalake/datalake-api/internal/config"
	"github.com/b3datalake/datalake-api/internal/database"
	"github.com/b3datalake/datalake-api/internal/datalake/repository"
	"github.com/b3datalake/datalake-api/internal/datalake/service"
	"github.com/b3datalake/datalake-api/internal/passwords"
	"github.com/b3datalake/datalake-api/internal/storage"
	"github.com/b3datalake/datalake-api/internal/tokens"
	"github.com/b3datalake/datalake-api/internal/users"
	"github.com/b3datalake/datalake-api/pkg/logger"
	"github.com/b3datalake/datalake-api/pkg/metrics"
)

var startTime = time.Now()

func main() {
	// LOG_LEVEL: debug|info|warn|error|fatal
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: env=%s redis=%v minio=%v", cfg.Server.Environment, cfg.Redis.Host != "", cfg.MinIO.Endpoint != "")

	issuer, err := tokens.NewIssuerFromConfig(cfg)
	if err != nil {
		logger.Fatalf("token issuer: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := database.ConnectWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, 5, time.Second, func(attempt int, err error) {
		logger.Warnf("attempt %d/5: failed to connect to MongoDB: %v", attempt, err)
	})
	if err != nil {
		logger.Fatalf("could not connect to MongoDB: %v", err)
	}
	cols := database.OpenCollections(client, cfg.MongoDB)
	initCtx, cancel := context.WithTimeout(ctx, cfg.MongoDB.Timeout)
	if err := database.Initialize(initCtx, cols); err != nil {
		cancel()
		logger.Fatalf("initialize collections: %v", err)
	}
	cancel()
	logger.Infof("MongoDB ready: %s.%s, %s.%s, %s.%s",
		cfg.MongoDB.HistoryDatabase, cfg.MongoDB.HistoryCollection,
		cfg.MongoDB.DatalakeDatabase, cfg.MongoDB.DatalakeCollection,
		cfg.MongoDB.AccountsDatabase, cfg.MongoDB.AccountsCollection)

	var rdb *redis.Client
	if addr := cfg.RedisAddr(); addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s): %v", addr, err)
			rdb = nil
		} else {
			logger.Infof("connected to Redis %s", addr)
		}
	}

	history := repository.NewMongoHistoryRepo(cols.History)
	records := repository.NewMongoRecordRepo(cols.Datalake)
	ingest := service.NewIngestService(history, records)
	if cfg.MinIO.Endpoint != "" {
		archive, err := storage.NewMinIOStorage(ctx, cfg.MinIO)
		if err != nil {
			logger.Fatalf("minio: %v", err)
		}
		ingest.WithArchiver(archive)
		logger.Infof("archiving raw uploads to bucket %s", cfg.MinIO.Bucket)
	}

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r := newRouter(cfg, routerDeps{
		users:  users.NewService(users.NewMongoUserRepository(cols.Accounts), passwords.NewHasher(cfg.JWT.BcryptCost)),
		issuer: issuer,
		ingest: ingest,
		query:  service.NewQueryService(history, records),
		rdb:    rdb,
		ready:  readiness(client, rdb, cfg),
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Infof("starting datalake API on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Infof("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server shutdown: %v", err)
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	if err := client.Disconnect(shutdownCtx); err != nil {
		logger.Errorf("mongo disconnect: %v", err)
	}
}

// readiness returns 200 only when MongoDB answers a ping, and Redis too when
// the rate limiter depends on it.
func readiness(client *mongo.Client, rdb *redis.Client, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		deps := map[string]bool{"mongodb": client.Ping(ctx, nil) == nil}
		ready := deps["mongodb"]
		if cfg.RateLimit.Enabled && cfg.RateLimit.UseRedis {
			deps["redis"] = rdb != nil && rdb.Ping(ctx).Err() == nil
			ready = ready && deps["redis"]
		}
		uptime := time.Since(startTime).String()
		if !ready {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "deps": deps, "uptime": uptime})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "deps": deps, "uptime": uptime})
	}
}
