package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrMissingSetting is returned by LoadConfig when a required key is absent.
var ErrMissingSetting = errors.New("required setting missing")

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	MinIO     MinIOConfig
	JWT       JWTConfig
	Upload    UploadConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// MongoDBConfig names the three stores kept apart the same way the
// upstream deployment lays them out: upload history, ingested rows and
// accounts each in their own database.
type MongoDBConfig struct {
	URI                string
	Timeout            time.Duration
	HistoryDatabase    string
	HistoryCollection  string
	DatalakeDatabase   string
	DatalakeCollection string
	AccountsDatabase   string
	AccountsCollection string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	Enabled       bool
	RPS           float64
	Burst         int
	UseRedis      bool
	WindowSeconds int
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

type JWTConfig struct {
	Secret         string
	Algorithm      string
	AccessTokenTTL time.Duration
	BcryptCost     int
}

type UploadConfig struct {
	MaxBytes int64
}

// LoadConfig loads configuration from environment variables and .env file.
// SECRET_KEY, ALGORITHM, ACCESS_TOKEN_EXPIRE_MINUTES and MONGODB_URI are
// required; the process must not start without them.
func LoadConfig() (*Config, error) {
	v := newViper()

	cfg := &Config{
		Server: ServerConfig{
			Port:         v.GetString("SERVER_PORT"),
			Host:         v.GetString("SERVER_HOST"),
			Environment:  v.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		MongoDB: mongoConfig(v),
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       0,
		},
		RateLimit: RateLimitConfig{
			Enabled:       v.GetBool("RATE_LIMIT_ENABLED"),
			RPS:           v.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         v.GetInt("RATE_LIMIT_BURST"),
			UseRedis:      v.GetBool("RATE_LIMIT_USE_REDIS"),
			WindowSeconds: v.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
		MinIO: MinIOConfig{
			Endpoint:  v.GetString("MINIO_ENDPOINT"),
			AccessKey: v.GetString("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			UseSSL:    v.GetBool("MINIO_USE_SSL"),
			Bucket:    v.GetString("MINIO_BUCKET"),
		},
		JWT: JWTConfig{
			Secret:     os.Getenv("SECRET_KEY"),
			Algorithm:  strings.ToUpper(strings.TrimSpace(v.GetString("ALGORITHM"))),
			BcryptCost: v.GetInt("BCRYPT_COST"),
		},
		Upload: UploadConfig{
			MaxBytes: v.GetInt64("UPLOAD_MAX_BYTES"),
		},
	}

	var missing []string
	if cfg.MongoDB.URI == "" {
		missing = append(missing, "MONGODB_URI")
	}
	if cfg.JWT.Secret == "" {
		missing = append(missing, "SECRET_KEY")
	}
	if cfg.JWT.Algorithm == "" {
		missing = append(missing, "ALGORITHM")
	}
	if !v.IsSet("ACCESS_TOKEN_EXPIRE_MINUTES") || v.GetString("ACCESS_TOKEN_EXPIRE_MINUTES") == "" {
		missing = append(missing, "ACCESS_TOKEN_EXPIRE_MINUTES")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingSetting, strings.Join(missing, ", "))
	}

	minutes := v.GetInt("ACCESS_TOKEN_EXPIRE_MINUTES")
	if minutes <= 0 {
		return nil, fmt.Errorf("ACCESS_TOKEN_EXPIRE_MINUTES must be a positive integer, got %q", v.GetString("ACCESS_TOKEN_EXPIRE_MINUTES"))
	}
	cfg.JWT.AccessTokenTTL = time.Duration(minutes) * time.Minute

	switch cfg.JWT.Algorithm {
	case "HS256", "HS384", "HS512":
	default:
		return nil, fmt.Errorf("ALGORITHM %q is not supported (use HS256, HS384 or HS512)", cfg.JWT.Algorithm)
	}

	return cfg, nil
}

// RedisAddr returns host:port, or "" when Redis is not configured.
func (c *Config) RedisAddr() string {
	if c.Redis.Host == "" {
		return ""
	}
	return c.Redis.Host + ":" + c.Redis.Port
}

// LoadMongoConfig reads only the store settings. Used by tools that touch
// the collections without serving the API.
func LoadMongoConfig() MongoDBConfig {
	return mongoConfig(newViper())
}

func newViper() *viper.Viper {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	_ = godotenv.Load(envFile)

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", "8000")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_ENVIRONMENT", "development")
	v.SetDefault("MONGODB_TIMEOUT", 10)
	v.SetDefault("MONGODB_HISTORY_DATABASE", "historico")
	v.SetDefault("MONGODB_HISTORY_COLLECTION", "uploads")
	v.SetDefault("MONGODB_DATALAKE_DATABASE", "datalake")
	v.SetDefault("MONGODB_DATALAKE_COLLECTION", "dados")
	v.SetDefault("MONGODB_ACCOUNTS_DATABASE", "accounts")
	v.SetDefault("MONGODB_ACCOUNTS_COLLECTION", "users")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("RATE_LIMIT_ENABLED", false)
	v.SetDefault("RATE_LIMIT_RPS", 10.0)
	v.SetDefault("RATE_LIMIT_BURST", 20)
	v.SetDefault("RATE_LIMIT_USE_REDIS", false)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 1)
	v.SetDefault("MINIO_BUCKET", "datalake-raw")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("UPLOAD_MAX_BYTES", 32<<20)
	return v
}

func mongoConfig(v *viper.Viper) MongoDBConfig {
	return MongoDBConfig{
		URI:                v.GetString("MONGODB_URI"),
		Timeout:            time.Duration(v.GetInt("MONGODB_TIMEOUT")) * time.Second,
		HistoryDatabase:    v.GetString("MONGODB_HISTORY_DATABASE"),
		HistoryCollection:  v.GetString("MONGODB_HISTORY_COLLECTION"),
		DatalakeDatabase:   v.GetString("MONGODB_DATALAKE_DATABASE"),
		DatalakeCollection: v.GetString("MONGODB_DATALAKE_COLLECTION"),
		AccountsDatabase:   v.GetString("MONGODB_ACCOUNTS_DATABASE"),
		AccountsCollection: v.GetString("MONGODB_ACCOUNTS_COLLECTION"),
	}
}
