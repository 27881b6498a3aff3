package config

import (
	"errors"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("ENV_FILE", "does-not-exist.env")
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017")
	t.Setenv("SECRET_KEY", "testsecret123456789012345678901234")
	t.Setenv("ALGORITHM", "HS256")
	t.Setenv("ACCESS_TOKEN_EXPIRE_MINUTES", "30")
}

func TestLoadConfig(t *testing.T) {
	setRequired(t)
	t.Setenv("REDIS_HOST", "localhost")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.MongoDB.URI == "" || cfg.Redis.Host == "" {
		t.Fatalf("unexpected empty config values: %+v", cfg)
	}
	if cfg.JWT.AccessTokenTTL != 30*time.Minute {
		t.Fatalf("AccessTokenTTL = %v, want 30m", cfg.JWT.AccessTokenTTL)
	}
	if cfg.MongoDB.HistoryDatabase != "historico" || cfg.MongoDB.DatalakeCollection != "dados" {
		t.Fatalf("unexpected store defaults: %+v", cfg.MongoDB)
	}
	if cfg.RedisAddr() != "localhost:6379" {
		t.Fatalf("RedisAddr() = %q", cfg.RedisAddr())
	}
}

func TestLoadConfig_MissingTokenSettings(t *testing.T) {
	for _, key := range []string{"SECRET_KEY", "ALGORITHM", "ACCESS_TOKEN_EXPIRE_MINUTES", "MONGODB_URI"} {
		t.Run(key, func(t *testing.T) {
			setRequired(t)
			t.Setenv(key, "")

			_, err := LoadConfig()
			if !errors.Is(err, ErrMissingSetting) {
				t.Fatalf("expected ErrMissingSetting for %s, got %v", key, err)
			}
		})
	}
}

func TestLoadConfig_RejectsAsymmetricAlgorithm(t *testing.T) {
	setRequired(t)
	t.Setenv("ALGORITHM", "RS256")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for RS256 with a shared secret")
	}
}

func TestLoadConfig_RejectsNonPositiveExpiry(t *testing.T) {
	setRequired(t)
	t.Setenv("ACCESS_TOKEN_EXPIRE_MINUTES", "0")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for zero expiry")
	}
}

func TestLoadMongoConfig_NoSecretsNeeded(t *testing.T) {
	t.Setenv("ENV_FILE", "does-not-exist.env")
	t.Setenv("SECRET_KEY", "")
	t.Setenv("MONGODB_URI", "mongodb://db:27017")
	t.Setenv("MONGODB_DATALAKE_COLLECTION", "instruments")

	m := LoadMongoConfig()
	if m.URI != "mongodb://db:27017" || m.DatalakeCollection != "instruments" || m.AccountsDatabase != "accounts" {
		t.Fatalf("unexpected mongo config: %+v", m)
	}
	if m.Timeout != 10*time.Second {
		t.Fatalf("Timeout = %v", m.Timeout)
	}
}
