package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewTokenConfig(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("SESSION_TOKEN_TTL", "")
	t.Setenv("REFRESH_TOKEN_TTL", "48h")

	cfg := NewTokenConfig()
	assert.Equal(t, []byte("secret"), cfg.JwtSecretKey)
	assert.Equal(t, defaultSessionTTL, cfg.SessionTTL)
	assert.Equal(t, 48*time.Hour, cfg.RefreshTTL)
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Setenv("TEST_DURATION", "not-a-duration")
	assert.Equal(t, time.Minute, parseDurationOrDefault("TEST_DURATION", time.Minute))

	t.Setenv("TEST_DURATION", "-5s")
	assert.Equal(t, time.Minute, parseDurationOrDefault("TEST_DURATION", time.Minute))

	t.Setenv("TEST_DURATION", "90s")
	assert.Equal(t, 90*time.Second, parseDurationOrDefault("TEST_DURATION", time.Minute))
}

func TestNewStorageConfig(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "")
	t.Setenv("SESSION_STORE", "")

	cfg := NewStorageConfig()
	assert.Equal(t, BackendPostgres, cfg.Backend)
	assert.Equal(t, BackendPostgres, cfg.SessionStore)

	t.Setenv("STORAGE_BACKEND", "Mongo")
	t.Setenv("SESSION_STORE", "redis")

	cfg = NewStorageConfig()
	assert.Equal(t, BackendMongo, cfg.Backend)
	assert.Equal(t, BackendRedis, cfg.SessionStore)
}

func TestNewRateLimiterConfig(t *testing.T) {
	t.Setenv("RATE_LIMIT_LIMIT", "0")
	t.Setenv("RATE_LIMIT_INTERVAL", "")
	t.Setenv("RATE_LIMIT_BLOCK_TIME", "")

	cfg := NewRateLimiterConfig()
	assert.Equal(t, defaultRateLimit, cfg.Limit)
	assert.Equal(t, defaultRateInterval, cfg.Interval)
	assert.Equal(t, defaultRateBlockTime, cfg.BlockTime)
}

func TestOptionalConfigs(t *testing.T) {
	t.Setenv("GOOGLE_CLIENT_ID", "")
	assert.Nil(t, NewGoogleConfig())

	t.Setenv("GOOGLE_CLIENT_ID", "client")
	t.Setenv("GOOGLE_ISSUER", "")
	cfg := NewGoogleConfig()
	if assert.NotNil(t, cfg) {
		assert.Equal(t, defaultGoogleIssuer, cfg.Issuer)
	}

	t.Setenv("REDIS_ADDR", "")
	assert.Nil(t, NewRedisConfig())
}
