package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	CurrentAPIKeyRedisKey      = "admin:apikey:current"
	OldAPIKeyRedisKey          = "admin:apikey:old"
	APIKeyRotationTimeRedisKey = "admin:apikey:rotation_time"

	apiKeyGracePeriod = 24 * time.Hour
)

var ErrAPIKeyNotConfigured = errors.New("admin API key is not configured")

// APIKeyService guards the admin routes. Keys are stored hashed in Redis; after
// a rotation the previous key keeps working for apiKeyGracePeriod.
type APIKeyService struct {
	rdb *redis.Client
	log *zap.SugaredLogger
	now func() time.Time
}

func NewAPIKeyService(rdb *redis.Client, log *zap.SugaredLogger) *APIKeyService {
	return &APIKeyService{rdb: rdb, log: log, now: time.Now}
}

// SyncAPIKey makes newKey the current key, demoting the previous one.
func (s *APIKeyService) SyncAPIKey(ctx context.Context, newKey string) error {
	if newKey == "" {
		return ErrAPIKeyNotConfigured
	}

	hashedNewKey := hashAPIKey(newKey)

	currentHashedKey, err := s.rdb.Get(ctx, CurrentAPIKeyRedisKey).Result()
	if err != nil {
		if err == redis.Nil {
			s.log.Warn("Current API key not found during sync; initializing.")
			return s.setInitialAPIKey(ctx, hashedNewKey)
		}
		return fmt.Errorf("failed to get current API key from Redis: %w", err)
	}

	if constantTimeEqual(hashedNewKey, currentHashedKey) {
		s.log.Info("Skipping key sync: new key is the same as the current one.")
		return nil
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, OldAPIKeyRedisKey, currentHashedKey, apiKeyGracePeriod)
	pipe.Set(ctx, CurrentAPIKeyRedisKey, hashedNewKey, 0)
	pipe.Set(ctx, APIKeyRotationTimeRedisKey, s.now().UTC().Format(time.RFC3339), 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to sync API key in Redis: %w", err)
	}

	s.log.Info("API Key rotated successfully.")
	return nil
}

func (s *APIKeyService) IsValidAPIKey(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, nil
	}

	hashedKey := hashAPIKey(key)

	currentHashedKey, err := s.rdb.Get(ctx, CurrentAPIKeyRedisKey).Result()
	if err != nil && err != redis.Nil {
		return false, fmt.Errorf("failed to get current API key from Redis: %w", err)
	}
	if constantTimeEqual(hashedKey, currentHashedKey) {
		return true, nil
	}

	oldHashedKey, err := s.rdb.Get(ctx, OldAPIKeyRedisKey).Result()
	if err != nil && err != redis.Nil {
		return false, fmt.Errorf("failed to get old API key from Redis: %w", err)
	}
	if oldHashedKey == "" || !constantTimeEqual(hashedKey, oldHashedKey) {
		return false, nil
	}

	rotationTimeStr, err := s.rdb.Get(ctx, APIKeyRotationTimeRedisKey).Result()
	if err != nil {
		return false, fmt.Errorf("failed to get key rotation time from Redis: %w", err)
	}
	rotationTime, err := time.Parse(time.RFC3339, rotationTimeStr)
	if err != nil {
		return false, fmt.Errorf("failed to parse key rotation time: %w", err)
	}

	return s.now().Sub(rotationTime) <= apiKeyGracePeriod, nil
}

func (s *APIKeyService) setInitialAPIKey(ctx context.Context, hashedKey string) error {
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, CurrentAPIKeyRedisKey, hashedKey, 0)
	pipe.Set(ctx, APIKeyRotationTimeRedisKey, s.now().UTC().Format(time.RFC3339), 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("init API key: %w", err)
	}
	s.log.Info("API Key initialized in Redis.")
	return nil
}

func hashAPIKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

func constantTimeEqual(a, b string) bool {
	return len(a) == len(b) && subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
