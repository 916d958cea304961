package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rryowa/gitagpt_auth/internal/models"
	"github.com/rryowa/gitagpt_auth/internal/storage"
)

const (
	sessionTokenPrefix = "session:st:"
	refreshTokenPrefix = "session:rt:"
	subjectPrefix      = "session:subject:"

	// WATCH aborts are optimistic-lock conflicts, not I/O faults. The
	// transaction is re-evaluated against the new state a bounded number of
	// times, after which ErrSessionConflict is returned.
	maxWatchRetries = 3
)

// SessionStorage keeps each session under three keys (session token, refresh
// token, subject) that all expire at refresh_expires_at.
type SessionStorage struct {
	client *redis.Client
	now    func() time.Time
}

func NewSessionStorage(client *redis.Client) *SessionStorage {
	return &SessionStorage{client: client, now: time.Now}
}

// CreateSession inserts a record only when neither of its tokens nor its
// subject is already present, matching the unique indexes of the SQL store.
func (s *SessionStorage) CreateSession(ctx context.Context, session models.Session) error {
	keys := []string{
		subjectPrefix + session.SubjectID,
		sessionTokenPrefix + session.SessionToken,
		refreshTokenPrefix + session.RefreshToken,
	}

	return s.watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, keys...).Result()
		if err != nil {
			return unavailable("check session keys", err)
		}
		if n > 0 {
			return fmt.Errorf("create session: %w", storage.ErrSessionConflict)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			return s.queueSet(ctx, pipe, session)
		})
		return err
	}, keys...)
}

func (s *SessionStorage) FindBySessionToken(ctx context.Context, token string) (*models.Session, error) {
	return getSession(ctx, s.client, sessionTokenPrefix+token)
}

func (s *SessionStorage) FindByRefreshToken(ctx context.Context, token string) (*models.Session, error) {
	return getSession(ctx, s.client, refreshTokenPrefix+token)
}

func (s *SessionStorage) DeleteAllForSubject(ctx context.Context, subjectID string) error {
	subjectKey := subjectPrefix + subjectID

	return s.watch(ctx, func(tx *redis.Tx) error {
		current, err := getSession(ctx, tx, subjectKey)
		if err != nil && !errors.Is(err, storage.ErrSessionNotFound) {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, subjectKey)
			if current != nil {
				queueDel(ctx, pipe, current)
			}
			return nil
		})
		return err
	}, subjectKey)
}

func (s *SessionStorage) ReplaceSubjectSession(ctx context.Context, session models.Session, rotatedFrom string) error {
	subjectKey := subjectPrefix + session.SubjectID
	keys := []string{subjectKey}
	if rotatedFrom != "" {
		keys = append(keys, refreshTokenPrefix+rotatedFrom)
	}

	return s.watch(ctx, func(tx *redis.Tx) error {
		var old *models.Session
		if rotatedFrom != "" {
			found, err := getSession(ctx, tx, refreshTokenPrefix+rotatedFrom)
			if err != nil {
				return err
			}
			if found.SubjectID != session.SubjectID {
				return storage.ErrSessionNotFound
			}
			old = found
		}

		current, err := getSession(ctx, tx, subjectKey)
		if err != nil && !errors.Is(err, storage.ErrSessionNotFound) {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if old != nil {
				queueDel(ctx, pipe, old)
			}
			if current != nil {
				queueDel(ctx, pipe, current)
			}
			return s.queueSet(ctx, pipe, session)
		})
		return err
	}, keys...)
}

func (s *SessionStorage) watch(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	for i := 0; i < maxWatchRetries; i++ {
		err := s.client.Watch(ctx, fn, keys...)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, storage.ErrSessionNotFound),
			errors.Is(err, storage.ErrSessionConflict),
			errors.Is(err, storage.ErrStorageUnavailable):
			return err
		default:
			return unavailable("session transaction", err)
		}
	}
	// Contention, not an outage: the caller sees a conflict.
	return fmt.Errorf("session transaction: %w: %w", storage.ErrSessionConflict, redis.TxFailedErr)
}

func (s *SessionStorage) queueSet(ctx context.Context, pipe redis.Pipeliner, session models.Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ttl := session.RefreshExpiresAt.Sub(s.now())
	if ttl < time.Millisecond {
		ttl = time.Millisecond
	}

	pipe.Set(ctx, sessionTokenPrefix+session.SessionToken, payload, ttl)
	pipe.Set(ctx, refreshTokenPrefix+session.RefreshToken, payload, ttl)
	pipe.Set(ctx, subjectPrefix+session.SubjectID, payload, ttl)
	return nil
}

func queueDel(ctx context.Context, pipe redis.Pipeliner, session *models.Session) {
	pipe.Del(ctx, sessionTokenPrefix+session.SessionToken, refreshTokenPrefix+session.RefreshToken)
}

// getter is satisfied by *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func getSession(ctx context.Context, c getter, key string) (*models.Session, error) {
	raw, err := c.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, storage.ErrSessionNotFound
	} else if err != nil {
		return nil, unavailable("get session", err)
	}

	var session models.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", key, err)
	}
	return &session, nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, storage.ErrStorageUnavailable, err)
}
