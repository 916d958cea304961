package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/rryowa/gitagpt_auth/internal/models"
	"github.com/rryowa/gitagpt_auth/internal/storage"
	"github.com/rryowa/gitagpt_auth/internal/storage/memory"
	"github.com/rryowa/gitagpt_auth/internal/util"
)

const (
	testSecret     = "test-secret-key-for-hs512" //nolint:gosec // Test constant, not a real credential.
	testSessionTTL = 3 * time.Hour
	testRefreshTTL = 24 * time.Hour
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.SecurityEvent
}

func (n *recordingNotifier) NotifySecurityEvent(_ context.Context, event models.SecurityEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) Events() []models.SecurityEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.SecurityEvent(nil), n.events...)
}

type testEnv struct {
	clock         *testClock
	store         *memory.InMemoryStorage
	codec         *TokenService
	notifier      *recordingNotifier
	sessions      *SessionManager
	authenticator *Authenticator
	log           *zap.SugaredLogger
}

func testTokenConfig() *util.TokenConfig {
	return &util.TokenConfig{
		JwtSecretKey: []byte(testSecret),
		SessionTTL:   testSessionTTL,
		RefreshTTL:   testRefreshTTL,
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	log := zap.NewNop().Sugar()
	clock := newTestClock()
	store := memory.NewStorage(log)
	codec := NewTokenService(testTokenConfig(), WithClock(clock.Now))
	notifier := &recordingNotifier{}

	return &testEnv{
		clock:         clock,
		store:         store,
		codec:         codec,
		notifier:      notifier,
		sessions:      NewSessionManager(store, codec, testTokenConfig(), notifier, log, WithSessionClock(clock.Now)),
		authenticator: NewAuthenticator(store, store, codec).WithClock(clock.Now),
		log:           log,
	}
}

func (e *testEnv) addUser(t *testing.T, id string) *models.User {
	t.Helper()

	user, err := e.store.CreateUser(context.Background(), models.User{
		ID:        id,
		Email:     id + "@example.com",
		CreatedAt: e.clock.Now(),
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

// unavailableStore fails every call the way a backend outage does.
type unavailableStore struct{}

func (unavailableStore) CreateSession(context.Context, models.Session) error {
	return storage.ErrStorageUnavailable
}

func (unavailableStore) FindBySessionToken(context.Context, string) (*models.Session, error) {
	return nil, storage.ErrStorageUnavailable
}

func (unavailableStore) FindByRefreshToken(context.Context, string) (*models.Session, error) {
	return nil, storage.ErrStorageUnavailable
}

func (unavailableStore) DeleteAllForSubject(context.Context, string) error {
	return storage.ErrStorageUnavailable
}

func (unavailableStore) ReplaceSubjectSession(context.Context, models.Session, string) error {
	return storage.ErrStorageUnavailable
}
