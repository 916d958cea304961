package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rryowa/gitagpt_auth/internal/models"
	"github.com/rryowa/gitagpt_auth/internal/storage"
)

func TestAuthenticate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.addUser(t, "user-1")

	session, err := env.sessions.Issue(ctx, user.ID)
	require.NoError(t, err)

	principal, err := env.authenticator.Authenticate(ctx, session.SessionToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, principal.ID)
	assert.Equal(t, user.Email, principal.Email)
}

func TestAuthenticate_Rejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.addUser(t, "user-1")

	session, err := env.sessions.Issue(ctx, user.ID)
	require.NoError(t, err)

	tests := []struct {
		name       string
		credential string
		wantErr    error
	}{
		{name: "missing", credential: "", wantErr: ErrMissingCredential},
		{name: "garbage", credential: "not-a-token", wantErr: ErrInvalidCredential},
		{name: "refresh token as credential", credential: session.RefreshToken, wantErr: ErrInvalidCredential},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.authenticator.Authenticate(ctx, tt.credential)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAuthenticate_SupersededSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.addUser(t, "user-1")

	first, err := env.sessions.Issue(ctx, user.ID)
	require.NoError(t, err)
	_, err = env.sessions.Issue(ctx, user.ID)
	require.NoError(t, err)

	// still a valid signature, but no longer backed by a record
	_, err = env.authenticator.Authenticate(ctx, first.SessionToken)
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestAuthenticate_AfterRefresh(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.addUser(t, "user-1")

	old, err := env.sessions.Issue(ctx, user.ID)
	require.NoError(t, err)
	next, err := env.sessions.Refresh(ctx, old.RefreshToken)
	require.NoError(t, err)

	_, err = env.authenticator.Authenticate(ctx, old.SessionToken)
	assert.ErrorIs(t, err, ErrInvalidCredential)

	_, err = env.authenticator.Authenticate(ctx, next.SessionToken)
	assert.NoError(t, err)
}

func TestAuthenticate_AfterLogout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.addUser(t, "user-1")

	session, err := env.sessions.Issue(ctx, user.ID)
	require.NoError(t, err)
	require.NoError(t, env.sessions.InvalidateAll(ctx, user.ID))

	_, err = env.authenticator.Authenticate(ctx, session.SessionToken)
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestAuthenticate_Expired(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.addUser(t, "user-1")

	session, err := env.sessions.Issue(ctx, user.ID)
	require.NoError(t, err)

	env.clock.Advance(testSessionTTL + time.Second)

	_, err = env.authenticator.Authenticate(ctx, session.SessionToken)
	assert.ErrorIs(t, err, ErrCredentialExpired)
}

func TestAuthenticate_ExpiredRecord(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.addUser(t, "user-1")

	sessionToken, _, err := env.codec.Issue(TokenKindSession, user.ID, testSessionTTL)
	require.NoError(t, err)
	require.NoError(t, env.store.CreateSession(ctx, models.Session{
		ID:               uuid.NewString(),
		SubjectID:        user.ID,
		SessionToken:     sessionToken,
		RefreshToken:     "rt-" + uuid.NewString(),
		SessionExpiresAt: env.clock.Now().Add(-time.Second),
		RefreshExpiresAt: env.clock.Now().Add(testRefreshTTL),
	}))

	_, err = env.authenticator.Authenticate(ctx, sessionToken)
	assert.ErrorIs(t, err, ErrCredentialExpired)
}

func TestAuthenticate_SubjectMismatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addUser(t, "user-1")
	env.addUser(t, "user-2")

	sessionToken, _, err := env.codec.Issue(TokenKindSession, "user-2", testSessionTTL)
	require.NoError(t, err)
	require.NoError(t, env.store.CreateSession(ctx, models.Session{
		ID:               uuid.NewString(),
		SubjectID:        "user-1",
		SessionToken:     sessionToken,
		RefreshToken:     "rt-" + uuid.NewString(),
		SessionExpiresAt: env.clock.Now().Add(testSessionTTL),
		RefreshExpiresAt: env.clock.Now().Add(testRefreshTTL),
	}))

	_, err = env.authenticator.Authenticate(ctx, sessionToken)
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestAuthenticate_UnknownUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	session, err := env.sessions.Issue(ctx, "ghost")
	require.NoError(t, err)

	_, err = env.authenticator.Authenticate(ctx, session.SessionToken)
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestAuthenticate_StorageUnavailable(t *testing.T) {
	env := newTestEnv(t)

	token, _, err := env.codec.Issue(TokenKindSession, "user-1", testSessionTTL)
	require.NoError(t, err)

	authenticator := NewAuthenticator(unavailableStore{}, env.store, env.codec)
	_, err = authenticator.Authenticate(context.Background(), token)
	assert.ErrorIs(t, err, storage.ErrStorageUnavailable)
	assert.NotErrorIs(t, err, ErrInvalidCredential)
}

func TestAuthenticate_ExpiryBoundary(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.addUser(t, "user-1")

	session, err := env.sessions.Issue(ctx, user.ID)
	require.NoError(t, err)

	env.clock.Advance(testSessionTTL - time.Millisecond)
	_, err = env.authenticator.Authenticate(ctx, session.SessionToken)
	assert.NoError(t, err, "1ms before expiry")

	env.clock.Advance(time.Millisecond)
	_, err = env.authenticator.Authenticate(ctx, session.SessionToken)
	assert.ErrorIs(t, err, ErrCredentialExpired, "at expiry")
}
