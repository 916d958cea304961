package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rryowa/gitagpt_auth/internal/models"
	"github.com/rryowa/gitagpt_auth/internal/storage"
)

// Authenticator resolves a session token to its principal. It never writes.
//
// Both a live session record and a valid signature are required: logout or
// rotation revokes access immediately even though the token itself would
// verify until its encoded expiry.
type Authenticator struct {
	sessions storage.SessionStore
	users    storage.UserRepository
	codec    TokenCodec
	now      func() time.Time
}

func NewAuthenticator(sessions storage.SessionStore, users storage.UserRepository, codec TokenCodec) *Authenticator {
	return &Authenticator{
		sessions: sessions,
		users:    users,
		codec:    codec,
		now:      time.Now,
	}
}

// WithClock replaces time.Now for record expiry checks.
func (a *Authenticator) WithClock(now func() time.Time) *Authenticator {
	a.now = now
	return a
}

// Authenticate does not tell apart a garbage token from one whose session was
// deleted; both are ErrInvalidCredential.
func (a *Authenticator) Authenticate(ctx context.Context, credential string) (*models.User, error) {
	if credential == "" {
		return nil, ErrMissingCredential
	}

	session, err := a.sessions.FindBySessionToken(ctx, credential)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return nil, ErrInvalidCredential
		}
		return nil, fmt.Errorf("find session: %w", err)
	}

	subjectID, err := a.codec.Verify(TokenKindSession, credential)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return nil, ErrCredentialExpired
		}
		return nil, ErrInvalidCredential
	}
	if subjectID != session.SubjectID {
		return nil, ErrInvalidCredential
	}

	if !session.SessionValidAt(a.now()) {
		return nil, ErrCredentialExpired
	}

	user, err := a.users.GetUserByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, ErrInvalidCredential
		}
		return nil, fmt.Errorf("find principal: %w", err)
	}
	return user, nil
}
