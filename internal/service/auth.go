package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/rryowa/gitagpt_auth/internal/models"
	"github.com/rryowa/gitagpt_auth/internal/storage"
)

const (
	bcryptCost       = 10
	maxPasswordBytes = 72

	// federated users never log in with a password; they get an unguessable one
	federatedPasswordBytes = 32
)

// AuthService implements the credential flows. Every successful login ends
// in SessionManager.Issue, so a new login always supersedes the previous one.
type AuthService struct {
	users    storage.UserRepository
	sessions *SessionManager
	verifier IdentityVerifier
	log      *zap.SugaredLogger
}

// NewAuthService accepts a nil verifier; federated login then answers ErrFederatedLoginDisabled.
func NewAuthService(users storage.UserRepository, sessions *SessionManager, verifier IdentityVerifier, log *zap.SugaredLogger) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		verifier: verifier,
		log:      log,
	}
}

func (s *AuthService) Signup(ctx context.Context, email, password string) (*models.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" || len(password) > maxPasswordBytes {
		return nil, ErrInvalidSignup
	}

	user, err := s.createUser(ctx, email, password)
	if err != nil {
		return nil, err
	}

	s.log.Infow("User signed up", "userID", user.ID)
	return user, nil
}

// Login checks the password. Unknown email and wrong password are the same error.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, *models.Session, error) {
	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, nil, ErrInvalidLogin
		}
		return nil, nil, fmt.Errorf("find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, ErrInvalidLogin
	}

	session, err := s.sessions.Issue(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	s.log.Infow("User logged in", "userID", user.ID, "method", "password")
	return user, session, nil
}

// GoogleLogin verifies a Google ID token and logs the matching user in,
// creating the user on first sight.
func (s *AuthService) GoogleLogin(ctx context.Context, credential string) (*models.User, *models.Session, error) {
	if s.verifier == nil {
		return nil, nil, ErrFederatedLoginDisabled
	}

	identity, err := s.verifier.VerifyIDToken(ctx, credential)
	if err != nil {
		s.log.Infow("Federated identity rejected", "error", err)
		return nil, nil, ErrFederatedIdentity
	}
	email := normalizeEmail(identity.Email)
	if email == "" || !identity.EmailVerified {
		return nil, nil, ErrFederatedIdentity
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, storage.ErrUserNotFound) {
		user, err = s.createFederatedUser(ctx, email)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("find or create federated user: %w", err)
	}

	session, err := s.sessions.Issue(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	s.log.Infow("User logged in", "userID", user.ID, "method", "google")
	return user, session, nil
}

func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*models.Session, error) {
	return s.sessions.Refresh(ctx, refreshToken)
}

func (s *AuthService) Logout(ctx context.Context, user *models.User) error {
	if err := s.sessions.InvalidateAll(ctx, user.ID); err != nil {
		return err
	}
	s.log.Infow("User logged out", "userID", user.ID)
	return nil
}

// RevokeSubject is the admin path for forcing a logout.
func (s *AuthService) RevokeSubject(ctx context.Context, subjectID string) error {
	if err := s.sessions.InvalidateAll(ctx, subjectID); err != nil {
		return err
	}
	s.log.Warnw("Sessions revoked by admin", "subjectID", subjectID)
	return nil
}

func (s *AuthService) SessionTTL() time.Duration {
	return s.sessions.SessionTTL()
}

func (s *AuthService) createFederatedUser(ctx context.Context, email string) (*models.User, error) {
	raw := make([]byte, federatedPasswordBytes)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("failed to read random bytes: %w", err)
	}
	user, err := s.createUser(ctx, email, base64.RawURLEncoding.EncodeToString(raw))
	if errors.Is(err, ErrUserExists) {
		// lost a race with a concurrent first login
		return s.users.GetUserByEmail(ctx, email)
	}
	return user, err
}

func (s *AuthService) createUser(ctx context.Context, email, password string) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.CreateUser(ctx, models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
