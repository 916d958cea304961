package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rryowa/gitagpt_auth/internal/models"
	"github.com/rryowa/gitagpt_auth/internal/storage"
	"github.com/rryowa/gitagpt_auth/internal/util"
)

const securityEventRefreshMismatch = "refresh_token_mismatch"

// SessionManager is the only writer of session records. A subject has at most
// one session; issuing a new one replaces the old pair in a single store call.
type SessionManager struct {
	store      storage.SessionStore
	codec      TokenCodec
	notifier   SecurityNotifier
	sessionTTL time.Duration
	refreshTTL time.Duration
	log        *zap.SugaredLogger
	now        func() time.Time
}

type SessionOption func(*SessionManager)

func WithSessionClock(now func() time.Time) SessionOption {
	return func(m *SessionManager) { m.now = now }
}

func NewSessionManager(
	store storage.SessionStore,
	codec TokenCodec,
	cfg *util.TokenConfig,
	notifier SecurityNotifier,
	log *zap.SugaredLogger,
	opts ...SessionOption,
) *SessionManager {
	m := &SessionManager{
		store:      store,
		codec:      codec,
		notifier:   notifier,
		sessionTTL: cfg.SessionTTL,
		refreshTTL: cfg.RefreshTTL,
		log:        log,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Issue replaces whatever session subjectID had with a fresh one.
func (m *SessionManager) Issue(ctx context.Context, subjectID string) (*models.Session, error) {
	session, err := m.mint(subjectID)
	if err != nil {
		return nil, err
	}

	if err := m.store.ReplaceSubjectSession(ctx, *session, ""); err != nil {
		return nil, fmt.Errorf("issue session: %w", err)
	}

	m.log.Debugw("Session issued", "subjectID", subjectID, "sessionID", session.ID)
	return session, nil
}

// Refresh exchanges refreshToken for a new pair. The old pair is gone once
// this returns, whatever the outcome. Of several concurrent calls with the
// same token at most one succeeds; the others get ErrRefreshTokenNotFound.
func (m *SessionManager) Refresh(ctx context.Context, refreshToken string) (*models.Session, error) {
	claimedID, err := m.codec.Verify(TokenKindRefresh, refreshToken)
	tokenExpired := false
	if err != nil {
		if !errors.Is(err, ErrTokenExpired) {
			return nil, ErrInvalidRefreshToken
		}
		tokenExpired = true
	}

	current, err := m.store.FindByRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return nil, ErrRefreshTokenNotFound
		}
		return nil, fmt.Errorf("find session by refresh token: %w", err)
	}

	if current.SubjectID != claimedID {
		m.log.Warnw("Refresh token subject mismatch",
			"claimedSubjectID", claimedID,
			"storedSubjectID", current.SubjectID,
			"sessionID", current.ID,
		)
		m.notifier.NotifySecurityEvent(ctx, models.SecurityEvent{
			Kind:       securityEventRefreshMismatch,
			SubjectID:  current.SubjectID,
			ClaimedID:  claimedID,
			OccurredAt: m.now().UTC().Format(time.RFC3339),
		})
		m.revoke(ctx, current.SubjectID)
		return nil, ErrRefreshTokenMismatch
	}

	if tokenExpired || !current.RefreshValidAt(m.now()) {
		m.revoke(ctx, current.SubjectID)
		return nil, ErrRefreshTokenExpired
	}

	next, err := m.mint(current.SubjectID)
	if err != nil {
		return nil, err
	}

	if err := m.store.ReplaceSubjectSession(ctx, *next, refreshToken); err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return nil, ErrRefreshTokenNotFound
		}
		return nil, fmt.Errorf("rotate session: %w", err)
	}

	m.log.Debugw("Session rotated", "subjectID", next.SubjectID, "fromSessionID", current.ID, "sessionID", next.ID)
	return next, nil
}

// InvalidateAll logs subjectID out everywhere.
func (m *SessionManager) InvalidateAll(ctx context.Context, subjectID string) error {
	if err := m.store.DeleteAllForSubject(ctx, subjectID); err != nil {
		return fmt.Errorf("invalidate sessions: %w", err)
	}
	m.log.Debugw("Sessions invalidated", "subjectID", subjectID)
	return nil
}

func (m *SessionManager) SessionTTL() time.Duration {
	return m.sessionTTL
}

func (m *SessionManager) mint(subjectID string) (*models.Session, error) {
	sessionToken, sessionExp, err := m.codec.Issue(TokenKindSession, subjectID, m.sessionTTL)
	if err != nil {
		return nil, fmt.Errorf("issue session token: %w", err)
	}
	refreshToken, refreshExp, err := m.codec.Issue(TokenKindRefresh, subjectID, m.refreshTTL)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	return &models.Session{
		ID:               uuid.NewString(),
		SubjectID:        subjectID,
		SessionToken:     sessionToken,
		RefreshToken:     refreshToken,
		SessionExpiresAt: sessionExp,
		RefreshExpiresAt: refreshExp,
		CreatedAt:        m.now().UTC(),
	}, nil
}

// revoke is used on refresh failures that prove the pair is dead or tampered with.
func (m *SessionManager) revoke(ctx context.Context, subjectID string) {
	if err := m.store.DeleteAllForSubject(ctx, subjectID); err != nil {
		m.log.Errorw("Failed to revoke sessions", "subjectID", subjectID, "error", err)
	}
}
