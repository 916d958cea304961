package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/rryowa/gitagpt_auth/internal/models"
	"github.com/rryowa/gitagpt_auth/internal/storage"
)

var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const sessionsTable = "sessions"

var sessionColumns = []string{
	"id",
	"subject_id",
	"session_token",
	"refresh_token",
	"session_expires_at",
	"refresh_expires_at",
	"created_at",
}

type SessionRepository struct {
	db storage.DBTX
}

func NewSessionRepository(db storage.DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) CreateSession(ctx context.Context, session models.Session) error {
	query, args, err := psq.Insert(sessionsTable).
		Columns(sessionColumns...).
		Values(
			session.ID,
			session.SubjectID,
			session.SessionToken,
			session.RefreshToken,
			session.SessionExpiresAt,
			session.RefreshExpiresAt,
			session.CreatedAt,
		).ToSql()
	if err != nil {
		return fmt.Errorf("build insert session: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert session: %w", storage.ErrSessionConflict)
		}
		return unavailable("insert session", err)
	}
	return nil
}

func (r *SessionRepository) FindBySessionToken(ctx context.Context, token string) (*models.Session, error) {
	return r.findOne(ctx, sq.Eq{"session_token": token})
}

func (r *SessionRepository) FindByRefreshToken(ctx context.Context, token string) (*models.Session, error) {
	return r.findOne(ctx, sq.Eq{"refresh_token": token})
}

func (r *SessionRepository) DeleteAllForSubject(ctx context.Context, subjectID string) error {
	query, args, err := psq.Delete(sessionsTable).Where(sq.Eq{"subject_id": subjectID}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete subject sessions: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return unavailable("delete subject sessions", err)
	}
	return nil
}

// claimByRefreshToken deletes the session holding refreshToken for subjectID.
// Under concurrent rotation only one caller sees a deleted row.
func (r *SessionRepository) claimByRefreshToken(ctx context.Context, subjectID, refreshToken string) error {
	query, args, err := psq.Delete(sessionsTable).
		Where(sq.Eq{"refresh_token": refreshToken, "subject_id": subjectID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build claim session: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return unavailable("claim session", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("claim session rows", err)
	}
	if n == 0 {
		return storage.ErrSessionNotFound
	}
	return nil
}

func (r *SessionRepository) findOne(ctx context.Context, where sq.Eq) (*models.Session, error) {
	query, args, err := psq.Select(sessionColumns...).From(sessionsTable).Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select session: %w", err)
	}

	var session models.Session
	err = r.db.QueryRowContext(ctx, query, args...).Scan(
		&session.ID,
		&session.SubjectID,
		&session.SessionToken,
		&session.RefreshToken,
		&session.SessionExpiresAt,
		&session.RefreshExpiresAt,
		&session.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrSessionNotFound
		}
		return nil, unavailable("get session", err)
	}
	return &session, nil
}
