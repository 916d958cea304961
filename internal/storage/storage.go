package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rryowa/gitagpt_auth/internal/models"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrUserExists      = errors.New("user already exists")

	// ErrSessionConflict is returned when an insert would duplicate a token or a subject.
	ErrSessionConflict = errors.New("session conflict")

	// ErrStorageUnavailable wraps every I/O fault of a backend.
	// It must never be read as "unauthenticated".
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type Storage interface {
	SessionStore
	UserRepository
}

type UserRepository interface {
	CreateUser(ctx context.Context, user models.User) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// SessionStore is a persistence primitive: it does not enforce the
// single-session policy by itself, except inside ReplaceSubjectSession.
type SessionStore interface {
	CreateSession(ctx context.Context, session models.Session) error
	FindBySessionToken(ctx context.Context, token string) (*models.Session, error)
	FindByRefreshToken(ctx context.Context, token string) (*models.Session, error)
	DeleteAllForSubject(ctx context.Context, subjectID string) error

	// ReplaceSubjectSession atomically deletes every session of session.SubjectID
	// and inserts session. When rotatedFrom is not empty, the record holding it as
	// refresh token for the same subject must still exist at that moment,
	// otherwise ErrSessionNotFound is returned and nothing changes.
	ReplaceSubjectSession(ctx context.Context, session models.Session, rotatedFrom string) error
}
