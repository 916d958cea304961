package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/rryowa/gitagpt_auth/internal/models"
	"github.com/rryowa/gitagpt_auth/internal/storage"
)

const uniqueViolation = "23505"

type Storage struct {
	db *sql.DB
	*UserRepository
	*SessionRepository
}

func NewStorage(db *sql.DB) *Storage {
	return &Storage{
		db:                db,
		UserRepository:    NewUserRepository(db),
		SessionRepository: NewSessionRepository(db),
	}
}

// ReplaceSubjectSession runs claim + delete + insert in one transaction.
// The advisory lock serializes replacements of the same subject, so two
// concurrent logins cannot both delete nothing and then both insert.
func (s *Storage) ReplaceSubjectSession(ctx context.Context, session models.Session, rotatedFrom string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, session.SubjectID); err != nil {
		return unavailable("lock subject", err)
	}

	sessionRepoTx := NewSessionRepository(tx)

	if rotatedFrom != "" {
		if err := sessionRepoTx.claimByRefreshToken(ctx, session.SubjectID, rotatedFrom); err != nil {
			return err
		}
	}

	if err := sessionRepoTx.DeleteAllForSubject(ctx, session.SubjectID); err != nil {
		return err
	}

	if err := sessionRepoTx.CreateSession(ctx, session); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return unavailable("commit transaction", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, storage.ErrStorageUnavailable, err)
}
