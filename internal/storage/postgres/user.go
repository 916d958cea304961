package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/rryowa/gitagpt_auth/internal/models"
	"github.com/rryowa/gitagpt_auth/internal/storage"
)

const usersTable = "users"

var userColumns = []string{"id", "email", "password_hash", "created_at"}

type UserRepository struct {
	db storage.DBTX
}

func NewUserRepository(db storage.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) CreateUser(ctx context.Context, user models.User) (*models.User, error) {
	user.Email = strings.ToLower(user.Email)

	query, args, err := psq.Insert(usersTable).
		Columns(userColumns...).
		Values(user.ID, user.Email, user.PasswordHash, user.CreatedAt).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert user: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return nil, storage.ErrUserExists
		}
		return nil, unavailable("create user", err)
	}
	return &user, nil
}

func (r *UserRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return r.findOne(ctx, sq.Eq{"id": id})
}

func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, sq.Eq{"email": strings.ToLower(email)})
}

func (r *UserRepository) findOne(ctx context.Context, where sq.Eq) (*models.User, error) {
	query, args, err := psq.Select(userColumns...).From(usersTable).Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user: %w", err)
	}

	var user models.User
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrUserNotFound
		}
		return nil, unavailable("get user", err)
	}
	return &user, nil
}
