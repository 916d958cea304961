package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"

	"github.com/rryowa/gitagpt_auth/internal/models"
	"github.com/rryowa/gitagpt_auth/internal/storage"
)

const (
	usersCollection    = "users"
	sessionsCollection = "sessions"
)

type Storage struct {
	db           *mongo.Database
	users        *mongo.Collection
	sessions     *mongo.Collection
	transactions bool
	log          *zap.SugaredLogger
}

// NewStorage needs a replica set when transactions is true.
func NewStorage(db *mongo.Database, transactions bool, log *zap.SugaredLogger) *Storage {
	return &Storage{
		db:           db,
		users:        db.Collection(usersCollection),
		sessions:     db.Collection(sessionsCollection),
		transactions: transactions,
		log:          log,
	}
}

// EnsureIndexes creates the uniqueness constraints the session invariants rely on.
func (s *Storage) EnsureIndexes(ctx context.Context) error {
	unique := func(field string) mongo.IndexModel {
		return mongo.IndexModel{
			Keys:    bson.D{{Key: field, Value: 1}},
			Options: options.Index().SetUnique(true),
		}
	}

	if _, err := s.sessions.Indexes().CreateMany(ctx, []mongo.IndexModel{
		unique("subject_id"),
		unique("session_token"),
		unique("refresh_token"),
	}); err != nil {
		return unavailable("create session indexes", err)
	}

	if _, err := s.users.Indexes().CreateOne(ctx, unique("email")); err != nil {
		return unavailable("create user indexes", err)
	}

	s.log.Info("MongoDB indexes ensured")
	return nil
}

func (s *Storage) CreateSession(ctx context.Context, session models.Session) error {
	if _, err := s.sessions.InsertOne(ctx, session); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("insert session: %w", storage.ErrSessionConflict)
		}
		return unavailable("insert session", err)
	}
	return nil
}

func (s *Storage) FindBySessionToken(ctx context.Context, token string) (*models.Session, error) {
	return s.findSession(ctx, bson.M{"session_token": token})
}

func (s *Storage) FindByRefreshToken(ctx context.Context, token string) (*models.Session, error) {
	return s.findSession(ctx, bson.M{"refresh_token": token})
}

func (s *Storage) DeleteAllForSubject(ctx context.Context, subjectID string) error {
	if _, err := s.sessions.DeleteMany(ctx, bson.M{"subject_id": subjectID}); err != nil {
		return unavailable("delete subject sessions", err)
	}
	return nil
}

// ReplaceSubjectSession claims the rotated record first: DeleteOne is atomic
// per document, so only one concurrent rotation can observe DeletedCount == 1.
// Without transactions an interrupted call can leave the subject logged out,
// never with an orphan session.
func (s *Storage) ReplaceSubjectSession(ctx context.Context, session models.Session, rotatedFrom string) error {
	replace := func(ctx context.Context) error {
		if rotatedFrom != "" {
			res, err := s.sessions.DeleteOne(ctx, bson.M{
				"refresh_token": rotatedFrom,
				"subject_id":    session.SubjectID,
			})
			if err != nil {
				return unavailable("claim session", err)
			}
			if res.DeletedCount == 0 {
				return storage.ErrSessionNotFound
			}
		}

		if err := s.DeleteAllForSubject(ctx, session.SubjectID); err != nil {
			return err
		}
		return s.CreateSession(ctx, session)
	}

	if !s.transactions {
		return replace(ctx)
	}

	sess, err := s.db.Client().StartSession()
	if err != nil {
		return unavailable("start session", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(ctx context.Context) (interface{}, error) {
		return nil, replace(ctx)
	})
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) ||
			errors.Is(err, storage.ErrSessionConflict) ||
			errors.Is(err, storage.ErrStorageUnavailable) {
			return err
		}
		return unavailable("replace session", err)
	}
	return nil
}

func (s *Storage) CreateUser(ctx context.Context, user models.User) (*models.User, error) {
	user.Email = strings.ToLower(user.Email)
	if _, err := s.users.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, storage.ErrUserExists
		}
		return nil, unavailable("create user", err)
	}
	return &user, nil
}

func (s *Storage) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"_id": id})
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"email": strings.ToLower(email)})
}

func (s *Storage) findSession(ctx context.Context, filter bson.M) (*models.Session, error) {
	var session models.Session
	if err := s.sessions.FindOne(ctx, filter).Decode(&session); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, storage.ErrSessionNotFound
		}
		return nil, unavailable("get session", err)
	}
	return &session, nil
}

func (s *Storage) findUser(ctx context.Context, filter bson.M) (*models.User, error) {
	var user models.User
	if err := s.users.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, storage.ErrUserNotFound
		}
		return nil, unavailable("get user", err)
	}
	return &user, nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, storage.ErrStorageUnavailable, err)
}
