package repository

import (
	"context"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/card-scanner/internal/entity"
)

type UserRepository interface {
	Create(ctx context.Context, username, passwordHash string) (*entity.User, error)
	GetByUsername(ctx context.Context, username string) (*entity.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.User, error)
	Count(ctx context.Context) (int, error)
}

type userRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewUserRepository(db *DB, logger *slog.Logger) UserRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &userRepository{db: db, logger: logger}
}

var userColumns = []string{"id", "username", "password_hash", "created_at"}

func (r *userRepository) Create(ctx context.Context, username, passwordHash string) (*entity.User, error) {
	u := &entity.User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	q, args := r.db.builder().Insert(UsersTable.Name).
		Columns(userColumns...).
		Values(u.ID, u.Username, u.PasswordHash, u.CreatedAt).
		Query()
	if _, err := r.db.exec(ctx, q, args); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUsernameTaken
		}
		r.logger.Error("failed to create user", "username", username, "error", err)
		return nil, err
	}
	return u, nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*entity.User, error) {
	return r.getOne(ctx, entsql.EQ("username", username), username)
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	return r.getOne(ctx, entsql.EQ("id", id), id)
}

func (r *userRepository) Count(ctx context.Context) (int, error) {
	return r.db.count(ctx, UsersTable.Name, nil)
}

func (r *userRepository) getOne(ctx context.Context, where *entsql.Predicate, key any) (*entity.User, error) {
	b := r.db.builder()
	q, args := b.Select(userColumns...).
		From(b.Table(UsersTable.Name)).
		Where(where).
		Limit(1).
		Query()

	var found *entity.User
	err := r.db.query(ctx, q, args, func(rows *entsql.Rows) error {
		var u entity.User
		if err := rows.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt); err != nil {
			return err
		}
		found = &u
		return nil
	})
	if err != nil {
		r.logger.Error("failed to get user", "key", key, "error", err)
		return nil, err
	}
	if found == nil {
		return nil, notFound("user", key)
	}
	return found, nil
}
