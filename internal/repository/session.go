package repository

import (
	"context"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/card-scanner/internal/entity"
)

type SessionRepository interface {
	Create(ctx context.Context, s *entity.Session) error
	Get(ctx context.Context, token string) (*entity.Session, error)
	Delete(ctx context.Context, token string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type sessionRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewSessionRepository(db *DB, logger *slog.Logger) SessionRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &sessionRepository{db: db, logger: logger}
}

var sessionColumns = []string{"token", "user_id", "created_at", "expires_at"}

func (r *sessionRepository) Create(ctx context.Context, s *entity.Session) error {
	q, args := r.db.builder().Insert(SessionsTable.Name).
		Columns(sessionColumns...).
		Values(s.Token, s.UserID, s.CreatedAt.UTC(), s.ExpiresAt.UTC()).
		Query()
	if _, err := r.db.exec(ctx, q, args); err != nil {
		r.logger.Error("failed to create session", "user_id", s.UserID, "error", err)
		return err
	}
	return nil
}

func (r *sessionRepository) Get(ctx context.Context, token string) (*entity.Session, error) {
	b := r.db.builder()
	q, args := b.Select(sessionColumns...).
		From(b.Table(SessionsTable.Name)).
		Where(entsql.EQ("token", token)).
		Limit(1).
		Query()

	var found *entity.Session
	err := r.db.query(ctx, q, args, func(rows *entsql.Rows) error {
		var s entity.Session
		if err := rows.Scan(&s.Token, &s.UserID, &s.CreatedAt, &s.ExpiresAt); err != nil {
			return err
		}
		found = &s
		return nil
	})
	if err != nil {
		r.logger.Error("failed to get session", "error", err)
		return nil, err
	}
	if found == nil {
		return nil, notFound("session", "token")
	}
	return found, nil
}

func (r *sessionRepository) Delete(ctx context.Context, token string) error {
	q, args := r.db.builder().Delete(SessionsTable.Name).
		Where(entsql.EQ("token", token)).
		Query()
	if _, err := r.db.exec(ctx, q, args); err != nil {
		r.logger.Error("failed to delete session", "error", err)
		return err
	}
	return nil
}

func (r *sessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	q, args := r.db.builder().Delete(SessionsTable.Name).
		Where(entsql.LTE("expires_at", now.UTC())).
		Query()
	n, err := r.db.exec(ctx, q, args)
	if err != nil {
		r.logger.Error("failed to delete expired sessions", "error", err)
		return 0, err
	}
	if n > 0 {
		r.logger.Info("expired sessions removed", "count", n)
	}
	return n, nil
}
