package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/joseph-ayodele/card-scanner/internal/common"
	"github.com/joseph-ayodele/card-scanner/internal/entity"
	"github.com/joseph-ayodele/card-scanner/internal/repository"
)

var (
	// ErrInvalidCredentials is returned for an unknown user or a wrong password.
	ErrInvalidCredentials = fmt.Errorf("invalid credentials: %w", common.ErrUnauthorized)
	// ErrInvalidSession is returned for unknown or expired session tokens.
	ErrInvalidSession = fmt.Errorf("invalid session: %w", common.ErrUnauthorized)
)

const (
	minUsername = 3
	maxUsername = 64
	minPassword = 6
	// bcrypt ignores input past 72 bytes
	maxPassword = 72

	DefaultSessionTTL = 24 * time.Hour
)

// Service handles registration, login and session lookup.
type Service struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	ttl      time.Duration
	cost     int
	now      func() time.Time
	logger   *slog.Logger
}

type Option func(*Service)

// WithSessionTTL sets how long issued sessions stay valid.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithBcryptCost overrides bcrypt.DefaultCost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new auth service.
func NewService(users repository.UserRepository, sessions repository.SessionRepository, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		users:    users,
		sessions: sessions,
		ttl:      DefaultSessionTTL,
		cost:     bcrypt.DefaultCost,
		now:      time.Now,
		logger:   logger,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Register creates a user with a bcrypt password hash.
func (s *Service) Register(ctx context.Context, username, password string) (*entity.User, error) {
	v := common.NewValidator()
	v.Field("username", username, common.Required, common.NoSurroundingSpace, common.MinLength(minUsername), common.MaxLength(maxUsername))
	v.Field("password", password, common.Required, common.MinLength(minPassword), maxBytes(maxPassword))
	if err := v.Error(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u, err := s.users.Create(ctx, username, string(hash))
	if err != nil {
		if errors.Is(err, repository.ErrUsernameTaken) {
			s.logger.Info("registration rejected", "username", username, "reason", "username taken")
		}
		return nil, err
	}
	s.logger.Info("user registered", "user_id", u.ID, "username", u.Username)
	return u, nil
}

// Login checks the password and issues a new session.
func (s *Service) Login(ctx context.Context, username, password string) (*entity.Session, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.logger.Info("login failed", "username", username)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.logger.Info("login failed", "username", username)
		return nil, ErrInvalidCredentials
	}

	now := s.now().UTC()
	sess := &entity.Session{
		Token:     uuid.NewString(),
		UserID:    u.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	s.logger.Info("user logged in", "user_id", u.ID, "expires_at", sess.ExpiresAt)
	return sess, nil
}

// Resolve returns the user owning token. Expired sessions are removed.
func (s *Service) Resolve(ctx context.Context, token string) (*entity.User, error) {
	if token == "" {
		return nil, ErrInvalidSession
	}
	sess, err := s.sessions.Get(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, err
	}
	if sess.Expired(s.now()) {
		if err := s.sessions.Delete(ctx, token); err != nil {
			s.logger.Warn("failed to drop expired session", "user_id", sess.UserID, "error", err)
		}
		return nil, ErrInvalidSession
	}
	u, err := s.users.GetByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, err
	}
	return u, nil
}

// Logout deletes the session. Unknown tokens are ignored.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessions.Delete(ctx, token)
}

// PurgeExpired removes every expired session.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	return s.sessions.DeleteExpired(ctx, s.now())
}

func maxBytes(n int) common.ValidationRule {
	return func(fieldName, value string) *common.ValidationError {
		if len(value) > n {
			return &common.ValidationError{Field: fieldName, Message: fmt.Sprintf("must be at most %d bytes", n)}
		}
		return nil
	}
}
