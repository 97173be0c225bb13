package auth

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/joseph-ayodele/card-scanner/internal/common"
	"github.com/joseph-ayodele/card-scanner/internal/repository"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestService(t *testing.T) (*Service, *clock) {
	t.Helper()
	ctx := context.Background()
	db, err := repository.Open(ctx, repository.Config{DSN: filepath.Join(t.TempDir(), "auth.db")}, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(db.Close)
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	c := &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	svc := NewService(
		repository.NewUserRepository(db, nil),
		repository.NewSessionRepository(db, nil),
		nil,
		WithBcryptCost(bcrypt.MinCost),
		WithSessionTTL(time.Hour),
		WithClock(c.now),
	)
	return svc, c
}

func TestRegister_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	tests := []struct {
		name     string
		username string
		password string
		wantErr  error
	}{
		{"ok", "alice", "secret1", nil},
		{"empty username", "", "secret1", common.ErrValidation},
		{"short username", "al", "secret1", common.ErrValidation},
		{"long username", strings.Repeat("a", 65), "secret1", common.ErrValidation},
		{"padded username", " bob ", "secret1", common.ErrValidation},
		{"short password", "carol", "12345", common.ErrValidation},
		{"empty password", "dave", "", common.ErrValidation},
		{"duplicate", "alice", "another", repository.ErrUsernameTaken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := svc.Register(context.Background(), tt.username, tt.password)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Register() error = %v", err)
				}
				if u.PasswordHash == tt.password || u.PasswordHash == "" {
					t.Errorf("password stored unhashed: %q", u.PasswordHash)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Register() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoginResolveLogout(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	u, err := svc.Register(ctx, "alice", "secret1")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if _, err := svc.Login(ctx, "alice", "wrong!"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login(wrong password) error = %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.Login(ctx, "nobody", "secret1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login(unknown user) error = %v, want ErrInvalidCredentials", err)
	}
	if common.HTTPStatus(ErrInvalidCredentials) != 401 {
		t.Errorf("HTTPStatus(ErrInvalidCredentials) = %d, want 401", common.HTTPStatus(ErrInvalidCredentials))
	}

	sess, err := svc.Login(ctx, "alice", "secret1")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if sess.Token == "" || sess.UserID != u.ID {
		t.Fatalf("Login() session = %+v", sess)
	}

	got, err := svc.Resolve(ctx, sess.Token)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.ID != u.ID {
		t.Errorf("Resolve() user = %v, want %v", got.ID, u.ID)
	}

	if err := svc.Logout(ctx, sess.Token); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if _, err := svc.Resolve(ctx, sess.Token); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("Resolve() after logout error = %v, want ErrInvalidSession", err)
	}
	if err := svc.Logout(ctx, "unknown"); err != nil {
		t.Errorf("Logout(unknown) error = %v", err)
	}
	if _, err := svc.Resolve(ctx, ""); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("Resolve(\"\") error = %v, want ErrInvalidSession", err)
	}
}

func TestResolve_ExpiredSession(t *testing.T) {
	svc, c := newTestService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, "alice", "secret1"); err != nil {
		t.Fatal(err)
	}
	sess, err := svc.Login(ctx, "alice", "secret1")
	if err != nil {
		t.Fatal(err)
	}

	c.t = c.t.Add(2 * time.Hour)
	if _, err := svc.Resolve(ctx, sess.Token); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("Resolve() error = %v, want ErrInvalidSession", err)
	}
	if n, err := svc.PurgeExpired(ctx); err != nil || n != 0 {
		t.Errorf("PurgeExpired() = %d, %v; expired session should already be gone", n, err)
	}
}
