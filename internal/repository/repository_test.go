package repository

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/card-scanner/internal/common"
	"github.com/joseph-ayodele/card-scanner/internal/entity"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, Config{DSN: filepath.Join(t.TempDir(), "cards.db"), DialTimeout: 5 * time.Second}, slog.Default())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(db.Close)
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return db
}

func TestSQLiteDSN(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"cards.db", "file:cards.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"},
		{"sqlite:///tmp/c.db", "file:/tmp/c.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"},
		{":memory:", "file::memory:?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"},
		{"file:x.db?cache=shared", "file:x.db?cache=shared&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"},
		{"file:x.db?_pragma=foreign_keys(1)", "file:x.db?_pragma=foreign_keys(1)&_time_format=sqlite"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := sqliteDSN(tt.in); got != tt.want {
				t.Errorf("sqliteDSN(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestOpen_HealthCheckAndMigrateIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	if err := db.HealthCheck(ctx, time.Second); err != nil {
		t.Fatalf("HealthCheck() error = %v", err)
	}
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
	if db.Dialect() != "sqlite3" {
		t.Errorf("Dialect() = %q", db.Dialect())
	}
}

func TestUserRepository(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	users := NewUserRepository(db, nil)

	u, err := users.Create(ctx, "alice", "hash")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := users.Create(ctx, "alice", "other"); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("duplicate Create() error = %v, want ErrUsernameTaken", err)
	}
	if !errors.Is(ErrUsernameTaken, common.ErrConflict) {
		t.Error("ErrUsernameTaken should wrap common.ErrConflict")
	}

	got, err := users.GetByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("GetByUsername() error = %v", err)
	}
	if got.ID != u.ID || got.PasswordHash != "hash" {
		t.Errorf("GetByUsername() = %+v, want %+v", got, u)
	}
	if byID, err := users.GetByID(ctx, u.ID); err != nil || byID.Username != "alice" {
		t.Errorf("GetByID() = %+v, %v", byID, err)
	}
	if _, err := users.GetByUsername(ctx, "bob"); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("GetByUsername(bob) error = %v, want ErrNotFound", err)
	}
	if n, err := users.Count(ctx); err != nil || n != 1 {
		t.Errorf("Count() = %d, %v", n, err)
	}
}

func TestCardRepository_ListByUser(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	users := NewUserRepository(db, nil)
	cards := NewCardRepository(db, nil)

	alice, _ := users.Create(ctx, "alice", "h")
	bob, _ := users.Create(ctx, "bob", "h")

	base := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	seed := []entity.Card{
		{UserID: alice.ID, Name: "John Doe", Company: "Acme Corp", Email: "john@acme.com", UploadedAt: base},
		{UserID: alice.ID, Name: "Jane Roe", Company: "Globex", Email: "jane@globex.io", UploadedAt: base.Add(24 * time.Hour)},
		{UserID: alice.ID, Name: "Max", Company: "Initech", Email: "max@initech.com", Phone: "555 123 4567", UploadedAt: base.Add(48 * time.Hour)},
		{UserID: bob.ID, Name: "John Bob", Company: "Acme Corp", UploadedAt: base},
	}
	for i := range seed {
		seed[i].ImagePath = "img.png"
		if _, err := cards.Create(ctx, &seed[i]); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	day := func(d int) *time.Time { v := base.AddDate(0, 0, d); return &v }
	tests := []struct {
		name   string
		filter CardFilter
		want   []string
	}{
		{"all newest first", CardFilter{}, []string{"Max", "Jane Roe", "John Doe"}},
		{"search name", CardFilter{Search: "john"}, []string{"John Doe"}},
		{"search company", CardFilter{Search: "GLOBEX"}, []string{"Jane Roe"}},
		{"search email", CardFilter{Search: "initech.com"}, []string{"Max"}},
		{"phone is not searched", CardFilter{Search: "555"}, nil},
		{"like wildcards are literal", CardFilter{Search: "%"}, nil},
		{"from", CardFilter{From: day(1)}, []string{"Max", "Jane Roe"}},
		{"to inclusive", CardFilter{To: day(1)}, []string{"Jane Roe", "John Doe"}},
		{"window", CardFilter{From: day(1), To: day(1)}, []string{"Jane Roe"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cards.ListByUser(ctx, alice.ID, tt.filter)
			if err != nil {
				t.Fatalf("ListByUser() error = %v", err)
			}
			var names []string
			for _, c := range got {
				if c.UserID != alice.ID {
					t.Errorf("card %s belongs to another user", c.ID)
				}
				names = append(names, c.Name)
			}
			if len(names) != len(tt.want) {
				t.Fatalf("names = %v, want %v", names, tt.want)
			}
			for i := range names {
				if names[i] != tt.want[i] {
					t.Errorf("names = %v, want %v", names, tt.want)
					break
				}
			}
		})
	}

	first, _ := cards.ListByUser(ctx, alice.ID, CardFilter{Search: "jane"})
	if len(first) == 1 && !first[0].UploadedAt.Equal(base.Add(24*time.Hour)) {
		t.Errorf("UploadedAt = %v, want %v", first[0].UploadedAt, base.Add(24*time.Hour))
	}
	if n, _ := cards.CountByUser(ctx, bob.ID); n != 1 {
		t.Errorf("CountByUser(bob) = %d, want 1", n)
	}
	if n, _ := cards.Count(ctx); n != 4 {
		t.Errorf("Count() = %d, want 4", n)
	}
}

func TestCardRepository_UnknownUserRejected(t *testing.T) {
	db := openTestDB(t)
	cards := NewCardRepository(db, nil)
	_, err := cards.Create(context.Background(), &entity.Card{UserID: uuid.New(), ImagePath: "x.png"})
	if err == nil {
		t.Fatal("expected foreign key violation")
	}
}

func TestSessionRepository(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	u, _ := NewUserRepository(db, nil).Create(ctx, "alice", "h")
	sessions := NewSessionRepository(db, nil)

	now := time.Now().UTC().Truncate(time.Second)
	live := &entity.Session{Token: "live", UserID: u.ID, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	dead := &entity.Session{Token: "dead", UserID: u.ID, CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)}
	for _, s := range []*entity.Session{live, dead} {
		if err := sessions.Create(ctx, s); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	got, err := sessions.Get(ctx, "live")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.UserID != u.ID || !got.ExpiresAt.Equal(live.ExpiresAt) {
		t.Errorf("Get() = %+v, want %+v", got, live)
	}

	n, err := sessions.DeleteExpired(ctx, now)
	if err != nil || n != 1 {
		t.Errorf("DeleteExpired() = %d, %v; want 1", n, err)
	}
	if _, err := sessions.Get(ctx, "dead"); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("Get(dead) error = %v, want ErrNotFound", err)
	}

	if err := sessions.Delete(ctx, "live"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := sessions.Get(ctx, "live"); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("Get(live) after delete error = %v, want ErrNotFound", err)
	}
	if err := sessions.Delete(ctx, "missing"); err != nil {
		t.Errorf("Delete(missing) error = %v", err)
	}
}
