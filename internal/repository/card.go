package repository

import (
	"context"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/card-scanner/internal/entity"
)

// CardFilter narrows ListByUser. Zero value lists everything.
type CardFilter struct {
	// Search is a case-insensitive substring matched against name, company or email.
	Search string
	From   *time.Time // inclusive, by upload date
	To     *time.Time // inclusive, by upload date
}

type CardRepository interface {
	Create(ctx context.Context, card *entity.Card) (*entity.Card, error)
	ListByUser(ctx context.Context, userID uuid.UUID, filter CardFilter) ([]*entity.Card, error)
	CountByUser(ctx context.Context, userID uuid.UUID) (int, error)
	Count(ctx context.Context) (int, error)
}

type cardRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewCardRepository(db *DB, logger *slog.Logger) CardRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &cardRepository{db: db, logger: logger}
}

var cardColumns = []string{"id", "user_id", "name", "company", "email", "phone", "raw_text", "image_path", "uploaded_at"}

// Create inserts one card row. ID and UploadedAt are filled in when zero.
func (r *cardRepository) Create(ctx context.Context, card *entity.Card) (*entity.Card, error) {
	c := *card
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.UploadedAt.IsZero() {
		c.UploadedAt = time.Now()
	}
	c.UploadedAt = c.UploadedAt.UTC()

	q, args := r.db.builder().Insert(CardsTable.Name).
		Columns(cardColumns...).
		Values(c.ID, c.UserID, c.Name, c.Company, c.Email, c.Phone, c.RawText, c.ImagePath, c.UploadedAt).
		Query()
	if _, err := r.db.exec(ctx, q, args); err != nil {
		r.logger.Error("failed to create card", "user_id", c.UserID, "image_path", c.ImagePath, "error", err)
		return nil, err
	}
	return &c, nil
}

// ListByUser returns the user's cards, newest first.
func (r *cardRepository) ListByUser(ctx context.Context, userID uuid.UUID, filter CardFilter) ([]*entity.Card, error) {
	preds := []*entsql.Predicate{entsql.EQ("user_id", userID)}
	if filter.Search != "" {
		preds = append(preds, entsql.Or(
			entsql.ContainsFold("name", filter.Search),
			entsql.ContainsFold("company", filter.Search),
			entsql.ContainsFold("email", filter.Search),
		))
	}
	if filter.From != nil {
		preds = append(preds, entsql.GTE("uploaded_at", startOfDay(*filter.From)))
	}
	if filter.To != nil {
		preds = append(preds, entsql.LT("uploaded_at", startOfDay(*filter.To).AddDate(0, 0, 1)))
	}

	b := r.db.builder()
	q, args := b.Select(cardColumns...).
		From(b.Table(CardsTable.Name)).
		Where(entsql.And(preds...)).
		OrderBy(entsql.Desc("uploaded_at"), entsql.Desc("id")).
		Query()

	var out []*entity.Card
	err := r.db.query(ctx, q, args, func(rows *entsql.Rows) error {
		var c entity.Card
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Company, &c.Email, &c.Phone, &c.RawText, &c.ImagePath, &c.UploadedAt); err != nil {
			return err
		}
		c.UploadedAt = c.UploadedAt.UTC()
		out = append(out, &c)
		return nil
	})
	if err != nil {
		r.logger.Error("failed to list cards", "user_id", userID, "search", filter.Search, "error", err)
		return nil, err
	}
	return out, nil
}

func (r *cardRepository) CountByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	return r.db.count(ctx, CardsTable.Name, entsql.EQ("user_id", userID))
}

func (r *cardRepository) Count(ctx context.Context) (int, error) {
	return r.db.count(ctx, CardsTable.Name, nil)
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
