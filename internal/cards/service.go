package cards

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/joseph-ayodele/card-scanner/constants"
	"github.com/joseph-ayodele/card-scanner/internal/entity"
	"github.com/joseph-ayodele/card-scanner/internal/extract"
	"github.com/joseph-ayodele/card-scanner/internal/ingest"
	"github.com/joseph-ayodele/card-scanner/internal/ocr"
	"github.com/joseph-ayodele/card-scanner/internal/repository"
)

// ScanResult is what a single upload produced.
type ScanResult struct {
	Card        *entity.Card
	Contact     extract.ContactRecord
	OCR         extract.TextExtractionResult
	NeedsReview bool
}

// Service coordinates upload storage, OCR, field extraction and persistence.
type Service struct {
	store  *ingest.Store
	text   extract.TextExtractor
	fields extract.FieldExtractor
	cards  repository.CardRepository
	logger *slog.Logger
}

func NewService(
	store *ingest.Store,
	text extract.TextExtractor,
	fields extract.FieldExtractor,
	cards repository.CardRepository,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if fields == nil {
		fields = extract.NewContactExtractor()
	}
	return &Service{store: store, text: text, fields: fields, cards: cards, logger: logger}
}

// Scan stores the upload, reads the card and saves the extracted contact for userID.
func (s *Service) Scan(ctx context.Context, userID uuid.UUID, filename string, r io.Reader) (*ScanResult, error) {
	stored, err := s.store.Save(ctx, filename, r)
	if err != nil {
		return nil, err
	}
	return s.process(ctx, userID, stored)
}

// ScanFile is Scan for an image already on disk. The file is copied into the upload store.
func (s *Service) ScanFile(ctx context.Context, userID uuid.UUID, path string) (*ScanResult, error) {
	stored, err := s.store.SaveFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return s.process(ctx, userID, stored)
}

func (s *Service) process(ctx context.Context, userID uuid.UUID, stored ingest.StoredFile) (*ScanResult, error) {
	start := time.Now()
	ctx = ocr.WithContentHash(ctx, stored.HashHex)

	res, err := s.text.Extract(ctx, stored.Path)
	if err != nil {
		if rmErr := s.store.Remove(stored.Path); rmErr != nil {
			s.logger.Warn("failed to remove upload after ocr error", "path", stored.Path, "error", rmErr)
		}
		return nil, fmt.Errorf("ocr %s: %w", stored.Original, err)
	}

	contact := s.fields.ExtractFields(res.Text)
	card, err := s.cards.Create(ctx, &entity.Card{
		UserID:     userID,
		Name:       contact.Name,
		Company:    contact.Company,
		Email:      contact.Email,
		Phone:      contact.Phone,
		RawText:    contact.RawText,
		ImagePath:  stored.Path,
		UploadedAt: stored.StoredAt,
	})
	if err != nil {
		if rmErr := s.store.Remove(stored.Path); rmErr != nil {
			s.logger.Warn("failed to remove upload after save error", "path", stored.Path, "error", rmErr)
		}
		return nil, fmt.Errorf("save card: %w", err)
	}

	out := &ScanResult{Card: card, Contact: contact, OCR: res}
	if res.Confidence > 0 && res.Confidence < constants.LowConfidenceThreshold {
		out.NeedsReview = true
		s.logger.Warn("low ocr confidence; card needs review", "card_id", card.ID, "confidence", res.Confidence)
	}
	s.logger.Info("card scanned",
		"card_id", card.ID,
		"user_id", userID,
		"file", stored.Original,
		"method", res.Method,
		"confidence", res.Confidence,
		"has_email", contact.Email != "",
		"has_phone", contact.Phone != "",
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// List returns the user's cards newest first, filtered by search when non-blank.
func (s *Service) List(ctx context.Context, userID uuid.UUID, search string) ([]*entity.Card, error) {
	q := NormalizeQuery(search)
	list, err := s.cards.ListByUser(ctx, userID, repository.CardFilter{Search: q})
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	s.logger.Debug("cards listed", "user_id", userID, "search", q, "count", len(list))
	return list, nil
}

// NormalizeQuery trims a search query and puts it in Unicode NFC form.
func NormalizeQuery(q string) string {
	return norm.NFC.String(strings.TrimSpace(q))
}
