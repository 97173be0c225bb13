package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/card-scanner/internal/entity"
	"github.com/joseph-ayodele/card-scanner/internal/repository"
	"github.com/joseph-ayodele/card-scanner/internal/utils"
)

const (
	CSVFilename  = "visiting_cards.csv"
	XLSXFilename = "visiting_cards.xlsx"
	CSVMediaType = "text/csv"
	// XLSXMediaType is the OOXML spreadsheet content type.
	XLSXMediaType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	sheetName = "Cards"
)

var headers = []string{"Name", "Company", "Email", "Phone", "Uploaded On"}

// Service produces card exports for one user.
type Service struct {
	cards  repository.CardRepository
	logger *slog.Logger
	now    func() time.Time
}

func NewService(cards repository.CardRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{cards: cards, logger: logger, now: time.Now}
}

// WriteCSV writes the header and one line per card. Commas inside values
// become spaces and nothing is quoted.
func WriteCSV(w io.Writer, cards []*entity.Card) error {
	var b strings.Builder
	b.WriteString(strings.Join(headers, ","))
	b.WriteByte('\n')
	for _, c := range cards {
		b.WriteString(strings.Join(csvRow(c), ","))
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func row(c *entity.Card) []string {
	return []string{c.Name, c.Company, c.Email, c.Phone, utils.FormatUploadedOn(c.UploadedAt)}
}

// csvRow is row with commas replaced, since the CSV format does not quote.
func csvRow(c *entity.Card) []string {
	r := row(c)
	for i := range r {
		r[i] = strings.ReplaceAll(r[i], ",", " ")
	}
	return r
}

// ExportCardsCSV returns the user's cards as CSV bytes, newest first.
// If only from is provided -> from..today (inclusive).
// If only to is provided   -> beginning..to (inclusive).
func (s *Service) ExportCardsCSV(ctx context.Context, userID uuid.UUID, from, to *time.Time) ([]byte, error) {
	start := time.Now()
	cards, err := s.list(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, cards); err != nil {
		return nil, fmt.Errorf("csv write: %w", err)
	}
	s.logger.Info("export csv ok",
		"user_id", userID.String(),
		"rows", len(cards),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// ExportCardsXLSX returns an XLSX workbook (as bytes) with the same rows as ExportCardsCSV.
func (s *Service) ExportCardsXLSX(ctx context.Context, userID uuid.UUID, from, to *time.Time) ([]byte, error) {
	start := time.Now()
	cards, err := s.list(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("xlsx close failed", "error", err)
		}
	}()
	if index, _ := f.GetSheetIndex(sheetName); index == -1 {
		if _, err := f.NewSheet(sheetName); err != nil {
			return nil, err
		}
	}
	// drop the default sheet so the workbook opens on Cards
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}
	activeIndex, _ := f.GetSheetIndex(sheetName)
	f.SetActiveSheet(activeIndex)

	if err := writeRow(f, 1, headers); err != nil {
		return nil, err
	}
	for i, c := range cards {
		if err := writeRow(f, i+2, row(c)); err != nil {
			return nil, err
		}
	}

	_ = f.SetColWidth(sheetName, "A", "B", 28) // name, company
	_ = f.SetColWidth(sheetName, "C", "C", 32) // email
	_ = f.SetColWidth(sheetName, "D", "D", 20) // phone
	_ = f.SetColWidth(sheetName, "E", "E", 20) // uploaded on

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	s.logger.Info("export xlsx ok",
		"user_id", userID.String(),
		"rows", len(cards),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, rowNum int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	vals := make([]any, len(values))
	for i, v := range values {
		vals[i] = v
	}
	return f.SetSheetRow(sheetName, cell, &vals)
}

func (s *Service) list(ctx context.Context, userID uuid.UUID, from, to *time.Time) ([]*entity.Card, error) {
	if from != nil && to == nil {
		today := s.now().UTC()
		to = &today
	}
	cards, err := s.cards.ListByUser(ctx, userID, repository.CardFilter{From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("query cards: %w", err)
	}
	return cards, nil
}
