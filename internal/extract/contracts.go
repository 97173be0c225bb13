package extract

import (
	"context"
	"time"
)

// TextExtractor is Stage 1: image -> text.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (TextExtractionResult, error)
}

type TextExtractionResult struct {
	Text       string
	SourceType string // "IMAGE"
	Method     string // "image-ocr" | "image-ocr-gosseract"
	Language   string
	Duration   time.Duration
	Warnings   []string
	Confidence float32
}

// FieldExtractor is Stage 2: text -> contact fields.
type FieldExtractor interface {
	ExtractFields(rawText string) ContactRecord
}

// ContactRecord holds the fields read off one card. Missing fields are empty strings.
type ContactRecord struct {
	Name    string `json:"name"`
	Company string `json:"company"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	RawText string `json:"raw_text"`
}
