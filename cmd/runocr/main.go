package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"github.com/joseph-ayodele/card-scanner/internal/common"
	"github.com/joseph-ayodele/card-scanner/internal/extract"
	"github.com/joseph-ayodele/card-scanner/internal/ocr"
)

type output struct {
	extract.ContactRecord
	Method     string   `json:"method"`
	Language   string   `json:"language"`
	Confidence float32  `json:"confidence"`
	DurationMS int64    `json:"duration_ms"`
	Warnings   []string `json:"warnings,omitempty"`
}

// runocr reads one card image and prints the extracted contact as JSON.
func main() {
	cfg := common.LoadConfig()
	logger := common.NewLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)

	if len(os.Args) != 2 {
		logger.Error("usage", "cmd", "runocr <card-image>")
		os.Exit(2)
	}
	path := os.Args[1]

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	ocrx, err := ocr.NewExtractor(ocr.ConfigFrom(cfg.OCR), logger)
	if err != nil {
		logger.Error("build ocr extractor", "error", err)
		os.Exit(1)
	}
	textExtractor := extract.NewOCRAdapter(ocrx, logger)

	res, err := textExtractor.Extract(ctx, path)
	if err != nil {
		logger.Error("text extraction failed", "path", path, "error", err, "duration_ms", res.Duration.Milliseconds())
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(output{
		ContactRecord: extract.Contact(res.Text),
		Method:        res.Method,
		Language:      res.Language,
		Confidence:    res.Confidence,
		DurationMS:    res.Duration.Milliseconds(),
		Warnings:      res.Warnings,
	}); err != nil {
		logger.Error("encode output", "error", err)
		os.Exit(1)
	}
}
