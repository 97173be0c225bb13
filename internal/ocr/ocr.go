package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/card-scanner/constants"
	"github.com/joseph-ayodele/card-scanner/internal/common"
)

const (
	EngineCLI       = "cli"
	EngineGosseract = "gosseract"
)

type Config struct {
	Engine    string // EngineCLI | EngineGosseract; if empty -> EngineCLI
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "eng"
	TessdataDir   string

	PSM int // e.g., 6 is good for uniform block of text
	OEM int // 1 = LSTM; leave 0 to use default

	EnableTSVConfidence bool

	HeicConverter    string // "heif-convert" | "magick" | "sips"
	ArtifactCacheDir string
}

// ConfigFrom maps the application OCR settings onto Config.
func ConfigFrom(c common.OCRConfig) Config {
	return Config{
		Engine:              c.Engine,
		Tesseract:           c.Tesseract,
		TesseractLang:       c.Lang,
		TessdataDir:         c.TessdataDir,
		PSM:                 c.PSM,
		OEM:                 c.OEM,
		EnableTSVConfidence: c.TSVConfidence,
		HeicConverter:       c.HeicConverter,
		ArtifactCacheDir:    c.ArtifactCacheDir,
	}
}

type ExtractionResult struct {
	Text       string
	SourceType string // constants.IMAGE
	Method     string // "image-ocr" | "image-ocr-gosseract"
	Language   string
	Duration   time.Duration
	Warnings   []string
	Confidence float32
}

// engine turns one readable image into text plus an optional 0..1 confidence.
type engine interface {
	method() string
	recognize(ctx context.Context, path string) (text string, conf float32, warnings []string, err error)
}

type Extractor struct {
	cfg    Config
	runner Runner
	engine engine
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) (*Extractor, error) {
	return newExtractor(cfg, execRunner{}, logger)
}

// NewExtractorWithRunner is NewExtractor with a custom command runner.
func NewExtractorWithRunner(cfg Config, r Runner, logger *slog.Logger) (*Extractor, error) {
	return newExtractor(cfg, r, logger)
}

func newExtractor(cfg Config, r Runner, logger *slog.Logger) (*Extractor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Engine == "" {
		cfg.Engine = EngineCLI
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.ArtifactCacheDir == "" {
		cfg.ArtifactCacheDir = "./tmp"
	}

	e := &Extractor{cfg: cfg, runner: r, logger: logger}
	switch cfg.Engine {
	case EngineCLI:
		e.engine = &cliEngine{cfg: cfg, runner: r, logger: logger}
	case EngineGosseract:
		eng, err := newGosseractEngine(cfg)
		if err != nil {
			return nil, err
		}
		e.engine = eng
	default:
		return nil, fmt.Errorf("unknown ocr engine %q (want %s | %s)", cfg.Engine, EngineCLI, EngineGosseract)
	}
	return e, nil
}

// Extract runs OCR on the image at path. The text is returned exactly as the
// engine produced it.
func (e *Extractor) Extract(ctx context.Context, path string) (ExtractionResult, error) {
	start := time.Now()
	ext := constants.NormalizeExt(filepath.Ext(path))
	e.logger.Debug("starting ocr extraction", "path", path, "engine", e.cfg.Engine, "ext", ext)

	if constants.MapExtToFormat(ext) != constants.IMAGE {
		e.logger.Error("unsupported ocr extension", "extension", ext)
		return ExtractionResult{}, fmt.Errorf("unsupported extension: %q", ext)
	}

	var warns []string
	if constants.IsHEICExt(ext) {
		hashHex, _ := contentHashFromCtx(ctx)
		out, w, cleanup, err := convertHEICtoPNG(ctx, e.runner, e.logger, e.cfg.HeicConverter, path, e.cfg.ArtifactCacheDir, hashHex)
		warns = append(warns, w...)
		if cleanup != nil {
			defer cleanup()
		}
		if err != nil {
			e.logger.Error("heic conversion failed", "path", path, "error", err)
			return ExtractionResult{SourceType: constants.IMAGE, Warnings: warns}, err
		}
		path = out
	}

	txt, engineConf, w, err := e.engine.recognize(ctx, path)
	warns = append(warns, w...)
	res := ExtractionResult{
		SourceType: constants.IMAGE,
		Method:     e.engine.method(),
		Language:   e.cfg.TesseractLang,
		Warnings:   warns,
		Duration:   time.Since(start),
	}
	if err != nil {
		return res, err
	}
	res.Text = txt
	res.Confidence = blendConfidence(engineConf, heuristicConfidence(txt))

	e.logger.Debug("ocr extraction done",
		"path", path,
		"method", res.Method,
		"bytes", len(txt),
		"confidence", res.Confidence,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}
