package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// cliEngine shells out to the tesseract binary.
type cliEngine struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func (c *cliEngine) method() string { return "image-ocr" }

func (c *cliEngine) recognize(ctx context.Context, path string) (string, float32, []string, error) {
	// tesseract <file> stdout -l <lang>
	out, errb, err := c.runner.Run(ctx, c.cfg.Tesseract, c.logger, c.args(path)...)
	if err != nil {
		return "", 0, []string{string(errb)}, fmt.Errorf("tesseract: %w", err)
	}

	var warns []string
	var conf float32
	if c.cfg.EnableTSVConfidence {
		if v, err := c.tsvConfidence(ctx, path); err == nil {
			conf = v
		} else {
			warns = append(warns, err.Error())
		}
	}
	return string(out), conf, warns, nil
}

func (c *cliEngine) args(path string, extra ...string) []string {
	args := []string{path, "stdout", "-l", c.cfg.TesseractLang}
	if c.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(c.cfg.PSM))
	}
	if c.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(c.cfg.OEM))
	}
	if c.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", c.cfg.TessdataDir)
	}
	return append(args, extra...)
}

// tsvConfidence runs tesseract in TSV mode and returns mean word conf in 0..1.
func (c *cliEngine) tsvConfidence(ctx context.Context, path string) (float32, error) {
	out, _, err := c.runner.Run(ctx, c.cfg.Tesseract, c.logger, c.args(path, "tsv")...)
	if err != nil {
		return 0, fmt.Errorf("tesseract TSV: %w", err)
	}
	return meanTSVConfidence(string(out)), nil
}

// meanTSVConfidence averages the conf column (last) of tesseract TSV output,
// skipping the header and non-word rows (conf -1).
func meanTSVConfidence(tsv string) float32 {
	var sum, n float64
	for i, ln := range strings.Split(tsv, "\n") {
		if i == 0 || len(ln) == 0 {
			continue
		}
		cols := strings.Split(ln, "\t")
		if len(cols) < 12 {
			continue
		}
		confStr := strings.TrimSpace(cols[10])
		if confStr == "" || confStr == "-1" {
			continue
		}
		if v, err := strconv.ParseFloat(confStr, 64); err == nil && v >= 0 {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return float32(sum / n / 100.0)
}
