//go:build gosseract

package ocr

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// gosseractEngine runs tesseract in-process through libtesseract.
type gosseractEngine struct {
	cfg Config
}

func newGosseractEngine(cfg Config) (engine, error) {
	return &gosseractEngine{cfg: cfg}, nil
}

func (g *gosseractEngine) method() string { return "image-ocr-gosseract" }

func (g *gosseractEngine) recognize(ctx context.Context, path string) (string, float32, []string, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, nil, err
	}
	c := gosseract.NewClient()
	defer c.Close()

	if g.cfg.TessdataDir != "" {
		c.SetTessdataPrefix(g.cfg.TessdataDir)
	}
	if err := c.SetLanguage(g.cfg.TesseractLang); err != nil {
		return "", 0, nil, fmt.Errorf("set language: %w", err)
	}
	if g.cfg.PSM > 0 {
		if err := c.SetPageSegMode(gosseract.PageSegMode(g.cfg.PSM)); err != nil {
			return "", 0, nil, fmt.Errorf("set psm: %w", err)
		}
	}
	if err := c.SetImage(path); err != nil {
		return "", 0, nil, fmt.Errorf("set image: %w", err)
	}
	text, err := c.Text()
	if err != nil {
		return "", 0, nil, fmt.Errorf("recognize text: %w", err)
	}

	var conf float32
	var warns []string
	if g.cfg.EnableTSVConfidence {
		boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
		if err != nil {
			warns = append(warns, err.Error())
		} else if len(boxes) > 0 {
			var sum float64
			for _, b := range boxes {
				sum += b.Confidence
			}
			conf = float32(sum / float64(len(boxes)) / 100.0)
		}
	}
	return text, conf, warns, nil
}
