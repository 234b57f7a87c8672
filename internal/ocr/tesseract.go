//go:build !notesseract

package ocr

import (
	"context"
	"fmt"
	"image"

	"github.com/MeKo-Tech/hudscan/internal/utils"
	"github.com/otiai10/gosseract/v2"
)

// Tesseract recognizes text with libtesseract. A fresh client is created per
// call because gosseract clients are not safe for concurrent use.
type Tesseract struct {
	cfg Config
}

func newDefaultBackend(cfg Config) (Recognizer, error) {
	return NewTesseract(cfg), nil
}

// NewTesseract returns a Tesseract recognizer for cfg.
func NewTesseract(cfg Config) *Tesseract {
	return &Tesseract{cfg: cfg}
}

// Recognize runs Tesseract on img in single-block page segmentation mode.
func (t *Tesseract) Recognize(ctx context.Context, img image.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := utils.EncodePNG(img)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRecognition, err)
	}

	client := gosseract.NewClient()
	defer func() { _ = client.Close() }()

	if t.cfg.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(t.cfg.TessdataPrefix); err != nil {
			return "", fmt.Errorf("%w: tessdata prefix: %w", ErrRecognition, err)
		}
	}
	if err := client.SetLanguage(t.cfg.Language); err != nil {
		return "", fmt.Errorf("%w: language %q: %w", ErrRecognition, t.cfg.Language, err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		return "", fmt.Errorf("%w: page segmentation: %w", ErrRecognition, err)
	}
	if err := client.SetImageFromBytes(data); err != nil {
		return "", fmt.Errorf("%w: failed to set image: %w", ErrRecognition, err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRecognition, err)
	}
	return text, nil
}

// Close is a no-op; clients are released after every call.
func (t *Tesseract) Close() error { return nil }
