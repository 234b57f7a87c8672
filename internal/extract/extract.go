// Package extract turns the regions of one frame into recognized text.
package extract

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/hudscan/internal/ocr"
	"github.com/MeKo-Tech/hudscan/internal/region"
	"github.com/MeKo-Tech/hudscan/internal/utils"
	"golang.org/x/text/width"
)

// RawFieldText is the normalized text recognized in one region.
type RawFieldText struct {
	Field string
	Text  string
}

// RecognitionFailure reports an OCR error for a single field.
type RecognitionFailure struct {
	Field string
	Err   error
}

func (e *RecognitionFailure) Error() string {
	return fmt.Sprintf("recognition of field %q failed: %v", e.Field, e.Err)
}

func (e *RecognitionFailure) Unwrap() error { return e.Err }

// Extractor crops, preprocesses and recognizes regions of a frame. It holds
// no per-frame state and is safe for concurrent use when its recognizer is.
type Extractor struct {
	recognizer ocr.Recognizer
	cutoff     uint8
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithCutoff sets the binarization cutoff for thresholded regions.
func WithCutoff(c uint8) Option {
	return func(e *Extractor) { e.cutoff = c }
}

// New creates an Extractor backed by r.
func New(r ocr.Recognizer, opts ...Option) *Extractor {
	e := &Extractor{recognizer: r, cutoff: utils.DefaultBinarizeCutoff}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract recognizes every given region of frame. The first OCR error is
// returned as a *RecognitionFailure and the partial result is discarded.
func (e *Extractor) Extract(ctx context.Context, frame image.Image, regions []region.Region) (map[string]RawFieldText, error) {
	out := make(map[string]RawFieldText, len(regions))
	for _, r := range regions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		crop, err := utils.PrepareRegion(frame, r.Rect, r.Threshold, e.cutoff)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", r.Name, err)
		}

		text, err := e.recognizer.Recognize(ctx, crop)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, &RecognitionFailure{Field: r.Name, Err: err}
		}

		out[r.Name] = RawFieldText{Field: r.Name, Text: Normalize(text)}
	}
	return out, nil
}

// Normalize folds fullwidth characters to their narrow forms and trims
// surrounding whitespace. Width folding maps one rune to one rune, so the
// character counts the validator checks are unchanged.
func Normalize(text string) string {
	return strings.TrimSpace(width.Narrow.String(text))
}

// DumpCrops writes the preprocessed image of every region to dir as
// <frame>_<field>.png. Failures are logged and skipped.
func (e *Extractor) DumpCrops(dir, frameName string, frame image.Image, regions []region.Region) {
	base := strings.TrimSuffix(frameName, filepath.Ext(frameName))
	for _, r := range regions {
		crop, err := utils.PrepareRegion(frame, r.Rect, r.Threshold, e.cutoff)
		if err != nil {
			slog.Warn("Failed to prepare debug crop", "frame", frameName, "field", r.Name, "error", err)
			continue
		}
		path := filepath.Join(dir, fmt.Sprintf("%s_%s.png", base, r.Name))
		if err := utils.SavePNG(path, crop); err != nil {
			slog.Warn("Failed to write debug crop", "path", path, "error", err)
		}
	}
}
