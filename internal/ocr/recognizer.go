// Package ocr is the boundary to the text recognition engine. The default
// build links Tesseract through gosseract; building with -tags=notesseract
// produces a binary without the native dependency whose recognizer always
// fails with ErrNoBackend.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"
)

var (
	// ErrRecognition is wrapped by every failed recognize call.
	ErrRecognition = errors.New("ocr: recognition failed")
	// ErrTimeout is returned when a recognize call exceeds its deadline.
	ErrTimeout = fmt.Errorf("%w: timed out", ErrRecognition)
	// ErrNoBackend is returned by New when the binary was built without a
	// recognition engine.
	ErrNoBackend = errors.New("ocr: no recognition backend linked; build without -tags=notesseract")
)

// Recognizer turns a single preprocessed region image into text. The image
// is treated as one uniform block of text.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image) (string, error)
	Close() error
}

// Config selects and tunes the recognition backend.
type Config struct {
	// Language is the Tesseract traineddata name.
	Language string
	// TessdataPrefix overrides the directory containing traineddata files.
	TessdataPrefix string
	// Timeout bounds a single Recognize call; zero disables the bound.
	Timeout time.Duration
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{Language: "eng"}
}

// New creates the backend linked into this binary, wrapped with the
// configured timeout.
func New(cfg Config) (Recognizer, error) {
	if cfg.Language == "" {
		cfg.Language = DefaultConfig().Language
	}
	r, err := newDefaultBackend(cfg)
	if err != nil {
		return nil, err
	}
	return WithTimeout(r, cfg.Timeout), nil
}

// WithTimeout bounds every Recognize call of r by d. A zero or negative d
// returns r unchanged.
//
// On timeout the caller gets ErrTimeout but the call into r keeps running in
// its own goroutine until r returns. Tesseract does not observe the context
// once a page is submitted, so every timed-out call leaves a live CGo call
// and its client behind until the page finishes.
func WithTimeout(r Recognizer, d time.Duration) Recognizer {
	if d <= 0 {
		return r
	}
	return &timeoutRecognizer{next: r, timeout: d}
}

type timeoutRecognizer struct {
	next    Recognizer
	timeout time.Duration
}

type recognizeResult struct {
	text string
	err  error
}

func (t *timeoutRecognizer) Recognize(ctx context.Context, img image.Image) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	// Buffered so the worker can finish after we stop waiting.
	done := make(chan recognizeResult, 1)
	go func() {
		text, err := t.next.Recognize(ctx, img)
		done <- recognizeResult{text: text, err: err}
	}()

	select {
	case res := <-done:
		return res.text, res.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w after %s", ErrTimeout, t.timeout)
		}
		return "", ctx.Err()
	}
}

func (t *timeoutRecognizer) Close() error { return t.next.Close() }
