//go:build notesseract

package ocr

func newDefaultBackend(_ Config) (Recognizer, error) { return nil, ErrNoBackend }
