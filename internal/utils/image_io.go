package utils

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"slices"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// SupportedImageExtensions lists supported file extensions for loading.
var SupportedImageExtensions = []string{".bmp", ".jpg", ".jpeg", ".png", ".tif", ".tiff"}

// IsSupportedImage reports whether the path has a supported image extension.
func IsSupportedImage(path string) bool {
	return slices.Contains(SupportedImageExtensions, strings.ToLower(filepath.Ext(path)))
}

// ImageMetadata captures lightweight file and pixel information.
type ImageMetadata struct {
	Path      string
	Format    string
	SizeBytes int64
	Width     int
	Height    int
}

// Bounds returns the pixel rectangle described by the metadata.
func (m ImageMetadata) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.Width, m.Height)
}

func openImageFile(op, path string) (*os.File, os.FileInfo, error) {
	if path == "" {
		return nil, nil, &ImageProcessingError{Operation: op, Err: errors.New("empty path")}
	}
	if !IsSupportedImage(path) {
		return nil, nil, &ImageProcessingError{Operation: op, Err: fmt.Errorf("unsupported format: %s", filepath.Ext(path))}
	}

	f, err := os.Open(path) //nolint:gosec // G304: Reading user-provided image file path is expected
	if err != nil {
		return nil, nil, &ImageProcessingError{Operation: op, Err: err}
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, &ImageProcessingError{Operation: op, Err: err}
	}
	return f, fi, nil
}

// LoadImage opens and decodes an image file, returning the image and metadata.
// The file handle is released before returning.
func LoadImage(path string) (image.Image, ImageMetadata, error) {
	f, fi, err := openImageFile("load", path)
	if err != nil {
		return nil, ImageMetadata{}, err
	}
	defer func() { _ = f.Close() }()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, ImageMetadata{}, &ImageProcessingError{Operation: "decode", Err: err}
	}

	b := img.Bounds()
	return img, ImageMetadata{
		Path:      path,
		Format:    format,
		SizeBytes: fi.Size(),
		Width:     b.Dx(),
		Height:    b.Dy(),
	}, nil
}

// ReadImageMetadata decodes only the image header.
func ReadImageMetadata(path string) (ImageMetadata, error) {
	f, fi, err := openImageFile("probe", path)
	if err != nil {
		return ImageMetadata{}, err
	}
	defer func() { _ = f.Close() }()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return ImageMetadata{}, &ImageProcessingError{Operation: "probe", Err: err}
	}
	return ImageMetadata{
		Path:      path,
		Format:    format,
		SizeBytes: fi.Size(),
		Width:     cfg.Width,
		Height:    cfg.Height,
	}, nil
}

// EncodePNG encodes img as PNG bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, &ImageProcessingError{Operation: "encode", Err: err}
	}
	return buf.Bytes(), nil
}

// SavePNG writes img to path as PNG, creating parent directories.
func SavePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return &ImageProcessingError{Operation: "save", Err: err}
	}
	data, err := EncodePNG(img)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return &ImageProcessingError{Operation: "save", Err: err}
	}
	return nil
}
