package testutil

import (
	"image"
	"image/color"
	"image/draw"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// TextImageConfig holds configuration for rendering a readout-like image.
type TextImageConfig struct {
	Text       string
	Width      int
	Height     int
	Scale      int // integer upscaling applied after rendering; 0 or 1 = none
	Background color.Color
	Foreground color.Color
}

// GenerateTextImage renders Text centered with the 7x13 bitmap font. The
// overlay draws light digits on a dark band, so those are the defaults.
func GenerateTextImage(cfg TextImageConfig) (*image.NRGBA, error) {
	if cfg.Background == nil {
		cfg.Background = color.Black
	}
	if cfg.Foreground == nil {
		cfg.Foreground = color.White
	}
	scale := max(cfg.Scale, 1)
	w, h := cfg.Width/scale, cfg.Height/scale

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{cfg.Background}, image.Point{}, draw.Src)

	face := basicfont.Face7x13
	drawer := &font.Drawer{Dst: img, Src: &image.Uniform{cfg.Foreground}, Face: face}
	textWidth := font.MeasureString(face, cfg.Text).Ceil()
	textHeight := face.Metrics().Ascent.Ceil()
	drawer.Dot = fixed.P((w-textWidth)/2, (h+textHeight)/2)
	drawer.DrawString(cfg.Text)

	return imaging.Resize(img, cfg.Width, cfg.Height, imaging.NearestNeighbor), nil
}

// SaveImage writes img to path, creating parent directories. The format
// follows the file extension.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, imaging.Save(img, path), "Failed to save image %s", path)
}

// LoadImage decodes the image at path.
func LoadImage(t *testing.T, path string) image.Image {
	t.Helper()

	img, err := imaging.Open(path)
	require.NoError(t, err, "Failed to open image %s", path)
	return img
}
