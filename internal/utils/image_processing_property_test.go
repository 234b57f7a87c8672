package utils

import (
	"image"
	"image/color"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// genTestImage generates a simple gradient test image.
func genTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			val := uint8((x*7 + y*3) % 256)
			img.Set(x, y, color.RGBA{val, val, val, 255})
		}
	}
	return img
}

// TestBinarize_OnlyTwoLevels verifies binarized output never contains gray.
func TestBinarize_OnlyTwoLevels(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("binarized pixels are black or white", prop.ForAll(
		func(width, height int, cutoff uint8) bool {
			bw := Binarize(genTestImage(width, height), cutoff)
			for _, p := range bw.Pix {
				if p != 0 && p != 255 {
					return false
				}
			}
			return bw.Bounds().Dx() == width && bw.Bounds().Dy() == height
		},
		gen.IntRange(1, 64),
		gen.IntRange(1, 64),
		gen.UInt8(),
	))

	properties.TestingRun(t)
}

// TestPrepareRegion_PreservesSize verifies crops keep the region's size.
func TestPrepareRegion_PreservesSize(t *testing.T) {
	properties := gopter.NewProperties(nil)
	frame := genTestImage(128, 96)

	properties.Property("prepared crop matches rectangle size", prop.ForAll(
		func(x0, y0, w, h int, threshold bool) bool {
			rect := image.Rect(x0, y0, x0+w, y0+h)
			out, err := PrepareRegion(frame, rect, threshold, DefaultBinarizeCutoff)
			if !rect.In(frame.Bounds()) {
				return err != nil
			}
			return err == nil && out.Bounds().Dx() == w && out.Bounds().Dy() == h
		},
		gen.IntRange(0, 120),
		gen.IntRange(0, 90),
		gen.IntRange(1, 40),
		gen.IntRange(1, 40),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
