package utils

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// DefaultBinarizeCutoff is the luminance below which a thresholded pixel
// becomes black. The overlay draws white digits over a translucent band, so
// anything darker than near-white is background.
const DefaultBinarizeCutoff uint8 = 220

// ImageProcessingError represents errors that can occur during image processing.
type ImageProcessingError struct {
	Operation string
	Err       error
}

func (e *ImageProcessingError) Error() string {
	return fmt.Sprintf("image processing error in %s: %v", e.Operation, e.Err)
}

func (e *ImageProcessingError) Unwrap() error { return e.Err }

// CropImageRect crops an image to the given rectangle, expressed in the
// source image's coordinate space. The result is anchored at (0,0).
func CropImageRect(img image.Image, rect image.Rectangle) (image.Image, error) {
	if img == nil {
		return nil, &ImageProcessingError{Operation: "crop", Err: errors.New("input image is nil")}
	}
	if !rect.In(img.Bounds()) {
		return nil, &ImageProcessingError{
			Operation: "crop",
			Err:       fmt.Errorf("rectangle %v outside image bounds %v", rect, img.Bounds()),
		}
	}
	return imaging.Crop(img, rect), nil
}

// Luminance converts an image to a single-channel 8-bit grayscale image
// using the ITU-R 601 luma weights.
func Luminance(img image.Image) *image.Gray {
	return toGray(imaging.Grayscale(img))
}

// Binarize maps every pixel with luminance below cutoff to black and every
// other pixel to white.
func Binarize(img image.Image, cutoff uint8) *image.Gray {
	bw := imaging.AdjustFunc(imaging.Grayscale(img), func(c color.NRGBA) color.NRGBA {
		if c.R < cutoff {
			return color.NRGBA{A: 255}
		}
		return color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	})
	return toGray(bw)
}

// PrepareRegion crops rect out of frame and converts it to the single-channel
// image handed to OCR, binarizing it when threshold is set.
func PrepareRegion(frame image.Image, rect image.Rectangle, threshold bool, cutoff uint8) (*image.Gray, error) {
	crop, err := CropImageRect(frame, rect)
	if err != nil {
		return nil, err
	}
	if threshold {
		return Binarize(crop, cutoff), nil
	}
	return Luminance(crop), nil
}

// toGray copies the red channel of an already-gray NRGBA image into an
// image.Gray.
func toGray(src *image.NRGBA) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := range b.Dy() {
		srcRow := src.Pix[y*src.Stride : y*src.Stride+b.Dx()*4]
		dstRow := dst.Pix[y*dst.Stride : y*dst.Stride+b.Dx()]
		for x := range dstRow {
			dstRow[x] = srcRow[x*4]
		}
	}
	return dst
}
