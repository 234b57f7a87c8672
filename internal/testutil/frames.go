package testutil

import (
	"fmt"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/hudscan/internal/region"
	"github.com/disintegration/imaging"
)

// FixtureFrameSize is the size of the synthetic frames written by WriteFrames.
var FixtureFrameSize = image.Pt(64, 64)

// FixtureRegions is a small catalog laid out on a FixtureFrameSize frame.
// Every region has a distinct width so a ScriptedRecognizer can tell which
// field it is reading from the crop size alone.
func FixtureRegions() []region.Region {
	names := []string{
		region.FieldTime, region.FieldAltitude, region.FieldSpeed,
		region.FieldHeartRate, region.FieldRespiration,
	}
	out := make([]region.Region, 0, len(names))
	for i, name := range names {
		out = append(out, region.Region{
			Name:      name,
			Rect:      image.Rect(0, i*10, 40+i, i*10+10),
			Threshold: name == region.FieldTime,
			Enabled:   true,
		})
	}
	return out
}

// FixtureCatalog returns the catalog built from FixtureRegions.
func FixtureCatalog() *region.Catalog {
	c, err := region.NewCatalog(FixtureRegions())
	if err != nil {
		panic(err)
	}
	return c
}

// FixtureRegionSize returns the crop size of the named fixture region.
func FixtureRegionSize(name string) image.Point {
	for _, r := range FixtureRegions() {
		if r.Name == name {
			return r.Rect.Size()
		}
	}
	return image.Point{}
}

// FrameName returns the file name the frame sampler would give frame index i.
func FrameName(i int, fps, ext string) string {
	return fmt.Sprintf("img%06d_fps_%s.%s", i+1, fps, ext)
}

// WriteFrames writes n blank frames of FixtureFrameSize into dir and returns
// their paths in order.
func WriteFrames(t *testing.T, dir string, n int) []string {
	t.Helper()

	paths := make([]string, 0, n)
	for i := range n {
		img := imaging.New(FixtureFrameSize.X, FixtureFrameSize.Y, color.NRGBA{R: 20, G: 20, B: 20, A: 255})
		path := filepath.Join(dir, FrameName(i, "3", "png"))
		SaveImage(t, img, path)
		paths = append(paths, path)
	}
	return paths
}
