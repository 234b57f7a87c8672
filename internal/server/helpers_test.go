package server

import (
	"image"
	"testing"

	"github.com/MeKo-Tech/hudscan/internal/extract"
	"github.com/MeKo-Tech/hudscan/internal/region"
	"github.com/MeKo-Tech/hudscan/internal/testutil"
	"github.com/disintegration/imaging"
)

// newTestServer builds a server over the fixture catalog whose recognizer
// reads two accepted frames followed by one with a short heart rate.
func newTestServer(t *testing.T, framesRoot string) (*Server, *testutil.ScriptedRecognizer) {
	t.Helper()

	rec := testutil.NewScriptedRecognizer().
		AddField(region.FieldTime, "01:00.000", "01:00.333", "01:00.667").
		AddField(region.FieldAltitude, "1200").
		AddField(region.FieldSpeed, "45").
		AddField(region.FieldHeartRate, "072", "073", "74").
		AddField(region.FieldRespiration, "16")

	srv, err := NewServer(Config{
		Catalog:    testutil.FixtureCatalog(),
		Extractor:  extract.New(rec),
		Closer:     rec,
		Workers:    1,
		FPS:        3,
		FramesRoot: framesRoot,
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return srv, rec
}

// cropTo returns the top-left size x size square of img.
func cropTo(img image.Image, size int) image.Image {
	return imaging.Crop(img, image.Rect(0, 0, size, size))
}
