package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/hudscan/internal/ocr"
	"github.com/MeKo-Tech/hudscan/internal/region"
	"github.com/MeKo-Tech/hudscan/internal/testutil"
	"github.com/stretchr/testify/require"
)

// runCommand executes a fresh root command with args and returns what it
// wrote to stdout and stderr.
func runCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	root := NewRootCommand()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

// workspace changes into a fresh directory holding a fixture regions file
// and n frames, and returns the frames directory and the regions file path.
func workspace(t *testing.T, n int) (string, string) {
	t.Helper()

	dir := t.TempDir()
	t.Chdir(dir)

	framesDir := filepath.Join(dir, "frames")
	require.NoError(t, os.MkdirAll(framesDir, 0o755))
	testutil.WriteFrames(t, framesDir, n)

	data, err := testutil.FixtureCatalog().Marshal()
	require.NoError(t, err)
	regions := filepath.Join(dir, "regions.yaml")
	require.NoError(t, os.WriteFile(regions, data, 0o600))

	return framesDir, regions
}

// useRecognizer installs rec as the OCR backend for the test.
func useRecognizer(t *testing.T, rec *testutil.ScriptedRecognizer) {
	t.Helper()
	restore := SetRecognizerFactory(func(ocr.Config) (ocr.Recognizer, error) { return rec, nil })
	t.Cleanup(restore)
}

// threeFrameScript accepts the first two frames and rejects the third for a
// two digit heart rate.
func threeFrameScript() *testutil.ScriptedRecognizer {
	return testutil.NewScriptedRecognizer().
		AddField(region.FieldTime, "01:00.000", "01:00.333", "01:00.667").
		AddField(region.FieldAltitude, "1200", "1210", "1220").
		AddField(region.FieldSpeed, "85").
		AddField(region.FieldHeartRate, "072", "073", "74").
		AddField(region.FieldRespiration, "16")
}
