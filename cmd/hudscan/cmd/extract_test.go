package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/MeKo-Tech/hudscan/internal/config"
	"github.com/MeKo-Tech/hudscan/internal/ocr"
	"github.com/MeKo-Tech/hudscan/internal/region"
	"github.com/MeKo-Tech/hudscan/internal/sink"
	"github.com/MeKo-Tech/hudscan/internal/testutil"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractCommandCSV(t *testing.T) {
	dir, regions := workspace(t, 3)
	rec := threeFrameScript()
	useRecognizer(t, rec)

	stdout, stderr, err := runCommand(t, "extract", dir, "--regions", regions, "--workers", "1")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Join(sink.Header, ","), lines[0])
	assert.Equal(t, "60.000,1200,85,072,16", lines[1])
	assert.Equal(t, "60.333,1210,85,073,16", lines[2])

	assert.Contains(t, stderr, "Frames processed: 3")
	assert.Contains(t, stderr, "Accepted: 2")
	assert.Contains(t, stderr, "Rejected: 1")
	assert.Contains(t, stderr, "field_length_mismatch: 1")
	assert.Contains(t, stderr, "Error rate: 33.33%")
	assert.True(t, rec.Closed(), "recognizer should be released")
}

func TestExtractCommandEmptyDirectory(t *testing.T) {
	_, regions := workspace(t, 0)
	empty := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.MkdirAll(empty, 0o755))
	useRecognizer(t, testutil.NewScriptedRecognizer())

	stdout, stderr, err := runCommand(t, "extract", empty, "--regions", regions)
	require.NoError(t, err)
	assert.Equal(t, strings.Join(sink.Header, ",")+"\n", stdout)
	assert.Contains(t, stderr, "Frames processed: 0")
	assert.Contains(t, stderr, "Error rate: undefined")
}

func TestExtractCommandJSONFile(t *testing.T) {
	dir, regions := workspace(t, 3)
	useRecognizer(t, threeFrameScript())

	_, _, err := runCommand(t, "extract", dir, "--regions", regions, "-w", "1",
		"--format", "json", "-o", "flight.json")
	require.NoError(t, err)

	data, err := os.ReadFile("flight.json")
	require.NoError(t, err)

	var doc struct {
		RunID   string `json:"run_id"`
		Summary struct {
			Accepted  int      `json:"accepted"`
			Rejected  int      `json:"rejected"`
			ErrorRate *float64 `json:"error_rate"`
		} `json:"summary"`
		Records []struct {
			Time      float64 `json:"time_s"`
			HeartRate string  `json:"heart_rate"`
			Frame     int     `json:"frame"`
		} `json:"records"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.NotEmpty(t, doc.RunID)
	assert.Equal(t, 2, doc.Summary.Accepted)
	assert.Equal(t, 1, doc.Summary.Rejected)
	require.NotNil(t, doc.Summary.ErrorRate)
	assert.InDelta(t, 1.0/3.0, *doc.Summary.ErrorRate, 1e-9)
	require.Len(t, doc.Records, 2)
	assert.Equal(t, 0, doc.Records[0].Frame)
	assert.Equal(t, "073", doc.Records[1].HeartRate)
}

func TestExtractCommandRefusesExistingOutput(t *testing.T) {
	dir, regions := workspace(t, 1)
	useRecognizer(t, threeFrameScript())
	require.NoError(t, os.WriteFile("out.csv", []byte("keep"), 0o600))

	_, _, err := runCommand(t, "extract", dir, "--regions", regions, "-o", "out.csv")
	require.ErrorIs(t, err, sink.ErrDestinationExists)

	data, err := os.ReadFile("out.csv")
	require.NoError(t, err)
	assert.Equal(t, "keep", string(data))

	_, _, err = runCommand(t, "extract", dir, "--regions", regions, "-o", "out.csv", "--force")
	require.NoError(t, err)
	data, err = os.ReadFile("out.csv")
	require.NoError(t, err)
	assert.Contains(t, string(data), "60.000,1200,85,072,16")
}

func TestExtractCommandInvalidCatalog(t *testing.T) {
	dir, _ := workspace(t, 1)
	useRecognizer(t, threeFrameScript())

	// The built-in layout does not fit a 64x64 frame.
	_, _, err := runCommand(t, "extract", dir)
	require.ErrorIs(t, err, region.ErrInvalidCatalog)
}

func TestExtractCommandFlagValidation(t *testing.T) {
	dir, regions := workspace(t, 1)
	useRecognizer(t, threeFrameScript())

	tests := []struct {
		name string
		args []string
		key  string
	}{
		{name: "bad format", args: []string{"--format", "xml"}, key: "output.format"},
		{name: "zero fps", args: []string{"--fps", "0"}, key: "frames.fps"},
		{name: "cutoff out of range", args: []string{"--threshold-cutoff", "300"}, key: "threshold_cutoff"},
		{name: "postgres without dsn", args: []string{"--format", "postgres"}, key: "sink.postgres_dsn"},
		{name: "negative workers", args: []string{"--workers=-2"}, key: "pipeline.workers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"extract", dir, "--regions", regions}, tt.args...)
			_, _, err := runCommand(t, args...)
			require.Error(t, err)

			var cfgErr *config.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.key, cfgErr.Key)
		})
	}
}

func TestExtractCommandZeroWorkersUsesCPUs(t *testing.T) {
	dir, regions := workspace(t, 3)
	useRecognizer(t, threeFrameScript())

	stdout, stderr, err := runCommand(t, "extract", dir, "--regions", regions, "--workers", "0")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(stdout), "\n"), 3)
	assert.Contains(t, stderr, "Accepted: 2")
}

func TestOverrideWorkers(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
	}{
		{name: "unset keeps config", args: nil, want: 5},
		{name: "explicit zero", args: []string{"--workers", "0"}, want: runtime.NumCPU()},
		{name: "explicit count", args: []string{"-w", "3"}, want: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &cobra.Command{Use: "x"}
			addExtractFlags(c)
			require.NoError(t, c.ParseFlags(tt.args))

			cfg := config.DefaultConfig()
			cfg.Pipeline.Workers = 5
			applyExtractFlags(c, &cfg)
			assert.Equal(t, tt.want, cfg.Pipeline.Workers)
		})
	}
}

func TestExtractCommandMissingDirectory(t *testing.T) {
	_, regions := workspace(t, 0)
	useRecognizer(t, threeFrameScript())

	_, _, err := runCommand(t, "extract", "does-not-exist", "--regions", regions)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list frames")
}

func TestExtractCommandRecognizerFactoryError(t *testing.T) {
	dir, regions := workspace(t, 1)
	restore := SetRecognizerFactory(func(ocr.Config) (ocr.Recognizer, error) {
		return nil, ocr.ErrNoBackend
	})
	t.Cleanup(restore)

	_, _, err := runCommand(t, "extract", dir, "--regions", regions, "-o", "out.csv")
	require.ErrorIs(t, err, ocr.ErrNoBackend)
	assert.NoFileExists(t, "out.csv")
}

func TestExtractCommandUsesConfigFile(t *testing.T) {
	dir, regions := workspace(t, 3)
	useRecognizer(t, threeFrameScript())

	cfg := "regions_file: " + regions + "\npipeline:\n  workers: 1\noutput:\n  format: yaml\n"
	require.NoError(t, os.WriteFile("hudscan.yaml", []byte(cfg), 0o600))

	stdout, _, err := runCommand(t, "extract", dir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "run_id:")
	assert.Contains(t, stdout, "heart_rate:")
	assert.Contains(t, stdout, "072")
}

func TestExtractCommandDebugDir(t *testing.T) {
	dir, regions := workspace(t, 1)
	useRecognizer(t, threeFrameScript())

	_, _, err := runCommand(t, "extract", dir, "--regions", regions, "--debug-dir", "crops", "-o", "out.csv")
	require.NoError(t, err)

	entries, err := os.ReadDir("crops")
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}
