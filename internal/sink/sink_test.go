package sink

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MeKo-Tech/hudscan/internal/pipeline"
	"github.com/MeKo-Tech/hudscan/internal/validate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleRecords() []validate.Record {
	return []validate.Record{
		{TimeOffset: 83.456, Altitude: "1200", Speed: "45", HeartRate: "072", Respiration: "16", FrameIndex: 0},
		{TimeOffset: -5.01, Altitude: "1190", Speed: "9", HeartRate: "101", Respiration: "22", FrameIndex: 3, FrameOffset: 1},
	}
}

func sampleSummary() pipeline.RunSummary {
	var s pipeline.RunSummary
	s.Add(validate.Outcome{Record: &validate.Record{}})
	s.Add(validate.Outcome{Record: &validate.Record{}})
	s.Add(validate.Reject(validate.ReasonFieldLengthMismatch, "heart_rate", ""))
	s.Add(validate.Reject(validate.ReasonTimestamp, "time", ""))
	return s
}

func TestCSVSink(t *testing.T) {
	var buf bytes.Buffer
	s, err := New(context.Background(), Options{Format: FormatCSV, Stdout: &buf})
	require.NoError(t, err)
	require.NoError(t, s.Write(context.Background(), sampleRecords(), sampleSummary()))
	require.NoError(t, s.Close())

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Header, rows[0])
	assert.Equal(t, []string{"83.456", "1200", "45", "072", "16"}, rows[1])
	assert.Equal(t, []string{"-5.010", "1190", "9", "101", "22"}, rows[2])
}

func TestCSVSink_EmptyRunWritesHeader(t *testing.T) {
	var buf bytes.Buffer
	s, err := New(context.Background(), Options{Format: FormatCSV, Path: "-", Stdout: &buf})
	require.NoError(t, err)
	require.NoError(t, s.Write(context.Background(), nil, pipeline.RunSummary{}))
	assert.Equal(t, strings.Join(Header, ",")+"\n", buf.String())
}

func TestJSONSink(t *testing.T) {
	var buf bytes.Buffer
	s, err := New(context.Background(), Options{
		Format: FormatJSON, Stdout: &buf, RunID: "run-1", Source: "frames/", FPS: 3, ClockOffset: 7.75,
	})
	require.NoError(t, err)
	require.NoError(t, s.Write(context.Background(), sampleRecords(), sampleSummary()))

	var doc struct {
		RunID   string `json:"run_id"`
		Summary struct {
			Accepted   int            `json:"accepted"`
			Rejected   int            `json:"rejected"`
			ErrorRate  *float64       `json:"error_rate"`
			Rejections map[string]int `json:"rejections_by_reason"`
		} `json:"summary"`
		Records []map[string]any `json:"records"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))

	assert.Equal(t, "run-1", doc.RunID)
	assert.Equal(t, 2, doc.Summary.Accepted)
	require.NotNil(t, doc.Summary.ErrorRate)
	assert.InDelta(t, 0.5, *doc.Summary.ErrorRate, 1e-12)
	assert.Equal(t, 1, doc.Summary.Rejections["timestamp_unparseable"])

	require.Len(t, doc.Records, 2)
	assert.InDelta(t, 83.456, doc.Records[0]["time_s"], 1e-9)
	assert.Equal(t, "072", doc.Records[0]["heart_rate"])
	assert.InDelta(t, -7.75+3.5/3, doc.Records[1]["video_time_s"], 1e-9)
}

func TestJSONSink_UndefinedRate(t *testing.T) {
	var buf bytes.Buffer
	s, err := New(context.Background(), Options{Format: FormatJSON, Stdout: &buf})
	require.NoError(t, err)
	require.NoError(t, s.Write(context.Background(), nil, pipeline.RunSummary{}))

	assert.Contains(t, buf.String(), `"error_rate": null`)
	assert.Contains(t, buf.String(), `"records": []`)
}

func TestYAMLSink_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	s, err := New(context.Background(), Options{Format: FormatYAML, Path: path})
	require.NoError(t, err)
	require.NoError(t, s.Write(context.Background(), sampleRecords(), sampleSummary()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc struct {
		Summary pipeline.SummaryView `yaml:"summary"`
		Records []struct {
			HeartRate string   `yaml:"heart_rate"`
			VideoTime *float64 `yaml:"video_time_s"`
		} `yaml:"records"`
	}
	require.NoError(t, yaml.Unmarshal(data, &doc))
	assert.Equal(t, uint(4), doc.Summary.Total)
	require.Len(t, doc.Records, 2)
	assert.Equal(t, "101", doc.Records[1].HeartRate)
	assert.Nil(t, doc.Records[1].VideoTime)
}

func TestFileSink_ExistingDestination(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o600))

	_, err := New(context.Background(), Options{Format: FormatCSV, Path: path})
	require.ErrorIs(t, err, ErrDestinationExists)

	s, err := New(context.Background(), Options{Format: FormatCSV, Path: path, Force: true})
	require.NoError(t, err)
	require.NoError(t, s.Write(context.Background(), sampleRecords(), sampleSummary()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "old")
	assert.True(t, strings.HasPrefix(string(data), "Time (s),"))
}

func TestFileSink_CreatedAfterCheck(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	s, err := New(context.Background(), Options{Format: FormatCSV, Path: path})
	require.NoError(t, err)

	// Someone else created the file meanwhile.
	require.NoError(t, os.WriteFile(path, []byte("other"), 0o600))
	err = s.Write(context.Background(), nil, pipeline.RunSummary{})
	require.ErrorIs(t, err, ErrDestinationExists)
}

func TestNew_UnknownFormat(t *testing.T) {
	_, err := New(context.Background(), Options{Format: "xml"})
	require.ErrorIs(t, err, ErrUnknownFormat)
}

func TestFormatSeconds(t *testing.T) {
	assert.Equal(t, "83.456", FormatSeconds(83.456))
	assert.Equal(t, "-5.010", FormatSeconds(-5.01))
	assert.Equal(t, "0.000", FormatSeconds(0))
}
