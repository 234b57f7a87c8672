// Package sink writes the records and summary of a run to their destination.
package sink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/MeKo-Tech/hudscan/internal/frames"
	"github.com/MeKo-Tech/hudscan/internal/pipeline"
	"github.com/MeKo-Tech/hudscan/internal/validate"
)

// Supported formats.
const (
	FormatCSV      = "csv"
	FormatJSON     = "json"
	FormatYAML     = "yaml"
	FormatPostgres = "postgres"
)

// Formats lists every supported format.
var Formats = []string{FormatCSV, FormatJSON, FormatYAML, FormatPostgres}

// Header is the column header of tabular output. The respiration unit is
// unknown.
var Header = []string{"Time (s)", "Altitude (m)", "Speed (kph)", "Heart rate (bpm)", "Respiration (???)"}

var (
	// ErrDestinationExists is returned when the output file exists and
	// overwriting was not requested.
	ErrDestinationExists = errors.New("output file already exists")
	// ErrUnknownFormat is returned for an unsupported format name.
	ErrUnknownFormat = errors.New("unknown output format")
)

// Sink receives the ordered records and the summary of one run.
type Sink interface {
	Write(ctx context.Context, records []validate.Record, summary pipeline.RunSummary) error
	Close() error
}

// Options selects and configures a sink.
type Options struct {
	Format string
	// Path is the output file; empty or "-" writes to stdout.
	Path  string
	Force bool

	// RunID and Source identify the run in document and database output.
	RunID  string
	Source string

	// FPS and ClockOffset derive the diagnostic video time of each record.
	FPS         float64
	ClockOffset float64

	PostgresDSN string
	Table       string

	// Stdout replaces os.Stdout, mainly for tests.
	Stdout io.Writer
}

// New creates the sink selected by opts.Format. File sinks check the
// destination immediately so an existing file fails before any work is done.
func New(ctx context.Context, opts Options) (Sink, error) {
	switch opts.Format {
	case FormatCSV, FormatJSON, FormatYAML:
		dest, err := newDestination(opts)
		if err != nil {
			return nil, err
		}
		switch opts.Format {
		case FormatCSV:
			return &CSVSink{dest: dest}, nil
		case FormatJSON:
			return &JSONSink{dest: dest, opts: opts}, nil
		default:
			return &YAMLSink{dest: dest, opts: opts}, nil
		}
	case FormatPostgres:
		return NewPostgres(ctx, opts)
	default:
		return nil, fmt.Errorf("%w: %q (supported: csv, json, yaml, postgres)", ErrUnknownFormat, opts.Format)
	}
}

// destination opens the output lazily on first write.
type destination struct {
	path   string
	force  bool
	stdout io.Writer
}

func newDestination(opts Options) (*destination, error) {
	d := &destination{path: opts.Path, force: opts.Force, stdout: opts.Stdout}
	if d.stdout == nil {
		d.stdout = os.Stdout
	}
	if d.toStdout() {
		return d, nil
	}
	if _, err := os.Stat(d.path); err == nil && !d.force {
		return nil, fmt.Errorf("%w: %s (use --force to overwrite)", ErrDestinationExists, d.path)
	}
	return d, nil
}

func (d *destination) toStdout() bool { return d.path == "" || d.path == "-" }

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func (d *destination) open() (io.WriteCloser, error) {
	if d.toStdout() {
		return nopWriteCloser{d.stdout}, nil
	}
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !d.force {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(d.path, flags, 0o644) //nolint:gosec // G302/G304: user-selected output file
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%w: %s", ErrDestinationExists, d.path)
		}
		return nil, fmt.Errorf("failed to open output: %w", err)
	}
	return f, nil
}

// write runs fn against the opened destination and closes it.
func (d *destination) write(fn func(io.Writer) error) (err error) {
	w, err := d.open()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close output: %w", cerr)
		}
	}()
	return fn(w)
}

// FormatSeconds renders a time offset with millisecond precision.
func FormatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// Row returns the tabular cells of r in Header order.
func Row(r validate.Record) []string {
	return []string{FormatSeconds(r.TimeOffset), r.Altitude, r.Speed, r.HeartRate, r.Respiration}
}

// recordView is the document form of a record.
type recordView struct {
	Time        float64  `json:"time_s" yaml:"time_s"`
	Altitude    string   `json:"altitude" yaml:"altitude"`
	Speed       string   `json:"speed" yaml:"speed"`
	HeartRate   string   `json:"heart_rate" yaml:"heart_rate"`
	Respiration string   `json:"respiration" yaml:"respiration"`
	Frame       int      `json:"frame" yaml:"frame"`
	FrameOffset float64  `json:"frame_offset_s" yaml:"frame_offset_s"`
	VideoTime   *float64 `json:"video_time_s,omitempty" yaml:"video_time_s,omitempty"`
}

// document is the full JSON/YAML output of a run.
type document struct {
	RunID   string               `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Source  string               `json:"source,omitempty" yaml:"source,omitempty"`
	FPS     float64              `json:"fps,omitempty" yaml:"fps,omitempty"`
	Columns []string             `json:"columns" yaml:"columns"`
	Summary pipeline.SummaryView `json:"summary" yaml:"summary"`
	Records []recordView         `json:"records" yaml:"records"`
}

func buildDocument(opts Options, records []validate.Record, summary pipeline.RunSummary) document {
	doc := document{
		RunID:   opts.RunID,
		Source:  opts.Source,
		FPS:     opts.FPS,
		Columns: Header,
		Summary: summary.View(),
		Records: make([]recordView, 0, len(records)),
	}
	for _, r := range records {
		v := recordView{
			Time:        r.TimeOffset,
			Altitude:    r.Altitude,
			Speed:       r.Speed,
			HeartRate:   r.HeartRate,
			Respiration: r.Respiration,
			Frame:       r.FrameIndex,
			FrameOffset: r.FrameOffset,
		}
		if opts.FPS > 0 {
			vt := frames.ClockTime(r.FrameIndex, opts.FPS, opts.ClockOffset)
			v.VideoTime = &vt
		}
		doc.Records = append(doc.Records, v)
	}
	return doc
}
