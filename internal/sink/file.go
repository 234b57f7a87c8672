package sink

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"

	"github.com/MeKo-Tech/hudscan/internal/pipeline"
	"github.com/MeKo-Tech/hudscan/internal/validate"
	"gopkg.in/yaml.v3"
)

// CSVSink writes the header and one row per record.
type CSVSink struct {
	dest *destination
}

func (s *CSVSink) Write(_ context.Context, records []validate.Record, _ pipeline.RunSummary) error {
	return s.dest.write(func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(Header); err != nil {
			return fmt.Errorf("failed to write csv header: %w", err)
		}
		for _, r := range records {
			if err := cw.Write(Row(r)); err != nil {
				return fmt.Errorf("failed to write csv row for frame %d: %w", r.FrameIndex, err)
			}
		}
		cw.Flush()
		return cw.Error()
	})
}

func (s *CSVSink) Close() error { return nil }

// JSONSink writes a single indented JSON document with the summary and
// records.
type JSONSink struct {
	dest *destination
	opts Options
}

func (s *JSONSink) Write(_ context.Context, records []validate.Record, summary pipeline.RunSummary) error {
	doc := buildDocument(s.opts, records, summary)
	return s.dest.write(func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode json: %w", err)
		}
		return nil
	})
}

func (s *JSONSink) Close() error { return nil }

// YAMLSink writes the same document as JSONSink in YAML.
type YAMLSink struct {
	dest *destination
	opts Options
}

func (s *YAMLSink) Write(_ context.Context, records []validate.Record, summary pipeline.RunSummary) error {
	doc := buildDocument(s.opts, records, summary)
	return s.dest.write(func(w io.Writer) error {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	})
}

func (s *YAMLSink) Close() error { return nil }
