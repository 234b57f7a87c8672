package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/MeKo-Tech/hudscan/internal/config"
	"github.com/MeKo-Tech/hudscan/internal/extract"
	"github.com/MeKo-Tech/hudscan/internal/frames"
	"github.com/MeKo-Tech/hudscan/internal/ocr"
	"github.com/MeKo-Tech/hudscan/internal/pipeline"
	"github.com/MeKo-Tech/hudscan/internal/sink"
	"github.com/MeKo-Tech/hudscan/internal/validate"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// RecognizerFactory creates the OCR backend for a run.
type RecognizerFactory func(cfg ocr.Config) (ocr.Recognizer, error)

var recognizerFactory RecognizerFactory = ocr.New

// SetRecognizerFactory replaces the OCR backend used by extract, run and
// serve, and returns a function restoring the previous one.
func SetRecognizerFactory(f RecognizerFactory) (restore func()) {
	prev := recognizerFactory
	recognizerFactory = f
	return func() { recognizerFactory = prev }
}

// addFrameFlags registers the sampling flags of frames and run.
func addFrameFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("dir", "d", "", "frame directory (default: <video>_frames next to the video)")
	f.String("frame-format", "bmp", "image format written by ffmpeg (bmp, png, jpg, tiff)")
	f.String("ffmpeg", "ffmpeg", "path to the ffmpeg binary")
	f.Float64("max-fps", frames.DefaultMaxFPS, "highest accepted sampling rate")
	f.Bool("reuse", false, "reuse frames already present in the frame directory")
}

// addExtractFlags registers the pipeline and output flags of extract and run.
func addExtractFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Float64("fps", 3, "sampling rate of the frames, used for frame offsets")
	f.IntP("workers", "w", 0, "number of frames processed in parallel (default: number of CPUs)")
	f.String("regions", "", "YAML file with the region catalog")
	f.Int("threshold-cutoff", 220, "luminance cutoff for binarized regions (0-255)")
	f.String("language", "eng", "Tesseract language")
	f.String("tessdata", "", "directory containing Tesseract traineddata files")
	f.Duration("ocr-timeout", config.DefaultOCRTimeout, "timeout of a single recognition call (0 disables)")
	f.StringP("format", "f", sink.FormatCSV, "output format: "+strings.Join(sink.Formats, ", "))
	f.StringP("output", "o", "", "output file (default: stdout)")
	f.Bool("force", false, "overwrite an existing output file")
	f.Float64("clock-offset", config.DefaultClockOffset,
		"seconds between video start and the on-screen clock, for the video_time column")
	f.String("debug-dir", "", "write the preprocessed region crops of every frame into this directory")
	f.String("postgres-dsn", "", "PostgreSQL connection string for --format postgres")
	f.String("table", sink.DefaultTable, "PostgreSQL table for --format postgres")
	f.Bool("progress", false, "show a progress bar on stderr")
}

// applyFrameFlags copies changed sampling flags into cfg.
func applyFrameFlags(cmd *cobra.Command, cfg *config.Config) {
	overrideString(cmd, "dir", &cfg.Frames.Dir)
	overrideString(cmd, "frame-format", &cfg.Frames.Format)
	overrideString(cmd, "ffmpeg", &cfg.Frames.FFmpegPath)
	overrideFloat(cmd, "max-fps", &cfg.Frames.MaxFPS)
}

// applyExtractFlags copies changed pipeline and output flags into cfg.
func applyExtractFlags(cmd *cobra.Command, cfg *config.Config) {
	overrideFloat(cmd, "fps", &cfg.Frames.FPS)
	overrideWorkers(cmd, cfg)
	overrideString(cmd, "regions", &cfg.RegionsFile)
	if cmd.Flags().Changed("regions") {
		cfg.Regions = nil
	}
	overrideInt(cmd, "threshold-cutoff", &cfg.ThresholdCutoff)
	overrideString(cmd, "language", &cfg.OCR.Language)
	overrideString(cmd, "tessdata", &cfg.OCR.TesseractData)
	if cmd.Flags().Changed("ocr-timeout") {
		cfg.OCR.Timeout, _ = cmd.Flags().GetDuration("ocr-timeout")
	}
	overrideString(cmd, "format", &cfg.Output.Format)
	overrideString(cmd, "output", &cfg.Output.File)
	overrideBool(cmd, "force", &cfg.Output.Force)
	overrideFloat(cmd, "clock-offset", &cfg.Output.ClockOffset)
	overrideString(cmd, "debug-dir", &cfg.Output.DebugDir)
	overrideString(cmd, "postgres-dsn", &cfg.Sink.PostgresDSN)
	overrideString(cmd, "table", &cfg.Sink.Table)
}

func overrideString(cmd *cobra.Command, name string, dst *string) {
	if cmd.Flags().Changed(name) {
		*dst, _ = cmd.Flags().GetString(name)
	}
}

func overrideFloat(cmd *cobra.Command, name string, dst *float64) {
	if cmd.Flags().Changed(name) {
		*dst, _ = cmd.Flags().GetFloat64(name)
	}
}

func overrideInt(cmd *cobra.Command, name string, dst *int) {
	if cmd.Flags().Changed(name) {
		*dst, _ = cmd.Flags().GetInt(name)
	}
}

// overrideWorkers copies --workers into cfg; an explicit 0 means one worker
// per CPU.
func overrideWorkers(cmd *cobra.Command, cfg *config.Config) {
	overrideInt(cmd, "workers", &cfg.Pipeline.Workers)
	if cmd.Flags().Changed("workers") && cfg.Pipeline.Workers == 0 {
		cfg.Pipeline.Workers = runtime.NumCPU()
	}
}

func overrideBool(cmd *cobra.Command, name string, dst *bool) {
	if cmd.Flags().Changed(name) {
		*dst, _ = cmd.Flags().GetBool(name)
	}
}

// defaultFrameDir places the frames of video next to it.
func defaultFrameDir(video string) string {
	return strings.TrimSuffix(video, filepath.Ext(video)) + "_frames"
}

// newSampler builds the ffmpeg sampler from cfg and the reuse flag.
func newSampler(cmd *cobra.Command, cfg *config.Config) (*frames.Sampler, error) {
	sc := cfg.ToSamplerConfig()
	sc.Reuse, _ = cmd.Flags().GetBool("reuse")
	return frames.NewSampler(sc, slog.Default())
}

// extraction runs the core pipeline over samples and writes the sink.
type extraction struct {
	cfg     *config.Config
	source  string
	samples []frames.FrameSample
}

func (e *extraction) run(cmd *cobra.Command) (*pipeline.Result, error) {
	ctx := cmd.Context()
	cfg := e.cfg

	catalog, err := cfg.Catalog()
	if err != nil {
		return nil, fmt.Errorf("failed to load region catalog: %w", err)
	}

	runID := uuid.NewString()
	opts := cfg.ToSinkOptions()
	opts.RunID = runID
	opts.Source = e.source
	opts.Stdout = cmd.OutOrStdout()
	out, err := sink.New(ctx, opts)
	if err != nil {
		return nil, err
	}
	defer func() { _ = out.Close() }()

	rec, err := recognizerFactory(cfg.ToOCRConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OCR: %w", err)
	}
	defer func() { _ = rec.Close() }()

	aggOpts := []pipeline.Option{
		pipeline.WithWorkers(cfg.Pipeline.Workers),
		pipeline.WithRunID(runID),
		pipeline.WithLogger(slog.Default()),
		pipeline.WithProgress(progressFor(cmd)),
	}
	if cfg.Output.DebugDir != "" {
		aggOpts = append(aggOpts, pipeline.WithDebugDir(cfg.Output.DebugDir))
	}
	agg := pipeline.NewAggregator(catalog, extract.New(rec, extract.WithCutoff(cfg.Cutoff())), aggOpts...)

	res, err := agg.Run(ctx, e.samples)
	if err != nil {
		return nil, err
	}
	if err := out.Write(ctx, res.Records, res.Summary); err != nil {
		return nil, fmt.Errorf("failed to write output: %w", err)
	}
	printSummary(cmd.ErrOrStderr(), res)
	return res, nil
}

// progressFor logs progress always and draws a bar when --progress is set.
func progressFor(cmd *cobra.Command) pipeline.ProgressCallback {
	logCB := pipeline.NewLogProgressCallback(slog.Default(), slog.LevelDebug)
	if show, _ := cmd.Flags().GetBool("progress"); show {
		bar := pipeline.NewConsoleProgressCallback(cmd.ErrOrStderr(), "Extracting")
		return pipeline.NewMultiProgressCallback(bar, logCB)
	}
	return logCB
}

// printSummary writes the human readable run summary.
func printSummary(w io.Writer, res *pipeline.Result) {
	s := res.Summary
	_, _ = fmt.Fprintf(w, "Frames processed: %d\n", s.Total())
	_, _ = fmt.Fprintf(w, "Accepted: %d\n", s.Accepted)
	_, _ = fmt.Fprintf(w, "Rejected: %d\n", s.Rejected)

	for _, r := range validate.Reasons {
		if n := s.ByReason[r]; n > 0 {
			_, _ = fmt.Fprintf(w, "  %s: %d\n", r, n)
		}
	}

	if rate, ok := s.ErrorRate(); ok {
		_, _ = fmt.Fprintf(w, "Error rate: %.2f%%\n", rate*100)
	} else {
		_, _ = fmt.Fprintln(w, "Error rate: undefined (no frames processed)")
	}
	if res.Duration > 0 {
		_, _ = fmt.Fprintf(w, "Duration: %s (%.1f frames/s, %d workers)\n",
			res.Duration.Round(time.Millisecond), res.FramesPerSecond(), res.Workers)
	}
}
