package frames

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultMaxFPS is the highest sampling rate accepted. Overlay videos are
// recorded at NTSC rate, so sampling faster only duplicates frames.
const DefaultMaxFPS = 29.97

// ErrDirNotEmpty is returned when the target directory already holds files
// and reuse was not requested.
var ErrDirNotEmpty = errors.New("frame directory is not empty")

// SamplerConfig configures ffmpeg frame sampling.
type SamplerConfig struct {
	FFmpegPath  string
	FFprobePath string
	FPS         float64
	MaxFPS      float64
	// Format is the image extension written by ffmpeg, e.g. "bmp" or "png".
	Format string
	// Reuse accepts a non-empty directory and lists its frames instead of
	// sampling again.
	Reuse bool
}

// DefaultSamplerConfig returns the sampling defaults.
func DefaultSamplerConfig() SamplerConfig {
	return SamplerConfig{
		FFmpegPath:  "ffmpeg",
		FFprobePath: "ffprobe",
		FPS:         3,
		MaxFPS:      DefaultMaxFPS,
		Format:      "bmp",
	}
}

// SampleResult describes the frames available after sampling.
type SampleResult struct {
	Dir    string
	FPS    float64
	Frames []FrameSample
	Reused bool
	// Duration is the video length reported by ffprobe, 0 when unknown.
	Duration float64
}

type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Sampler extracts still frames from a video with ffmpeg.
type Sampler struct {
	cfg    SamplerConfig
	logger *slog.Logger
	run    commandRunner
}

// NewSampler creates a sampler. The FPS is clamped to MaxFPS.
func NewSampler(cfg SamplerConfig, logger *slog.Logger) (*Sampler, error) {
	def := DefaultSamplerConfig()
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = def.FFmpegPath
	}
	if cfg.Format == "" {
		cfg.Format = def.Format
	}
	if cfg.MaxFPS <= 0 {
		cfg.MaxFPS = def.MaxFPS
	}
	if cfg.FPS <= 0 {
		return nil, fmt.Errorf("fps must be positive, got %g", cfg.FPS)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.FPS > cfg.MaxFPS {
		logger.Warn("Sampling rate above video frame rate, clamping", "requested_fps", cfg.FPS, "fps", cfg.MaxFPS)
		cfg.FPS = cfg.MaxFPS
	}
	return &Sampler{cfg: cfg, logger: logger, run: runCombined}, nil
}

// FPS returns the effective sampling rate.
func (s *Sampler) FPS() float64 { return s.cfg.FPS }

// Pattern returns the ffmpeg output pattern for dir.
func (s *Sampler) Pattern(dir string) string {
	return filepath.Join(dir, fmt.Sprintf("img%%06d_fps_%s.%s", formatFPS(s.cfg.FPS), s.cfg.Format))
}

// Args returns the ffmpeg arguments used to sample video into dir.
func (s *Sampler) Args(video, dir string) []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-i", video,
		"-vf", "fps=" + formatFPS(s.cfg.FPS),
		s.Pattern(dir),
	}
}

// Sample writes frames of video into dir and returns them in order.
func (s *Sampler) Sample(ctx context.Context, video, dir string) (*SampleResult, error) {
	if _, err := os.Stat(video); err != nil {
		return nil, fmt.Errorf("cannot access video: %w", err)
	}

	empty, err := dirEmpty(dir)
	if err != nil {
		return nil, err
	}

	result := &SampleResult{Dir: dir, FPS: s.cfg.FPS}
	switch {
	case !empty && s.cfg.Reuse:
		s.logger.Info("Reusing existing frames", "dir", dir)
		result.Reused = true
	case !empty:
		return nil, fmt.Errorf("%w: %s (use --reuse to keep existing frames)", ErrDirNotEmpty, dir)
	default:
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create frame directory: %w", err)
		}
		result.Duration = s.probeDuration(ctx, video)
		s.logger.Info("Sampling frames", "video", video, "dir", dir, "fps", s.cfg.FPS, "duration", result.Duration)
		if out, err := s.run(ctx, s.cfg.FFmpegPath, s.Args(video, dir)...); err != nil {
			return nil, fmt.Errorf("ffmpeg failed: %w, output: %s", err, strings.TrimSpace(string(out)))
		}
	}

	result.Frames, err = ListOrdered(dir, Interval(s.cfg.FPS))
	if err != nil {
		return nil, err
	}
	if len(result.Frames) == 0 && !result.Reused {
		return nil, errors.New("no frames extracted from video")
	}
	s.logger.Info("Frames ready", "dir", dir, "count", len(result.Frames))
	return result, nil
}

func (s *Sampler) probeDuration(ctx context.Context, video string) float64 {
	if s.cfg.FFprobePath == "" {
		return 0
	}
	out, err := s.run(ctx, s.cfg.FFprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		video,
	)
	if err != nil {
		s.logger.Debug("Could not get video duration", "error", err)
		return 0
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		s.logger.Debug("Could not parse video duration", "output", string(out), "error", err)
		return 0
	}
	return d
}

func dirEmpty(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrFrameSource, err)
	}
	return len(entries) == 0, nil
}

func formatFPS(fps float64) string {
	return strconv.FormatFloat(fps, 'f', -1, 64)
}

func runCombined(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput() //nolint:gosec // G204: configured ffmpeg binary
}
