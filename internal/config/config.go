package config

import (
	"fmt"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/MeKo-Tech/hudscan/internal/frames"
	"github.com/MeKo-Tech/hudscan/internal/ocr"
	"github.com/MeKo-Tech/hudscan/internal/region"
	"github.com/MeKo-Tech/hudscan/internal/sink"
	"github.com/MeKo-Tech/hudscan/internal/utils"
)

const (
	// DefaultClockOffset is the manual correction between the on-screen
	// clock and video time, in seconds.
	DefaultClockOffset = 7.75
	// DefaultOCRTimeout bounds a single recognize call.
	DefaultOCRTimeout = 10 * time.Second
)

// LogLevels lists the accepted log_level values.
var LogLevels = []string{"debug", "info", "warn", "error"}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	sampler := frames.DefaultSamplerConfig()
	return Config{
		LogLevel: "info",
		Frames: FramesConfig{
			FPS:        sampler.FPS,
			Format:     sampler.Format,
			FFmpegPath: sampler.FFmpegPath,
			MaxFPS:     sampler.MaxFPS,
		},
		OCR: OCRConfig{
			Language: ocr.DefaultConfig().Language,
			Timeout:  DefaultOCRTimeout,
		},
		ThresholdCutoff: int(utils.DefaultBinarizeCutoff),
		Pipeline: PipelineConfig{
			Workers: runtime.NumCPU(),
		},
		Output: OutputConfig{
			Format:      sink.FormatCSV,
			ClockOffset: DefaultClockOffset,
		},
		Sink: SinkConfig{
			Table: sink.DefaultTable,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			ShutdownTimeout: 10,
		},
	}
}

// ConfigError reports an invalid configuration key.
type ConfigError struct {
	Key string
	Err error
}

func (e *ConfigError) Error() string { return e.Err.Error() }

func (e *ConfigError) Unwrap() error { return e.Err }

func invalid(key, format string, args ...any) error {
	return &ConfigError{Key: key, Err: fmt.Errorf(format, args...)}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	if !slices.Contains(LogLevels, c.LogLevel) {
		return invalid("log_level", "invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(LogLevels, ", "))
	}

	if !slices.Contains(sink.Formats, c.Output.Format) {
		return invalid("output.format", "invalid output format: %s (must be one of: %s)",
			c.Output.Format, strings.Join(sink.Formats, ", "))
	}
	if c.Output.Format == sink.FormatPostgres {
		if c.Sink.PostgresDSN == "" {
			return invalid("sink.postgres_dsn", "output format postgres requires sink.postgres_dsn")
		}
		if err := sink.ValidateTableName(c.Sink.Table); err != nil {
			return invalid("sink.table", "invalid sink table: %w", err)
		}
	}

	if c.Frames.FPS <= 0 {
		return invalid("frames.fps", "invalid frames fps: %g (must be positive)", c.Frames.FPS)
	}
	if c.Frames.MaxFPS <= 0 {
		return invalid("frames.max_fps", "invalid frames max_fps: %g (must be positive)", c.Frames.MaxFPS)
	}
	if !utils.IsSupportedImage("frame." + strings.TrimPrefix(c.Frames.Format, ".")) {
		return invalid("frames.format", "invalid frames format: %q (must be one of: %s)",
			c.Frames.Format, strings.Join(utils.SupportedImageExtensions, ", "))
	}

	if c.ThresholdCutoff < 0 || c.ThresholdCutoff > 255 {
		return invalid("threshold_cutoff", "invalid threshold cutoff: %d (must be between 0 and 255)", c.ThresholdCutoff)
	}
	if c.OCR.Timeout < 0 {
		return invalid("ocr.timeout", "invalid ocr timeout: %s (must not be negative)", c.OCR.Timeout)
	}
	if c.Pipeline.Workers <= 0 {
		return invalid("pipeline.workers", "invalid pipeline workers: %d (must be positive)", c.Pipeline.Workers)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return invalid("server.port", "invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return invalid("server.shutdown_timeout", "invalid shutdown timeout: %d (must be positive)", c.Server.ShutdownTimeout)
	}

	if len(c.Regions) > 0 {
		if _, err := region.FromSpecs(c.Regions); err != nil {
			return &ConfigError{Key: "regions", Err: err}
		}
	}
	return nil
}

// Catalog builds the region catalog: inline regions first, then the
// regions file, then the built-in layout.
func (c *Config) Catalog() (*region.Catalog, error) {
	switch {
	case len(c.Regions) > 0:
		return region.FromSpecs(c.Regions)
	case c.RegionsFile != "":
		return region.LoadFile(c.RegionsFile)
	default:
		return region.DefaultCatalog(), nil
	}
}

// ToOCRConfig converts the ocr section into the backend configuration.
func (c *Config) ToOCRConfig() ocr.Config {
	return ocr.Config{
		Language:       c.OCR.Language,
		TessdataPrefix: c.OCR.TesseractData,
		Timeout:        c.OCR.Timeout,
	}
}

// ToSamplerConfig converts the frames section into the ffmpeg sampler
// configuration.
func (c *Config) ToSamplerConfig() frames.SamplerConfig {
	cfg := frames.DefaultSamplerConfig()
	cfg.FPS = c.Frames.FPS
	cfg.MaxFPS = c.Frames.MaxFPS
	cfg.Format = strings.TrimPrefix(strings.ToLower(c.Frames.Format), ".")
	if c.Frames.FFmpegPath != "" {
		cfg.FFmpegPath = c.Frames.FFmpegPath
	}
	return cfg
}

// ToSinkOptions converts the output and sink sections into sink options.
func (c *Config) ToSinkOptions() sink.Options {
	return sink.Options{
		Format:      c.Output.Format,
		Path:        c.Output.File,
		Force:       c.Output.Force,
		FPS:         c.Frames.FPS,
		ClockOffset: c.Output.ClockOffset,
		PostgresDSN: c.Sink.PostgresDSN,
		Table:       c.Sink.Table,
	}
}

// Cutoff returns the binarization cutoff as a byte.
func (c *Config) Cutoff() uint8 {
	return uint8(c.ThresholdCutoff) //nolint:gosec // G115: range checked in Validate
}
