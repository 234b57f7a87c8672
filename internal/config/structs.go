//nolint:lll
package config

import (
	"time"

	"github.com/MeKo-Tech/hudscan/internal/region"
)

// Config represents the complete configuration for hudscan.
// It includes settings for all commands (frames, extract, run, regions, serve) and
// supports loading from configuration files, environment variables, and command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Frame sampling
	Frames FramesConfig `mapstructure:"frames" yaml:"frames" json:"frames"`

	// Text recognition
	OCR OCRConfig `mapstructure:"ocr" yaml:"ocr" json:"ocr"`

	// Region catalog. Inline regions win over RegionsFile; neither means the
	// built-in 1920x1080 layout.
	Regions     []region.Spec `mapstructure:"regions" yaml:"regions,omitempty" json:"regions,omitempty"`
	RegionsFile string        `mapstructure:"regions_file" yaml:"regions_file" json:"regions_file"`

	// Binarization cutoff for regions marked threshold
	ThresholdCutoff int `mapstructure:"threshold_cutoff" yaml:"threshold_cutoff" json:"threshold_cutoff"`

	// Worker pool
	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline" json:"pipeline"`

	// Output configuration
	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`

	// Database sink
	Sink SinkConfig `mapstructure:"sink" yaml:"sink" json:"sink"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`
}

// FramesConfig contains frame directory and ffmpeg sampling settings.
type FramesConfig struct {
	Dir        string  `mapstructure:"dir" yaml:"dir" json:"dir"`
	FPS        float64 `mapstructure:"fps" yaml:"fps" json:"fps"`
	Format     string  `mapstructure:"format" yaml:"format" json:"format"`
	FFmpegPath string  `mapstructure:"ffmpeg_path" yaml:"ffmpeg_path" json:"ffmpeg_path"`
	MaxFPS     float64 `mapstructure:"max_fps" yaml:"max_fps" json:"max_fps"`
}

// OCRConfig contains recognition backend settings.
type OCRConfig struct {
	Language      string        `mapstructure:"language" yaml:"language" json:"language"`
	TesseractData string        `mapstructure:"tesseract_data" yaml:"tesseract_data" json:"tesseract_data"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
}

// PipelineConfig contains worker pool settings.
type PipelineConfig struct {
	Workers int `mapstructure:"workers" yaml:"workers" json:"workers"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Format      string  `mapstructure:"format" yaml:"format" json:"format"`
	File        string  `mapstructure:"file" yaml:"file" json:"file"`
	Force       bool    `mapstructure:"force" yaml:"force" json:"force"`
	ClockOffset float64 `mapstructure:"clock_offset" yaml:"clock_offset" json:"clock_offset"`
	DebugDir    string  `mapstructure:"debug_dir" yaml:"debug_dir" json:"debug_dir"`
}

// SinkConfig contains database sink settings.
type SinkConfig struct {
	PostgresDSN string `mapstructure:"postgres_dsn" yaml:"postgres_dsn" json:"-"`
	Table       string `mapstructure:"table" yaml:"table" json:"table"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	// FramesRoot confines the directories clients may ask to process.
	FramesRoot string `mapstructure:"frames_root" yaml:"frames_root" json:"frames_root"`
}
