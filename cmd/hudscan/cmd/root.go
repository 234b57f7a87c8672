package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/MeKo-Tech/hudscan/internal/config"
	"github.com/MeKo-Tech/hudscan/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app carries the configuration shared by all subcommands of one root
// command instance.
type app struct {
	cfgFile string
	v       *viper.Viper
	loader  *config.Loader
	cfg     *config.Config
}

// Execute builds the root command and runs it until completion or until
// SIGINT/SIGTERM cancels the context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCommand().ExecuteContext(ctx)
}

// NewRootCommand returns a fresh command tree. Tests use it to run commands
// in-process without sharing flag state between runs.
func NewRootCommand() *cobra.Command {
	a := &app{v: viper.New()}
	a.loader = config.NewLoaderWithViper(a.v)

	rootCmd := &cobra.Command{
		Use:   "hudscan",
		Short: "Extract telemetry from a recorded HUD overlay",
		Long: `hudscan reads the telemetry overlay of a screen recording (clock, altitude,
speed, heart rate, respiration) and turns it into an ordered table of readings
plus the measured extraction error rate.

Frames are sampled from the video with ffmpeg, fixed pixel regions are cropped
from every frame and recognized with Tesseract, and each frame is accepted or
rejected as a whole.

Examples:
  hudscan run flight.mp4 -o flight.csv
  hudscan frames flight.mp4 --fps 3 --dir frames/
  hudscan extract frames/ --format json --workers 8
  hudscan regions --check frames/img000001_fps_3.bmp
  hudscan serve --port 8080`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(); err != nil {
				return err
			}
			setupLogging(cmd, a.cfg)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if v, _ := cmd.Flags().GetBool("version"); v {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.String())
				return nil
			}
			return cmd.Help()
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "",
		"config file (default is search in ., $HOME, $HOME/.config/hudscan, /etc/hudscan)")
	pf.BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.Flags().Bool("version", false, "print version information and exit")

	_ = a.v.BindPFlag("verbose", pf.Lookup("verbose"))
	_ = a.v.BindPFlag("log_level", pf.Lookup("log-level"))

	rootCmd.AddCommand(
		newFramesCommand(a),
		newExtractCommand(a),
		newRunCommand(a),
		newRegionsCommand(a),
		newServeCommand(a),
		newConfigCommand(a),
	)
	return rootCmd
}

// load reads the configuration file, environment and bound flags. Command
// specific flags are applied on top by each command.
func (a *app) load() error {
	var err error
	if a.cfgFile != "" {
		a.cfg, err = a.loader.LoadWithFile(a.cfgFile)
	} else {
		a.cfg, err = a.loader.Load()
	}
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	return nil
}

// config returns a copy of the loaded configuration for a command to modify.
func (a *app) config() config.Config {
	if a.cfg == nil {
		return config.DefaultConfig()
	}
	return *a.cfg
}

// setupLogging installs a JSON slog handler on stderr. Stdout is reserved
// for command output such as CSV records.
func setupLogging(cmd *cobra.Command, cfg *config.Config) {
	var logLevel slog.Level
	if cfg.Verbose {
		logLevel = slog.LevelDebug
	} else {
		switch cfg.LogLevel {
		case "debug":
			logLevel = slog.LevelDebug
		case "warn":
			logLevel = slog.LevelWarn
		case "error":
			logLevel = slog.LevelError
		default:
			logLevel = slog.LevelInfo
		}
	}

	logger := slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
}
