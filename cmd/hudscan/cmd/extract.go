package cmd

import (
	"fmt"

	"github.com/MeKo-Tech/hudscan/internal/frames"
	"github.com/spf13/cobra"
)

func newExtractCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract DIR",
		Short: "Extract telemetry records from a directory of frames",
		Long: `Extract telemetry records from a directory of sampled frames.

Frames are processed in file name order. Every frame is either accepted as a
complete record or rejected with a reason; rejections never stop the run.
Records are written in frame order, the summary and error rate go to stderr.

Examples:
  hudscan extract frames/
  hudscan extract frames/ -o flight.csv --force
  hudscan extract frames/ --format json --fps 3 --workers 8
  hudscan extract frames/ --format postgres --postgres-dsn postgres://localhost/hud`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.config()
			applyExtractFlags(cmd, &cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}

			dir := args[0]
			samples, err := frames.ListOrdered(dir, frames.Interval(cfg.Frames.FPS))
			if err != nil {
				return fmt.Errorf("failed to list frames: %w", err)
			}

			ex := &extraction{cfg: &cfg, source: dir, samples: samples}
			_, err = ex.run(cmd)
			return err
		},
	}

	addExtractFlags(cmd)
	return cmd
}
