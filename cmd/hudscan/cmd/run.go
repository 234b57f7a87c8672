package cmd

import (
	"github.com/spf13/cobra"
)

func newRunCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run VIDEO",
		Short: "Sample a video and extract its telemetry in one step",
		Long: `Sample frames from a video with ffmpeg and extract telemetry records from them.

This is equivalent to "hudscan frames" followed by "hudscan extract" on the
same directory; --fps controls both the sampling rate and the frame offsets.

Examples:
  hudscan run flight.mp4 -o flight.csv
  hudscan run flight.mp4 --dir frames/ --reuse --format yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.config()
			applyFrameFlags(cmd, &cfg)
			applyExtractFlags(cmd, &cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}

			video := args[0]
			dir := cfg.Frames.Dir
			if dir == "" {
				dir = defaultFrameDir(video)
			}

			sampler, err := newSampler(cmd, &cfg)
			if err != nil {
				return err
			}
			sampled, err := sampler.Sample(cmd.Context(), video, dir)
			if err != nil {
				return err
			}
			// The sampler may have clamped the rate.
			cfg.Frames.FPS = sampled.FPS

			ex := &extraction{cfg: &cfg, source: video, samples: sampled.Frames}
			_, err = ex.run(cmd)
			return err
		},
	}

	addFrameFlags(cmd)
	addExtractFlags(cmd)
	return cmd
}
