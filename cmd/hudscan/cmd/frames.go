package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newFramesCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "frames VIDEO",
		Short: "Sample still frames from a video with ffmpeg",
		Long: `Sample still frames from a video at a fixed rate using ffmpeg.

Frames are written as img000001_fps_F.EXT, numbered in video order. The frame
directory is created when missing; a directory that already holds files is
refused unless --reuse is given, in which case its frames are kept as they are.

Examples:
  hudscan frames flight.mp4
  hudscan frames flight.mp4 --fps 5 --dir frames/ --frame-format png
  hudscan frames flight.mp4 --dir frames/ --reuse`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.config()
			applyFrameFlags(cmd, &cfg)
			overrideFloat(cmd, "fps", &cfg.Frames.FPS)
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
			res, err := sampler.Sample(cmd.Context(), video, dir)
			if err != nil {
				return err
			}

			verb := "Sampled"
			if res.Reused {
				verb = "Reused"
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %d frames in %s at %g fps\n", verb, len(res.Frames), res.Dir, res.FPS)
			return nil
		},
	}

	addFrameFlags(cmd)
	cmd.Flags().Float64("fps", 3, "frames sampled per second of video")
	return cmd
}
