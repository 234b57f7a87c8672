package cmd

import (
	"fmt"

	"github.com/MeKo-Tech/hudscan/internal/frames"
	"github.com/spf13/cobra"
)

func newRegionsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "regions",
		Short: "Print the region catalog or check it against a frame",
		Long: `Print the active region catalog as YAML.

The catalog comes from the regions section of the configuration, the file given
with --regions, or the built-in 1920x1080 layout. The output can be edited and
passed back with --regions.

With --check FRAME every enabled region is verified to lie inside the frame,
which is what extract does with the first frame of a run.

Examples:
  hudscan regions > regions.yaml
  hudscan regions --regions regions.yaml --check frames/img000001_fps_3.bmp`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.config()
			overrideString(cmd, "regions", &cfg.RegionsFile)
			if cmd.Flags().Changed("regions") {
				cfg.Regions = nil
			}

			catalog, err := cfg.Catalog()
			if err != nil {
				return fmt.Errorf("failed to load region catalog: %w", err)
			}

			check, _ := cmd.Flags().GetString("check")
			if check == "" {
				data, err := catalog.Marshal()
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}

			bounds, err := frames.Size(check)
			if err != nil {
				return err
			}
			if err := catalog.ValidateBounds(bounds); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "OK: %d enabled regions fit the %dx%d frame %s\n",
				len(catalog.Regions()), bounds.Dx(), bounds.Dy(), check)
			return nil
		},
	}

	cmd.Flags().String("regions", "", "YAML file with the region catalog")
	cmd.Flags().String("check", "", "verify the catalog against this frame")
	return cmd
}
