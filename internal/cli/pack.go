package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/gqnviz/pkg/dataset"
	"github.com/matzehuels/gqnviz/pkg/pipeline"
)

// packCommand creates the pack command.
func (c *CLI) packCommand() *cobra.Command {
	var (
		opts dataset.PackOptions
		seed uint64
	)
	cmd := &cobra.Command{
		Use:   "pack [scenes-dir] [output-dir]",
		Short: "Pack per-scene image directories into NPY shards",
		Long: `Pack reads scene directories (images/*.png with matching viewpoints/*.txt
holding "x,y,z,yaw,pitch"), centre-crops and resizes every image, samples
--views views per scene and writes NPY shards to the output directory.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			runner, err := c.newRunner(cmd.Context(), cfg, true)
			if err != nil {
				return fmt.Errorf("initialize runner: %w", err)
			}
			defer runner.Close()

			sw := startStopwatch(c.Logger)
			spinner := newSpinnerWithContext(cmd.Context(), "Packing...")
			spinner.Start()
			res, err := runner.Pack(cmd.Context(), args[0], args[1], opts, seed)
			if err != nil {
				spinner.StopWithError("Packing failed")
				return fmt.Errorf("pack: %w", err)
			}
			spinner.Stop()
			sw.done("packed", "scenes", res.Stats.SceneCount, "shards", len(res.Shards))

			printSuccess("Packed %d scenes", res.Stats.SceneCount)
			printRunStats(res)
			printFile(args[1])
			return nil
		},
	}
	cmd.Flags().IntVar(&opts.ViewsPerScene, "views", dataset.DefaultViewsPerScene, "views sampled per scene")
	cmd.Flags().IntVar(&opts.ImageSize, "size", dataset.DefaultImageSize, "output image width and height")
	cmd.Flags().IntVar(&opts.ScenesPerShard, "shard-size", 0, "scenes per shard (0: one shard)")
	cmd.Flags().Uint64Var(&seed, "seed", pipeline.DefaultSeed, "random seed for view sampling")
	return cmd
}
