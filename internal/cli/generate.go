package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/matzehuels/gqnviz/pkg/dataset"
	"github.com/matzehuels/gqnviz/pkg/pipeline"
	"github.com/matzehuels/gqnviz/pkg/raytrace"
	"github.com/matzehuels/gqnviz/pkg/scene"
)

// runFlags are the generator flags shared by generate and observe. Each one
// overrides the [generate] section of the config only when set.
type runFlags struct {
	scenes     int
	cubes      int
	colors     int
	size       int
	views      int
	perShard   int
	frames     int
	projection string
	rays       int
	bounces    int
	threads    int
	seed       uint64
	noCache    bool
	refresh    bool
	tui        bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.IntVarP(&f.scenes, "scenes", "n", pipeline.DefaultNumScenes, "number of scenes")
	fl.IntVar(&f.cubes, "cubes", scene.DefaultNumCubes, "cubes per scene")
	fl.IntVar(&f.colors, "colors", pipeline.DefaultNumColors, "size of the colour palette")
	fl.IntVar(&f.size, "size", dataset.DefaultImageSize, "image width and height in pixels")
	fl.IntVar(&f.views, "views", dataset.DefaultViewsPerScene, "views per scene")
	fl.IntVar(&f.perShard, "shard-size", 0, "scenes per shard (0: one shard)")
	fl.IntVar(&f.frames, "frames", pipeline.DefaultFramesPerRotation, "rotation frames per observation")
	fl.StringVar(&f.projection, "projection", pipeline.ProjectionOrthographic, "camera projection: orthographic, perspective")
	fl.IntVar(&f.rays, "rays", raytrace.DefaultRaysPerPixel, "rays per pixel")
	fl.IntVar(&f.bounces, "bounces", raytrace.DefaultMaxBounce, "maximum ray bounces")
	fl.IntVar(&f.threads, "threads", raytrace.DefaultNumThreads, "tracing goroutines")
	fl.Uint64Var(&f.seed, "seed", pipeline.DefaultSeed, "random seed")
	fl.BoolVar(&f.noCache, "no-cache", false, "disable the view cache")
	fl.BoolVar(&f.refresh, "refresh", false, "re-trace views instead of reading the cache")
	fl.BoolVar(&f.tui, "tui", false, "show an interactive progress view")
}

// options merges the config section with the flags that were set.
func (f *runFlags) options(cmd *cobra.Command, base pipeline.Options) pipeline.Options {
	opts := base
	overrideInt(cmd, "scenes", &opts.NumScenes, f.scenes)
	overrideInt(cmd, "cubes", &opts.NumCubes, f.cubes)
	overrideInt(cmd, "colors", &opts.NumColors, f.colors)
	overrideInt(cmd, "size", &opts.ImageSize, f.size)
	overrideInt(cmd, "views", &opts.ViewsPerScene, f.views)
	overrideInt(cmd, "shard-size", &opts.ScenesPerShard, f.perShard)
	overrideInt(cmd, "frames", &opts.FramesPerRotation, f.frames)
	overrideInt(cmd, "rays", &opts.RaysPerPixel, f.rays)
	overrideInt(cmd, "bounces", &opts.MaxBounce, f.bounces)
	overrideInt(cmd, "threads", &opts.NumThreads, f.threads)
	if cmd.Flags().Changed("projection") {
		opts.Projection = f.projection
	}
	if cmd.Flags().Changed("seed") {
		opts.Seed = f.seed
	}
	opts.Refresh = f.refresh
	return opts
}

type stageFunc func(r *pipeline.Runner, ctx context.Context, dir string, opts pipeline.Options) (*pipeline.Result, error)

// run executes one pipeline stage with a spinner, or the progress view with
// --tui.
func (c *CLI) run(cmd *cobra.Command, f *runFlags, title, dir string, raw bool, stage stageFunc) (*pipeline.Result, error) {
	ctx := cmd.Context()
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	if f.noCache && f.refresh {
		printWarning("--refresh has no effect with --no-cache")
	}
	opts := f.options(cmd, cfg.Generate.Options())
	opts.Raw = raw
	opts.Logger = c.Logger
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}

	runner, err := c.newRunner(ctx, cfg, f.noCache)
	if err != nil {
		return nil, fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	if f.tui {
		var res *pipeline.Result
		err := runWithTUI(ctx, title, func(ctx context.Context, report func(pipeline.Progress)) error {
			opts.Progress = report
			var err error
			res, err = stage(runner, ctx, dir, opts)
			return err
		})
		return res, err
	}

	spinner := newSpinnerWithContext(ctx, title+"...")
	spinner.Start()
	res, err := stage(runner, ctx, dir, opts)
	if err != nil {
		spinner.StopWithError(title + " failed")
		return nil, err
	}
	spinner.Stop()
	return res, nil
}

// generateCommand creates the generate command.
func (c *CLI) generateCommand() *cobra.Command {
	var (
		f   runFlags
		raw bool
	)
	cmd := &cobra.Command{
		Use:   "generate [dir]",
		Short: "Ray trace a dataset of random block scenes",
		Long: `Generate builds random scenes of connected unit cubes, ray traces each one
from random viewpoints on a sphere around the origin and writes the views as
NPY shards (images/, viewpoints/).

With --raw the views are written as per-scene directories of PNG images and
viewpoint text files instead; 'pack' turns those into shards.

Traced views are cached, so re-running with the same seed and tracing options
only traces what changed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			res, err := c.run(cmd, &f, "Generating", dir, raw, (*pipeline.Runner).Generate)
			if err != nil {
				return fmt.Errorf("generate: %w", err)
			}
			printSuccess("Generated %d scenes", res.Stats.SceneCount)
			printRunStats(res)
			printFile(dir)
			if raw {
				printNextStep("Pack into shards", fmt.Sprintf("%s pack %s %s", appName, dir, filepath.Join(dir, "packed")))
			} else {
				printNextStep("Render observations", fmt.Sprintf("%s observe %s", appName, dir))
			}
			return nil
		},
	}
	f.register(cmd)
	cmd.Flags().BoolVar(&raw, "raw", false, "write per-scene PNG directories instead of shards")
	return cmd
}

// observeCommand creates the observe command.
func (c *CLI) observeCommand() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "observe [dataset]",
		Short: "Render rotation frames for the scenes of a dataset",
		Long: `Observe reads the viewpoints of every scene in a dataset, rebuilds a scene
for each, traces the query views plus a full camera rotation and writes one
shard per scene to <dataset>/test_data. 'animate' and 'report' replay these
shards.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.run(cmd, &f, "Observing", args[0], false, (*pipeline.Runner).Observe)
			if err != nil {
				return fmt.Errorf("observe: %w", err)
			}
			printSuccess("Rendered %d observations", res.Stats.SceneCount)
			printRunStats(res)
			printFile(res.Dir)
			printNextStep("Animate", fmt.Sprintf("%s animate %s -o progress.gif", appName, res.Dir))
			return nil
		},
	}
	f.register(cmd)
	return cmd
}
