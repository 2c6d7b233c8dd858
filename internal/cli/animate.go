package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/gqnviz/pkg/animate"
	"github.com/matzehuels/gqnviz/pkg/dataset"
	"github.com/matzehuels/gqnviz/pkg/report"
	"github.com/matzehuels/gqnviz/pkg/snapshot"
)

const defaultGIFDelay = 10

// replayFlags select one observed scene.
type replayFlags struct {
	subset int
	scene  int
}

func (f *replayFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.subset, "subset", 0, "subset (shard) index in sorted order")
	cmd.Flags().IntVar(&f.scene, "scene", 0, "scene index within the subset")
}

// loadObservation opens the observation shards in dir and returns the replay
// of the selected scene with its graphs registered in a new registry.
func loadObservation(dir string, f replayFlags) (*animate.Observation, *snapshot.Registry, error) {
	ds, err := dataset.Open(dir)
	if err != nil {
		return nil, nil, err
	}
	sub, err := ds.Subset(f.subset)
	if err != nil {
		return nil, nil, err
	}
	obs, err := animate.NewObservation(sub, f.scene)
	if err != nil {
		return nil, nil, err
	}
	reg := snapshot.NewRegistry()
	if err := obs.Register(reg); err != nil {
		return nil, nil, err
	}
	return obs, reg, nil
}

// animateCommand creates the animate command.
func (c *CLI) animateCommand() *cobra.Command {
	var (
		f      replayFlags
		output string
		delay  int
		dpi    int
	)
	cmd := &cobra.Command{
		Use:   "animate [observations]",
		Short: "Render an observation replay as a GIF or PNG sequence",
		Long: `Animate replays one scene written by 'observe'. For every context size it
follows the camera around one rotation, predicts each frame with the nearest
context view and draws the context view, original frame, prediction, KL score
and the KL and squared-distance graphs.

An output ending in .gif writes an animated GIF; anything else is a directory
of frame_NNNN.png files.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("dpi") {
				dpi = cfg.Figure.DPI
			}
			obs, reg, err := loadObservation(args[0], f)
			if err != nil {
				return err
			}
			layout, err := animate.ObservationLayout()
			if err != nil {
				return err
			}

			sink, err := newSink(output, delay)
			if err != nil {
				return err
			}
			snap := snapshot.New(reg, layout, cfg.SnapshotOptions(c.Logger)...)
			sw := startStopwatch(c.Logger)
			spinner := newSpinnerWithContext(cmd.Context(), fmt.Sprintf("Rendering %d frames...", obs.Frames()))
			spinner.Start()
			a := animate.New(snap, cfg.NewFigure(),
				animate.WithDPI(dpi),
				animate.WithLogger(c.Logger),
				animate.WithProgress(spinner.Progress("Rendering frame")),
			)
			if err := a.Run(cmd.Context(), obs.Frames(), obs.Fill, sink); err != nil {
				spinner.StopWithError("Animation failed")
				return fmt.Errorf("animate: %w", err)
			}
			spinner.Stop()
			sw.done("rendered", "frames", obs.Frames(), "output", output)
			printSuccess("Rendered %d frames", obs.Frames())
			printFile(output)
			return nil
		},
	}
	f.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "progress.gif", "output GIF file or PNG directory")
	cmd.Flags().IntVar(&delay, "delay", defaultGIFDelay, "GIF frame delay in 1/100 s")
	cmd.Flags().IntVar(&dpi, "dpi", animate.DefaultDPI, "rasterization resolution")
	return cmd
}

func newSink(output string, delay int) (animate.Sink, error) {
	if strings.EqualFold(filepath.Ext(output), ".gif") {
		return animate.NewGIF(output, delay)
	}
	return animate.NewPNGSequence(output)
}

// reportCommand creates the report command.
func (c *CLI) reportCommand() *cobra.Command {
	var (
		f      replayFlags
		output string
		title  string
	)
	cmd := &cobra.Command{
		Use:   "report [observations]",
		Short: "Write the metric graphs of an observation replay as an HTML report",
		Long: `Report computes the KL and squared-distance series of one scene written by
'observe', like 'animate' does, and writes them as interactive ECharts graphs
to a single HTML page.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			obs, reg, err := loadObservation(args[0], f)
			if err != nil {
				return err
			}
			if err := fillRegistry(cmd.Context(), obs, reg); err != nil {
				return fmt.Errorf("report: %w", err)
			}
			if title == "" {
				title = cfg.Figure.Title
			}
			return writeReport(output, reg, report.Options{Title: title, UnifyY: cfg.Figure.UnifyY})
		},
	}
	f.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "report.html", "output HTML file")
	cmd.Flags().StringVar(&title, "title", "", "page title")
	return cmd
}

// fillRegistry runs every frame of obs against a scratch snapshot so only
// the registry writes remain.
func fillRegistry(ctx context.Context, obs *animate.Observation, reg *snapshot.Registry) error {
	layout, err := animate.ObservationLayout()
	if err != nil {
		return err
	}
	snap := snapshot.New(reg, layout)
	for i := range obs.Frames() {
		if err := ctx.Err(); err != nil {
			return err
		}
		snap.Reset()
		if err := obs.Fill(ctx, i, snap); err != nil {
			return err
		}
	}
	return nil
}

func writeReport(path string, reg *snapshot.Registry, o report.Options) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := report.Write(f, reg, o); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	printSuccess("Wrote report with %d graphs", reg.Len())
	printFile(path)
	return nil
}
