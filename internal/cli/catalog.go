package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/gqnviz/pkg/dataset"
	"github.com/matzehuels/gqnviz/pkg/scene"
)

const timeFormat = "2006-01-02 15:04"

var tableHeaderStyle = lipgloss.NewStyle().Foreground(colorGray).Bold(true)

// catalogCommand creates the catalog command.
func (c *CLI) catalogCommand() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the run catalog",
		Long: `The catalog is a SQLite database recording every generate, observe and pack
run, the shards each one wrote and the viewpoints of every scene.`,
	}
	cmd.PersistentFlags().StringVar(&path, "catalog", "", "catalog database (default from config)")

	cmd.AddCommand(c.catalogListCommand(&path))
	cmd.AddCommand(c.catalogShardsCommand(&path))
	cmd.AddCommand(c.catalogSceneCommand(&path))
	return cmd
}

// openCatalog opens the --catalog override or the configured catalog.
func (c *CLI) openCatalog(path string) (*dataset.Catalog, error) {
	if path == "" {
		cfg, err := c.loadConfig()
		if err != nil {
			return nil, err
		}
		path = catalogPath(cfg)
	}
	return dataset.OpenCatalog(path, c.Logger)
}

func (c *CLI) catalogListCommand(path *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recorded runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := c.openCatalog(*path)
			if err != nil {
				return err
			}
			defer cat.Close()

			runs, err := cat.Runs(cmd.Context())
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				printInfo("No runs recorded")
				return nil
			}
			writeRuns(cmd.OutOrStdout(), runs)
			return nil
		},
	}
}

func (c *CLI) catalogShardsCommand(path *string) *cobra.Command {
	return &cobra.Command{
		Use:   "shards [run-id]",
		Short: "List the shards written by a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := c.openCatalog(*path)
			if err != nil {
				return err
			}
			defer cat.Close()

			shards, err := cat.Shards(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(shards) == 0 {
				printInfo("No shards recorded for %s", args[0])
				return nil
			}
			writeShards(cmd.OutOrStdout(), shards)
			return nil
		},
	}
}

func (c *CLI) catalogSceneCommand(path *string) *cobra.Command {
	return &cobra.Command{
		Use:   "scene [scene-id]",
		Short: "List the recorded viewpoints of a scene",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := c.openCatalog(*path)
			if err != nil {
				return err
			}
			defer cat.Close()

			views, err := cat.SceneViews(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			writeViews(cmd.OutOrStdout(), views)
			return nil
		},
	}
}

func writeRuns(w io.Writer, runs []dataset.Run) {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{r.ID, r.Kind, strconv.FormatUint(r.Seed, 10), r.CreatedAt.Local().Format(timeFormat)})
	}
	fmt.Fprintln(w, newTable("Run", "Kind", "Seed", "Created").Rows(rows...))
}

func writeShards(w io.Writer, shards []dataset.ShardRecord) {
	rows := make([][]string, 0, len(shards))
	for _, s := range shards {
		rows = append(rows, []string{
			s.Name,
			strconv.Itoa(s.Scenes),
			strconv.Itoa(s.Views),
			strconv.Itoa(s.Originals),
			fmt.Sprintf("%dx%d", s.Width, s.Height),
			s.Dir,
		})
	}
	fmt.Fprintln(w, newTable("Shard", "Scenes", "Views", "Frames", "Size", "Dir").Rows(rows...))
}

func writeViews(w io.Writer, views []scene.Viewpoint) {
	rows := make([][]string, 0, len(views))
	for i, v := range views {
		rows = append(rows, []string{
			strconv.Itoa(i),
			fmt.Sprintf("%.3f, %.3f, %.3f", v.Eye.X, v.Eye.Y, v.Eye.Z),
			fmt.Sprintf("%.3f", v.Yaw),
			fmt.Sprintf("%.3f", v.Pitch),
		})
	}
	fmt.Fprintln(w, newTable("View", "Eye", "Yaw", "Pitch").Rows(rows...))
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return tableHeaderStyle
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
}
