package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/gqnviz/pkg/buildinfo"
)

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "gqnviz renders GQN datasets and training dashboards",
		Long: `gqnviz generates block-scene datasets for Generative Query Networks by ray
tracing random scenes from random viewpoints, and renders multi-panel training
progress figures (images, scalar annotations and metric graphs) as PNG
sequences, GIFs, HTML reports or a live dashboard.`,
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "TOML config file")

	root.AddCommand(c.generateCommand())
	root.AddCommand(c.observeCommand())
	root.AddCommand(c.packCommand())
	root.AddCommand(c.animateCommand())
	root.AddCommand(c.reportCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.catalogCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}
