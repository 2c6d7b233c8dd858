package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/gqnviz/internal/server"
	"github.com/matzehuels/gqnviz/pkg/cache"
)

const defaultAddr = ":8080"

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr    string
		noCache bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a live training dashboard over HTTP",
		Long: `Serve registers the graphs of the config and accepts metric writes over HTTP.
The current figure is rendered on request as PNG and the graphs as an HTML
report:

  POST /api/graphs/{graph}/series/{series}/frames/{frame}  {"value": 0.5}
  GET  /api/graphs
  GET  /frame.png?frame=N
  GET  /report`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			reg, err := cfg.Registry()
			if err != nil {
				return err
			}

			var fc cache.Cache = cache.NewNullCache()
			if !noCache {
				if fc, err = cfg.Cache.Open(ctx, c.Logger); err != nil {
					return err
				}
			}
			defer fc.Close()

			srv, err := server.New(cfg, reg, fc, c.Logger)
			if err != nil {
				return err
			}
			printInfo("Serving %d graphs on %s", reg.Len(), addr)
			if err := srv.ListenAndServe(ctx, addr); err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", defaultAddr, "listen address")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the rendered frame cache")
	return cmd
}
