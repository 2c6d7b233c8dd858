// Package cli implements the gqnviz command-line interface.
package cli

import (
	"context"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/gqnviz/pkg/cache"
	"github.com/matzehuels/gqnviz/pkg/config"
	"github.com/matzehuels/gqnviz/pkg/dataset"
	"github.com/matzehuels/gqnviz/pkg/pipeline"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for display.
	appName = "gqnviz"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// configPath is bound to the persistent --config flag.
	configPath string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// =============================================================================
// Config and Runner Factory
// =============================================================================

// loadConfig reads --config, or returns the defaults when it is unset.
func (c *CLI) loadConfig() (config.Config, error) {
	if c.configPath == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return config.Config{}, err
	}
	c.Logger.Debug("loaded config", "path", c.configPath, "graphs", len(cfg.Graphs))
	return cfg, nil
}

// newRunner creates a pipeline runner with the configured cache and catalog.
func (c *CLI) newRunner(ctx context.Context, cfg config.Config, noCache bool) (*pipeline.Runner, error) {
	var vc cache.Cache = cache.NewNullCache()
	if !noCache {
		opened, err := cfg.Cache.Open(ctx, c.Logger)
		if err != nil {
			return nil, err
		}
		vc = opened
	}
	r := pipeline.NewRunner(vc, nil, nil, c.Logger)
	r.ViewTTL = cfg.Cache.TTL

	if cfg.Catalog.Path != "" {
		cat, err := dataset.OpenCatalog(cfg.Catalog.Path, c.Logger)
		if err != nil {
			vc.Close()
			return nil, err
		}
		r.Catalog = cat
	}
	return r, nil
}

// catalogPath returns the configured catalog, or the default file name.
func catalogPath(cfg config.Config) string {
	if cfg.Catalog.Path != "" {
		return cfg.Catalog.Path
	}
	return config.DefaultCatalog
}

// =============================================================================
// Flag Helpers
// =============================================================================

// overrideInt copies a flag value over a config value when the flag was set.
func overrideInt(cmd *cobra.Command, name string, dst *int, v int) {
	if cmd.Flags().Changed(name) {
		*dst = v
	}
}
