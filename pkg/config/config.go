// Package config loads gqnviz settings from a TOML file.
//
// A file has up to five parts, all optional:
//
//	[figure]            # canvas size, resolution and output format
//	width = 12.0        # inches
//	height = 4.0
//	dpi = 72
//	format = "png"
//	unify_y = false
//
//	[layout]            # uniform grid, or custom spans when panels are listed
//	rows = 1
//	cols = 3
//	[[layout.panel]]
//	position = 3
//	row = 0
//	col = 2
//
//	[[graph]]           # one block per registered graph
//	id = "kl"
//	position = 3
//	type = "plot"
//	mode = "sequential"
//	frame_capacity = 36
//	colors = ["tab:blue"]
//	markers = ["o"]
//
//	[generate]          # dataset generator, see pipeline.Options
//	[cache]             # view cache backend
//	[catalog]           # run catalog database
//
// [Load] applies defaults and validates; command-line flags override the
// loaded values afterwards.
package config

import (
	"context"
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/colornames"
	"gonum.org/v1/plot/vg"

	"github.com/matzehuels/gqnviz/pkg/cache"
	"github.com/matzehuels/gqnviz/pkg/errors"
	"github.com/matzehuels/gqnviz/pkg/figure"
	"github.com/matzehuels/gqnviz/pkg/pipeline"
	"github.com/matzehuels/gqnviz/pkg/snapshot"
)

// Default values.
const (
	DefaultWidth   = 12.0
	DefaultHeight  = 4.0
	DefaultDPI     = 72
	DefaultFormat  = "png"
	DefaultRows    = 1
	DefaultCols    = 3
	DefaultCatalog = "gqnviz.db"
)

// Cache backends.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
	BackendNone  = "none"
)

// Config is the root of a configuration file.
type Config struct {
	Figure   FigureConfig   `toml:"figure"`
	Layout   LayoutConfig   `toml:"layout"`
	Graphs   []GraphConfig  `toml:"graph"`
	Generate GenerateConfig `toml:"generate"`
	Cache    CacheConfig    `toml:"cache"`
	Catalog  CatalogConfig  `toml:"catalog"`
}

// FigureConfig sizes the dashboard canvas.
type FigureConfig struct {
	Width  float64 `toml:"width"`
	Height float64 `toml:"height"`
	DPI    int     `toml:"dpi"`
	Format string  `toml:"format"`
	Title  string  `toml:"title"`
	UnifyY bool    `toml:"unify_y"`
}

// LayoutConfig is a uniform grid, or a custom layout when Panels is set.
type LayoutConfig struct {
	Rows   int           `toml:"rows"`
	Cols   int           `toml:"cols"`
	Panels []PanelConfig `toml:"panel"`
}

// PanelConfig places one position of a custom layout.
type PanelConfig struct {
	Position int `toml:"position"`
	Row      int `toml:"row"`
	Col      int `toml:"col"`
	RowSpan  int `toml:"row_span"`
	ColSpan  int `toml:"col_span"`
}

// GraphConfig describes one graph.
type GraphConfig struct {
	ID             string   `toml:"id"`
	Position       int      `toml:"position"`
	Type           string   `toml:"type"`
	Mode           string   `toml:"mode"`
	FrameCapacity  int      `toml:"frame_capacity"`
	FramesPerCycle int      `toml:"frames_per_cycle"`
	SeriesCount    int      `toml:"series_count"`
	Colors         []string `toml:"colors"`
	Markers        []string `toml:"markers"`
	Legends        []string `toml:"legends"`
	XScale         string   `toml:"xscale"`
	YScale         string   `toml:"yscale"`
	HideXTicks     bool     `toml:"hide_x_ticks"`
	HideYTicks     bool     `toml:"hide_y_ticks"`
}

// GenerateConfig holds the generator settings. Zero values take the
// pipeline defaults.
type GenerateConfig struct {
	NumScenes         int    `toml:"num_scenes"`
	NumCubes          int    `toml:"num_cubes"`
	NumColors         int    `toml:"num_colors"`
	ImageSize         int    `toml:"image_size"`
	ViewsPerScene     int    `toml:"views_per_scene"`
	ScenesPerShard    int    `toml:"scenes_per_shard"`
	FramesPerRotation int    `toml:"frames_per_rotation"`
	Projection        string `toml:"projection"`
	RaysPerPixel      int    `toml:"rays_per_pixel"`
	MaxBounce         int    `toml:"max_bounce"`
	NumThreads        int    `toml:"num_threads"`
	Seed              uint64 `toml:"seed"`
}

// CacheConfig selects the view cache backend.
type CacheConfig struct {
	Backend       string        `toml:"backend"`
	Dir           string        `toml:"dir"`
	RedisAddr     string        `toml:"redis_addr"`
	RedisPassword string        `toml:"redis_password"`
	RedisDB       int           `toml:"redis_db"`
	Prefix        string        `toml:"prefix"`
	TTL           time.Duration `toml:"ttl"`
}

// CatalogConfig locates the run catalog. An empty path disables it.
type CatalogConfig struct {
	Path string `toml:"path"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	var c Config
	c.SetDefaults()
	return c
}

// Load reads, defaults and validates the file at path. Unknown keys are an
// error so typos do not pass silently.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Config{}, errors.Wrap(errors.ErrCodeNotFound, err, "config file %s", path)
	}
	if err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidPath, err, "read config %s", path)
	}
	c, err := Parse(string(data))
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse decodes, defaults and validates TOML text.
func Parse(data string) (Config, error) {
	var c Config
	md, err := toml.Decode(data, &c)
	if err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse config")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, errors.New(errors.ErrCodeInvalidConfig, "unknown config keys: %s", strings.Join(keys, ", "))
	}
	c.SetDefaults()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// SetDefaults fills zero fields.
func (c *Config) SetDefaults() {
	if c.Figure.Width == 0 {
		c.Figure.Width = DefaultWidth
	}
	if c.Figure.Height == 0 {
		c.Figure.Height = DefaultHeight
	}
	if c.Figure.DPI == 0 {
		c.Figure.DPI = DefaultDPI
	}
	if c.Figure.Format == "" {
		c.Figure.Format = DefaultFormat
	}
	if c.Layout.Rows == 0 {
		c.Layout.Rows = DefaultRows
	}
	if c.Layout.Cols == 0 {
		c.Layout.Cols = DefaultCols
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = BackendFile
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = cache.TTLView
	}
}

// Validate checks a defaulted configuration.
func (c Config) Validate() error {
	if c.Figure.Width <= 0 || c.Figure.Height <= 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "figure size %gx%g must be positive", c.Figure.Width, c.Figure.Height)
	}
	if c.Figure.DPI < 1 {
		return errors.New(errors.ErrCodeInvalidConfig, "figure dpi must be >= 1, got %d", c.Figure.DPI)
	}
	if err := ValidateFormat(c.Figure.Format); err != nil {
		return err
	}
	if _, err := c.SnapshotLayout(); err != nil {
		return err
	}
	for _, g := range c.Graphs {
		if _, err := g.Snapshot(); err != nil {
			return err
		}
	}
	opts := c.Generate.Options()
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return err
	}
	switch c.Cache.Backend {
	case BackendFile, BackendNone:
	case BackendRedis:
		if c.Cache.RedisAddr == "" {
			return errors.New(errors.ErrCodeInvalidConfig, "cache backend redis needs redis_addr")
		}
	default:
		return errors.New(errors.ErrCodeInvalidConfig,
			"invalid cache backend: %q (must be one of: file, redis, none)", c.Cache.Backend)
	}
	if c.Cache.TTL < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "cache ttl must not be negative, got %s", c.Cache.TTL)
	}
	return nil
}

// ValidateFormat checks that a figure output format is supported.
func ValidateFormat(format string) error {
	for _, f := range figure.Formats {
		if f == format {
			return nil
		}
	}
	return errors.New(errors.ErrCodeInvalidConfig,
		"invalid format: %q (must be one of: %s)", format, strings.Join(figure.Formats, ", "))
}

// NewFigure returns an empty figure of the configured size.
func (c Config) NewFigure() *figure.Figure {
	return figure.New(vg.Length(c.Figure.Width)*vg.Inch, vg.Length(c.Figure.Height)*vg.Inch)
}

// SnapshotLayout builds the configured layout.
func (c Config) SnapshotLayout() (snapshot.Layout, error) {
	if len(c.Layout.Panels) == 0 {
		return snapshot.Grid(c.Layout.Rows, c.Layout.Cols)
	}
	spans := make(map[int]snapshot.Span, len(c.Layout.Panels))
	for _, p := range c.Layout.Panels {
		if _, dup := spans[p.Position]; dup {
			return snapshot.Layout{}, errors.New(errors.ErrCodeInvalidConfig, "layout panel %d is listed twice", p.Position)
		}
		spans[p.Position] = snapshot.Span{Row: p.Row, Col: p.Col, RowSpan: p.RowSpan, ColSpan: p.ColSpan}
	}
	return snapshot.Custom(c.Layout.Rows, c.Layout.Cols, spans)
}

// Registry returns a registry with every configured graph registered.
func (c Config) Registry() (*snapshot.Registry, error) {
	reg := snapshot.NewRegistry()
	for _, g := range c.Graphs {
		sg, err := g.Snapshot()
		if err != nil {
			return nil, err
		}
		if err := reg.Register(sg); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// SnapshotOptions returns the snapshot options of the figure section.
func (c Config) SnapshotOptions(logger *log.Logger) []snapshot.Option {
	opts := []snapshot.Option{snapshot.WithLogger(logger)}
	if c.Figure.UnifyY {
		opts = append(opts, snapshot.WithUnifiedYAxis())
	}
	return opts
}

// Snapshot converts g to a registry configuration. Colors and markers
// default to one per series: the tab10 cycle and no marker.
func (g GraphConfig) Snapshot() (snapshot.GraphConfig, error) {
	n := g.SeriesCount
	if n == 0 {
		n = 1
	}
	style := snapshot.Style{
		Legends:    g.Legends,
		XScale:     snapshot.Scale(g.XScale),
		YScale:     snapshot.Scale(g.YScale),
		HideXTicks: g.HideXTicks,
		HideYTicks: g.HideYTicks,
	}

	colors := g.Colors
	if colors == nil {
		for i := range n {
			colors = append(colors, tab10[i%len(tab10)])
		}
	}
	for _, s := range colors {
		c, err := ParseColor(s)
		if err != nil {
			return snapshot.GraphConfig{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "graph %q", g.ID)
		}
		style.Colors = append(style.Colors, c)
	}

	if g.Markers == nil {
		style.Markers = make([]snapshot.Marker, n)
	}
	for _, s := range g.Markers {
		m, err := snapshot.ParseMarker(s)
		if err != nil {
			return snapshot.GraphConfig{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "graph %q", g.ID)
		}
		style.Markers = append(style.Markers, m)
	}

	sg := snapshot.GraphConfig{
		ID:             g.ID,
		Position:       g.Position,
		Type:           snapshot.Type(g.Type),
		Mode:           snapshot.Mode(g.Mode),
		FrameCapacity:  g.FrameCapacity,
		FramesPerCycle: g.FramesPerCycle,
		SeriesCount:    g.SeriesCount,
		Style:          style,
	}
	if sg.FramesPerCycle == 0 {
		sg.FramesPerCycle = 1
	}
	if sg.SeriesCount == 0 {
		sg.SeriesCount = 1
	}
	if err := sg.Validate(); err != nil {
		return snapshot.GraphConfig{}, err
	}
	return sg, nil
}

// tab10 is the default series colour cycle.
var tab10 = []string{
	"tab:blue", "tab:orange", "tab:green", "tab:red", "tab:purple",
	"tab:brown", "tab:pink", "tab:gray", "tab:olive", "tab:cyan",
}

var tableau = map[string]string{
	"tab:blue":   "#1f77b4",
	"tab:orange": "#ff7f0e",
	"tab:green":  "#2ca02c",
	"tab:red":    "#d62728",
	"tab:purple": "#9467bd",
	"tab:brown":  "#8c564b",
	"tab:pink":   "#e377c2",
	"tab:gray":   "#7f7f7f",
	"tab:olive":  "#bcbd22",
	"tab:cyan":   "#17becf",
}

// ParseColor accepts an SVG colour name ("steelblue"), a tableau name
// ("tab:orange") or a hex code ("#rrggbb" or "#rgb").
func ParseColor(s string) (color.Color, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if hex, ok := tableau[name]; ok {
		name = hex
	}
	if c, ok := colornames.Map[name]; ok {
		return c, nil
	}
	if strings.HasPrefix(name, "#") {
		c, err := colorful.Hex(name)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "color %q", s)
		}
		r, g, b := c.RGB255()
		return color.NRGBA{R: r, G: g, B: b, A: 255}, nil
	}
	return nil, errors.New(errors.ErrCodeInvalidConfig, "unknown color %q", s)
}

// Options returns the generator options of g.
func (g GenerateConfig) Options() pipeline.Options {
	return pipeline.Options{
		NumScenes:         g.NumScenes,
		NumCubes:          g.NumCubes,
		NumColors:         g.NumColors,
		ImageSize:         g.ImageSize,
		ViewsPerScene:     g.ViewsPerScene,
		ScenesPerShard:    g.ScenesPerShard,
		FramesPerRotation: g.FramesPerRotation,
		Projection:        g.Projection,
		RaysPerPixel:      g.RaysPerPixel,
		MaxBounce:         g.MaxBounce,
		NumThreads:        g.NumThreads,
		Seed:              g.Seed,
	}
}

// FileDir returns the directory of the file backend.
func (c CacheConfig) FileDir() (string, error) {
	if c.Dir != "" {
		return c.Dir, nil
	}
	d, err := cache.DefaultDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, "views"), nil
}

// Open returns the configured cache, instrumented for the observability
// cache hooks. The file backend defaults to the per-user cache directory.
func (c CacheConfig) Open(ctx context.Context, logger *log.Logger) (cache.Cache, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	var backend cache.Cache
	switch c.Backend {
	case BackendNone:
		return cache.NewNullCache(), nil
	case BackendRedis:
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     c.RedisAddr,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
			Prefix:   c.Prefix,
		})
		if err != nil {
			return nil, err
		}
		backend = rc
	default:
		dir, err := c.FileDir()
		if err != nil {
			return nil, err
		}
		fc, err := cache.NewFileCache(dir)
		if err != nil {
			return nil, err
		}
		backend = fc
	}
	logger.Debug("opened view cache", "backend", c.Backend)
	return cache.Instrument(backend, "view"), nil
}
