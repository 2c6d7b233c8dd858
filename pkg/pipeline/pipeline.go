// Package pipeline runs the GQN dataset generator.
//
// The generator has three entry points sharing one [Runner]:
//
//  1. Generate: build random block scenes, trace views from random
//     viewpoints and write them as dataset shards (or raw scene directories)
//  2. Pack: turn raw scene directories into shards
//  3. Observe: re-render the viewpoints of an existing dataset together with
//     a full camera rotation, producing evaluation shards under test_data
//
// Traced views are cached under a key derived from the scene content, the
// camera position and every tracing option, so repeating a seeded run only
// traces what changed. When the runner has a [dataset.Catalog], every run and
// the shards, scenes and views it wrote are recorded there.
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, raytrace.NewTracer(logger), logger)
//	res, err := runner.Generate(ctx, "data/train", pipeline.Options{
//	    NumScenes:      2000,
//	    ScenesPerShard: 500,
//	    Seed:           1,
//	})
package pipeline

import (
	"encoding/json"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/gqnviz/pkg/cache"
	"github.com/matzehuels/gqnviz/pkg/dataset"
	"github.com/matzehuels/gqnviz/pkg/errors"
	"github.com/matzehuels/gqnviz/pkg/raytrace"
	"github.com/matzehuels/gqnviz/pkg/scene"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI, config and server
// =============================================================================

const (
	// DefaultNumScenes is the number of scenes a generate run builds.
	DefaultNumScenes = 100

	// DefaultNumColors is the size of the cube palette.
	DefaultNumColors = 12

	// DefaultFramesPerRotation is the number of original frames rendered per
	// observation.
	DefaultFramesPerRotation = 24

	// DefaultSeed is the default random seed for reproducibility.
	DefaultSeed = uint64(42)

	// TestDataDir is the directory under a dataset that Observe writes to.
	TestDataDir = "test_data"
)

// Projection names.
const (
	ProjectionOrthographic = "orthographic"
	ProjectionPerspective  = "perspective"
)

// ValidProjections is the set of supported camera projections.
var ValidProjections = map[string]bool{
	ProjectionOrthographic: true,
	ProjectionPerspective:  true,
}

// ValidateProjection checks that a projection name is valid.
func ValidateProjection(p string) error {
	if !ValidProjections[p] {
		return errors.New(errors.ErrCodeInvalidConfig,
			"invalid projection: %q (must be one of: orthographic, perspective)", p)
	}
	return nil
}

// =============================================================================
// Options - Generator Configuration
// =============================================================================

// Options configures a generator run. Zero fields take the defaults of
// [Options.SetDefaults].
type Options struct {
	// Scene options
	NumScenes int `json:"num_scenes"`
	NumCubes  int `json:"num_cubes"`
	NumColors int `json:"num_colors"`

	// Dataset options
	ImageSize         int  `json:"image_size"`
	ViewsPerScene     int  `json:"views_per_scene"`
	ScenesPerShard    int  `json:"scenes_per_shard,omitempty"`
	FramesPerRotation int  `json:"frames_per_rotation"`
	Raw               bool `json:"raw,omitempty"` // write scene directories instead of shards

	// Tracing options
	Projection   string `json:"projection"`
	RaysPerPixel int    `json:"rays_per_pixel"`
	MaxBounce    int    `json:"max_bounce"`
	NumThreads   int    `json:"num_threads"`
	Seed         uint64 `json:"seed"`

	// Refresh re-traces every view instead of reading the cache.
	Refresh bool `json:"-"`

	// Runtime options (not serialized)
	Logger   *log.Logger    `json:"-"`
	Progress func(Progress) `json:"-"`
}

// Progress reports how far a run has come.
type Progress struct {
	Stage string
	Done  int
	Total int
}

// Stages reported through [Options.Progress].
const (
	StageGenerate = "generate"
	StageObserve  = "observe"
)

// SetDefaults fills zero fields.
func (o *Options) SetDefaults() {
	if o.NumScenes == 0 {
		o.NumScenes = DefaultNumScenes
	}
	if o.NumCubes == 0 {
		o.NumCubes = scene.DefaultNumCubes
	}
	if o.NumColors == 0 {
		o.NumColors = DefaultNumColors
	}
	if o.ImageSize == 0 {
		o.ImageSize = dataset.DefaultImageSize
	}
	if o.ViewsPerScene == 0 {
		o.ViewsPerScene = dataset.DefaultViewsPerScene
	}
	if o.FramesPerRotation == 0 {
		o.FramesPerRotation = DefaultFramesPerRotation
	}
	if o.Projection == "" {
		o.Projection = ProjectionOrthographic
	}
	if o.RaysPerPixel == 0 {
		o.RaysPerPixel = raytrace.DefaultRaysPerPixel
	}
	if o.MaxBounce == 0 {
		o.MaxBounce = raytrace.DefaultMaxBounce
	}
	if o.NumThreads == 0 {
		o.NumThreads = raytrace.DefaultNumThreads
	}
	if o.Seed == 0 {
		o.Seed = DefaultSeed
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// Validate checks options after defaults.
func (o *Options) Validate() error {
	positive := []struct {
		name string
		v    int
	}{
		{"num_scenes", o.NumScenes},
		{"num_cubes", o.NumCubes},
		{"num_colors", o.NumColors},
		{"image_size", o.ImageSize},
		{"views_per_scene", o.ViewsPerScene},
		{"frames_per_rotation", o.FramesPerRotation},
		{"rays_per_pixel", o.RaysPerPixel},
		{"num_threads", o.NumThreads},
	}
	for _, p := range positive {
		if p.v < 1 {
			return errors.New(errors.ErrCodeInvalidConfig, "%s must be >= 1, got %d", p.name, p.v)
		}
	}
	if o.ScenesPerShard < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "scenes_per_shard must be >= 0, got %d", o.ScenesPerShard)
	}
	if o.MaxBounce < raytrace.NoBounce {
		return errors.New(errors.ErrCodeInvalidConfig, "max_bounce must be >= %d, got %d", raytrace.NoBounce, o.MaxBounce)
	}
	return ValidateProjection(o.Projection)
}

// ValidateAndSetDefaults applies defaults and validates.
func (o *Options) ValidateAndSetDefaults() error {
	o.SetDefaults()
	return o.Validate()
}

// ViewKeyOpts returns cache key options for traced views.
func (o *Options) ViewKeyOpts() cache.ViewKeyOpts {
	return cache.ViewKeyOpts{
		Projection:   o.Projection,
		RaysPerPixel: o.RaysPerPixel,
		MaxBounce:    o.MaxBounce,
		Seed:         o.Seed,
	}
}

// TraceArgs returns the tracer sampling arguments.
func (o *Options) TraceArgs() raytrace.TraceArgs {
	return raytrace.TraceArgs{RaysPerPixel: o.RaysPerPixel, MaxBounce: o.MaxBounce, Seed: o.Seed}
}

// Camera returns a camera with the configured projection.
func (o *Options) Camera() scene.Camera {
	if o.Projection == ProjectionPerspective {
		return scene.NewPerspectiveCamera(scene.DefaultFovY)
	}
	return scene.NewOrthographicCamera()
}

// JSON returns the serialized options recorded with a catalog run.
func (o *Options) JSON() string {
	data, _ := json.Marshal(o)
	return string(data)
}

func (o *Options) report(stage string, done, total int) {
	if o.Progress != nil {
		o.Progress(Progress{Stage: stage, Done: done, Total: total})
	}
}

// =============================================================================
// Results
// =============================================================================

// Result summarizes a run.
type Result struct {
	// RunID is the catalog id of the run, empty without a catalog.
	RunID string

	// Dir is the directory the run wrote to.
	Dir string

	// Shards lists the written shards in order.
	Shards []dataset.ShardInfo

	// SceneDirs lists the raw scene directories of a Raw generate run.
	SceneDirs []string

	// Stats contains timing and size information.
	Stats Stats

	// CacheInfo counts view cache hits and misses.
	CacheInfo CacheInfo
}

// Stats contains run statistics.
type Stats struct {
	SceneCount int
	ViewCount  int
	RenderTime time.Duration
	WriteTime  time.Duration
}

// CacheInfo counts view cache lookups.
type CacheInfo struct {
	ViewHits   int
	ViewMisses int
}
