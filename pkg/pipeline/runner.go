package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"math/rand/v2"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/matzehuels/gqnviz/pkg/cache"
	"github.com/matzehuels/gqnviz/pkg/dataset"
	"github.com/matzehuels/gqnviz/pkg/errors"
	"github.com/matzehuels/gqnviz/pkg/imageproc"
	"github.com/matzehuels/gqnviz/pkg/observability"
	"github.com/matzehuels/gqnviz/pkg/raytrace"
	"github.com/matzehuels/gqnviz/pkg/scene"
)

// Runner renders views with caching and writes datasets.
//
// The Runner is stateless except for its cache, renderer, catalog and
// logger. Multiple goroutines can use the same Runner with different options
// as long as the renderer and catalog allow it.
type Runner struct {
	Cache    cache.Cache
	Keyer    cache.Keyer
	Renderer raytrace.Renderer
	Logger   *log.Logger

	// Catalog records runs when set.
	Catalog *dataset.Catalog

	// ViewTTL is the lifetime of cached views; zero uses cache.TTLView.
	ViewTTL time.Duration
}

// NewRunner creates a runner.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
// If renderer is nil, the CPU tracer is used.
func NewRunner(c cache.Cache, keyer cache.Keyer, renderer raytrace.Renderer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	if renderer == nil {
		renderer = raytrace.NewTracer(logger)
	}
	return &Runner{
		Cache:    c,
		Keyer:    keyer,
		Renderer: renderer,
		Logger:   logger,
	}
}

// SceneHash returns a content hash of s. Scene ids are random, so two builds
// from the same seed hash equal.
func SceneHash(s *scene.Scene) string {
	h, _ := cache.HashJSON(struct {
		Ambient any
		Boxes   []scene.Box
		Lights  []scene.Light
	}{s.Ambient, s.Boxes, s.Lights})
	return h
}

// RenderViewWithCacheInfo traces s seen from eye towards the origin and
// returns the sRGB image with cache hit info. The linear buffer is what gets
// cached, so a change of tone mapping does not invalidate the cache.
func (r *Runner) RenderViewWithCacheInfo(ctx context.Context, s *scene.Scene, view int, eye r3.Vec, opts Options) (*image.NRGBA, bool, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, false, err
	}

	key := r.Keyer.ViewKey(SceneHash(s), [3]float64{eye.X, eye.Y, eye.Z}, opts.ImageSize, opts.ViewKeyOpts())

	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
			if buf, err := decodeBuffer(data); err == nil {
				img, err := imageproc.ToSRGB(buf)
				return img, true, err
			}
			// Undecodable entries are re-traced and overwritten.
		}
	}

	cam := opts.Camera()
	cam.LookAt(eye, scene.Origin, scene.WorldUp)
	buf := raytrace.NewBuffer(opts.ImageSize, opts.ImageSize)

	start := time.Now()
	err := r.Renderer.Render(ctx, s, cam, opts.TraceArgs(), raytrace.KernelArgs{NumThreads: opts.NumThreads}, buf)
	observability.Scene().OnViewRendered(ctx, s.ID, view, time.Since(start), err)
	if err != nil {
		return nil, false, err
	}
	opts.Logger.Debug("traced view", "scene", s.ID, "view", view, "duration", time.Since(start))

	if data, err := encodeBuffer(buf); err == nil {
		ttl := r.ViewTTL
		if ttl == 0 {
			ttl = cache.TTLView
		}
		_ = r.Cache.Set(ctx, key, data, ttl)
	}
	img, err := imageproc.ToSRGB(buf)
	return img, false, err
}

// RenderView is a convenience wrapper that calls RenderViewWithCacheInfo and
// discards the cache hit info.
func (r *Runner) RenderView(ctx context.Context, s *scene.Scene, view int, eye r3.Vec, opts Options) (*image.NRGBA, error) {
	img, _, err := r.RenderViewWithCacheInfo(ctx, s, view, eye, opts)
	return img, err
}

// encodeBuffer stores a buffer as a float32 (H, W, 3) NPY array.
func encodeBuffer(buf *raytrace.Buffer) ([]byte, error) {
	var b bytes.Buffer
	err := dataset.WriteNPY(&b, dataset.Float32Array([]int{buf.Height, buf.Width, 3}, buf.Pix))
	return b.Bytes(), err
}

func decodeBuffer(data []byte) (*raytrace.Buffer, error) {
	a, err := dataset.ReadNPY(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if len(a.Shape) != 3 || a.Shape[2] != 3 || a.Float32 == nil {
		return nil, errors.New(errors.ErrCodeInvalidFormat, "cached view has shape %v", a.Shape)
	}
	buf := &raytrace.Buffer{Width: a.Shape[1], Height: a.Shape[0], Pix: a.Float32}
	if !buf.Valid() {
		return nil, errors.New(errors.ErrCodeInvalidFormat, "cached view is empty")
	}
	return buf, nil
}

// Generate builds opts.NumScenes random scenes, traces opts.ViewsPerScene
// views of each from random viewpoints on the view sphere and writes them to
// dir: as shards by default, as one scene directory per scene (the input of
// [Runner.Pack]) when opts.Raw is set.
func (r *Runner) Generate(ctx context.Context, dir string, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	rng := newRNG(opts.Seed)
	palette := scene.Palette(opts.NumColors)
	res := &Result{Dir: dir}

	rec, err := r.startRun(ctx, dataset.RunGenerate, opts)
	if err != nil {
		return nil, err
	}
	res.RunID = rec.runID

	var w *dataset.ShardWriter
	if !opts.Raw {
		if w, err = dataset.NewShardWriter(dir, opts.Logger); err != nil {
			return nil, err
		}
	}

	var pending []builtScene
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		name := dataset.DefaultShardName
		if opts.ScenesPerShard > 0 {
			name = fmt.Sprintf("%03d", len(res.Shards))
		}
		if err := r.writeShard(ctx, w, rec, name, pending, opts.NumCubes, res); err != nil {
			return err
		}
		pending = nil
		return nil
	}

	for i := range opts.NumScenes {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		s, err := scene.Build(rng, scene.Config{NumCubes: opts.NumCubes}, palette)
		if err != nil {
			return res, err
		}
		views := make([]scene.Viewpoint, opts.ViewsPerScene)
		for v := range views {
			views[v] = scene.NewViewpoint(scene.RandomEye(rng, scene.ViewRadius), scene.Origin)
		}
		bs, err := r.renderScene(ctx, s, views, nil, opts, res)
		if err != nil {
			return res, err
		}

		if opts.Raw {
			sceneDir := filepath.Join(dir, fmt.Sprintf("%06d", i))
			start := time.Now()
			if err := dataset.WriteSceneDir(sceneDir, bs.raw()); err != nil {
				return res, err
			}
			res.Stats.WriteTime += time.Since(start)
			res.SceneDirs = append(res.SceneDirs, sceneDir)
		} else {
			pending = append(pending, bs)
			if opts.ScenesPerShard > 0 && len(pending) == opts.ScenesPerShard {
				if err := flush(); err != nil {
					return res, err
				}
			}
		}
		res.Stats.SceneCount++
		opts.report(StageGenerate, i+1, opts.NumScenes)
	}
	if err := flush(); err != nil {
		return res, err
	}

	r.Logger.Info("generated dataset",
		"dir", dir,
		"scenes", res.Stats.SceneCount,
		"views", res.Stats.ViewCount,
		"shards", len(res.Shards),
		"cache_hits", res.CacheInfo.ViewHits,
		"duration", res.Stats.RenderTime+res.Stats.WriteTime)
	return res, nil
}

// Observe renders evaluation data for the dataset at dir. For every scene of
// every subset a fresh scene is built and traced from the scene's recorded
// viewpoints and from opts.FramesPerRotation positions of a full camera turn
// ([scene.RotateEye]). Each observation is written as a one-scene shard
// named "<subset>_<scene>" under dir/test_data.
func (r *Runner) Observe(ctx context.Context, dir string, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	ds, err := dataset.Open(dir)
	if err != nil {
		return nil, err
	}
	outDir := filepath.Join(dir, TestDataDir)
	w, err := dataset.NewShardWriter(outDir, opts.Logger)
	if err != nil {
		return nil, err
	}

	rec, err := r.startRun(ctx, dataset.RunObserve, opts)
	if err != nil {
		return nil, err
	}
	res := &Result{RunID: rec.runID, Dir: outDir}

	rng := newRNG(opts.Seed)
	palette := scene.Palette(opts.NumColors)
	var rotation []r3.Vec
	for _, a := range scene.RotationAngles(opts.FramesPerRotation) {
		rotation = append(rotation, scene.RotateEye(a, scene.ViewRadius))
	}

	i := 0
	for subset, err := range ds.Subsets() {
		if err != nil {
			return res, err
		}
		it, err := dataset.NewIterator(subset.Len(), 1, nil)
		if err != nil {
			return res, err
		}
		j := 0
		for indices := range it.Batches() {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			batch, err := subset.Batch(indices)
			if err != nil {
				return res, err
			}
			views := make([]scene.Viewpoint, len(batch.Viewpoints[0]))
			for v, enc := range batch.Viewpoints[0] {
				views[v] = scene.DecodeViewpoint(enc)
			}

			s, err := scene.Build(rng, scene.Config{NumCubes: opts.NumCubes}, palette)
			if err != nil {
				return res, err
			}
			bs, err := r.renderScene(ctx, s, views, rotation, opts, res)
			if err != nil {
				return res, err
			}
			name := fmt.Sprintf("%d_%d", i, j)
			if err := r.writeShard(ctx, w, rec, name, []builtScene{bs}, opts.NumCubes, res); err != nil {
				return res, err
			}
			res.Stats.SceneCount++
			opts.report(StageObserve, res.Stats.SceneCount, 0)
			r.Logger.Debug("saved observation", "shard", name)
			j++
		}
		i++
	}

	r.Logger.Info("rendered observations",
		"dir", outDir,
		"observations", res.Stats.SceneCount,
		"frames_per_rotation", opts.FramesPerRotation,
		"cache_hits", res.CacheInfo.ViewHits,
		"duration", res.Stats.RenderTime+res.Stats.WriteTime)
	return res, nil
}

// Pack runs [dataset.Pack] and records the written shards.
func (r *Runner) Pack(ctx context.Context, inputDir, outputDir string, opts dataset.PackOptions, seed uint64) (*Result, error) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
	if seed == 0 {
		seed = DefaultSeed
	}
	rec, err := r.startRun(ctx, dataset.RunPack, Options{
		ImageSize:      opts.ImageSize,
		ViewsPerScene:  opts.ViewsPerScene,
		ScenesPerShard: opts.ScenesPerShard,
		Seed:           seed,
	})
	if err != nil {
		return nil, err
	}

	start := time.Now()
	packed, err := dataset.Pack(ctx, inputDir, outputDir, opts, newRNG(seed))
	if err != nil {
		return nil, err
	}
	res := &Result{RunID: rec.runID, Dir: outputDir, Shards: packed.Shards}
	res.Stats.SceneCount = packed.Scenes
	res.Stats.WriteTime = time.Since(start)
	for _, info := range packed.Shards {
		res.Stats.ViewCount += info.Scenes * info.Views
		if _, err := rec.addShard(ctx, outputDir, info); err != nil {
			return res, err
		}
	}

	r.Logger.Info("packed dataset",
		"dir", outputDir,
		"scenes", packed.Scenes,
		"shards", len(packed.Shards),
		"duration", res.Stats.WriteTime)
	return res, nil
}

// Close releases resources held by the runner (the cache and catalog).
func (r *Runner) Close() error {
	var errs []error
	if r.Cache != nil {
		errs = append(errs, r.Cache.Close())
	}
	if r.Catalog != nil {
		errs = append(errs, r.Catalog.Close())
	}
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}

// newRNG returns the generator's random source for seed.
func newRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
