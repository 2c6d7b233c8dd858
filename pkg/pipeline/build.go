package pipeline

import (
	"context"
	"image"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/matzehuels/gqnviz/pkg/dataset"
	"github.com/matzehuels/gqnviz/pkg/scene"
)

// builtScene is a scene with its traced views and rotation frames.
type builtScene struct {
	scene     *scene.Scene
	views     []scene.Viewpoint
	images    []image.Image
	originals []image.Image
}

func (b builtScene) sceneViews() dataset.SceneViews {
	sv := dataset.SceneViews{Images: b.images, Originals: b.originals}
	for _, v := range b.views {
		sv.Viewpoints = append(sv.Viewpoints, v.Encode())
	}
	return sv
}

func (b builtScene) raw() []dataset.RawView {
	out := make([]dataset.RawView, len(b.views))
	for i, v := range b.views {
		out[i] = dataset.RawView{Image: b.images[i], Viewpoint: v}
	}
	return out
}

// renderScene traces s from every viewpoint and then from every rotation
// eye. View indices continue across both so hooks and logs can tell frames
// apart.
func (r *Runner) renderScene(ctx context.Context, s *scene.Scene, views []scene.Viewpoint, rotation []r3.Vec, opts Options, res *Result) (builtScene, error) {
	bs := builtScene{scene: s, views: views}
	start := time.Now()
	defer func() { res.Stats.RenderTime += time.Since(start) }()

	render := func(i int, eye r3.Vec) (image.Image, error) {
		img, hit, err := r.RenderViewWithCacheInfo(ctx, s, i, eye, opts)
		if err != nil {
			return nil, err
		}
		if hit {
			res.CacheInfo.ViewHits++
		} else {
			res.CacheInfo.ViewMisses++
		}
		res.Stats.ViewCount++
		return img, nil
	}

	for i, v := range views {
		img, err := render(i, v.Eye)
		if err != nil {
			return builtScene{}, err
		}
		bs.images = append(bs.images, img)
	}
	for i, eye := range rotation {
		img, err := render(len(views)+i, eye)
		if err != nil {
			return builtScene{}, err
		}
		bs.originals = append(bs.originals, img)
	}
	return bs, nil
}

// writeShard writes scenes as shard name and records it.
func (r *Runner) writeShard(ctx context.Context, w *dataset.ShardWriter, rec *runRecord, name string, scenes []builtScene, numCubes int, res *Result) error {
	start := time.Now()
	sv := make([]dataset.SceneViews, len(scenes))
	for i, bs := range scenes {
		sv[i] = bs.sceneViews()
	}
	info, err := w.Write(name, sv)
	if err != nil {
		return err
	}
	res.Shards = append(res.Shards, info)
	defer func() { res.Stats.WriteTime += time.Since(start) }()

	shardID, err := rec.addShard(ctx, w.Dir(), info)
	if err != nil {
		return err
	}
	for i, bs := range scenes {
		if err := rec.addScene(ctx, shardID, i, bs.scene.ID, numCubes, bs.views); err != nil {
			return err
		}
	}
	return nil
}

// runRecord records a run's output in the catalog. Without a catalog every
// method is a no-op.
type runRecord struct {
	catalog *dataset.Catalog
	runID   string
}

func (r *Runner) startRun(ctx context.Context, kind string, opts Options) (*runRecord, error) {
	if r.Catalog == nil {
		return &runRecord{}, nil
	}
	run, err := r.Catalog.CreateRun(ctx, kind, opts.Seed, opts.JSON())
	if err != nil {
		return nil, err
	}
	r.Logger.Debug("recorded run", "id", run.ID, "kind", kind)
	return &runRecord{catalog: r.Catalog, runID: run.ID}, nil
}

func (rec *runRecord) addShard(ctx context.Context, dir string, info dataset.ShardInfo) (int64, error) {
	if rec.catalog == nil {
		return 0, nil
	}
	return rec.catalog.AddShard(ctx, rec.runID, dir, info)
}

func (rec *runRecord) addScene(ctx context.Context, shardID int64, index int, sceneID string, numCubes int, views []scene.Viewpoint) error {
	if rec.catalog == nil {
		return nil
	}
	return rec.catalog.AddScene(ctx, shardID, index, sceneID, numCubes, views)
}
