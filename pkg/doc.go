// Package pkg provides the core libraries of gqnviz.
//
// # Overview
//
// gqnviz has two halves. The generator ray traces random block scenes from
// random viewpoints and writes them as NPY shards that a Generative Query
// Network can train on. The visualizer composes multi-panel progress figures
// (images, scalar annotations and metric graphs) frame by frame while the
// network trains. The pkg directory is organized into three areas:
//
//  1. Generation: [scene], [raytrace], [imageproc], [dataset], [pipeline]
//  2. Visualization: [figure], [snapshot], [animate], [report], [metrics]
//  3. Infrastructure: [cache], [config], [errors], [observability], [buildinfo]
//
// # Architecture
//
// The generator data flow:
//
//	seed
//	  ↓
//	[scene] package (random cube clusters, lights, viewpoints)
//	  ↓
//	[raytrace] package (linear RGB buffers, cached by [cache])
//	  ↓
//	[imageproc] package (gamma, 8-bit images)
//	  ↓
//	[dataset] package (NPY shards, run catalog)
//
// The visualizer data flow:
//
//	metric writes → [snapshot] registry
//	media + titles → [snapshot] snapshot
//	  ↓
//	[snapshot.Render] (one frame into a [figure])
//	  ↓
//	[animate] sinks (PNG sequence, GIF) or [report] (HTML)
//
// # Quick Start
//
// Generate a small dataset:
//
//	import (
//	    "context"
//	    "github.com/matzehuels/gqnviz/pkg/pipeline"
//	)
//
//	r := pipeline.NewRunner(nil, nil, nil, nil)
//	defer r.Close()
//	opts := pipeline.Options{NumScenes: 10}
//	if err := opts.ValidateAndSetDefaults(); err != nil {
//	    return err
//	}
//	res, err := r.Generate(context.Background(), "data", opts)
//
// Render one progress frame:
//
//	reg := snapshot.NewRegistry()
//	_ = reg.Register(snapshot.GraphConfig{ID: "loss", Position: 2, FrameCapacity: 100})
//	layout, _ := snapshot.Grid(1, 2)
//	snap := snapshot.New(reg, layout)
//
//	_ = reg.Write("loss", "series_0", 0, 0.42)
//	_ = snap.AddImage(img, 1, snapshot.MediaOptions{})
//	fig := figure.New(8*vg.Inch, 4*vg.Inch)
//	_ = snapshot.Render(ctx, snap, fig, 0)
//	_ = fig.Encode(w, "png")
//
// # Configuration
//
// The CLI and the dashboard server read one TOML file; see [config].
//
// [scene]: https://pkg.go.dev/github.com/matzehuels/gqnviz/pkg/scene
// [raytrace]: https://pkg.go.dev/github.com/matzehuels/gqnviz/pkg/raytrace
// [imageproc]: https://pkg.go.dev/github.com/matzehuels/gqnviz/pkg/imageproc
// [dataset]: https://pkg.go.dev/github.com/matzehuels/gqnviz/pkg/dataset
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/gqnviz/pkg/pipeline
// [figure]: https://pkg.go.dev/github.com/matzehuels/gqnviz/pkg/figure
// [snapshot]: https://pkg.go.dev/github.com/matzehuels/gqnviz/pkg/snapshot
// [snapshot.Render]: https://pkg.go.dev/github.com/matzehuels/gqnviz/pkg/snapshot#Render
// [animate]: https://pkg.go.dev/github.com/matzehuels/gqnviz/pkg/animate
// [report]: https://pkg.go.dev/github.com/matzehuels/gqnviz/pkg/report
// [metrics]: https://pkg.go.dev/github.com/matzehuels/gqnviz/pkg/metrics
// [cache]: https://pkg.go.dev/github.com/matzehuels/gqnviz/pkg/cache
// [config]: https://pkg.go.dev/github.com/matzehuels/gqnviz/pkg/config
// [errors]: https://pkg.go.dev/github.com/matzehuels/gqnviz/pkg/errors
// [observability]: https://pkg.go.dev/github.com/matzehuels/gqnviz/pkg/observability
// [buildinfo]: https://pkg.go.dev/github.com/matzehuels/gqnviz/pkg/buildinfo
package pkg
