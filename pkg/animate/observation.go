package animate

import (
	"context"
	"fmt"
	"image"
	"math"

	"gonum.org/v1/plot/plotutil"

	"github.com/matzehuels/gqnviz/pkg/dataset"
	"github.com/matzehuels/gqnviz/pkg/errors"
	"github.com/matzehuels/gqnviz/pkg/metrics"
	"github.com/matzehuels/gqnviz/pkg/scene"
	"github.com/matzehuels/gqnviz/pkg/snapshot"
)

// Panel positions of the observation dashboard.
const (
	PosContext    = 1
	PosOriginal   = 2
	PosPrediction = 3
	PosScore      = 4
	PosKL         = 5
	PosDistance   = 6
)

// Graph IDs written by [Observation.Fill].
const (
	GraphKL       = "kl"
	GraphDistance = "squared_distance"
)

// ObservationLayout is two rows: context view, original frame, prediction and
// score on top, the KL and squared-distance graphs below.
func ObservationLayout() (snapshot.Layout, error) {
	return snapshot.Custom(2, 4, map[int]snapshot.Span{
		PosContext:    {Row: 0, Col: 0},
		PosOriginal:   {Row: 0, Col: 1},
		PosPrediction: {Row: 0, Col: 2},
		PosScore:      {Row: 0, Col: 3},
		PosKL:         {Row: 1, Col: 0, ColSpan: 2},
		PosDistance:   {Row: 1, Col: 2, ColSpan: 2},
	})
}

// Observation replays one observed scene of a subset written by the
// generator's observe stage. Series n of each graph uses the first n context
// views; within a series the frames follow the camera around one rotation.
type Observation struct {
	subset   *dataset.Subset
	scene    int
	views    []scene.Viewpoint
	rotation []float64 // yaw of each rotation frame
}

// NewObservation returns the replay of scene in subset. The subset must
// carry rotation frames.
func NewObservation(subset *dataset.Subset, sceneIndex int) (*Observation, error) {
	if subset.Frames() == 0 {
		return nil, errors.New(errors.ErrCodeInvalidArgument, "subset %q has no rotation frames", subset.Name)
	}
	if sceneIndex < 0 || sceneIndex >= subset.Len() {
		return nil, errors.New(errors.ErrCodeOutOfRange, "scene %d outside [0, %d)", sceneIndex, subset.Len())
	}
	o := &Observation{subset: subset, scene: sceneIndex}
	for v := range subset.Views() {
		enc, err := subset.Viewpoint(sceneIndex, v)
		if err != nil {
			return nil, err
		}
		o.views = append(o.views, scene.DecodeViewpoint(enc))
	}
	for _, a := range scene.RotationAngles(subset.Frames()) {
		o.rotation = append(o.rotation, scene.Yaw(scene.RotateEye(a, scene.ViewRadius), scene.Origin))
	}
	return o, nil
}

// Frames returns the animation length: one rotation per context size.
func (o *Observation) Frames() int { return len(o.views) * len(o.rotation) }

// Register adds the KL and squared-distance graphs to reg.
func (o *Observation) Register(reg *snapshot.Registry) error {
	n := len(o.views)
	style := snapshot.Style{YScale: snapshot.ScaleLinear}
	for i := range n {
		style.Colors = append(style.Colors, plotutil.Color(i))
		style.Markers = append(style.Markers, snapshot.MarkerNone)
		style.Legends = append(style.Legends, seriesID(i))
	}
	for _, g := range []struct {
		id  string
		pos int
	}{{GraphKL, PosKL}, {GraphDistance, PosDistance}} {
		err := reg.Register(snapshot.GraphConfig{
			ID:            g.id,
			Position:      g.pos,
			Type:          snapshot.TypePlot,
			Mode:          snapshot.ModeSequential,
			FrameCapacity: len(o.rotation),
			SeriesCount:   n,
			Style:         style,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Fill is a [FrameFunc] showing frame of the replay.
func (o *Observation) Fill(_ context.Context, frame int, snap *snapshot.Snapshot) error {
	if frame < 0 || frame >= o.Frames() {
		return errors.New(errors.ErrCodeOutOfRange, "frame %d outside [0, %d)", frame, o.Frames())
	}
	n, f := frame/len(o.rotation), frame%len(o.rotation)

	original, err := o.subset.Original(o.scene, f)
	if err != nil {
		return err
	}
	v := o.nearest(n+1, o.rotation[f])
	predicted, err := o.subset.Image(o.scene, v)
	if err != nil {
		return err
	}
	latest, err := o.subset.Image(o.scene, n)
	if err != nil {
		return err
	}

	kl, err := metrics.KLDivergence(original, predicted)
	if err != nil {
		return err
	}
	dist, _, err := metrics.SquaredDistance(original, predicted)
	if err != nil {
		return err
	}
	reg := snap.Registry()
	if err := reg.Write(GraphKL, seriesID(n), f, kl); err != nil {
		return err
	}
	if err := reg.Write(GraphDistance, seriesID(n), f, dist); err != nil {
		return err
	}

	for _, item := range []struct {
		img   image.Image
		pos   int
		title string
	}{
		{latest, PosContext, fmt.Sprintf("context view %d", n+1)},
		{original, PosOriginal, fmt.Sprintf("original %d/%d", f+1, len(o.rotation))},
		{predicted, PosPrediction, fmt.Sprintf("nearest of %d views", n+1)},
	} {
		if err := snap.AddImage(item.img, item.pos, snapshot.MediaOptions{}); err != nil {
			return err
		}
		if err := snap.AddTitle(item.title, item.pos, snapshot.TitleOptions{}); err != nil {
			return err
		}
	}
	return snap.AddScalar(kl, PosScore, snapshot.MediaOptions{})
}

// nearest returns the index of the first n context views whose yaw is
// closest to yaw.
func (o *Observation) nearest(n int, yaw float64) int {
	best, bestDiff := 0, math.Inf(1)
	for i := range n {
		if d := angleDiff(o.views[i].Yaw, yaw); d < bestDiff {
			best, bestDiff = i, d
		}
	}
	return best
}

func angleDiff(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 2*math.Pi)
	return math.Min(d, 2*math.Pi-d)
}

func seriesID(i int) string {
	return fmt.Sprintf("n=%d", i+1)
}
