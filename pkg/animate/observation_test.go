package animate

import (
	"context"
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/plot/vg"

	"github.com/matzehuels/gqnviz/pkg/dataset"
	"github.com/matzehuels/gqnviz/pkg/errors"
	"github.com/matzehuels/gqnviz/pkg/figure"
	"github.com/matzehuels/gqnviz/pkg/scene"
	"github.com/matzehuels/gqnviz/pkg/snapshot"
)

func gray(v uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 3))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = v, v, v, 255
	}
	return img
}

// observedSubset writes one scene seen from rotation angles 0 and pi, with
// four rotation frames: the first two look like view 0, the last two like
// view 1.
func observedSubset(t *testing.T) *dataset.Subset {
	t.Helper()
	sv := dataset.SceneViews{
		Images: []image.Image{gray(100), gray(200)},
		Originals: []image.Image{
			gray(100), gray(100), gray(200), gray(200),
		},
	}
	for _, a := range []float64{0, math.Pi} {
		sv.Viewpoints = append(sv.Viewpoints, scene.NewViewpoint(scene.RotateEye(a, scene.ViewRadius), scene.Origin).Encode())
	}

	dir := t.TempDir()
	w, err := dataset.NewShardWriter(dir, nil)
	require.NoError(t, err)
	_, err = w.Write("0_0", []dataset.SceneViews{sv})
	require.NoError(t, err)

	ds, err := dataset.Open(dir)
	require.NoError(t, err)
	sub, err := ds.Subset(0)
	require.NoError(t, err)
	return sub
}

func TestObservationReplay(t *testing.T) {
	obs, err := NewObservation(observedSubset(t), 0)
	require.NoError(t, err)
	assert.Equal(t, 8, obs.Frames())

	reg := snapshot.NewRegistry()
	require.NoError(t, obs.Register(reg))
	layout, err := ObservationLayout()
	require.NoError(t, err)
	snap := snapshot.New(reg, layout)
	fig := figure.New(4*vg.Inch, 2*vg.Inch)

	sink := &memorySink{}
	require.NoError(t, New(snap, fig, WithDPI(20)).Run(context.Background(), obs.Frames(), obs.Fill, sink))
	assert.Len(t, sink.frames, 8)
	assert.Equal(t, 6, fig.Len())

	g, err := reg.Graph(GraphDistance)
	require.NoError(t, err)
	require.Len(t, g.Series, 2)
	one, two := g.Series[0], g.Series[1]
	assert.Equal(t, "n=1", one.ID)
	assert.Equal(t, 4, one.Len())
	assert.Equal(t, 4, two.Len())

	// With one view every frame is predicted by view 0.
	assert.Zero(t, one.Values[0])
	assert.Greater(t, one.Values[2], 0.0)
	// The second view covers the far side.
	assert.Zero(t, two.Values[0])
	assert.Zero(t, two.Values[2])

	kl, err := reg.Graph(GraphKL)
	require.NoError(t, err)
	assert.Equal(t, 4, kl.Series[1].Len())
}

func TestObservationErrors(t *testing.T) {
	sub := observedSubset(t)

	_, err := NewObservation(sub, 1)
	assert.True(t, errors.Is(err, errors.ErrCodeOutOfRange))

	obs, err := NewObservation(sub, 0)
	require.NoError(t, err)
	layout, err := ObservationLayout()
	require.NoError(t, err)
	reg := snapshot.NewRegistry()
	require.NoError(t, obs.Register(reg))
	err = obs.Fill(context.Background(), 8, snapshot.New(reg, layout))
	assert.True(t, errors.Is(err, errors.ErrCodeOutOfRange))

	t.Run("without rotation frames", func(t *testing.T) {
		dir := t.TempDir()
		w, err := dataset.NewShardWriter(dir, nil)
		require.NoError(t, err)
		_, err = w.Write("train", []dataset.SceneViews{{
			Images:     []image.Image{gray(1)},
			Viewpoints: [][dataset.ViewpointDim]float64{{0, 0, 3, 0, 1, 0, 1}},
		}})
		require.NoError(t, err)
		ds, err := dataset.Open(dir)
		require.NoError(t, err)
		s, err := ds.Subset(0)
		require.NoError(t, err)
		_, err = NewObservation(s, 0)
		assert.True(t, errors.Is(err, errors.ErrCodeInvalidArgument))
	})
}

func TestAngleDiff(t *testing.T) {
	assert.InDelta(t, 0, angleDiff(math.Pi, -math.Pi), 1e-12)
	assert.InDelta(t, math.Pi/2, angleDiff(0, 3*math.Pi/2), 1e-12)
	assert.InDelta(t, 0.5, angleDiff(0.25, -0.25), 1e-12)
}
