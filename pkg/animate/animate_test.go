package animate

import (
	"context"
	"image"
	"image/color"
	"image/gif"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/plot/vg"

	"github.com/matzehuels/gqnviz/pkg/errors"
	"github.com/matzehuels/gqnviz/pkg/figure"
	"github.com/matzehuels/gqnviz/pkg/snapshot"
)

type memorySink struct {
	frames []int
	closed bool
}

func (m *memorySink) WriteFrame(frame int, _ image.Image) error {
	m.frames = append(m.frames, frame)
	return nil
}

func (m *memorySink) Close() error {
	m.closed = true
	return nil
}

func setup(t *testing.T) (*snapshot.Registry, *snapshot.Snapshot, *figure.Figure) {
	t.Helper()
	reg := snapshot.NewRegistry()
	require.NoError(t, reg.Register(snapshot.GraphConfig{
		ID:            "kl",
		Position:      2,
		Type:          snapshot.TypePlot,
		Mode:          snapshot.ModeSimultaneous,
		FrameCapacity: 4,
		Style: snapshot.Style{
			Colors:  []color.Color{color.RGBA{B: 255, A: 255}},
			Markers: []snapshot.Marker{snapshot.MarkerCircle},
		},
	}))
	layout, err := snapshot.Grid(1, 2)
	require.NoError(t, err)
	return reg, snapshot.New(reg, layout), figure.New(2*vg.Inch, 1*vg.Inch)
}

func TestRunFillsEveryFrame(t *testing.T) {
	reg, snap, fig := setup(t)
	sink := &memorySink{}
	var progress []int

	a := New(snap, fig, WithDPI(20), WithProgress(func(done, total int) {
		assert.Equal(t, 4, total)
		progress = append(progress, done)
	}))
	err := a.Run(context.Background(), 4, func(_ context.Context, frame int, s *snapshot.Snapshot) error {
		if err := reg.Write("kl", "n=0", frame, float64(frame)); err != nil {
			return err
		}
		return s.AddImage(image.NewNRGBA(image.Rect(0, 0, 4, 4)), 1, snapshot.MediaOptions{})
	}, sink)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 2, 3}, sink.frames)
	assert.Equal(t, []int{1, 2, 3, 4}, progress)
	assert.True(t, sink.closed)
}

func TestRunStopsOnRenderError(t *testing.T) {
	_, snap, fig := setup(t)
	sink := &memorySink{}

	err := New(snap, fig).Run(context.Background(), 3, func(_ context.Context, _ int, s *snapshot.Snapshot) error {
		return s.AddScalar(1, 2, snapshot.MediaOptions{})
	}, sink)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeConflict))
	assert.Empty(t, sink.frames)
	assert.True(t, sink.closed)
}

func TestRunRejectsZeroFrames(t *testing.T) {
	_, snap, fig := setup(t)
	err := New(snap, fig).Run(context.Background(), 0, nil, &memorySink{})
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidArgument))
}

func TestPNGSequence(t *testing.T) {
	_, snap, fig := setup(t)
	dir := filepath.Join(t.TempDir(), "frames")
	sink, err := NewPNGSequence(dir)
	require.NoError(t, err)

	require.NoError(t, New(snap, fig, WithDPI(20)).Run(context.Background(), 2, nil, sink))
	assert.Equal(t, 2, sink.Written())
	for _, name := range []string{"frame_0000.png", "frame_0001.png"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
}

func TestGIF(t *testing.T) {
	_, snap, fig := setup(t)
	path := filepath.Join(t.TempDir(), "out", "progress.gif")
	sink, err := NewGIF(path, 10)
	require.NoError(t, err)

	require.NoError(t, New(snap, fig, WithDPI(20)).Run(context.Background(), 3, nil, sink))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	anim, err := gif.DecodeAll(f)
	require.NoError(t, err)
	assert.Len(t, anim.Image, 3)
	assert.Equal(t, []int{10, 10, 10}, anim.Delay)
}

func TestNewGIFRejectsNegativeDelay(t *testing.T) {
	_, err := NewGIF("x.gif", -1)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidArgument))
}
