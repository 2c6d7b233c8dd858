package dataset

import (
	"image"
	"image/color"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/gqnviz/pkg/errors"
)

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

// testScenes builds n scenes of k views and f rotation frames. Every image
// is a solid colour identifying its scene and index.
func testScenes(n, k, f int) []SceneViews {
	out := make([]SceneViews, n)
	for s := range out {
		for v := range k {
			out[s].Images = append(out[s].Images, solid(4, 3, color.NRGBA{uint8(s), uint8(v), 1, 255}))
			out[s].Viewpoints = append(out[s].Viewpoints, [ViewpointDim]float64{float64(s), float64(v), 0, 0, 1, 0, 1})
		}
		for i := range f {
			out[s].Originals = append(out[s].Originals, solid(4, 3, color.NRGBA{uint8(s), uint8(i), 2, 255}))
		}
	}
	return out
}

func TestShardWriteAndOpen(t *testing.T) {
	dir := t.TempDir()
	w, err := NewShardWriter(dir, nil)
	require.NoError(t, err)

	info, err := w.Write("b", testScenes(2, 3, 0))
	require.NoError(t, err)
	assert.Equal(t, ShardInfo{Name: "b", Scenes: 2, Views: 3, Width: 4, Height: 3}, info)

	info, err = w.Write("a", testScenes(1, 3, 4))
	require.NoError(t, err)
	assert.Equal(t, 4, info.Originals)

	ds, err := Open(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, ds.Dir())
	assert.Equal(t, []string{"a", "b"}, ds.Names())

	a, err := ds.Subset(0)
	require.NoError(t, err)
	assert.Equal(t, "a", a.Name)
	assert.Equal(t, 1, a.Len())
	assert.Equal(t, 3, a.Views())
	assert.Equal(t, 4, a.Frames())
	wd, ht := a.ImageSize()
	assert.Equal(t, 4, wd)
	assert.Equal(t, 3, ht)

	orig, err := a.Original(0, 2)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{0, 2, 2, 255}, orig.NRGBAAt(1, 1))

	b, err := ds.Subset(1)
	require.NoError(t, err)
	assert.Nil(t, b.Originals)
	assert.Zero(t, b.Frames())
	_, err = b.Original(0, 0)
	assert.True(t, errors.Is(err, errors.ErrCodeNotFound))

	img, err := b.Image(1, 2)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{1, 2, 1, 255}, img.NRGBAAt(3, 2))

	vp, err := b.Viewpoint(1, 2)
	require.NoError(t, err)
	assert.Equal(t, [ViewpointDim]float64{1, 2, 0, 0, 1, 0, 1}, vp)

	_, err = b.Image(2, 0)
	assert.True(t, errors.Is(err, errors.ErrCodeOutOfRange))
	_, err = b.Viewpoint(0, 3)
	assert.True(t, errors.Is(err, errors.ErrCodeOutOfRange))
	_, err = ds.Subset(2)
	assert.True(t, errors.Is(err, errors.ErrCodeOutOfRange))
}

func TestShardWriteInvalid(t *testing.T) {
	w, err := NewShardWriter(t.TempDir(), nil)
	require.NoError(t, err)

	mixedSize := testScenes(2, 2, 0)
	mixedSize[1].Images[1] = solid(5, 3, color.NRGBA{})

	mixedViews := testScenes(2, 2, 0)
	mixedViews[1].Viewpoints = mixedViews[1].Viewpoints[:1]

	mixedFrames := testScenes(2, 2, 1)
	mixedFrames[0].Originals = nil

	tests := []struct {
		name   string
		shard  string
		scenes []SceneViews
		code   errors.Code
	}{
		{"bad name", "../x", testScenes(1, 1, 0), errors.ErrCodeInvalidArgument},
		{"no scenes", "x", nil, errors.ErrCodeInvalidArgument},
		{"no views", "x", []SceneViews{{}}, errors.ErrCodeInvalidArgument},
		{"image size", "x", mixedSize, errors.ErrCodeInvalidArgument},
		{"viewpoint count", "x", mixedViews, errors.ErrCodeInvalidArgument},
		{"frame count", "x", mixedFrames, errors.ErrCodeInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := w.Write(tt.shard, tt.scenes)
			assert.True(t, errors.Is(err, tt.code), "got %v", err)
		})
	}
}

func TestOpenErrors(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing"))
	assert.True(t, errors.Is(err, errors.ErrCodeNotFound), "got %v", err)

	dir := t.TempDir()
	w, err := NewShardWriter(dir, nil)
	require.NoError(t, err)
	_, err = w.Write("x", testScenes(1, 2, 0))
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(dir, ViewpointsDir, "x.npy")))

	ds, err := Open(dir)
	require.NoError(t, err)
	_, err = ds.Subset(0)
	assert.True(t, errors.Is(err, errors.ErrCodeNotFound), "got %v", err)
}

func TestOpenShapeMismatch(t *testing.T) {
	dir := t.TempDir()
	w, err := NewShardWriter(dir, nil)
	require.NoError(t, err)
	_, err = w.Write("x", testScenes(2, 2, 0))
	require.NoError(t, err)
	require.NoError(t, writeArray(filepath.Join(dir, ViewpointsDir, "x.npy"),
		Float32Array([]int{1, 2, ViewpointDim}, make([]float32, 2*ViewpointDim))))

	ds, err := Open(dir)
	require.NoError(t, err)
	_, err = ds.Subset(0)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidFormat), "got %v", err)
}

func TestSubsets(t *testing.T) {
	dir := t.TempDir()
	w, err := NewShardWriter(dir, nil)
	require.NoError(t, err)
	for _, name := range []string{"000", "001", "002"} {
		_, err := w.Write(name, testScenes(1, 1, 0))
		require.NoError(t, err)
	}

	ds, err := Open(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, ds.Len())

	var names []string
	for s, err := range ds.Subsets() {
		require.NoError(t, err)
		names = append(names, s.Name)
		if len(names) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"000", "001"}, names)
}

func TestSubsetBatch(t *testing.T) {
	dir := t.TempDir()
	w, err := NewShardWriter(dir, nil)
	require.NoError(t, err)
	_, err = w.Write("x", testScenes(3, 2, 2))
	require.NoError(t, err)
	ds, err := Open(dir)
	require.NoError(t, err)
	s, err := ds.Subset(0)
	require.NoError(t, err)

	b, err := s.Batch([]int{2, 0})
	require.NoError(t, err)
	require.Len(t, b.Images, 2)
	require.Len(t, b.Images[0], 2)
	require.Len(t, b.Originals, 2)
	assert.Equal(t, uint8(2), b.Images[0][1].Pix[0])
	assert.Equal(t, uint8(1), b.Images[0][1].Pix[1])
	assert.Equal(t, uint8(0), b.Images[1][0].Pix[0])
	assert.Equal(t, float64(2), b.Viewpoints[0][0][0])
	assert.Equal(t, uint8(2), b.Originals[0][1].Pix[2])

	_, err = s.Batch([]int{3})
	assert.True(t, errors.Is(err, errors.ErrCodeOutOfRange))
}

func TestIterator(t *testing.T) {
	it, err := NewIterator(7, 3, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, it.Len())

	var batches [][]int
	for b := range it.Batches() {
		batches = append(batches, slices.Clone(b))
	}
	assert.Equal(t, [][]int{{0, 1, 2}, {3, 4, 5}, {6}}, batches)

	shuffled, err := NewIterator(20, 6, rand.New(rand.NewPCG(1, 2)))
	require.NoError(t, err)
	var all []int
	for b := range shuffled.Batches() {
		assert.LessOrEqual(t, len(b), 6)
		all = append(all, b...)
	}
	assert.Len(t, all, 20)
	assert.False(t, slices.IsSorted(all))
	slices.Sort(all)
	for i, v := range all {
		assert.Equal(t, i, v)
	}

	empty, err := NewIterator(0, 4, nil)
	require.NoError(t, err)
	assert.Zero(t, empty.Len())
	for range empty.Batches() {
		t.Fatal("empty iterator yielded a batch")
	}

	_, err = NewIterator(3, 0, nil)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidArgument))
	_, err = NewIterator(-1, 1, nil)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidArgument))
}
