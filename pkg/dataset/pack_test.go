package dataset

import (
	"context"
	"fmt"
	"image/color"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/matzehuels/gqnviz/pkg/errors"
	"github.com/matzehuels/gqnviz/pkg/scene"
)

// writeScenes creates n scene directories of k 8x6 views under dir.
func writeScenes(t *testing.T, dir string, n, k int) map[float64]scene.Viewpoint {
	t.Helper()
	byX := make(map[float64]scene.Viewpoint)
	for s := range n {
		views := make([]RawView, k)
		for v := range views {
			eye := r3.Vec{X: float64(s*k + v + 1), Y: 0.5, Z: -1}
			vp := scene.NewViewpoint(eye, scene.Origin)
			byX[eye.X] = vp
			views[v] = RawView{Image: solid(8, 6, color.NRGBA{uint8(10 * s), uint8(10 * v), 200, 255}), Viewpoint: vp}
		}
		require.NoError(t, WriteSceneDir(filepath.Join(dir, fmt.Sprintf("scene_%d", s)), views))
	}
	return byX
}

func TestPack(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	byX := writeScenes(t, in, 3, 5)

	res, err := Pack(context.Background(), in, out,
		PackOptions{ViewsPerScene: 3, ImageSize: 4, ScenesPerShard: 2}, rand.New(rand.NewPCG(3, 4)))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Scenes)
	require.Len(t, res.Shards, 2)
	assert.Equal(t, ShardInfo{Name: "000", Scenes: 2, Views: 3, Width: 4, Height: 4}, res.Shards[0])
	assert.Equal(t, "001", res.Shards[1].Name)
	assert.Equal(t, 1, res.Shards[1].Scenes)

	ds, err := Open(out)
	require.NoError(t, err)
	assert.Equal(t, []string{"000", "001"}, ds.Names())

	sub, err := ds.Subset(0)
	require.NoError(t, err)
	seen := make(map[float64]bool)
	for s := range sub.Len() {
		for v := range sub.Views() {
			enc, err := sub.Viewpoint(s, v)
			require.NoError(t, err)
			want, ok := byX[enc[0]]
			require.True(t, ok, "unexpected viewpoint %v", enc)
			assert.False(t, seen[enc[0]], "view %v sampled twice", enc[0])
			seen[enc[0]] = true

			// Views stay inside their own scene.
			assert.Equal(t, s, int(enc[0]-1)/5)
			wantEnc := want.Encode()
			for i := range enc {
				assert.InDelta(t, wantEnc[i], enc[i], 1e-6)
			}

			img, err := sub.Image(s, v)
			require.NoError(t, err)
			px := img.NRGBAAt(2, 2)
			assert.InDelta(t, 10*s, int(px.R), 1)
			assert.InDelta(t, 200, int(px.B), 1)
		}
	}
}

func TestPackSingleShard(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeScenes(t, in, 2, 2)

	res, err := Pack(context.Background(), in, out, PackOptions{ViewsPerScene: 2, ImageSize: 3}, rand.New(rand.NewPCG(1, 1)))
	require.NoError(t, err)
	require.Len(t, res.Shards, 1)
	assert.Equal(t, DefaultShardName, res.Shards[0].Name)
	assert.Equal(t, 2, res.Shards[0].Scenes)
}

func TestPackErrors(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))
	ctx := context.Background()

	t.Run("too few views", func(t *testing.T) {
		in := t.TempDir()
		writeScenes(t, in, 1, 2)
		_, err := Pack(ctx, in, t.TempDir(), PackOptions{ViewsPerScene: 3}, rng)
		assert.True(t, errors.Is(err, errors.ErrCodeInvalidArgument), "got %v", err)
	})

	t.Run("no scenes", func(t *testing.T) {
		_, err := Pack(ctx, t.TempDir(), t.TempDir(), PackOptions{}, rng)
		assert.True(t, errors.Is(err, errors.ErrCodeNotFound), "got %v", err)
	})

	t.Run("missing viewpoint", func(t *testing.T) {
		in := t.TempDir()
		writeScenes(t, in, 1, 1)
		require.NoError(t, os.Remove(filepath.Join(in, "scene_0", ViewpointsDir, "000.txt")))
		_, err := Pack(ctx, in, t.TempDir(), PackOptions{ViewsPerScene: 1}, rng)
		assert.True(t, errors.Is(err, errors.ErrCodeNotFound), "got %v", err)
	})

	t.Run("bad viewpoint", func(t *testing.T) {
		in := t.TempDir()
		writeScenes(t, in, 1, 1)
		require.NoError(t, os.WriteFile(filepath.Join(in, "scene_0", ViewpointsDir, "000.txt"), []byte("1,2"), 0o644))
		_, err := Pack(ctx, in, t.TempDir(), PackOptions{ViewsPerScene: 1}, rng)
		assert.True(t, errors.Is(err, errors.ErrCodeInvalidFormat), "got %v", err)
	})

	t.Run("invalid options", func(t *testing.T) {
		_, err := Pack(ctx, t.TempDir(), t.TempDir(), PackOptions{ScenesPerShard: -1}, rng)
		assert.True(t, errors.Is(err, errors.ErrCodeInvalidConfig), "got %v", err)
	})

	t.Run("nil rng", func(t *testing.T) {
		_, err := Pack(ctx, t.TempDir(), t.TempDir(), PackOptions{}, nil)
		assert.True(t, errors.Is(err, errors.ErrCodeInvalidArgument), "got %v", err)
	})

	t.Run("cancelled", func(t *testing.T) {
		in := t.TempDir()
		writeScenes(t, in, 1, 1)
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := Pack(cctx, in, t.TempDir(), PackOptions{ViewsPerScene: 1}, rng)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
