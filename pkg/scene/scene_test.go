package scene

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/matzehuels/gqnviz/pkg/errors"
)

func testRNG() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

func TestBlockPositions(t *testing.T) {
	rng := testRNG()
	for _, n := range []int{1, 2, 5, 12} {
		pos, cog, err := BlockPositions(rng, n)
		require.NoError(t, err)
		require.Len(t, pos, n)

		seen := map[r3.Vec]bool{}
		var sum r3.Vec
		for i, p := range pos {
			assert.False(t, seen[p], "duplicate cube %v", p)
			seen[p] = true
			sum = r3.Add(sum, p)
			if i > 0 {
				assert.InDelta(t, 1, r3.Norm(r3.Sub(p, pos[i-1])), 1e-12, "cubes %d and %d are not adjacent", i-1, i)
			}
		}
		assert.Equal(t, r3.Vec{}, pos[0])
		want := r3.Scale(1/float64(n), sum)
		assert.InDelta(t, want.X, cog.X, 1e-12)
		assert.InDelta(t, want.Y, cog.Y, 1e-12)
		assert.InDelta(t, want.Z, cog.Z, 1e-12)
	}
}

func TestBlockPositionsInvalid(t *testing.T) {
	_, _, err := BlockPositions(testRNG(), 0)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidArgument))
}

func TestPalette(t *testing.T) {
	p := Palette(12)
	require.Len(t, p, 12)
	// hue 0 is red
	assert.InDelta(t, 1, p[0].R, 1e-9)
	assert.InDelta(t, 0.1, p[0].G, 1e-9)
	assert.InDelta(t, 0.1, p[0].B, 1e-9)
	// the last hue wraps back to red
	assert.InDelta(t, p[0].R, p[11].R, 1e-9)
	assert.InDelta(t, p[0].G, p[11].G, 1e-9)

	one := Palette(1)
	require.Len(t, one, 1)
	assert.InDelta(t, 1, one[0].R, 1e-9)
	assert.Empty(t, Palette(0))
}

func TestBuild(t *testing.T) {
	palette := Palette(4)
	s, err := Build(testRNG(), Config{NumCubes: 6}, palette)
	require.NoError(t, err)
	require.Len(t, s.Boxes, 6)
	require.Len(t, s.Lights, 2)
	assert.NotEmpty(t, s.ID)

	var sum r3.Vec
	for _, b := range s.Boxes {
		sum = r3.Add(sum, b.Center)
		assert.Equal(t, 1.0, b.Size)
		assert.Equal(t, DefaultAlbedo, b.Albedo)
		assert.Contains(t, palette, b.Color)
	}
	assert.InDelta(t, 0, r3.Norm(sum), 1e-9, "cubes are not centred")

	assert.Equal(t, KeyIntensity, s.Lights[0].Intensity)
	assert.Equal(t, FillIntensity, s.Lights[1].Intensity)
	for _, l := range s.Lights {
		assert.InDelta(t, LightDistance, r3.Norm(l.Center), 1e-9)
		assert.InDelta(t, LightSize*LightSize, l.Area(), 1e-9)
		// lights face the origin
		assert.Less(t, r3.Dot(l.Normal, l.Center), 0.0)
	}
}

func TestBuildEmptyPalette(t *testing.T) {
	_, err := Build(testRNG(), Config{}, nil)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidArgument))
}

func TestBoxBounds(t *testing.T) {
	b := Box{Center: r3.Vec{X: 1, Y: 2, Z: 3}, Size: 2}
	got := b.Bounds()
	assert.Equal(t, r3.Vec{X: 0, Y: 1, Z: 2}, got.Min)
	assert.Equal(t, r3.Vec{X: 2, Y: 3, Z: 4}, got.Max)
}

func TestRotateEuler(t *testing.T) {
	got := RotateEuler(r3.Vec{X: 1}, r3.Vec{Z: math.Pi / 2})
	assert.InDelta(t, 0, got.X, 1e-12)
	assert.InDelta(t, 1, got.Y, 1e-12)
	assert.InDelta(t, 0, got.Z, 1e-12)
}
