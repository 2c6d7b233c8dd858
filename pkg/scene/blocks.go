package scene

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/matzehuels/gqnviz/pkg/errors"
)

type cell [3]int

var steps = [6]cell{
	{-1, 0, 0}, {1, 0, 0},
	{0, -1, 0}, {0, 1, 0},
	{0, 0, -1}, {0, 0, 1},
}

// maxWalkAttempts bounds restarts of a walk that traps itself.
const maxWalkAttempts = 100

// BlockPositions places n unit cubes along a self-avoiding random walk on the
// integer lattice starting at the origin. It returns the cube positions and
// their centre of gravity.
func BlockPositions(rng *rand.Rand, n int) ([]r3.Vec, r3.Vec, error) {
	if n <= 0 {
		return nil, r3.Vec{}, errors.New(errors.ErrCodeInvalidArgument, "cube count must be > 0, got %d", n)
	}
	for attempt := 0; attempt < maxWalkAttempts; attempt++ {
		cells, ok := walk(rng, n)
		if !ok {
			continue
		}
		var cog r3.Vec
		out := make([]r3.Vec, n)
		for i, c := range cells {
			out[i] = r3.Vec{X: float64(c[0]), Y: float64(c[1]), Z: float64(c[2])}
			cog = r3.Add(cog, out[i])
		}
		return out, r3.Scale(1/float64(n), cog), nil
	}
	return nil, r3.Vec{}, errors.New(errors.ErrCodeInternal, "random walk of %d cubes trapped itself %d times", n, maxWalkAttempts)
}

func walk(rng *rand.Rand, n int) ([]cell, bool) {
	cur := cell{}
	cells := []cell{cur}
	occupied := map[cell]bool{cur: true}
	for len(cells) < n {
		var free []cell
		for _, s := range steps {
			next := cell{cur[0] + s[0], cur[1] + s[1], cur[2] + s[2]}
			if !occupied[next] {
				free = append(free, next)
			}
		}
		if len(free) == 0 {
			return nil, false
		}
		cur = free[rng.IntN(len(free))]
		occupied[cur] = true
		cells = append(cells, cur)
	}
	return cells, true
}
