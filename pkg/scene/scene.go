// Package scene builds the block scenes rendered for the dataset.
//
// A scene is a short self-avoiding chain of unit cubes with random palette
// colours, lit by two large emissive planes. Cameras look at the scene from
// viewpoints on a sphere around the origin; viewpoints are encoded as the
// 7-d vector (x, y, z, sin yaw, cos yaw, sin pitch, cos pitch).
package scene

import (
	"math"
	"math/rand/v2"

	"github.com/google/uuid"
	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/matzehuels/gqnviz/pkg/errors"
)

// Material albedo and light settings of generated scenes.
const (
	DefaultAlbedo   = 0.3
	LightSize       = 50.0
	LightDistance   = 10.0
	KeyIntensity    = 10.0
	FillIntensity   = 1.0
	DefaultNumCubes = 5
)

// LightRotation is the Euler rotation (about x, then y, then z) applied to the
// light rig.
var LightRotation = r3.Vec{X: -math.Pi / 3, Y: math.Pi / 4}

// Box is an axis-aligned cube.
type Box struct {
	Center r3.Vec
	Size   float64
	Color  colorful.Color
	Albedo float64
}

// Bounds returns the box as an r3.Box.
func (b Box) Bounds() r3.Box {
	h := b.Size / 2
	return r3.Box{
		Min: r3.Vec{X: b.Center.X - h, Y: b.Center.Y - h, Z: b.Center.Z - h},
		Max: r3.Vec{X: b.Center.X + h, Y: b.Center.Y + h, Z: b.Center.Z + h},
	}
}

// Light is a rectangular emissive plane. U and V are the half-extent axes of
// the rectangle; Normal is the emitting side. Lights are invisible to camera
// rays and only contribute through shading.
type Light struct {
	Center    r3.Vec
	Normal    r3.Vec
	U, V      r3.Vec
	Intensity float64
	Color     colorful.Color
}

// Area returns the surface area of the light.
func (l Light) Area() float64 {
	return 4 * r3.Norm(l.U) * r3.Norm(l.V)
}

// Sample maps (s, t) in [0,1)^2 to a point on the light.
func (l Light) Sample(s, t float64) r3.Vec {
	return r3.Add(l.Center, r3.Add(r3.Scale(2*s-1, l.U), r3.Scale(2*t-1, l.V)))
}

// Scene is a set of boxes and lights.
type Scene struct {
	ID      string
	Ambient colorful.Color
	Boxes   []Box
	Lights  []Light
}

// Config configures [Build].
type Config struct {
	NumCubes int
	Albedo   float64
}

func (c *Config) setDefaults() {
	if c.NumCubes == 0 {
		c.NumCubes = DefaultNumCubes
	}
	if c.Albedo == 0 {
		c.Albedo = DefaultAlbedo
	}
}

// Build generates a scene: cubes from [BlockPositions] shifted so their centre
// of gravity is the origin, each with a random palette colour, and the two
// light planes.
func Build(rng *rand.Rand, cfg Config, palette []colorful.Color) (*Scene, error) {
	cfg.setDefaults()
	if len(palette) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidArgument, "palette is empty")
	}
	positions, cog, err := BlockPositions(rng, cfg.NumCubes)
	if err != nil {
		return nil, err
	}

	s := &Scene{ID: uuid.New().String()}
	for _, p := range positions {
		s.Boxes = append(s.Boxes, Box{
			Center: r3.Sub(p, cog),
			Size:   1,
			Color:  palette[rng.IntN(len(palette))],
			Albedo: cfg.Albedo,
		})
	}
	s.Lights = Lights()
	return s, nil
}

// Lights returns the light rig: a key light at x=-10 facing +x and a fill
// light at x=+10 facing -x, both rotated by [LightRotation].
func Lights() []Light {
	white := colorful.Color{R: 1, G: 1, B: 1}
	half := LightSize / 2
	rig := []Light{
		{
			Center:    r3.Vec{X: -LightDistance},
			Normal:    r3.Vec{X: 1},
			U:         r3.Vec{Y: half},
			V:         r3.Vec{Z: half},
			Intensity: KeyIntensity,
			Color:     white,
		},
		{
			Center:    r3.Vec{X: LightDistance},
			Normal:    r3.Vec{X: -1},
			U:         r3.Vec{Y: half},
			V:         r3.Vec{Z: half},
			Intensity: FillIntensity,
			Color:     white,
		},
	}
	for i := range rig {
		rig[i].Center = RotateEuler(rig[i].Center, LightRotation)
		rig[i].Normal = RotateEuler(rig[i].Normal, LightRotation)
		rig[i].U = RotateEuler(rig[i].U, LightRotation)
		rig[i].V = RotateEuler(rig[i].V, LightRotation)
	}
	return rig
}

// RotateEuler rotates p about x, then y, then z by the components of angles.
func RotateEuler(p, angles r3.Vec) r3.Vec {
	p = r3.NewRotation(angles.X, r3.Vec{X: 1}).Rotate(p)
	p = r3.NewRotation(angles.Y, r3.Vec{Y: 1}).Rotate(p)
	return r3.NewRotation(angles.Z, r3.Vec{Z: 1}).Rotate(p)
}

// Palette returns n fully saturated colours evenly spaced in hue
// (hue i/(n-1), saturation 0.9, value 1). Hue 1 wraps to red.
func Palette(n int) []colorful.Color {
	out := make([]colorful.Color, n)
	for i := range out {
		hue := 0.0
		if n > 1 {
			hue = float64(i) / float64(n-1)
		}
		out[i] = colorful.Hsv(math.Mod(hue*360, 360), 0.9, 1)
	}
	return out
}
