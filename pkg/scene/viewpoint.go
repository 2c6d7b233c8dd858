package scene

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/matzehuels/gqnviz/pkg/errors"
)

// ViewRadius is the distance of observation cameras from the origin.
const ViewRadius = 3.0

// Origin is the point every camera looks at.
var Origin = r3.Vec{}

// WorldUp is the camera up vector.
var WorldUp = r3.Vec{Y: 1}

// Viewpoint is a camera position with its heading angles.
type Viewpoint struct {
	Eye   r3.Vec
	Yaw   float64
	Pitch float64
}

// NewViewpoint computes yaw and pitch of a camera at eye looking at center.
func NewViewpoint(eye, center r3.Vec) Viewpoint {
	return Viewpoint{Eye: eye, Yaw: Yaw(eye, center), Pitch: Pitch(eye, center)}
}

// Encode returns the 7-d network input
// (x, y, z, sin yaw, cos yaw, sin pitch, cos pitch).
func (v Viewpoint) Encode() [7]float64 {
	return EncodeViewpoint(v.Eye, v.Yaw, v.Pitch)
}

// String formats the viewpoint as "x,y,z,yaw,pitch".
func (v Viewpoint) String() string {
	vals := []float64{v.Eye.X, v.Eye.Y, v.Eye.Z, v.Yaw, v.Pitch}
	parts := make([]string, len(vals))
	for i, f := range vals {
		parts[i] = strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}

// ParseViewpoint parses the "x,y,z,yaw,pitch" text form.
func ParseViewpoint(s string) (Viewpoint, error) {
	fields := strings.Split(strings.TrimSpace(s), ",")
	if len(fields) != 5 {
		return Viewpoint{}, errors.New(errors.ErrCodeInvalidFormat, "viewpoint needs 5 values, got %d", len(fields))
	}
	var vals [5]float64
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return Viewpoint{}, errors.Wrap(errors.ErrCodeInvalidFormat, err, "viewpoint value %d", i)
		}
		vals[i] = v
	}
	return Viewpoint{
		Eye:   r3.Vec{X: vals[0], Y: vals[1], Z: vals[2]},
		Yaw:   vals[3],
		Pitch: vals[4],
	}, nil
}

// DecodeViewpoint inverts [EncodeViewpoint].
func DecodeViewpoint(enc [7]float64) Viewpoint {
	return Viewpoint{
		Eye:   r3.Vec{X: enc[0], Y: enc[1], Z: enc[2]},
		Yaw:   math.Atan2(enc[3], enc[4]),
		Pitch: math.Atan2(enc[5], enc[6]),
	}
}

// EncodeViewpoint returns (x, y, z, sin yaw, cos yaw, sin pitch, cos pitch).
func EncodeViewpoint(eye r3.Vec, yaw, pitch float64) [7]float64 {
	return [7]float64{
		eye.X, eye.Y, eye.Z,
		math.Sin(yaw), math.Cos(yaw),
		math.Sin(pitch), math.Cos(pitch),
	}
}

// Yaw returns the heading of the view direction in the xz-plane, measured
// from +z and negative when the direction points towards -x.
func Yaw(eye, center r3.Vec) float64 {
	dx, dz := center.X-eye.X, center.Z-eye.Z
	norm := math.Hypot(dx, dz)
	if norm == 0 {
		return 0
	}
	rad := math.Acos(clamp(dz/norm, -1, 1))
	if dx < 0 {
		rad = -rad
	}
	return rad
}

// Pitch returns the elevation of the view direction.
func Pitch(eye, center r3.Vec) float64 {
	d := r3.Sub(center, eye)
	radius := math.Hypot(d.X, d.Z)
	return math.Atan(d.Y / (radius + 1e-16))
}

// RotateEye returns the observation eye for angle: the point
// (sin a, sin a, cos a) scaled to radius.
func RotateEye(angle, radius float64) r3.Vec {
	eye := r3.Vec{X: math.Sin(angle), Y: math.Sin(angle), Z: math.Cos(angle)}
	return r3.Scale(radius/r3.Norm(eye), eye)
}

// RotationAngles returns frames evenly spaced angles covering one turn.
func RotationAngles(frames int) []float64 {
	out := make([]float64, frames)
	for i := range out {
		out[i] = 2 * math.Pi * float64(i) / float64(frames)
	}
	return out
}

// RandomEye samples a camera position uniformly on the sphere of the given
// radius.
func RandomEye(rng *rand.Rand, radius float64) r3.Vec {
	z := 2*rng.Float64() - 1
	phi := 2 * math.Pi * rng.Float64()
	r := math.Sqrt(1 - z*z)
	return r3.Vec{X: radius * r * math.Cos(phi), Y: radius * z, Z: radius * r * math.Sin(phi)}
}

// Key returns a stable text key of a vector for cache keys.
func Key(v r3.Vec) string {
	return fmt.Sprintf("%.6f,%.6f,%.6f", v.X, v.Y, v.Z)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
