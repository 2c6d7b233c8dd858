package scene

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Projection selects how a camera maps screen coordinates to rays.
type Projection int

const (
	Orthographic Projection = iota
	Perspective
)

// Default camera settings.
const (
	DefaultOrthoHalfHeight = 2.0
	DefaultFovY            = math.Pi / 3
)

// Camera is a pinhole or orthographic camera.
type Camera struct {
	Projection Projection
	Eye        r3.Vec
	Center     r3.Vec
	Up         r3.Vec
	// HalfHeight is the half extent of the orthographic view volume.
	HalfHeight float64
	// FovY is the vertical field of view of a perspective camera in radians.
	FovY float64
}

// NewOrthographicCamera returns an orthographic camera at (0, 0, 1) looking at
// the origin.
func NewOrthographicCamera() Camera {
	return Camera{
		Projection: Orthographic,
		Eye:        r3.Vec{Z: 1},
		Up:         r3.Vec{Y: 1},
		HalfHeight: DefaultOrthoHalfHeight,
	}
}

// NewPerspectiveCamera returns a perspective camera with the given vertical
// field of view.
func NewPerspectiveCamera(fovY float64) Camera {
	if fovY <= 0 {
		fovY = DefaultFovY
	}
	return Camera{
		Projection: Perspective,
		Eye:        r3.Vec{Z: 1},
		Up:         r3.Vec{Y: 1},
		FovY:       fovY,
	}
}

// LookAt points the camera from eye towards center.
func (c *Camera) LookAt(eye, center, up r3.Vec) {
	c.Eye, c.Center, c.Up = eye, center, up
}

// Basis returns the camera's orthonormal forward, right and up vectors.
func (c Camera) Basis() (forward, right, up r3.Vec) {
	forward = r3.Unit(r3.Sub(c.Center, c.Eye))
	right = r3.Cross(forward, c.Up)
	if r3.Norm(right) < 1e-12 {
		// Looking along the up vector; pick any perpendicular.
		right = r3.Cross(forward, r3.Vec{Z: 1})
		if r3.Norm(right) < 1e-12 {
			right = r3.Cross(forward, r3.Vec{X: 1})
		}
	}
	right = r3.Unit(right)
	up = r3.Cross(right, forward)
	return forward, right, up
}

// Ray returns the ray through screen point (sx, sy), both in [-1, 1] with sy
// pointing up, for an image of the given aspect ratio (width / height).
func (c Camera) Ray(sx, sy, aspect float64) (origin, dir r3.Vec) {
	forward, right, up := c.Basis()
	switch c.Projection {
	case Perspective:
		h := math.Tan(c.FovY / 2)
		dir = r3.Unit(r3.Add(forward, r3.Add(r3.Scale(sx*h*aspect, right), r3.Scale(sy*h, up))))
		return c.Eye, dir
	default:
		h := c.HalfHeight
		if h <= 0 {
			h = DefaultOrthoHalfHeight
		}
		origin = r3.Add(c.Eye, r3.Add(r3.Scale(sx*h*aspect, right), r3.Scale(sy*h, up)))
		return origin, forward
	}
}
