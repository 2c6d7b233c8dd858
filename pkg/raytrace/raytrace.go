// Package raytrace renders block scenes into linear RGB buffers.
//
// [Tracer] is a CPU path tracer: camera rays hit axis-aligned boxes, direct
// light is estimated by sampling points on the emissive plane lights, and up
// to MaxBounce diffuse bounces add indirect light. Lights are not visible to
// camera rays, so background pixels take the scene's ambient colour.
package raytrace

import (
	"context"

	"github.com/matzehuels/gqnviz/pkg/errors"
	"github.com/matzehuels/gqnviz/pkg/scene"
)

// Default tracing parameters.
const (
	DefaultRaysPerPixel = 512
	DefaultMaxBounce    = 2
	DefaultNumThreads   = 64
)

// TraceArgs controls sampling.
type TraceArgs struct {
	RaysPerPixel int
	MaxBounce    int
	// Seed makes renders reproducible. Pixels draw from independent streams
	// derived from Seed, so the thread count does not change the result.
	Seed uint64
}

// SetDefaults fills zero fields. A MaxBounce of [NoBounce] selects direct
// lighting only.
func (a *TraceArgs) SetDefaults() {
	if a.RaysPerPixel == 0 {
		a.RaysPerPixel = DefaultRaysPerPixel
	}
	if a.MaxBounce == 0 {
		a.MaxBounce = DefaultMaxBounce
	}
	if a.MaxBounce == NoBounce {
		a.MaxBounce = 0
	}
}

// NoBounce requests direct lighting only.
const NoBounce = -1

// Validate checks args after defaults.
func (a TraceArgs) Validate() error {
	if a.RaysPerPixel < 1 {
		return errors.New(errors.ErrCodeInvalidArgument, "rays per pixel must be >= 1, got %d", a.RaysPerPixel)
	}
	if a.MaxBounce < 0 {
		return errors.New(errors.ErrCodeInvalidArgument, "max bounce must be >= 0, got %d", a.MaxBounce)
	}
	return nil
}

// KernelArgs controls parallelism.
type KernelArgs struct {
	NumThreads int
}

// SetDefaults fills zero fields.
func (k *KernelArgs) SetDefaults() {
	if k.NumThreads == 0 {
		k.NumThreads = DefaultNumThreads
	}
}

// Renderer renders a scene seen through a camera into buf.
type Renderer interface {
	Render(ctx context.Context, s *scene.Scene, cam scene.Camera, trace TraceArgs, kernel KernelArgs, buf *Buffer) error
}

// Buffer is a row-major linear RGB image with float32 channels.
type Buffer struct {
	Width, Height int
	Pix           []float32
}

// NewBuffer allocates a black buffer.
func NewBuffer(width, height int) *Buffer {
	return &Buffer{Width: width, Height: height, Pix: make([]float32, 3*width*height)}
}

// Valid reports whether the buffer's size matches its pixel slice.
func (b *Buffer) Valid() bool {
	return b != nil && b.Width > 0 && b.Height > 0 && len(b.Pix) == 3*b.Width*b.Height
}

// At returns the colour at (x, y).
func (b *Buffer) At(x, y int) (r, g, bl float32) {
	i := 3 * (y*b.Width + x)
	return b.Pix[i], b.Pix[i+1], b.Pix[i+2]
}

// Set stores the colour at (x, y).
func (b *Buffer) Set(x, y int, r, g, bl float32) {
	i := 3 * (y*b.Width + x)
	b.Pix[i], b.Pix[i+1], b.Pix[i+2] = r, g, bl
}

// Clone returns a deep copy.
func (b *Buffer) Clone() *Buffer {
	out := &Buffer{Width: b.Width, Height: b.Height, Pix: make([]float32, len(b.Pix))}
	copy(out.Pix, b.Pix)
	return out
}
