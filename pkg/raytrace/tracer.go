package raytrace

import (
	"context"
	"io"
	"math"
	"math/rand/v2"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/matzehuels/gqnviz/pkg/errors"
	"github.com/matzehuels/gqnviz/pkg/scene"
)

const epsilon = 1e-6

// Tracer is the CPU [Renderer].
type Tracer struct {
	Logger *log.Logger
}

var _ Renderer = (*Tracer)(nil)

// NewTracer returns a tracer logging to logger, or nowhere when nil.
func NewTracer(logger *log.Logger) *Tracer {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Tracer{Logger: logger}
}

// Render traces every pixel of buf. Rows are split into contiguous bands, one
// goroutine per band. On cancellation the context error is returned and buf is
// partially written.
func (t *Tracer) Render(ctx context.Context, s *scene.Scene, cam scene.Camera, trace TraceArgs, kernel KernelArgs, buf *Buffer) error {
	if s == nil {
		return errors.New(errors.ErrCodeInvalidArgument, "scene is nil")
	}
	if !buf.Valid() {
		return errors.New(errors.ErrCodeInvalidArgument, "buffer is not allocated")
	}
	trace.SetDefaults()
	if err := trace.Validate(); err != nil {
		return err
	}
	kernel.SetDefaults()
	if kernel.NumThreads < 1 {
		return errors.New(errors.ErrCodeInvalidArgument, "thread count must be >= 1, got %d", kernel.NumThreads)
	}

	start := time.Now()
	w := world{scene: s, args: trace}
	bands := min(kernel.NumThreads, buf.Height)
	rowsPer := (buf.Height + bands - 1) / bands

	g, ctx := errgroup.WithContext(ctx)
	for y0 := 0; y0 < buf.Height; y0 += rowsPer {
		y1 := min(y0+rowsPer, buf.Height)
		g.Go(func() error {
			for y := y0; y < y1; y++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				for x := 0; x < buf.Width; x++ {
					r, gr, b := w.pixel(cam, buf.Width, buf.Height, x, y)
					buf.Set(x, y, r, gr, b)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if t.Logger != nil {
		t.Logger.Debug("traced view", "scene", s.ID, "size", buf.Width, "rays", trace.RaysPerPixel, "duration", time.Since(start))
	}
	return nil
}

type world struct {
	scene *scene.Scene
	args  TraceArgs
}

func (w world) pixel(cam scene.Camera, width, height, x, y int) (float32, float32, float32) {
	rng := rand.New(rand.NewPCG(w.args.Seed, uint64(y)*uint64(width)+uint64(x)))
	aspect := float64(width) / float64(height)
	var sum colorful.Color
	for range w.args.RaysPerPixel {
		sx := 2*(float64(x)+rng.Float64())/float64(width) - 1
		sy := 1 - 2*(float64(y)+rng.Float64())/float64(height)
		o, d := cam.Ray(sx, sy, aspect)
		c := w.radiance(rng, o, d, 0)
		sum.R += c.R
		sum.G += c.G
		sum.B += c.B
	}
	n := float64(w.args.RaysPerPixel)
	return float32(sum.R / n), float32(sum.G / n), float32(sum.B / n)
}

// radiance returns the light arriving along the ray (o, d).
func (w world) radiance(rng *rand.Rand, o, d r3.Vec, depth int) colorful.Color {
	hit, ok := w.intersect(o, d)
	if !ok {
		return w.scene.Ambient
	}
	p := r3.Add(hit.point, r3.Scale(epsilon, hit.normal))
	box := w.scene.Boxes[hit.box]
	k := box.Albedo
	diffuse := colorful.Color{R: k * box.Color.R, G: k * box.Color.G, B: k * box.Color.B}

	direct := w.direct(rng, p, hit.normal)
	out := colorful.Color{R: diffuse.R * direct.R, G: diffuse.G * direct.G, B: diffuse.B * direct.B}
	if depth < w.args.MaxBounce {
		in := w.radiance(rng, p, cosineSample(rng, hit.normal), depth+1)
		out.R += diffuse.R * in.R
		out.G += diffuse.G * in.G
		out.B += diffuse.B * in.B
	}
	return out
}

// direct estimates irradiance / pi at p from one sample per light.
func (w world) direct(rng *rand.Rand, p, n r3.Vec) colorful.Color {
	var out colorful.Color
	for _, l := range w.scene.Lights {
		q := l.Sample(rng.Float64(), rng.Float64())
		toLight := r3.Sub(q, p)
		dist := r3.Norm(toLight)
		if dist < epsilon {
			continue
		}
		dir := r3.Scale(1/dist, toLight)
		cosSurf := r3.Dot(n, dir)
		cosLight := -r3.Dot(r3.Unit(l.Normal), dir)
		if cosSurf <= 0 || cosLight <= 0 {
			continue
		}
		if w.occluded(p, dir, dist) {
			continue
		}
		e := l.Intensity * cosSurf * cosLight * l.Area() / (math.Pi * dist * dist)
		out.R += e * l.Color.R
		out.G += e * l.Color.G
		out.B += e * l.Color.B
	}
	return out
}

func (w world) occluded(o, d r3.Vec, dist float64) bool {
	for _, b := range w.scene.Boxes {
		if t, _, ok := intersectBox(o, d, b.Bounds()); ok && t < dist {
			return true
		}
	}
	return false
}

type hit struct {
	t      float64
	point  r3.Vec
	normal r3.Vec
	box    int
}

func (w world) intersect(o, d r3.Vec) (hit, bool) {
	best := hit{t: math.Inf(1), box: -1}
	for i, b := range w.scene.Boxes {
		t, n, ok := intersectBox(o, d, b.Bounds())
		if ok && t < best.t {
			best = hit{t: t, normal: n, box: i}
		}
	}
	if best.box < 0 {
		return hit{}, false
	}
	best.point = r3.Add(o, r3.Scale(best.t, d))
	return best, true
}

// intersectBox returns the nearest positive distance at which the ray (o, d)
// enters b, with the outward normal of the face it crosses.
func intersectBox(o, d r3.Vec, b r3.Box) (float64, r3.Vec, bool) {
	origin := [3]float64{o.X, o.Y, o.Z}
	dir := [3]float64{d.X, d.Y, d.Z}
	lo := [3]float64{b.Min.X, b.Min.Y, b.Min.Z}
	hi := [3]float64{b.Max.X, b.Max.Y, b.Max.Z}

	tNear, tFar := math.Inf(-1), math.Inf(1)
	nearAxis, nearSign := -1, 0.0
	for a := range 3 {
		if dir[a] == 0 {
			if origin[a] < lo[a] || origin[a] > hi[a] {
				return 0, r3.Vec{}, false
			}
			continue
		}
		t0 := (lo[a] - origin[a]) / dir[a]
		t1 := (hi[a] - origin[a]) / dir[a]
		sign := -1.0
		if t0 > t1 {
			t0, t1 = t1, t0
			sign = 1
		}
		if t0 > tNear {
			tNear, nearAxis, nearSign = t0, a, sign
		}
		tFar = math.Min(tFar, t1)
		if tNear > tFar {
			return 0, r3.Vec{}, false
		}
	}
	if tNear <= epsilon || nearAxis < 0 {
		// Origin inside or behind the box.
		return 0, r3.Vec{}, false
	}
	var n [3]float64
	n[nearAxis] = nearSign
	return tNear, r3.Vec{X: n[0], Y: n[1], Z: n[2]}, true
}

// cosineSample draws a direction from the cosine-weighted hemisphere around n.
func cosineSample(rng *rand.Rand, n r3.Vec) r3.Vec {
	u1, u2 := rng.Float64(), rng.Float64()
	r := math.Sqrt(u1)
	phi := 2 * math.Pi * u2
	x, y, z := r*math.Cos(phi), r*math.Sin(phi), math.Sqrt(1-u1)

	helper := r3.Vec{X: 1}
	if math.Abs(n.X) > 0.9 {
		helper = r3.Vec{Y: 1}
	}
	tangent := r3.Unit(r3.Cross(helper, n))
	bitangent := r3.Cross(n, tangent)
	return r3.Add(r3.Add(r3.Scale(x, tangent), r3.Scale(y, bitangent)), r3.Scale(z, n))
}
