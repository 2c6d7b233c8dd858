// Package metrics compares predicted views with the original renders.
package metrics

import (
	"image"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/matzehuels/gqnviz/pkg/errors"
	"github.com/matzehuels/gqnviz/pkg/imageproc"
)

// Bins is the number of grayscale histogram bins.
const Bins = 256

// Gray returns the luma (0.299 R + 0.587 G + 0.114 B) of every pixel, in [0, 1].
func Gray(img image.Image) []float64 {
	rgb := imageproc.Float(img)
	out := make([]float64, len(rgb)/3)
	for i := range out {
		out[i] = 0.299*rgb[3*i] + 0.587*rgb[3*i+1] + 0.114*rgb[3*i+2]
	}
	return out
}

// Histogram returns the normalized 8-bit histogram of gray values in [0, 1].
func Histogram(gray []float64) []float64 {
	h := make([]float64, Bins)
	if len(gray) == 0 {
		return h
	}
	for _, v := range gray {
		bin := int(v * 255)
		h[max(0, min(Bins-1, bin))]++
	}
	floats.Scale(1/float64(len(gray)), h)
	return h
}

// KLDivergence returns the divergence of the predicted grayscale histogram
// from the original's. Bins the prediction never hits are skipped instead of
// contributing an infinite term, and the result is clamped at zero.
func KLDivergence(original, predicted image.Image) (float64, error) {
	if err := sameSize(original, predicted); err != nil {
		return 0, err
	}
	return HistogramKL(Histogram(Gray(original)), Histogram(Gray(predicted))), nil
}

// HistogramKL returns H(p, q) - H(p) over bins where q is non-zero, clamped at
// zero.
func HistogramKL(p, q []float64) float64 {
	var cross float64
	for i := range p {
		if q[i] > 0 {
			cross -= p[i] * math.Log(q[i])
		}
	}
	return math.Max(0, cross-stat.Entropy(p))
}

// SquaredDistance returns the total of 0.5 (o - p)^2 over every channel of
// every pixel, and the per-pixel sums as a rows x cols matrix.
func SquaredDistance(original, predicted image.Image) (float64, *mat.Dense, error) {
	if err := sameSize(original, predicted); err != nil {
		return 0, nil, err
	}
	o, p := imageproc.Float(original), imageproc.Float(predicted)
	b := original.Bounds()
	perPixel := mat.NewDense(b.Dy(), b.Dx(), nil)
	var total float64
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			var d float64
			for c := range 3 {
				i := 3*(y*b.Dx()+x) + c
				d += 0.5 * (o[i] - p[i]) * (o[i] - p[i])
			}
			perPixel.Set(y, x, d)
			total += d
		}
	}
	return total, perPixel, nil
}

func sameSize(a, b image.Image) error {
	if a == nil || b == nil {
		return errors.New(errors.ErrCodeInvalidArgument, "images cannot be nil")
	}
	if a.Bounds().Size() != b.Bounds().Size() {
		return errors.New(errors.ErrCodeInvalidArgument,
			"image sizes differ: %v vs %v", a.Bounds().Size(), b.Bounds().Size())
	}
	if a.Bounds().Empty() {
		return errors.New(errors.ErrCodeInvalidArgument, "images are empty")
	}
	return nil
}
