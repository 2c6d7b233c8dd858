// Package imageproc converts traced buffers to 8-bit images and prepares
// images for the dataset.
package imageproc

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"github.com/matzehuels/gqnviz/pkg/errors"
	"github.com/matzehuels/gqnviz/pkg/raytrace"
)

// Gamma is the display gamma used by [ToSRGB].
const Gamma = 2.2

// ToSRGB clamps linear radiance to [0, 1], applies gamma 1/2.2 and quantizes
// to 8 bits.
func ToSRGB(buf *raytrace.Buffer) (*image.NRGBA, error) {
	if !buf.Valid() {
		return nil, errors.New(errors.ErrCodeInvalidArgument, "buffer is not allocated")
	}
	img := image.NewNRGBA(image.Rect(0, 0, buf.Width, buf.Height))
	for y := 0; y < buf.Height; y++ {
		for x := 0; x < buf.Width; x++ {
			r, g, b := buf.At(x, y)
			img.SetNRGBA(x, y, color.NRGBA{R: encode(r), G: encode(g), B: encode(b), A: 255})
		}
	}
	return img, nil
}

func encode(v float32) uint8 {
	f := math.Max(0, math.Min(1, float64(v)))
	return uint8(math.Pow(f, 1/Gamma) * 255)
}

// CropSquare crops the centre square of img, trimming the longer side
// equally on both ends.
func CropSquare(img image.Image) *image.NRGBA {
	b := img.Bounds()
	side := min(b.Dx(), b.Dy())
	return imaging.CropCenter(img, side, side)
}

// Resize scales img to size x size with a Lanczos filter.
func Resize(img image.Image, size int) *image.NRGBA {
	return imaging.Resize(img, size, size, imaging.Lanczos)
}

// Square crops img to its centre square and resizes it to size x size.
func Square(img image.Image, size int) (*image.NRGBA, error) {
	if size < 1 {
		return nil, errors.New(errors.ErrCodeInvalidArgument, "image size must be >= 1, got %d", size)
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, errors.New(errors.ErrCodeInvalidArgument, "image is empty")
	}
	return Resize(CropSquare(img), size), nil
}

// RGB returns the pixels of img as interleaved 8-bit RGB, row-major.
func RGB(img image.Image) []uint8 {
	src := imaging.Clone(img)
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	out := make([]uint8, 0, 3*w*h)
	for i := 0; i < len(src.Pix); i += 4 {
		out = append(out, src.Pix[i], src.Pix[i+1], src.Pix[i+2])
	}
	return out
}

// FromRGB builds an image from interleaved 8-bit RGB pixels.
func FromRGB(pix []uint8, width, height int) (*image.NRGBA, error) {
	if width < 1 || height < 1 || len(pix) != 3*width*height {
		return nil, errors.New(errors.ErrCodeInvalidArgument,
			"%d bytes do not hold a %dx%d RGB image", len(pix), width, height)
	}
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i, j := 0, 0; i < len(pix); i, j = i+3, j+4 {
		img.Pix[j], img.Pix[j+1], img.Pix[j+2], img.Pix[j+3] = pix[i], pix[i+1], pix[i+2], 255
	}
	return img, nil
}

// Float returns the pixels of img as interleaved RGB in [0, 1].
func Float(img image.Image) []float64 {
	rgb := RGB(img)
	out := make([]float64, len(rgb))
	for i, v := range rgb {
		out[i] = float64(v) / 255
	}
	return out
}
