// Package figure provides a retained multi-panel drawing surface.
//
// A [Figure] holds one [*plot.Plot] per panel position together with the
// fractional region of the figure the panel occupies. Panels are kept until
// they are replaced, so callers can update a subset of positions per frame and
// re-encode the whole figure.
//
// # Usage
//
//	fig := figure.New(12*vg.Inch, 6*vg.Inch)
//	fig.Set(1, figure.Region{X: 0, Y: 0, W: 0.5, H: 1}, p)
//	if err := fig.Encode(w, "png"); err != nil {
//	    return err
//	}
package figure

import (
	"image"
	"image/color"
	"io"
	"slices"
	"sync"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/matzehuels/gqnviz/pkg/errors"

	// Register the vector backends with draw.NewFormattedCanvas.
	_ "gonum.org/v1/plot/vg/vgeps"
	_ "gonum.org/v1/plot/vg/vgpdf"
	_ "gonum.org/v1/plot/vg/vgsvg"
)

// Formats lists the encodings accepted by [Figure.Encode].
var Formats = []string{"png", "jpg", "jpeg", "tif", "tiff", "svg", "pdf", "eps"}

// Region is a rectangle expressed in fractions of the figure size.
// X and Y locate the top-left corner.
type Region struct {
	X, Y, W, H float64
}

// Full covers the whole figure.
var Full = Region{W: 1, H: 1}

// Valid reports whether the region lies inside the unit square and has a
// positive area.
func (r Region) Valid() bool {
	return r.W > 0 && r.H > 0 &&
		r.X >= 0 && r.Y >= 0 &&
		r.X+r.W <= 1+1e-9 && r.Y+r.H <= 1+1e-9
}

// Panel is one retained panel.
type Panel struct {
	Region Region
	Plot   *plot.Plot
}

// Figure is a set of panels keyed by 1-based position. It is safe for
// concurrent use.
type Figure struct {
	mu         sync.RWMutex
	width      vg.Length
	height     vg.Length
	background color.Color
	panels     map[int]Panel
}

// New returns an empty figure of the given physical size.
func New(width, height vg.Length) *Figure {
	return &Figure{
		width:      width,
		height:     height,
		background: color.White,
		panels:     make(map[int]Panel),
	}
}

// Size returns the physical size of the figure.
func (f *Figure) Size() (vg.Length, vg.Length) {
	return f.width, f.height
}

// Set stores p at pos, replacing any panel already there.
func (f *Figure) Set(pos int, r Region, p *plot.Plot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.panels[pos] = Panel{Region: r, Plot: p}
}

// Commit replaces every panel in batch at once. Positions not in batch keep
// their current panel.
func (f *Figure) Commit(batch map[int]Panel) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for pos, p := range batch {
		f.panels[pos] = p
	}
}

// Panel returns the panel stored at pos.
func (f *Figure) Panel(pos int) (Panel, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.panels[pos]
	return p, ok
}

// Positions returns the occupied positions in ascending order.
func (f *Figure) Positions() []int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]int, 0, len(f.panels))
	for pos := range f.panels {
		out = append(out, pos)
	}
	slices.Sort(out)
	return out
}

// Len returns the number of panels.
func (f *Figure) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.panels)
}

// Draw draws every panel into c in ascending position order.
func (f *Figure) Draw(c draw.Canvas) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	c.FillPolygon(f.background, []vg.Point{
		{X: c.Min.X, Y: c.Min.Y},
		{X: c.Max.X, Y: c.Min.Y},
		{X: c.Max.X, Y: c.Max.Y},
		{X: c.Min.X, Y: c.Max.Y},
	})

	positions := make([]int, 0, len(f.panels))
	for pos := range f.panels {
		positions = append(positions, pos)
	}
	slices.Sort(positions)

	for _, pos := range positions {
		p := f.panels[pos]
		if p.Plot == nil {
			continue
		}
		p.Plot.Draw(subCanvas(c, p.Region))
	}
}

// subCanvas maps a top-left based fractional region onto c, whose origin is
// the bottom-left corner.
func subCanvas(c draw.Canvas, r Region) draw.Canvas {
	w := c.Max.X - c.Min.X
	h := c.Max.Y - c.Min.Y
	minX := c.Min.X + vg.Length(r.X)*w
	maxY := c.Max.Y - vg.Length(r.Y)*h
	return draw.Canvas{
		Canvas: c.Canvas,
		Rectangle: vg.Rectangle{
			Min: vg.Point{X: minX, Y: maxY - vg.Length(r.H)*h},
			Max: vg.Point{X: minX + vg.Length(r.W)*w, Y: maxY},
		},
	}
}

// Image rasterizes the figure at the given resolution.
func (f *Figure) Image(dpi int) image.Image {
	if dpi <= 0 {
		dpi = vgimg.DefaultDPI
	}
	c := vgimg.NewWith(vgimg.UseWH(f.width, f.height), vgimg.UseDPI(dpi))
	f.Draw(draw.New(c))
	return c.Image()
}

// Encode writes the figure to w in the given format.
func (f *Figure) Encode(w io.Writer, format string) error {
	c, err := draw.NewFormattedCanvas(f.width, f.height, format)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidFormat, err, "figure format %q", format)
	}
	f.Draw(draw.New(c))
	if _, err := c.WriteTo(w); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode figure")
	}
	return nil
}
