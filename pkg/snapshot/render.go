package snapshot

import (
	"context"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/matzehuels/gqnviz/pkg/errors"
	"github.com/matzehuels/gqnviz/pkg/figure"
	"github.com/matzehuels/gqnviz/pkg/observability"
)

const (
	barWidth     = 0.2
	yMarginScale = 1.1
	lineWidth    = 1.5
	glyphRadius  = 2.5
)

// Render draws every position of snap's layout into fig for frame.
//
// Graphs are read from the registry once, so concurrent writes either happen
// before or after the render. Every panel is built before any is committed:
// when an error is returned fig is unchanged. Positions outside the layout keep
// whatever fig already shows there.
func Render(ctx context.Context, snap *Snapshot, fig *figure.Figure, frame int) error {
	if frame < 0 {
		return errors.New(errors.ErrCodeOutOfRange, "frame %d is negative", frame)
	}
	start := time.Now()
	positions := snap.layout.Positions()

	hooks := observability.Render()
	hooks.OnFrameStart(ctx, frame, len(positions))

	staged, err := buildPanels(ctx, snap, snap.reg.Graphs(), frame)
	hooks.OnFrameComplete(ctx, frame, len(positions), time.Since(start), err)
	if err != nil {
		snap.logger.Debug("render failed", "frame", frame, "error", err)
		return err
	}

	fig.Commit(staged)
	snap.logger.Debug("rendered frame", "frame", frame, "panels", len(staged), "duration", time.Since(start))
	return nil
}

func buildPanels(ctx context.Context, snap *Snapshot, graphs []Graph, frame int) (map[int]figure.Panel, error) {
	r := panelRenderer{frame: frame}
	if snap.unifyY {
		r.unified = true
		r.unifiedMax, r.unifiedFound = maxOf(graphs)
	}

	staged := make(map[int]figure.Panel)
	for pos, region := range snap.layout.Regions() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pc, err := snap.resolve(pos, graphs)
		var p *plot.Plot
		switch {
		case errors.Is(err, errors.ErrCodeNotFound):
			p, err = blankPanel(), nil
			applyTitle(p, pc.Title)
		case err != nil:
			return nil, err
		case pc.Media != nil:
			p, err = mediaPanel(pc)
		default:
			p, err = r.graphPanel(pc)
		}
		if err != nil {
			return nil, err
		}
		staged[pos] = figure.Panel{Region: region, Plot: p}
	}
	return staged, nil
}

func blankPanel() *plot.Plot {
	p := plot.New()
	p.HideAxes()
	return p
}

func applyTitle(p *plot.Plot, t *TitleItem) {
	if t == nil {
		return
	}
	p.Title.Text = t.Text
	if t.Options.Size > 0 {
		p.Title.TextStyle.Font.Size = t.Options.Size
	}
}

func mediaPanel(pc PanelContent) (*plot.Plot, error) {
	p := blankPanel()
	applyTitle(p, pc.Title)
	m := pc.Media

	switch m.Kind {
	case MediaImage:
		b := m.Image.Bounds()
		w, h := float64(b.Dx()), float64(b.Dy())
		if w == 0 || h == 0 {
			return nil, errors.New(errors.ErrCodeInvalidArgument, "position %d: image is empty", pc.Position)
		}
		p.Add(plotter.NewImage(m.Image, 0, 0, w, h))
		p.X.Min, p.X.Max = 0, w
		p.Y.Min, p.Y.Max = 0, h

	case MediaScalar:
		x, y := 0.5, 0.5
		if m.Options.Coordinates != nil {
			if len(m.Options.Coordinates) != 2 {
				return nil, errors.New(errors.ErrCodeInvalidArgument,
					"position %d: scalar coordinates need 2 values, got %d", pc.Position, len(m.Options.Coordinates))
			}
			x, y = m.Options.Coordinates[0], m.Options.Coordinates[1]
		}
		label := m.Options.Label
		if label == "" {
			label = DefaultScalarLabel
		}
		labels, err := plotter.NewLabels(plotter.XYLabels{
			XYs:    plotter.XYs{{X: x, Y: y}},
			Labels: []string{FormatScalar(label, m.Value)},
		})
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidArgument, err, "position %d: scalar annotation", pc.Position)
		}
		p.Add(labels)
		p.X.Min, p.X.Max = 0, 1
		p.Y.Min, p.Y.Max = 0, 1

	default:
		return nil, errors.New(errors.ErrCodeInternal, "position %d: media kind %q", pc.Position, m.Kind)
	}
	return p, nil
}

// FormatScalar renders a scalar annotation.
func FormatScalar(label string, v float64) string {
	return fmt.Sprintf("%s = %.3f", label, v)
}

// seriesData is the visible part of one series for one frame.
type seriesData struct {
	index int
	label string
	runs  []plotter.XYs
}

func (s seriesData) points() int {
	n := 0
	for _, r := range s.runs {
		n += len(r)
	}
	return n
}

type panelRenderer struct {
	frame        int
	unified      bool
	unifiedMax   float64
	unifiedFound bool
}

func (r panelRenderer) graphPanel(pc PanelContent) (*plot.Plot, error) {
	g := pc.Graph
	data, err := graphData(g, r.frame)
	if err != nil {
		return nil, err
	}

	p := plot.New()
	applyTitle(p, pc.Title)
	p.Legend.Top = true

	yMin, yMax := r.yLimits(g)
	for _, sd := range data {
		if sd.points() == 0 {
			continue
		}
		if err := addSeries(p, g, sd, yMin); err != nil {
			return nil, err
		}
	}

	xMin, xMax := xLimits(g)
	setAxis(&p.X, xMin, xMax, g.Style.XScale, g.Style.HideXTicks)
	setAxis(&p.Y, yMin, yMax, g.Style.YScale, g.Style.HideYTicks)
	return p, nil
}

// graphData selects the points of every series visible at frame.
func graphData(g *Graph, frame int) ([]seriesData, error) {
	legends := g.Style.LegendLabels(g.SeriesCount)
	capacity := g.FrameCapacity
	logY := g.Style.YScale.IsLog()

	visible := func(i, n int, offset float64) seriesData {
		s := g.Series[i]
		sd := seriesData{index: i, label: legends[i]}
		var run plotter.XYs
		for k := 0; k < n && k < len(s.Values); k++ {
			v := s.Values[k]
			if !s.Drawable(k) || (logY && v <= 0) {
				if len(run) > 0 {
					sd.runs = append(sd.runs, run)
					run = nil
				}
				continue
			}
			run = append(run, plotter.XY{X: float64(k+1) + offset, Y: v})
		}
		if len(run) > 0 {
			sd.runs = append(sd.runs, run)
		}
		return sd
	}

	var out []seriesData
	switch {
	case g.Type == TypePlot && g.Mode == ModeSequential:
		active := frame / capacity
		activeFrame := frame%capacity + 1
		if active >= g.SeriesCount {
			return nil, errors.New(errors.ErrCodeOutOfRange,
				"graph %q: frame %d selects series %d of %d", g.ID, frame, active, g.SeriesCount)
		}
		for i := range g.Series {
			switch {
			case i < active:
				out = append(out, visible(i, capacity, 0))
			case i == active:
				out = append(out, visible(i, activeFrame, 0))
			}
		}

	case g.Type == TypePlot && g.Mode == ModeSimultaneous:
		n := min(frame, capacity)
		for i := range g.Series {
			out = append(out, visible(i, n, 0))
		}

	case g.Type == TypeBar && g.Mode == ModeSimultaneous:
		n := min((frame+1)/g.FramesPerCycle+1, capacity)
		for i := range g.Series {
			sd := visible(i, n, barWidth*float64(i))
			sd.runs = mergeRuns(sd.runs)
			out = append(out, sd)
		}

	case g.Type == TypeBar && g.Mode == ModeSequential:
		return nil, errors.New(errors.ErrCodeNotImplemented, "graph %q: sequential bar graphs are not implemented", g.ID)

	default:
		return nil, errors.New(errors.ErrCodeNotImplemented,
			"graph %q: type %q with mode %q is not implemented", g.ID, g.Type, g.Mode)
	}
	return out, nil
}

func mergeRuns(runs []plotter.XYs) []plotter.XYs {
	if len(runs) <= 1 {
		return runs
	}
	var all plotter.XYs
	for _, r := range runs {
		all = append(all, r...)
	}
	return []plotter.XYs{all}
}

func addSeries(p *plot.Plot, g *Graph, sd seriesData, base float64) error {
	clr := g.Style.Colors[sd.index]

	if g.Type == TypeBar {
		b := &bars{XYs: sd.runs[0], Width: barWidth, Base: base, Color: clr}
		p.Add(b)
		p.Legend.Add(sd.label, b)
		return nil
	}

	var thumbs []plot.Thumbnailer
	shape := g.Style.Markers[sd.index].glyph()
	for i, run := range sd.runs {
		line, err := plotter.NewLine(run)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "graph %q series %d", g.ID, sd.index)
		}
		line.Color = clr
		line.Width = vg.Points(lineWidth)
		p.Add(line)
		if i == 0 {
			thumbs = append(thumbs, line)
		}
		if shape == nil {
			continue
		}
		sc, err := plotter.NewScatter(run)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "graph %q series %d", g.ID, sd.index)
		}
		sc.GlyphStyle = draw.GlyphStyle{Color: clr, Radius: vg.Points(glyphRadius), Shape: shape}
		p.Add(sc)
		if i == 0 {
			thumbs = append(thumbs, sc)
		}
	}
	p.Legend.Add(sd.label, thumbs...)
	return nil
}

// yLimits returns the y range of g. The upper bound is either the unified
// maximum or 1.1 times the graph's own maximum; graphs without data use 1.
func (r panelRenderer) yLimits(g *Graph) (float64, float64) {
	hi := upperBound(*g, r.unified, r.unifiedMax, r.unifiedFound)

	lo := 0.0
	if g.Style.YScale.IsLog() {
		lo = 1
		if v, ok := minPositive(g); ok {
			lo = v
		}
		if hi <= lo {
			hi = lo * 10
		}
		return lo, hi
	}
	if hi <= lo {
		hi = lo + 1
	}
	return lo, hi
}

// UpperBound returns the y upper bound of g among all graphs: the largest
// value of any graph when unified is set, otherwise 1.1 times the largest
// value of g. Graphs without data use 1.
func UpperBound(g Graph, all []Graph, unified bool) float64 {
	v, ok := maxOf(all)
	return upperBound(g, unified, v, ok)
}

func upperBound(g Graph, unified bool, unifiedMax float64, unifiedFound bool) float64 {
	if unified {
		if unifiedFound {
			return unifiedMax
		}
		return 1
	}
	if v, ok := g.Max(); ok {
		return yMarginScale * v
	}
	return 1
}

func xLimits(g *Graph) (float64, float64) {
	lo, hi := 1.0, float64(g.FrameCapacity)
	if g.Type == TypeBar {
		lo, hi = 0, float64(g.FrameCapacity+1)
		if g.Style.XScale.IsLog() {
			lo = 1 - barWidth
		}
	}
	if hi <= lo {
		hi = lo + 1
	}
	return lo, hi
}

func minPositive(g *Graph) (float64, bool) {
	best, found := math.Inf(1), false
	for _, s := range g.Series {
		for k := range s.Present {
			if s.Drawable(k) && s.Values[k] > 0 && s.Values[k] < best {
				best, found = s.Values[k], true
			}
		}
	}
	return best, found
}

func setAxis(a *plot.Axis, lo, hi float64, scale Scale, hideTicks bool) {
	a.Min, a.Max = lo, hi
	if scale.IsLog() {
		a.Scale = plot.LogScale{}
		a.Tick.Marker = plot.LogTicks{Prec: -1}
	}
	if hideTicks {
		a.Tick.Marker = plot.ConstantTicks(nil)
	}
}
