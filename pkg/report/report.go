// Package report exports registered graphs as an interactive ECharts page.
package report

import (
	"fmt"
	"image/color"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/matzehuels/gqnviz/pkg/snapshot"
)

// Options configures a report page.
type Options struct {
	Title string
	// UnifyY shares one y upper bound across every chart.
	UnifyY bool
	// AssetsHost overrides where the ECharts scripts are loaded from.
	AssetsHost string
	Width      string
	Height     string
}

func (o *Options) setDefaults() {
	if o.Title == "" {
		o.Title = "gqnviz"
	}
	if o.Width == "" {
		o.Width = "900px"
	}
	if o.Height == "" {
		o.Height = "420px"
	}
}

// Build returns a page with one chart per graph, in registration order.
func Build(graphs []snapshot.Graph, o Options) *components.Page {
	o.setDefaults()
	page := components.NewPage()
	page.SetPageTitle(o.Title)
	if o.AssetsHost != "" {
		page.SetAssetsHost(o.AssetsHost)
	}
	for _, g := range graphs {
		page.AddCharts(Chart(g, snapshot.UpperBound(g, graphs, o.UnifyY), o))
	}
	return page
}

// Write renders the report of every graph in reg to w.
func Write(w io.Writer, reg *snapshot.Registry, o Options) error {
	if err := Build(reg.Graphs(), o).Render(w); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}

// Chart converts one graph into a line chart (plot graphs) or bar chart
// (bar graphs) with the given y upper bound.
func Chart(g snapshot.Graph, yMax float64, o Options) components.Charter {
	o.setDefaults()
	legends := g.Style.LegendLabels(g.SeriesCount)
	frames := make([]string, g.FrameCapacity)
	for i := range frames {
		frames[i] = strconv.Itoa(i + 1)
	}

	global := []charts.GlobalOpts{
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle:  o.Title,
			Width:      o.Width,
			Height:     o.Height,
			AssetsHost: o.AssetsHost,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    g.ID,
			Subtitle: fmt.Sprintf("%s / %s, %d frames", g.Type, g.Mode, g.FrameCapacity),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "frame", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(yAxis(g.Style.YScale, yMax)),
	}

	if g.Type == snapshot.TypeBar {
		bar := charts.NewBar()
		bar.SetGlobalOptions(global...)
		bar.SetXAxis(frames)
		for i, s := range g.Series {
			data := make([]opts.BarData, len(s.Values))
			for k, v := range s.Values {
				data[k] = opts.BarData{Value: slotValue(s, k, v)}
			}
			bar.AddSeries(legends[i], data,
				charts.WithItemStyleOpts(opts.ItemStyle{Color: Hex(g.Style.Colors[i])}))
		}
		return bar
	}

	line := charts.NewLine()
	line.SetGlobalOptions(global...)
	line.SetXAxis(frames)
	for i, s := range g.Series {
		data := make([]opts.LineData, len(s.Values))
		for k, v := range s.Values {
			data[k] = opts.LineData{Value: slotValue(s, k, v)}
		}
		line.AddSeries(legends[i], data,
			charts.WithItemStyleOpts(opts.ItemStyle{Color: Hex(g.Style.Colors[i])}),
			charts.WithLineChartOpts(opts.LineChart{Symbol: symbol(g.Style.Markers[i])}),
		)
	}
	return line
}

// slotValue returns "-", the ECharts gap marker, for empty or non-finite
// slots.
func slotValue(s snapshot.Series, k int, v float64) any {
	if !s.Drawable(k) {
		return "-"
	}
	return v
}

func yAxis(s snapshot.Scale, yMax float64) opts.YAxis {
	if s.IsLog() {
		return opts.YAxis{Type: "log", Max: yMax}
	}
	return opts.YAxis{Type: "value", Min: 0, Max: yMax}
}

func symbol(m snapshot.Marker) string {
	switch m {
	case snapshot.MarkerCircle:
		return "circle"
	case snapshot.MarkerRing:
		return "emptyCircle"
	case snapshot.MarkerSquare, snapshot.MarkerBox:
		return "rect"
	case snapshot.MarkerTriangle, snapshot.MarkerPyramid:
		return "triangle"
	case snapshot.MarkerCross, snapshot.MarkerPlus:
		return "diamond"
	}
	return "none"
}

// Hex formats c as #rrggbb.
func Hex(c color.Color) string {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return fmt.Sprintf("#%02x%02x%02x", n.R, n.G, n.B)
}
