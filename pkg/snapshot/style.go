package snapshot

import (
	"fmt"
	"image/color"
	"slices"
	"strings"

	"gonum.org/v1/plot/vg/draw"

	"github.com/matzehuels/gqnviz/pkg/errors"
)

// Marker selects the glyph drawn at each data point of a plot series.
type Marker int

const (
	MarkerNone Marker = iota
	MarkerCircle
	MarkerRing
	MarkerSquare
	MarkerBox
	MarkerTriangle
	MarkerPyramid
	MarkerCross
	MarkerPlus
)

var markerNames = map[Marker]string{
	MarkerNone:     "none",
	MarkerCircle:   "circle",
	MarkerRing:     "ring",
	MarkerSquare:   "square",
	MarkerBox:      "box",
	MarkerTriangle: "triangle",
	MarkerPyramid:  "pyramid",
	MarkerCross:    "cross",
	MarkerPlus:     "plus",
}

// markerAliases accepts the single-character marker codes used by common
// plotting tools.
var markerAliases = map[string]Marker{
	"":  MarkerNone,
	"o": MarkerCircle,
	"s": MarkerBox,
	"^": MarkerTriangle,
	"x": MarkerCross,
	"+": MarkerPlus,
}

func (m Marker) String() string {
	if s, ok := markerNames[m]; ok {
		return s
	}
	return fmt.Sprintf("Marker(%d)", int(m))
}

// Valid reports whether m is a known marker.
func (m Marker) Valid() bool {
	_, ok := markerNames[m]
	return ok
}

// ParseMarker parses a marker name or single-character alias.
func ParseMarker(s string) (Marker, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if m, ok := markerAliases[s]; ok {
		return m, nil
	}
	for m, name := range markerNames {
		if name == s {
			return m, nil
		}
	}
	return MarkerNone, errors.New(errors.ErrCodeInvalidConfig, "unknown marker %q", s)
}

// glyph returns the drawer for m, or nil for MarkerNone.
func (m Marker) glyph() draw.GlyphDrawer {
	switch m {
	case MarkerCircle:
		return draw.CircleGlyph{}
	case MarkerRing:
		return draw.RingGlyph{}
	case MarkerSquare:
		return draw.SquareGlyph{}
	case MarkerBox:
		return draw.BoxGlyph{}
	case MarkerTriangle:
		return draw.TriangleGlyph{}
	case MarkerPyramid:
		return draw.PyramidGlyph{}
	case MarkerCross:
		return draw.CrossGlyph{}
	case MarkerPlus:
		return draw.PlusGlyph{}
	}
	return nil
}

// Scale is an axis scale.
type Scale string

const (
	ScaleLinear Scale = "linear"
	ScaleLog    Scale = "log"
)

// Valid reports whether s is a supported scale. The empty scale means linear.
func (s Scale) Valid() bool {
	return s == "" || s == ScaleLinear || s == ScaleLog
}

// IsLog reports whether s is logarithmic.
func (s Scale) IsLog() bool { return s == ScaleLog }

// Style holds the per-series presentation of a graph.
// Colors and Markers are indexed by series; Legends is optional.
type Style struct {
	Colors     []color.Color
	Markers    []Marker
	Legends    []string
	XScale     Scale
	YScale     Scale
	HideXTicks bool
	HideYTicks bool
}

// Validate checks the style against the number of series it must describe.
func (s Style) Validate(seriesCount int) error {
	if len(s.Colors) != seriesCount {
		return errors.New(errors.ErrCodeInvalidConfig,
			"style has %d colors, want %d (one per series)", len(s.Colors), seriesCount)
	}
	for i, c := range s.Colors {
		if c == nil {
			return errors.New(errors.ErrCodeInvalidConfig, "style color %d is nil", i)
		}
	}
	if len(s.Markers) != seriesCount {
		return errors.New(errors.ErrCodeInvalidConfig,
			"style has %d markers, want %d (one per series)", len(s.Markers), seriesCount)
	}
	for i, m := range s.Markers {
		if !m.Valid() {
			return errors.New(errors.ErrCodeInvalidConfig, "style marker %d is unknown: %v", i, m)
		}
	}
	if s.Legends != nil && len(s.Legends) != seriesCount {
		return errors.New(errors.ErrCodeInvalidConfig,
			"style has %d legends, want %d (one per series)", len(s.Legends), seriesCount)
	}
	if !s.XScale.Valid() {
		return errors.New(errors.ErrCodeInvalidConfig, "unknown x scale %q", s.XScale)
	}
	if !s.YScale.Valid() {
		return errors.New(errors.ErrCodeInvalidConfig, "unknown y scale %q", s.YScale)
	}
	return nil
}

// LegendLabels returns the legend of every series. Omitted legends become
// "n=0", "n=1", and so on.
func (s Style) LegendLabels(seriesCount int) []string {
	if s.Legends != nil {
		return slices.Clone(s.Legends)
	}
	out := make([]string, seriesCount)
	for i := range out {
		out[i] = fmt.Sprintf("n=%d", i)
	}
	return out
}

func (s Style) clone() Style {
	s.Colors = slices.Clone(s.Colors)
	s.Markers = slices.Clone(s.Markers)
	s.Legends = slices.Clone(s.Legends)
	return s
}
