package snapshot

import (
	"iter"
	"maps"
	"slices"

	"github.com/matzehuels/gqnviz/pkg/errors"
	"github.com/matzehuels/gqnviz/pkg/figure"
)

// Span is a block of cells in a custom layout's master grid.
// Row and Col are 0-based; spans default to one cell.
type Span struct {
	Row, Col         int
	RowSpan, ColSpan int
}

func (s Span) normalized() Span {
	if s.RowSpan == 0 {
		s.RowSpan = 1
	}
	if s.ColSpan == 0 {
		s.ColSpan = 1
	}
	return s
}

// Layout maps panel positions to regions of a figure. It is either a uniform
// grid or a custom set of spans over a master grid.
type Layout struct {
	rows, cols int
	spans      map[int]Span
}

// Grid returns a uniform layout with positions 1..rows*cols, numbered
// row-major from the top-left cell.
func Grid(rows, cols int) (Layout, error) {
	if rows < 1 || cols < 1 {
		return Layout{}, errors.New(errors.ErrCodeInvalidConfig, "grid %dx%d must have positive size", rows, cols)
	}
	return Layout{rows: rows, cols: cols}, nil
}

// Custom returns a layout containing exactly the positions in spans.
func Custom(rows, cols int, spans map[int]Span) (Layout, error) {
	if rows < 1 || cols < 1 {
		return Layout{}, errors.New(errors.ErrCodeInvalidConfig, "grid %dx%d must have positive size", rows, cols)
	}
	if len(spans) == 0 {
		return Layout{}, errors.New(errors.ErrCodeInvalidConfig, "custom layout needs at least one panel")
	}
	out := make(map[int]Span, len(spans))
	for pos, s := range spans {
		if pos < 1 {
			return Layout{}, errors.New(errors.ErrCodeInvalidConfig, "panel position must be >= 1, got %d", pos)
		}
		s = s.normalized()
		if s.Row < 0 || s.Col < 0 || s.RowSpan < 1 || s.ColSpan < 1 ||
			s.Row+s.RowSpan > rows || s.Col+s.ColSpan > cols {
			return Layout{}, errors.New(errors.ErrCodeInvalidConfig,
				"panel %d span %+v lies outside the %dx%d grid", pos, s, rows, cols)
		}
		out[pos] = s
	}
	return Layout{rows: rows, cols: cols, spans: out}, nil
}

// Shape returns the number of rows and columns of the (master) grid.
func (l Layout) Shape() (rows, cols int) { return l.rows, l.cols }

// IsCustom reports whether l was built by [Custom].
func (l Layout) IsCustom() bool { return l.spans != nil }

// Positions returns the positions to render in ascending order.
func (l Layout) Positions() []int {
	if l.IsCustom() {
		return slices.Sorted(maps.Keys(l.spans))
	}
	out := make([]int, l.rows*l.cols)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

// Region returns the region assigned to pos.
func (l Layout) Region(pos int) (figure.Region, bool) {
	if l.IsCustom() {
		s, ok := l.spans[pos]
		if !ok {
			return figure.Region{}, false
		}
		return l.cell(s), true
	}
	if pos < 1 || pos > l.rows*l.cols {
		return figure.Region{}, false
	}
	i := pos - 1
	return l.cell(Span{Row: i / l.cols, Col: i % l.cols, RowSpan: 1, ColSpan: 1}), true
}

// Regions yields every position with its region in ascending position order.
func (l Layout) Regions() iter.Seq2[int, figure.Region] {
	return func(yield func(int, figure.Region) bool) {
		for _, pos := range l.Positions() {
			r, _ := l.Region(pos)
			if !yield(pos, r) {
				return
			}
		}
	}
}

func (l Layout) cell(s Span) figure.Region {
	w := 1 / float64(l.cols)
	h := 1 / float64(l.rows)
	return figure.Region{
		X: float64(s.Col) * w,
		Y: float64(s.Row) * h,
		W: float64(s.ColSpan) * w,
		H: float64(s.RowSpan) * h,
	}
}
