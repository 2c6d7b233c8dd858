package snapshot

import (
	"math"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/gqnviz/pkg/errors"
	"github.com/matzehuels/gqnviz/pkg/figure"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestGridRowMajor(t *testing.T) {
	l, err := Grid(2, 3)
	if err != nil {
		t.Fatalf("Grid: %v", err)
	}
	if l.IsCustom() {
		t.Error("Grid layout reports IsCustom")
	}
	if got, want := l.Positions(), []int{1, 2, 3, 4, 5, 6}; !slices.Equal(got, want) {
		t.Errorf("Positions() = %v, want %v", got, want)
	}

	r, ok := l.Region(1)
	if !ok || !near(r.X, 0) || !near(r.Y, 0) {
		t.Errorf("Region(1) = %+v, %v, want origin", r, ok)
	}

	r, ok = l.Region(5)
	if !ok {
		t.Fatal("Region(5) missing")
	}
	want := figure.Region{X: 1.0 / 3, Y: 0.5, W: 1.0 / 3, H: 0.5}
	if !near(r.X, want.X) || !near(r.Y, want.Y) || !near(r.W, want.W) || !near(r.H, want.H) {
		t.Errorf("Region(5) = %+v, want %+v", r, want)
	}

	if _, ok := l.Region(7); ok {
		t.Error("Region(7) should be outside a 2x3 grid")
	}
}

func TestCustomLayout(t *testing.T) {
	l, err := Custom(2, 4, map[int]Span{
		7: {Row: 0, Col: 0, RowSpan: 2, ColSpan: 2},
		2: {Row: 0, Col: 2},
		3: {Row: 1, Col: 2, ColSpan: 2},
	})
	if err != nil {
		t.Fatalf("Custom: %v", err)
	}
	if !l.IsCustom() {
		t.Error("Custom layout does not report IsCustom")
	}
	if got, want := l.Positions(), []int{2, 3, 7}; !slices.Equal(got, want) {
		t.Errorf("Positions() = %v, want %v", got, want)
	}

	got := map[int]figure.Region{}
	for pos, r := range l.Regions() {
		got[pos] = r
	}
	want := map[int]figure.Region{
		2: {X: 0.5, Y: 0, W: 0.25, H: 0.5},
		3: {X: 0.5, Y: 0.5, W: 0.5, H: 0.5},
		7: {X: 0, Y: 0, W: 0.5, H: 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Regions() mismatch (-want +got):\n%s", diff)
	}

	if _, ok := l.Region(1); ok {
		t.Error("Region(1) should be absent from the custom layout")
	}
}

func TestInvalidLayouts(t *testing.T) {
	tests := []struct {
		name  string
		build func() (Layout, error)
	}{
		{"zero rows", func() (Layout, error) { return Grid(0, 2) }},
		{"negative cols", func() (Layout, error) { return Grid(1, -1) }},
		{"custom empty", func() (Layout, error) { return Custom(2, 2, nil) }},
		{"custom zero position", func() (Layout, error) { return Custom(2, 2, map[int]Span{0: {}}) }},
		{"custom span overflow", func() (Layout, error) {
			return Custom(2, 2, map[int]Span{1: {Row: 1, Col: 0, RowSpan: 2}})
		}},
		{"custom negative cell", func() (Layout, error) { return Custom(2, 2, map[int]Span{1: {Row: -1}}) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.build()
			if !errors.Is(err, errors.ErrCodeInvalidConfig) {
				t.Errorf("error = %v, want %s", err, errors.ErrCodeInvalidConfig)
			}
		})
	}
}

func TestRegionsStopsEarly(t *testing.T) {
	l, err := Grid(3, 3)
	if err != nil {
		t.Fatalf("Grid: %v", err)
	}
	n := 0
	for range l.Regions() {
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Errorf("visited %d regions, want 2", n)
	}
}
