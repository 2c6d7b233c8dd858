package snapshot

import (
	"math"
	"slices"
	"testing"
)

func nan() float64 { return math.NaN() }

func TestLegendLabelsDefault(t *testing.T) {
	got := Style{}.LegendLabels(3)
	if want := []string{"n=0", "n=1", "n=2"}; !slices.Equal(got, want) {
		t.Errorf("LegendLabels(3) = %v, want %v", got, want)
	}
}

func TestLegendLabelsExplicit(t *testing.T) {
	s := Style{Legends: []string{"train", "test"}}
	got := s.LegendLabels(2)
	if want := []string{"train", "test"}; !slices.Equal(got, want) {
		t.Errorf("LegendLabels(2) = %v, want %v", got, want)
	}

	got[0] = "changed"
	if s.Legends[0] != "train" {
		t.Errorf("LegendLabels shares its slice: Legends[0] = %q", s.Legends[0])
	}
}

func TestParseMarker(t *testing.T) {
	tests := []struct {
		in   string
		want Marker
	}{
		{"circle", MarkerCircle},
		{"o", MarkerCircle},
		{"Triangle", MarkerTriangle},
		{"^", MarkerTriangle},
		{"", MarkerNone},
		{"none", MarkerNone},
		{"plus", MarkerPlus},
		{"x", MarkerCross},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMarker(tt.in)
			if err != nil {
				t.Fatalf("ParseMarker(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseMarker(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}

	if _, err := ParseMarker("star"); err == nil {
		t.Error("ParseMarker(star) should fail")
	}
}

func TestMarkerGlyph(t *testing.T) {
	if g := MarkerNone.glyph(); g != nil {
		t.Errorf("MarkerNone.glyph() = %v, want nil", g)
	}
	for m := MarkerCircle; m <= MarkerPlus; m++ {
		if m.glyph() == nil {
			t.Errorf("%s.glyph() = nil", m)
		}
	}
}

func TestScaleValid(t *testing.T) {
	tests := []struct {
		s    Scale
		want bool
	}{
		{"", true},
		{ScaleLinear, true},
		{ScaleLog, true},
		{"sqrt", false},
	}
	for _, tt := range tests {
		if got := tt.s.Valid(); got != tt.want {
			t.Errorf("Scale(%q).Valid() = %v, want %v", tt.s, got, tt.want)
		}
	}
}
