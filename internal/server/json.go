package server

import "github.com/matzehuels/gqnviz/pkg/snapshot"

// GraphJSON is the wire form of a registered graph.
type GraphJSON struct {
	ID             string        `json:"id"`
	Position       int           `json:"position"`
	Type           snapshot.Type `json:"type"`
	Mode           snapshot.Mode `json:"mode"`
	FrameCapacity  int           `json:"frame_capacity"`
	FramesPerCycle int           `json:"frames_per_cycle"`
	SeriesCount    int           `json:"series_count"`
	Legends        []string      `json:"legends"`
	Series         []SeriesJSON  `json:"series"`
}

// SeriesJSON holds one value per frame; unwritten frames are null.
type SeriesJSON struct {
	ID     string     `json:"id"`
	Values []*float64 `json:"values"`
}

func toJSON(g snapshot.Graph) GraphJSON {
	out := GraphJSON{
		ID:             g.ID,
		Position:       g.Position,
		Type:           g.Type,
		Mode:           g.Mode,
		FrameCapacity:  g.FrameCapacity,
		FramesPerCycle: g.FramesPerCycle,
		SeriesCount:    g.SeriesCount,
		Legends:        g.Style.LegendLabels(g.SeriesCount),
		Series:         make([]SeriesJSON, len(g.Series)),
	}
	for i, s := range g.Series {
		vals := make([]*float64, len(s.Values))
		for k := range s.Present {
			if s.Drawable(k) {
				v := s.Values[k]
				vals[k] = &v
			}
		}
		out.Series[i] = SeriesJSON{ID: s.ID, Values: vals}
	}
	return out
}
