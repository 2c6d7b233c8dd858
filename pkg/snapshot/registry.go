package snapshot

import (
	"math"
	"slices"
	"sync"

	"github.com/matzehuels/gqnviz/pkg/errors"
)

// Type is the kind of chart a graph is drawn as.
type Type string

const (
	TypePlot Type = "plot"
	TypeBar  Type = "bar"
)

// Mode controls how the series of a graph accumulate over frames.
type Mode string

const (
	// ModeSequential fills one series for a whole rotation before the next.
	ModeSequential Mode = "sequential"
	// ModeSimultaneous advances every series together.
	ModeSimultaneous Mode = "simultaneous"
)

// GraphConfig describes a graph at registration time.
type GraphConfig struct {
	ID             string
	Position       int
	Type           Type
	Mode           Mode
	FrameCapacity  int
	FramesPerCycle int // defaults to 1
	SeriesCount    int // defaults to 1
	Style          Style
}

func (c *GraphConfig) setDefaults() {
	if c.FramesPerCycle == 0 {
		c.FramesPerCycle = 1
	}
	if c.SeriesCount == 0 {
		c.SeriesCount = 1
	}
}

// Validate checks a configuration with defaults applied.
func (c GraphConfig) Validate() error {
	if err := errors.ValidateID("graph", c.ID); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "register graph")
	}
	if c.Position < 1 {
		return errors.New(errors.ErrCodeInvalidConfig, "graph %q: position must be >= 1, got %d", c.ID, c.Position)
	}
	if c.Type != TypePlot && c.Type != TypeBar {
		return errors.New(errors.ErrCodeInvalidConfig, "graph %q: unknown type %q", c.ID, c.Type)
	}
	if c.Mode != ModeSequential && c.Mode != ModeSimultaneous {
		return errors.New(errors.ErrCodeInvalidConfig, "graph %q: unknown mode %q", c.ID, c.Mode)
	}
	if c.FrameCapacity < 1 {
		return errors.New(errors.ErrCodeInvalidConfig, "graph %q: frame capacity must be >= 1, got %d", c.ID, c.FrameCapacity)
	}
	if c.FramesPerCycle < 1 {
		return errors.New(errors.ErrCodeInvalidConfig, "graph %q: frames per cycle must be >= 1, got %d", c.ID, c.FramesPerCycle)
	}
	if c.SeriesCount < 1 {
		return errors.New(errors.ErrCodeInvalidConfig, "graph %q: series count must be >= 1, got %d", c.ID, c.SeriesCount)
	}
	if err := c.Style.Validate(c.SeriesCount); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "graph %q", c.ID)
	}
	return nil
}

// Series is one named data series. Values[i] holds frame i and is only
// meaningful when Present[i] is set. Non-finite values are kept but never
// drawn.
type Series struct {
	ID      string
	Values  []float64
	Present []bool
}

func newSeries(id string, capacity int) *Series {
	return &Series{
		ID:      id,
		Values:  make([]float64, capacity),
		Present: make([]bool, capacity),
	}
}

// Len returns the number of written slots.
func (s Series) Len() int {
	n := 0
	for _, ok := range s.Present {
		if ok {
			n++
		}
	}
	return n
}

// Drawable reports whether slot k holds a finite value.
func (s Series) Drawable(k int) bool {
	if k < 0 || k >= len(s.Present) || !s.Present[k] {
		return false
	}
	v := s.Values[k]
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Max returns the largest drawable value.
func (s Series) Max() (float64, bool) {
	best, found := math.Inf(-1), false
	for i := range s.Present {
		if s.Drawable(i) && s.Values[i] > best {
			best, found = s.Values[i], true
		}
	}
	return best, found
}

func (s *Series) clone() Series {
	return Series{
		ID:      s.ID,
		Values:  slices.Clone(s.Values),
		Present: slices.Clone(s.Present),
	}
}

// Graph is a registered graph with its accumulated series.
// Values returned by the registry are copies.
type Graph struct {
	GraphConfig
	Series []Series
}

// Max returns the largest drawable value of any series of g.
func (g Graph) Max() (float64, bool) {
	best, found := math.Inf(-1), false
	for _, s := range g.Series {
		if v, ok := s.Max(); ok && v > best {
			best, found = v, true
		}
	}
	return best, found
}

type graph struct {
	cfg    GraphConfig
	series []*Series
	index  map[string]int
}

func (g *graph) copy() Graph {
	out := Graph{GraphConfig: g.cfg, Series: make([]Series, len(g.series))}
	out.Style = g.cfg.Style.clone()
	for i, s := range g.series {
		out.Series[i] = s.clone()
	}
	return out
}

// Registry holds the registered graphs and their series. It is safe for
// concurrent use; readers always observe a consistent copy.
type Registry struct {
	mu     sync.RWMutex
	graphs []*graph
	byID   map[string]*graph
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]*graph)}
}

// Register adds a graph. The configuration is validated first; registering an
// ID that already exists is a no-op and leaves the first registration intact.
func (r *Registry) Register(cfg GraphConfig) error {
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg.Style = cfg.Style.clone()

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[cfg.ID]; ok {
		return nil
	}
	g := &graph{cfg: cfg, index: make(map[string]int)}
	r.graphs = append(r.graphs, g)
	r.byID[cfg.ID] = g
	return nil
}

// Write stores value at frame of the named series, allocating the series on
// first use. Later writes to the same slot overwrite earlier ones.
func (r *Registry) Write(graphID, seriesID string, frame int, value float64) error {
	if seriesID == "" {
		return errors.New(errors.ErrCodeInvalidArgument, "series id cannot be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.byID[graphID]
	if !ok {
		return errors.New(errors.ErrCodeNotFound, "graph %q is not registered", graphID)
	}
	if frame < 0 || frame >= g.cfg.FrameCapacity {
		return errors.New(errors.ErrCodeOutOfRange,
			"graph %q: frame %d outside [0, %d)", graphID, frame, g.cfg.FrameCapacity)
	}
	i, ok := g.index[seriesID]
	if !ok {
		if len(g.series) >= g.cfg.SeriesCount {
			return errors.New(errors.ErrCodeOutOfRange,
				"graph %q: series %q exceeds series count %d", graphID, seriesID, g.cfg.SeriesCount)
		}
		i = len(g.series)
		g.series = append(g.series, newSeries(seriesID, g.cfg.FrameCapacity))
		g.index[seriesID] = i
	}
	s := g.series[i]
	s.Values[frame] = value
	s.Present[frame] = true
	return nil
}

// Graph returns a copy of the graph registered under id.
func (r *Registry) Graph(id string) (Graph, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.byID[id]
	if !ok {
		return Graph{}, errors.New(errors.ErrCodeNotFound, "graph %q is not registered", id)
	}
	return g.copy(), nil
}

// Graphs returns copies of every graph in registration order.
func (r *Registry) Graphs() []Graph {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Graph, len(r.graphs))
	for i, g := range r.graphs {
		out[i] = g.copy()
	}
	return out
}

// MaxValue returns the largest value written to any series of any graph.
func (r *Registry) MaxValue() (float64, bool) {
	return maxOf(r.Graphs())
}

// Len returns the number of registered graphs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.graphs)
}

func maxOf(graphs []Graph) (float64, bool) {
	best, found := math.Inf(-1), false
	for _, g := range graphs {
		if v, ok := g.Max(); ok && v > best {
			best, found = v, true
		}
	}
	return best, found
}
