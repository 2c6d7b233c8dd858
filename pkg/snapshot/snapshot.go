// Package snapshot composes multi-panel training-progress figures.
//
// A [Registry] accumulates named graphs whose series are written frame by
// frame. A [Snapshot] collects the media items (images, scalar annotations)
// and titles of one frame and, together with a [Layout], decides what each
// panel position shows. [Render] draws every position of a snapshot into a
// [figure.Figure] for a given frame index.
//
// # Usage
//
//	reg := snapshot.NewRegistry()
//	reg.Register(snapshot.GraphConfig{ID: "kl", Position: 3, Type: snapshot.TypePlot,
//	    Mode: snapshot.ModeSequential, FrameCapacity: 36, Style: style})
//
//	layout, _ := snapshot.Grid(1, 3)
//	snap := snapshot.New(reg, layout)
//	snap.AddImage(original, 1, snapshot.MediaOptions{})
//	snap.AddTitle("original", 1, snapshot.TitleOptions{})
//	reg.Write("kl", "n=0", frame, kl)
//	err := snapshot.Render(ctx, snap, fig, frame)
//
// Every error returned by this package carries a code from pkg/errors and
// signals a caller mistake: nothing is retried and a failed render leaves the
// figure untouched.
package snapshot

import (
	"image"
	"io"

	"github.com/charmbracelet/log"
	"gonum.org/v1/plot/vg"

	"github.com/matzehuels/gqnviz/pkg/errors"
)

// MediaKind is the kind of a media item.
type MediaKind string

const (
	MediaImage  MediaKind = "image"
	MediaScalar MediaKind = "scalar"
)

// DefaultScalarLabel prefixes scalar annotations without a label.
const DefaultScalarLabel = "KL_Div"

// MediaOptions configures how a media item is drawn.
type MediaOptions struct {
	// Coordinates anchors a scalar annotation in the unit square of its
	// panel. It must hold exactly two values; nil means the centre.
	Coordinates []float64
	// Label prefixes a scalar annotation.
	Label string
}

// TitleOptions configures a panel caption.
type TitleOptions struct {
	// Size is the caption font size; zero keeps the plot default.
	Size vg.Length
}

// MediaItem is an image or scalar shown in one panel.
type MediaItem struct {
	Kind     MediaKind
	Image    image.Image
	Value    float64
	Position int
	Options  MediaOptions
}

// TitleItem is a panel caption.
type TitleItem struct {
	Text     string
	Position int
	Options  TitleOptions
}

// PanelContent is what a position resolves to. Media and Graph are never both
// set.
type PanelContent struct {
	Position int
	Media    *MediaItem
	Graph    *Graph
	Title    *TitleItem
}

// Option configures a [Snapshot].
type Option func(*Snapshot)

// WithUnifiedYAxis makes every graph share one y upper bound: the largest
// value of any series of any registered graph.
func WithUnifiedYAxis() Option {
	return func(s *Snapshot) { s.unifyY = true }
}

// WithLogger sets the logger used for render diagnostics.
func WithLogger(l *log.Logger) Option {
	return func(s *Snapshot) {
		if l != nil {
			s.logger = l
		}
	}
}

// Snapshot is the media, titles and layout of one render pass. Graphs are read
// from the registry at render time. A Snapshot is not safe for concurrent use.
type Snapshot struct {
	reg    *Registry
	layout Layout
	unifyY bool
	logger *log.Logger
	media  []MediaItem
	titles []TitleItem
}

// New returns a snapshot over reg. A nil registry is replaced by an empty one.
func New(reg *Registry, layout Layout, opts ...Option) *Snapshot {
	if reg == nil {
		reg = NewRegistry()
	}
	s := &Snapshot{
		reg:    reg,
		layout: layout,
		logger: log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry returns the registry the snapshot reads graphs from.
func (s *Snapshot) Registry() *Registry { return s.reg }

// Layout returns the snapshot's layout.
func (s *Snapshot) Layout() Layout { return s.layout }

// UnifiedYAxis reports whether graphs share one y upper bound.
func (s *Snapshot) UnifiedYAxis() bool { return s.unifyY }

// AddMedia appends a media item. The payload must be an image.Image for
// [MediaImage] and a number for [MediaScalar]. Several items may target one
// position here; the conflict is reported when the position is resolved.
func (s *Snapshot) AddMedia(kind MediaKind, payload any, position int, opts MediaOptions) error {
	if position < 1 {
		return errors.New(errors.ErrCodeInvalidArgument, "media position must be >= 1, got %d", position)
	}
	item := MediaItem{Kind: kind, Position: position, Options: opts}
	switch kind {
	case MediaImage:
		img, ok := payload.(image.Image)
		if !ok || img == nil {
			return errors.New(errors.ErrCodeInvalidArgument, "image media needs an image.Image payload, got %T", payload)
		}
		item.Image = img
	case MediaScalar:
		v, ok := toFloat(payload)
		if !ok {
			return errors.New(errors.ErrCodeInvalidArgument, "scalar media needs a numeric payload, got %T", payload)
		}
		item.Value = v
	default:
		return errors.New(errors.ErrCodeInvalidArgument, "unknown media kind %q", kind)
	}
	s.media = append(s.media, item)
	return nil
}

// AddImage appends an image media item.
func (s *Snapshot) AddImage(img image.Image, position int, opts MediaOptions) error {
	return s.AddMedia(MediaImage, img, position, opts)
}

// AddScalar appends a scalar media item.
func (s *Snapshot) AddScalar(v float64, position int, opts MediaOptions) error {
	return s.AddMedia(MediaScalar, v, position, opts)
}

// AddTitle appends a panel caption. Duplicates are reported at resolve time.
func (s *Snapshot) AddTitle(text string, position int, opts TitleOptions) error {
	if position < 1 {
		return errors.New(errors.ErrCodeInvalidArgument, "title position must be >= 1, got %d", position)
	}
	s.titles = append(s.titles, TitleItem{Text: text, Position: position, Options: opts})
	return nil
}

// Reset drops every media item and title so the snapshot can be refilled for
// the next frame.
func (s *Snapshot) Reset() {
	s.media = s.media[:0]
	s.titles = s.titles[:0]
}

// ResolvePanel returns what position shows given the registry's current
// graphs.
func (s *Snapshot) ResolvePanel(position int) (PanelContent, error) {
	return s.resolve(position, s.reg.Graphs())
}

func (s *Snapshot) resolve(position int, graphs []Graph) (PanelContent, error) {
	pc := PanelContent{Position: position}

	for i := range s.media {
		if s.media[i].Position != position {
			continue
		}
		if pc.Media != nil {
			return PanelContent{}, errors.New(errors.ErrCodeConflict, "position %d has more than one media item", position)
		}
		m := s.media[i]
		pc.Media = &m
	}

	for i := range graphs {
		if graphs[i].Position != position {
			continue
		}
		if pc.Graph != nil {
			return PanelContent{}, errors.New(errors.ErrCodeConflict,
				"position %d has more than one graph (%q, %q)", position, pc.Graph.ID, graphs[i].ID)
		}
		g := graphs[i]
		pc.Graph = &g
	}

	for i := range s.titles {
		if s.titles[i].Position != position {
			continue
		}
		if pc.Title != nil {
			return PanelContent{}, errors.New(errors.ErrCodeConflict, "position %d has more than one title", position)
		}
		t := s.titles[i]
		pc.Title = &t
	}

	if pc.Media != nil && pc.Graph != nil {
		return PanelContent{}, errors.New(errors.ErrCodeConflict,
			"position %d has both a media item and graph %q", position, pc.Graph.ID)
	}
	if pc.Media == nil && pc.Graph == nil {
		return pc, errors.New(errors.ErrCodeNotFound, "nothing targets position %d", position)
	}
	return pc, nil
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint8:
		return float64(x), true
	}
	return 0, false
}
