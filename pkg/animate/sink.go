package animate

import (
	"fmt"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	"github.com/matzehuels/gqnviz/pkg/errors"
)

// FrameName returns the file name of frame in a PNG sequence.
func FrameName(frame int) string {
	return fmt.Sprintf("frame_%04d.png", frame)
}

// PNGSequence writes every frame to Dir as frame_0000.png, frame_0001.png, ...
type PNGSequence struct {
	Dir     string
	written int
}

// NewPNGSequence creates dir if needed.
func NewPNGSequence(dir string) (*PNGSequence, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create frame directory: %w", err)
	}
	return &PNGSequence{Dir: dir}, nil
}

func (s *PNGSequence) WriteFrame(frame int, img image.Image) error {
	path := filepath.Join(s.Dir, FrameName(frame))
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	s.written++
	return nil
}

// Written returns the number of frames saved so far.
func (s *PNGSequence) Written() int { return s.written }

func (s *PNGSequence) Close() error { return nil }

// GIF collects frames into an animated GIF written on Close.
type GIF struct {
	path  string
	delay int
	anim  gif.GIF
}

// NewGIF returns a sink writing to path. Delay is the per-frame delay in
// hundredths of a second.
func NewGIF(path string, delay int) (*GIF, error) {
	if delay < 0 {
		return nil, errors.New(errors.ErrCodeInvalidArgument, "gif delay must be >= 0, got %d", delay)
	}
	return &GIF{path: path, delay: delay}, nil
}

func (g *GIF) WriteFrame(_ int, img image.Image) error {
	b := img.Bounds()
	pal := image.NewPaletted(b, palette.Plan9)
	draw.FloydSteinberg.Draw(pal, b, img, b.Min)
	g.anim.Image = append(g.anim.Image, pal)
	g.anim.Delay = append(g.anim.Delay, g.delay)
	return nil
}

// Frames returns the number of collected frames.
func (g *GIF) Frames() int { return len(g.anim.Image) }

func (g *GIF) Close() error {
	if len(g.anim.Image) == 0 {
		return nil
	}
	if dir := filepath.Dir(g.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create gif directory: %w", err)
		}
	}
	f, err := os.Create(g.path)
	if err != nil {
		return fmt.Errorf("create %s: %w", g.path, err)
	}
	if err := gif.EncodeAll(f, &g.anim); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", g.path, err)
	}
	return f.Close()
}
