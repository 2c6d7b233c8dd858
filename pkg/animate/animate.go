// Package animate renders snapshot frame sequences into image sinks.
//
// An [Animator] owns a snapshot and a figure. For every frame index it asks a
// [FrameFunc] to refill the snapshot (and write the frame's metrics to the
// registry), renders the snapshot into the figure and hands the rasterized
// figure to a [Sink].
package animate

import (
	"context"
	"image"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/gqnviz/pkg/errors"
	"github.com/matzehuels/gqnviz/pkg/figure"
	"github.com/matzehuels/gqnviz/pkg/snapshot"
)

// DefaultDPI is the rasterization resolution used when none is configured.
const DefaultDPI = 72

// FrameFunc fills snap with the media, titles and registry writes of frame.
// The snapshot has been reset before the call.
type FrameFunc func(ctx context.Context, frame int, snap *snapshot.Snapshot) error

// Sink receives rasterized frames in order.
type Sink interface {
	WriteFrame(frame int, img image.Image) error
	Close() error
}

// Animator drives the render loop.
type Animator struct {
	snap     *snapshot.Snapshot
	fig      *figure.Figure
	dpi      int
	logger   *log.Logger
	progress func(done, total int)
}

// Option configures an [Animator].
type Option func(*Animator)

// WithDPI sets the rasterization resolution.
func WithDPI(dpi int) Option {
	return func(a *Animator) {
		if dpi > 0 {
			a.dpi = dpi
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(a *Animator) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithProgress registers a callback invoked after each written frame.
func WithProgress(fn func(done, total int)) Option {
	return func(a *Animator) { a.progress = fn }
}

// New returns an animator drawing snap into fig.
func New(snap *snapshot.Snapshot, fig *figure.Figure, opts ...Option) *Animator {
	a := &Animator{
		snap:   snap,
		fig:    fig,
		dpi:    DefaultDPI,
		logger: log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run renders frames 0..frames-1 into sink and closes it. The sink is closed
// even when rendering fails.
func (a *Animator) Run(ctx context.Context, frames int, fill FrameFunc, sink Sink) (err error) {
	if frames < 1 {
		return errors.New(errors.ErrCodeInvalidArgument, "frame count must be >= 1, got %d", frames)
	}
	defer func() {
		if cerr := sink.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	start := time.Now()
	for i := 0; i < frames; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		a.snap.Reset()
		if fill != nil {
			if err := fill(ctx, i, a.snap); err != nil {
				return err
			}
		}
		if err := snapshot.Render(ctx, a.snap, a.fig, i); err != nil {
			return err
		}
		if err := sink.WriteFrame(i, a.fig.Image(a.dpi)); err != nil {
			return err
		}
		if a.progress != nil {
			a.progress(i+1, frames)
		}
	}
	a.logger.Info("animation complete", "frames", frames, "duration", time.Since(start))
	return nil
}
