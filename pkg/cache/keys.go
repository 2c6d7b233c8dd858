package cache

import "fmt"

// Keyer derives cache keys.
type Keyer interface {
	// ViewKey identifies one traced view of a scene.
	ViewKey(sceneHash string, eye [3]float64, size int, opts ViewKeyOpts) string

	// FrameKey identifies one rendered dashboard frame.
	FrameKey(stateHash string, frame int, opts FrameKeyOpts) string
}

// ViewKeyOpts are the tracing options that change a view's pixels.
type ViewKeyOpts struct {
	Projection   string  `json:"projection"`
	RaysPerPixel int     `json:"rays_per_pixel"`
	MaxBounce    int     `json:"max_bounce"`
	Seed         uint64  `json:"seed"`
	Extent       float64 `json:"extent,omitempty"`
}

// FrameKeyOpts are the encoding options of a rendered frame.
type FrameKeyOpts struct {
	Format string  `json:"format"`
	DPI    float64 `json:"dpi"`
}

// DefaultKeyer hashes key components with SHA-256.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// ViewKey returns "view:<hash>".
func (DefaultKeyer) ViewKey(sceneHash string, eye [3]float64, size int, opts ViewKeyOpts) string {
	return hashKey("view", sceneHash, eye, size, opts)
}

// FrameKey returns "frame:<hash>:<frame>". The frame number stays readable
// so a dashboard's frames can be inspected in the backend.
func (DefaultKeyer) FrameKey(stateHash string, frame int, opts FrameKeyOpts) string {
	return fmt.Sprintf("%s:%d", hashKey("frame", stateHash, opts), frame)
}

var _ Keyer = DefaultKeyer{}
