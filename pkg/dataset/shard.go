package dataset

import (
	"image"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/gqnviz/pkg/errors"
	"github.com/matzehuels/gqnviz/pkg/imageproc"
)

// Shard subdirectories.
const (
	ImagesDir     = "images"
	ViewpointsDir = "viewpoints"
	OriginalsDir  = "original_images"
)

// ViewpointDim is the length of an encoded viewpoint.
const ViewpointDim = 7

// SceneViews holds the observations of one scene: K views with their encoded
// viewpoints and, optionally, the frames of a full rotation.
type SceneViews struct {
	Images     []image.Image
	Viewpoints [][ViewpointDim]float64
	Originals  []image.Image
}

// ShardInfo summarizes a written shard.
type ShardInfo struct {
	Name      string
	Scenes    int
	Views     int
	Originals int
	Width     int
	Height    int
}

// ShardWriter writes shards under a dataset directory.
type ShardWriter struct {
	dir    string
	logger *log.Logger
}

// NewShardWriter creates the dataset directories under dir.
func NewShardWriter(dir string, logger *log.Logger) (*ShardWriter, error) {
	for _, sub := range []string{ImagesDir, ViewpointsDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "create %s", sub)
		}
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &ShardWriter{dir: dir, logger: logger}, nil
}

// Dir returns the dataset root.
func (w *ShardWriter) Dir() string { return w.dir }

// Write stores scenes as shard name: images/<name>.npy with shape
// (N, K, H, W, 3), viewpoints/<name>.npy with shape (N, K, 7) and, when the
// scenes carry rotation frames, original_images/<name>.npy with shape
// (N, F, H, W, 3). Every scene must have the same number of views and frames,
// and every image the same size.
func (w *ShardWriter) Write(name string, scenes []SceneViews) (ShardInfo, error) {
	if err := errors.ValidateID("shard", name); err != nil {
		return ShardInfo{}, err
	}
	info, err := shardShape(name, scenes)
	if err != nil {
		return ShardInfo{}, err
	}

	pixels := info.Width * info.Height * 3
	images := make([]uint8, 0, info.Scenes*info.Views*pixels)
	viewpoints := make([]float32, 0, info.Scenes*info.Views*ViewpointDim)
	var originals []uint8
	for _, s := range scenes {
		for _, img := range s.Images {
			images = append(images, imageproc.RGB(img)...)
		}
		for _, vp := range s.Viewpoints {
			for _, v := range vp {
				viewpoints = append(viewpoints, float32(v))
			}
		}
		for _, img := range s.Originals {
			originals = append(originals, imageproc.RGB(img)...)
		}
	}

	file := name + ".npy"
	if err := writeArray(filepath.Join(w.dir, ImagesDir, file),
		Uint8Array([]int{info.Scenes, info.Views, info.Height, info.Width, 3}, images)); err != nil {
		return ShardInfo{}, err
	}
	if err := writeArray(filepath.Join(w.dir, ViewpointsDir, file),
		Float32Array([]int{info.Scenes, info.Views, ViewpointDim}, viewpoints)); err != nil {
		return ShardInfo{}, err
	}
	if info.Originals > 0 {
		if err := os.MkdirAll(filepath.Join(w.dir, OriginalsDir), 0o755); err != nil {
			return ShardInfo{}, errors.Wrap(errors.ErrCodeInvalidPath, err, "create %s", OriginalsDir)
		}
		if err := writeArray(filepath.Join(w.dir, OriginalsDir, file),
			Uint8Array([]int{info.Scenes, info.Originals, info.Height, info.Width, 3}, originals)); err != nil {
			return ShardInfo{}, err
		}
	}

	w.logger.Debug("wrote shard", "name", name, "scenes", info.Scenes, "views", info.Views, "originals", info.Originals)
	return info, nil
}

func shardShape(name string, scenes []SceneViews) (ShardInfo, error) {
	if len(scenes) == 0 {
		return ShardInfo{}, errors.New(errors.ErrCodeInvalidArgument, "shard %q has no scenes", name)
	}
	first := scenes[0]
	if len(first.Images) == 0 {
		return ShardInfo{}, errors.New(errors.ErrCodeInvalidArgument, "shard %q: scene 0 has no views", name)
	}
	b := first.Images[0].Bounds()
	info := ShardInfo{
		Name:      name,
		Scenes:    len(scenes),
		Views:     len(first.Images),
		Originals: len(first.Originals),
		Width:     b.Dx(),
		Height:    b.Dy(),
	}
	for i, s := range scenes {
		if len(s.Images) != info.Views || len(s.Viewpoints) != info.Views {
			return ShardInfo{}, errors.New(errors.ErrCodeInvalidArgument,
				"shard %q: scene %d has %d images and %d viewpoints, want %d of each",
				name, i, len(s.Images), len(s.Viewpoints), info.Views)
		}
		if len(s.Originals) != info.Originals {
			return ShardInfo{}, errors.New(errors.ErrCodeInvalidArgument,
				"shard %q: scene %d has %d rotation frames, want %d", name, i, len(s.Originals), info.Originals)
		}
		for _, img := range append(s.Images[:len(s.Images):len(s.Images)], s.Originals...) {
			if sz := img.Bounds().Size(); sz.X != info.Width || sz.Y != info.Height {
				return ShardInfo{}, errors.New(errors.ErrCodeInvalidArgument,
					"shard %q: scene %d has a %dx%d image, want %dx%d", name, i, sz.X, sz.Y, info.Width, info.Height)
			}
		}
	}
	return info, nil
}

func writeArray(path string, a Array) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "create %s", path)
	}
	if err := WriteNPY(f, a); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "close %s", path)
	}
	return nil
}

func readArray(path string) (Array, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return Array{}, errors.Wrap(errors.ErrCodeNotFound, err, "open %s", path)
	}
	if err != nil {
		return Array{}, errors.Wrap(errors.ErrCodeInvalidPath, err, "open %s", path)
	}
	defer f.Close()
	a, err := ReadNPY(f)
	if err != nil {
		return Array{}, errors.Wrap(errors.GetCode(err), err, "read %s", path)
	}
	return a, nil
}
