// Package dataset reads and writes multi-view scene datasets.
//
// A dataset directory holds one file per subset (shard) in each of
//
//	images/<name>.npy           uint8   (N, K, H, W, 3)
//	viewpoints/<name>.npy       float32 (N, K, 7)
//	original_images/<name>.npy  uint8   (N, F, H, W, 3), optional
//
// where N is the number of scenes, K the views per scene and F the frames of
// a full observation rotation. Subsets are visited in file-name order. The
// files use the NPY format so they load directly with numpy.
//
// [Pack] converts directories of rendered scenes into this layout, and the
// [Catalog] records which runs produced which shards.
package dataset

import (
	"image"
	"iter"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/matzehuels/gqnviz/pkg/errors"
	"github.com/matzehuels/gqnviz/pkg/imageproc"
)

// Dataset is an opened dataset directory.
type Dataset struct {
	dir   string
	names []string
}

// Open lists the subsets of dir.
func Open(dir string) (*Dataset, error) {
	entries, err := os.ReadDir(filepath.Join(dir, ImagesDir))
	if os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrCodeNotFound, err, "dataset %s has no %s directory", dir, ImagesDir)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "list %s", dir)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".npy" {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".npy"))
	}
	slices.Sort(names)
	return &Dataset{dir: dir, names: names}, nil
}

// Dir returns the dataset root.
func (d *Dataset) Dir() string { return d.dir }

// Len returns the number of subsets.
func (d *Dataset) Len() int { return len(d.names) }

// Names returns the subset names in order.
func (d *Dataset) Names() []string { return slices.Clone(d.names) }

// Subset loads subset i.
func (d *Dataset) Subset(i int) (*Subset, error) {
	if i < 0 || i >= len(d.names) {
		return nil, errors.New(errors.ErrCodeOutOfRange, "subset %d outside [0, %d)", i, len(d.names))
	}
	return loadSubset(d.dir, d.names[i])
}

// Subsets yields every subset in order, stopping after the first error.
func (d *Dataset) Subsets() iter.Seq2[*Subset, error] {
	return func(yield func(*Subset, error) bool) {
		for i := range d.names {
			s, err := d.Subset(i)
			if !yield(s, err) || err != nil {
				return
			}
		}
	}
}

// Subset is one loaded shard.
type Subset struct {
	Name       string
	Images     Array
	Viewpoints Array
	// Originals is nil when the shard has no rotation frames.
	Originals *Array
}

func loadSubset(dir, name string) (*Subset, error) {
	file := name + ".npy"
	images, err := readArray(filepath.Join(dir, ImagesDir, file))
	if err != nil {
		return nil, err
	}
	viewpoints, err := readArray(filepath.Join(dir, ViewpointsDir, file))
	if err != nil {
		return nil, err
	}
	s := &Subset{Name: name, Images: images, Viewpoints: viewpoints}

	originals, err := readArray(filepath.Join(dir, OriginalsDir, file))
	switch {
	case err == nil:
		s.Originals = &originals
	case !errors.Is(err, errors.ErrCodeNotFound):
		return nil, err
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Subset) validate() error {
	is, vs := s.Images.Shape, s.Viewpoints.Shape
	if len(is) != 5 || is[4] != 3 || s.Images.Uint8 == nil {
		return errors.New(errors.ErrCodeInvalidFormat, "subset %q: images must be uint8 (N, K, H, W, 3), got %s %v", s.Name, s.Images.DType(), is)
	}
	if len(vs) != 3 || vs[2] != ViewpointDim || s.Viewpoints.Float32 == nil {
		return errors.New(errors.ErrCodeInvalidFormat, "subset %q: viewpoints must be float32 (N, K, 7), got %s %v", s.Name, s.Viewpoints.DType(), vs)
	}
	if is[0] != vs[0] || is[1] != vs[1] {
		return errors.New(errors.ErrCodeInvalidFormat, "subset %q: images %v and viewpoints %v disagree", s.Name, is, vs)
	}
	if s.Originals != nil {
		ob := s.Originals.Shape
		if len(ob) != 5 || ob[0] != is[0] || ob[2] != is[2] || ob[3] != is[3] || ob[4] != 3 || s.Originals.Uint8 == nil {
			return errors.New(errors.ErrCodeInvalidFormat, "subset %q: original images %v do not match images %v", s.Name, ob, is)
		}
	}
	return nil
}

// Len returns the number of scenes.
func (s *Subset) Len() int { return s.Images.Shape[0] }

// Views returns the number of views per scene.
func (s *Subset) Views() int { return s.Images.Shape[1] }

// Frames returns the number of rotation frames per scene, 0 without originals.
func (s *Subset) Frames() int {
	if s.Originals == nil {
		return 0
	}
	return s.Originals.Shape[1]
}

// ImageSize returns the image width and height.
func (s *Subset) ImageSize() (int, int) { return s.Images.Shape[3], s.Images.Shape[2] }

// Image returns view of scene.
func (s *Subset) Image(scene, view int) (*image.NRGBA, error) {
	return frame(s.Images, scene, view)
}

// Original returns rotation frame f of scene.
func (s *Subset) Original(scene, f int) (*image.NRGBA, error) {
	if s.Originals == nil {
		return nil, errors.New(errors.ErrCodeNotFound, "subset %q has no original images", s.Name)
	}
	return frame(*s.Originals, scene, f)
}

// Viewpoint returns the encoded viewpoint of view of scene.
func (s *Subset) Viewpoint(scene, view int) ([ViewpointDim]float64, error) {
	var out [ViewpointDim]float64
	if scene < 0 || scene >= s.Len() || view < 0 || view >= s.Views() {
		return out, errors.New(errors.ErrCodeOutOfRange, "view (%d, %d) outside (%d, %d)", scene, view, s.Len(), s.Views())
	}
	off := (scene*s.Views() + view) * ViewpointDim
	for i := range out {
		out[i] = float64(s.Viewpoints.Float32[off+i])
	}
	return out, nil
}

func frame(a Array, scene, i int) (*image.NRGBA, error) {
	n, k, h, w := a.Shape[0], a.Shape[1], a.Shape[2], a.Shape[3]
	if scene < 0 || scene >= n || i < 0 || i >= k {
		return nil, errors.New(errors.ErrCodeOutOfRange, "image (%d, %d) outside (%d, %d)", scene, i, n, k)
	}
	size := h * w * 3
	off := (scene*k + i) * size
	return imageproc.FromRGB(a.Uint8[off:off+size], w, h)
}

// Batch is the data of a set of scenes.
type Batch struct {
	Images     [][]*image.NRGBA
	Viewpoints [][][ViewpointDim]float64
	// Originals is nil when the subset has no rotation frames.
	Originals [][]*image.NRGBA
}

// Batch returns the scenes at indices in the given order.
func (s *Subset) Batch(indices []int) (Batch, error) {
	var b Batch
	for _, scene := range indices {
		if scene < 0 || scene >= s.Len() {
			return Batch{}, errors.New(errors.ErrCodeOutOfRange, "scene %d outside [0, %d)", scene, s.Len())
		}
		imgs := make([]*image.NRGBA, s.Views())
		vps := make([][ViewpointDim]float64, s.Views())
		for v := range imgs {
			var err error
			if imgs[v], err = s.Image(scene, v); err != nil {
				return Batch{}, err
			}
			if vps[v], err = s.Viewpoint(scene, v); err != nil {
				return Batch{}, err
			}
		}
		b.Images = append(b.Images, imgs)
		b.Viewpoints = append(b.Viewpoints, vps)

		if s.Originals != nil {
			origs := make([]*image.NRGBA, s.Frames())
			for f := range origs {
				var err error
				if origs[f], err = s.Original(scene, f); err != nil {
					return Batch{}, err
				}
			}
			b.Originals = append(b.Originals, origs)
		}
	}
	return b, nil
}

// Iterator splits scene indices [0, n) into batches.
type Iterator struct {
	n, batchSize int
	rng          *rand.Rand
}

// NewIterator returns an iterator over n scenes. With a non-nil rng each pass
// visits the scenes in a fresh random order. The last batch may be short.
func NewIterator(n, batchSize int, rng *rand.Rand) (*Iterator, error) {
	if n < 0 {
		return nil, errors.New(errors.ErrCodeInvalidArgument, "scene count must be >= 0, got %d", n)
	}
	if batchSize < 1 {
		return nil, errors.New(errors.ErrCodeInvalidArgument, "batch size must be >= 1, got %d", batchSize)
	}
	return &Iterator{n: n, batchSize: batchSize, rng: rng}, nil
}

// Len returns the number of batches per pass.
func (it *Iterator) Len() int {
	return (it.n + it.batchSize - 1) / it.batchSize
}

// Batches yields one pass of index batches.
func (it *Iterator) Batches() iter.Seq[[]int] {
	return func(yield func([]int) bool) {
		order := make([]int, it.n)
		for i := range order {
			order[i] = i
		}
		if it.rng != nil {
			it.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		}
		for start := 0; start < it.n; start += it.batchSize {
			if !yield(order[start:min(start+it.batchSize, it.n)]) {
				return
			}
		}
	}
}
