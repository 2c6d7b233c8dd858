package dataset

import (
	"context"
	"fmt"
	"image"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/disintegration/imaging"

	"github.com/matzehuels/gqnviz/pkg/errors"
	"github.com/matzehuels/gqnviz/pkg/imageproc"
	"github.com/matzehuels/gqnviz/pkg/scene"
)

// Pack defaults.
const (
	DefaultViewsPerScene = 15
	DefaultImageSize     = 64
	// DefaultShardName names the single shard written when scenes are not
	// split.
	DefaultShardName = "data"
)

// PackOptions configures [Pack].
type PackOptions struct {
	ViewsPerScene int
	ImageSize     int
	// ScenesPerShard splits the output into shards named 000, 001, ...;
	// zero writes every scene into one shard named [DefaultShardName].
	ScenesPerShard int
	Logger         *log.Logger
}

// SetDefaults fills zero fields.
func (o *PackOptions) SetDefaults() {
	if o.ViewsPerScene == 0 {
		o.ViewsPerScene = DefaultViewsPerScene
	}
	if o.ImageSize == 0 {
		o.ImageSize = DefaultImageSize
	}
	if o.Logger == nil {
		o.Logger = log.New(io.Discard)
	}
}

// Validate checks options after defaults.
func (o PackOptions) Validate() error {
	if o.ViewsPerScene < 1 {
		return errors.New(errors.ErrCodeInvalidConfig, "views per scene must be >= 1, got %d", o.ViewsPerScene)
	}
	if o.ImageSize < 1 {
		return errors.New(errors.ErrCodeInvalidConfig, "image size must be >= 1, got %d", o.ImageSize)
	}
	if o.ScenesPerShard < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "scenes per shard must be >= 0, got %d", o.ScenesPerShard)
	}
	return nil
}

// RawView is one rendered view in a scene directory.
type RawView struct {
	Image     image.Image
	Viewpoint scene.Viewpoint
}

// WriteSceneDir writes views as dir/images/NNN.png and
// dir/viewpoints/NNN.txt, the input layout of [Pack].
func WriteSceneDir(dir string, views []RawView) error {
	for _, sub := range []string{ImagesDir, ViewpointsDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidPath, err, "create %s", sub)
		}
	}
	for i, v := range views {
		stem := fmt.Sprintf("%03d", i)
		if err := imaging.Save(v.Image, filepath.Join(dir, ImagesDir, stem+".png")); err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "save view %d", i)
		}
		if err := os.WriteFile(filepath.Join(dir, ViewpointsDir, stem+".txt"), []byte(v.Viewpoint.String()), 0o644); err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "save viewpoint %d", i)
		}
	}
	return nil
}

// PackResult summarizes a [Pack] run.
type PackResult struct {
	Shards []ShardInfo
	Scenes int
}

// Pack converts the scene directories under inputDir into a dataset under
// outputDir. Every scene directory holds images/<stem>.png and
// viewpoints/<stem>.txt ("x,y,z,yaw,pitch") pairs; ViewsPerScene pairs are
// sampled without replacement, cropped to their centre square, resized to
// ImageSize and stored with their 7-d viewpoint encoding.
func Pack(ctx context.Context, inputDir, outputDir string, opts PackOptions, rng *rand.Rand) (PackResult, error) {
	opts.SetDefaults()
	if err := opts.Validate(); err != nil {
		return PackResult{}, err
	}
	if rng == nil {
		return PackResult{}, errors.New(errors.ErrCodeInvalidArgument, "pack needs a random source")
	}

	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return PackResult{}, errors.Wrap(errors.ErrCodeInvalidPath, err, "list %s", inputDir)
	}
	var sceneDirs []string
	for _, e := range entries {
		if e.IsDir() {
			sceneDirs = append(sceneDirs, e.Name())
		}
	}
	slices.Sort(sceneDirs)
	if len(sceneDirs) == 0 {
		return PackResult{}, errors.New(errors.ErrCodeNotFound, "no scene directories in %s", inputDir)
	}

	w, err := NewShardWriter(outputDir, opts.Logger)
	if err != nil {
		return PackResult{}, err
	}

	var res PackResult
	var pending []SceneViews
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		name := DefaultShardName
		if opts.ScenesPerShard > 0 {
			name = fmt.Sprintf("%03d", len(res.Shards))
		}
		info, err := w.Write(name, pending)
		if err != nil {
			return err
		}
		res.Shards = append(res.Shards, info)
		pending = nil
		return nil
	}

	for _, name := range sceneDirs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		sv, err := packScene(filepath.Join(inputDir, name), opts, rng)
		if err != nil {
			return res, err
		}
		pending = append(pending, sv)
		res.Scenes++
		opts.Logger.Debug("packed scene", "scene", name, "views", len(sv.Images))
		if opts.ScenesPerShard > 0 && len(pending) == opts.ScenesPerShard {
			if err := flush(); err != nil {
				return res, err
			}
		}
	}
	if err := flush(); err != nil {
		return res, err
	}
	return res, nil
}

func packScene(dir string, opts PackOptions, rng *rand.Rand) (SceneViews, error) {
	files, err := viewFiles(dir)
	if err != nil {
		return SceneViews{}, err
	}
	if len(files) < opts.ViewsPerScene {
		return SceneViews{}, errors.New(errors.ErrCodeInvalidArgument,
			"scene %s has %d views, need %d", dir, len(files), opts.ViewsPerScene)
	}

	var sv SceneViews
	for _, i := range rng.Perm(len(files))[:opts.ViewsPerScene] {
		stem := strings.TrimSuffix(files[i], filepath.Ext(files[i]))
		img, err := imaging.Open(filepath.Join(dir, ImagesDir, files[i]))
		if err != nil {
			return SceneViews{}, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode %s image %s", dir, stem)
		}
		square, err := imageproc.Square(img, opts.ImageSize)
		if err != nil {
			return SceneViews{}, err
		}
		text, err := os.ReadFile(filepath.Join(dir, ViewpointsDir, stem+".txt"))
		if err != nil {
			return SceneViews{}, errors.Wrap(errors.ErrCodeNotFound, err, "scene %s view %s has no viewpoint", dir, stem)
		}
		vp, err := scene.ParseViewpoint(string(text))
		if err != nil {
			return SceneViews{}, errors.Wrap(errors.ErrCodeInvalidFormat, err, "scene %s viewpoint %s", dir, stem)
		}
		sv.Images = append(sv.Images, square)
		sv.Viewpoints = append(sv.Viewpoints, vp.Encode())
	}
	return sv, nil
}

// viewFiles returns the sorted names of the PNG files in dir/images.
func viewFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(dir, ImagesDir))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNotFound, err, "scene %s has no %s directory", dir, ImagesDir)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".png") {
			files = append(files, e.Name())
		}
	}
	slices.Sort(files)
	return files, nil
}
