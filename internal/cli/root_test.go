package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/matzehuels/gqnviz/pkg/animate"
	"github.com/matzehuels/gqnviz/pkg/buildinfo"
	"github.com/matzehuels/gqnviz/pkg/cache"
	"github.com/matzehuels/gqnviz/pkg/dataset"
	"github.com/matzehuels/gqnviz/pkg/scene"
)

// execute runs the root command with args and returns what it wrote to its
// output stream.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	c := New(io.Discard, LogInfo)
	root := c.RootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeConfig(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gqnviz.toml")
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRootCommandSubcommands(t *testing.T) {
	root := New(io.Discard, LogInfo).RootCommand()

	want := []string{"animate", "cache", "catalog", "completion", "generate", "observe", "pack", "report", "serve"}
	got := map[string]bool{}
	for _, cmd := range root.Commands() {
		got[cmd.Name()] = true
	}
	for _, name := range want {
		if !got[name] {
			t.Errorf("missing subcommand %q", name)
		}
	}
	if root.Version != buildinfo.Version {
		t.Errorf("Version = %q, want %q", root.Version, buildinfo.Version)
	}
}

func TestMissingConfig(t *testing.T) {
	_, err := execute(t, "cache", "path", "--config", filepath.Join(t.TempDir(), "missing.toml"))
	if err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestCachePath(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, "[cache]\ndir = \""+filepath.ToSlash(dir)+"\"\n")

	out, err := execute(t, "--config", cfg, "cache", "path")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != filepath.ToSlash(dir) {
		t.Errorf("cache path = %q, want %q", strings.TrimSpace(out), dir)
	}
}

func TestCachePathOtherBackend(t *testing.T) {
	cfg := writeConfig(t, "[cache]\nbackend = \"none\"\n")
	if _, err := execute(t, "--config", cfg, "cache", "path"); err == nil {
		t.Fatal("expected an error for a non-file backend")
	}
}

func TestCacheClear(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	fc, err := cache.NewFileCache(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"a", "b"} {
		if err := fc.Set(ctx, key, []byte(key), time.Hour); err != nil {
			t.Fatal(err)
		}
	}

	cfg := writeConfig(t, "[cache]\ndir = \""+filepath.ToSlash(dir)+"\"\n")
	if _, err := execute(t, "--config", cfg, "cache", "clear"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := fc.Get(ctx, "a"); ok {
		t.Error("entry a survived cache clear")
	}
}

func TestCatalogCommands(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "catalog.db")
	cat, err := dataset.OpenCatalog(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	run, err := cat.CreateRun(ctx, dataset.RunGenerate, 7, "")
	if err != nil {
		t.Fatal(err)
	}
	info := dataset.ShardInfo{Name: "000", Scenes: 2, Views: 5, Width: 16, Height: 16}
	shardID, err := cat.AddShard(ctx, run.ID, "/data/train", info)
	if err != nil {
		t.Fatal(err)
	}
	views := []scene.Viewpoint{scene.NewViewpoint(r3.Vec{X: 2}, r3.Vec{})}
	if err := cat.AddScene(ctx, shardID, 0, "scene-a", 3, views); err != nil {
		t.Fatal(err)
	}
	if err := cat.Close(); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "catalog", "list", "--catalog", path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{run.ID, dataset.RunGenerate, "7"} {
		if !strings.Contains(out, want) {
			t.Errorf("catalog list output missing %q:\n%s", want, out)
		}
	}

	out, err = execute(t, "catalog", "shards", run.ID, "--catalog", path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"000", "16x16", "/data/train"} {
		if !strings.Contains(out, want) {
			t.Errorf("catalog shards output missing %q:\n%s", want, out)
		}
	}

	out, err = execute(t, "catalog", "scene", "scene-a", "--catalog", path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "2.000, 0.000, 0.000") {
		t.Errorf("catalog scene output missing the eye:\n%s", out)
	}
	if _, err := execute(t, "catalog", "scene", "missing", "--catalog", path); err == nil {
		t.Error("expected an error for an unknown scene")
	}
}

func TestCommandArgErrors(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing")
	tests := []struct {
		name string
		args []string
	}{
		{"generate without dir", []string{"generate"}},
		{"pack missing input", []string{"pack", missing, filepath.Join(t.TempDir(), "out")}},
		{"animate missing dataset", []string{"animate", missing}},
		{"report missing dataset", []string{"report", missing}},
		{"serve extra arg", []string{"serve", "extra"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := execute(t, tt.args...); err == nil {
				t.Errorf("%v: expected an error", tt.args)
			}
		})
	}
}

func TestNewSink(t *testing.T) {
	dir := t.TempDir()

	s, err := newSink(filepath.Join(dir, "progress.GIF"), defaultGIFDelay)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*animate.GIF); !ok {
		t.Errorf("sink for .GIF = %T, want *animate.GIF", s)
	}

	s, err = newSink(filepath.Join(dir, "frames"), defaultGIFDelay)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*animate.PNGSequence); !ok {
		t.Errorf("sink for a directory = %T, want *animate.PNGSequence", s)
	}
}

func TestCompletion(t *testing.T) {
	for shell := range completionGenerators {
		t.Run(shell, func(t *testing.T) {
			out, err := execute(t, "completion", shell)
			if err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(out, appName) {
				t.Errorf("%s completion does not mention %s", shell, appName)
			}
		})
	}
	if _, err := execute(t, "completion", "tcsh"); err == nil {
		t.Error("expected an error for an unsupported shell")
	}
}
