package cli

import (
	"strings"
	"testing"

	"github.com/matzehuels/gqnviz/pkg/dataset"
	"github.com/matzehuels/gqnviz/pkg/pipeline"
)

func TestRunStats(t *testing.T) {
	res := &pipeline.Result{
		Shards:    []dataset.ShardInfo{{Name: "000"}, {Name: "001"}},
		Stats:     pipeline.Stats{SceneCount: 4, ViewCount: 20},
		CacheInfo: pipeline.CacheInfo{ViewHits: 12, ViewMisses: 8},
	}
	got := runStats(res)
	for _, want := range []string{"4 scenes", "20 views", "2 shards", "12 cached", "8 traced"} {
		if !strings.Contains(got, want) {
			t.Errorf("runStats() = %q, missing %q", got, want)
		}
	}
}

func TestRunStatsSkipsZeroCounts(t *testing.T) {
	got := runStats(&pipeline.Result{Stats: pipeline.Stats{SceneCount: 1}})
	if !strings.Contains(got, "1 scenes") {
		t.Errorf("runStats() = %q, missing scene count", got)
	}
	for _, unwanted := range []string{"views", "shards", "cached", "traced"} {
		if strings.Contains(got, unwanted) {
			t.Errorf("runStats() = %q, should not mention %q", got, unwanted)
		}
	}
}
