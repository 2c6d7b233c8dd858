package buildinfo

import (
	"runtime/debug"
	"strings"
	"testing"
)

func TestFromBuildInfo(t *testing.T) {
	settings := []debug.BuildSetting{
		{Key: "vcs.revision", Value: "abc123"},
		{Key: "vcs.time", Value: "2024-05-01T10:00:00Z"},
		{Key: "vcs.modified", Value: "true"},
	}

	got := fromBuildInfo(Info{Version: "dev", Commit: "none", Date: "unknown"}, settings)
	if got.Commit != "abc123" {
		t.Errorf("Commit = %q, want abc123", got.Commit)
	}
	if got.Date != "2024-05-01T10:00:00Z" {
		t.Errorf("Date = %q, want the VCS time", got.Date)
	}
	if !got.Modified {
		t.Error("Modified = false, want true")
	}

	// ldflags win over the VCS stamp.
	got = fromBuildInfo(Info{Commit: "release", Date: "today"}, settings)
	if got.Commit != "release" || got.Date != "today" {
		t.Errorf("got %+v, want ldflags values kept", got)
	}
}

func TestString(t *testing.T) {
	s := String()
	for _, want := range []string{"version: ", "commit: ", "built: ", "go: "} {
		if !strings.Contains(s, want) {
			t.Errorf("String() = %q, missing %q", s, want)
		}
	}
	if !strings.Contains(Template(), "{{.Name}} version") {
		t.Errorf("Template() = %q", Template())
	}
}
