package version

import (
	"strings"
	"testing"
)

func TestSetInfo(t *testing.T) {
	originalVersion := Version
	originalBuildTime := BuildTime
	originalGitCommit := GitCommit
	originalGoVersion := GoVersion

	defer func() {
		Version = originalVersion
		BuildTime = originalBuildTime
		GitCommit = originalGitCommit
		GoVersion = originalGoVersion
	}()

	SetInfo("1.0.0", "2026-01-01T00:00:00Z", "abc123", "go1.26")

	if Version != "1.0.0" {
		t.Errorf("Version = %s, want 1.0.0", Version)
	}
	if GitCommit != "abc123" {
		t.Errorf("GitCommit = %s, want abc123", GitCommit)
	}

	// Empty values must not clobber existing metadata.
	SetInfo("", "", "", "")
	if Version != "1.0.0" {
		t.Errorf("Version = %s after empty SetInfo, want 1.0.0", Version)
	}

	if !strings.Contains(String(), "1.0.0") {
		t.Errorf("String() = %s, want it to contain the version", String())
	}
}
