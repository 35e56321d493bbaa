package version

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func withVars(t *testing.T, v, commit, built string) {
	t.Helper()
	oldV, oldC, oldB := Version, GitCommit, BuildTime
	Version, GitCommit, BuildTime = v, commit, built
	t.Cleanup(func() { Version, GitCommit, BuildTime = oldV, oldC, oldB })
}

func TestLinkerValuesWin(t *testing.T) {
	withVars(t, "v1.2.3", "0123456789abcdef", "2026-01-02T03:04:05Z")

	assert.Equal(t, "v1.2.3", GetVersion())
	assert.Equal(t, "0123456789abcdef", GetGitCommit())
	assert.Equal(t, "v1.2.3 (0123456)", GetShortVersion())
	assert.True(t, IsRelease())

	info := GetBuildInfo()
	assert.Equal(t, Name, info.Name)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), info.BuildTime)
	assert.Contains(t, GetDetailedVersion(), "sitepipe v1.2.3")
	assert.Contains(t, GetDetailedVersion(), "Commit: 0123456789abcdef")
}

func TestParseBuildTime(t *testing.T) {
	tests := []struct {
		in   string
		zero bool
	}{
		{"unknown", true},
		{"", true},
		{"yesterday", true},
		{"2026-01-02T03:04:05Z", false},
		{"2026-01-02 03:04:05", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.zero, parseBuildTime(tt.in).IsZero())
		})
	}
}

func TestDevBuild(t *testing.T) {
	withVars(t, "dev", "unknown", "unknown")

	assert.NotEmpty(t, GetVersion())
	assert.True(t, GetBuildInfo().BuildTime.IsZero())
	assert.NotContains(t, GetDetailedVersion(), "Built:")
}
