package version

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()
	assert.NotEmpty(t, info.Version)
	assert.NotEmpty(t, info.GitCommit)
	assert.NotEmpty(t, info.BuildDate)
	assert.NotEmpty(t, info.GoVersion)
	assert.NotEmpty(t, info.Platform)
}

func TestGetBuildInfo_ParsesValidDate(t *testing.T) {
	originalBuildDate := BuildDate
	t.Cleanup(func() { BuildDate = originalBuildDate })

	BuildDate = "2026-01-13T20:00:00Z"
	info := GetBuildInfo()

	expected, err := time.Parse(time.RFC3339, BuildDate)
	require.NoError(t, err)
	assert.True(t, info.BuildTime.Equal(expected))
}

func TestGetBuildInfo_InvalidDateLeavesBuildTimeZero(t *testing.T) {
	originalBuildDate := BuildDate
	t.Cleanup(func() { BuildDate = originalBuildDate })

	BuildDate = "yesterday"
	assert.True(t, GetBuildInfo().BuildTime.IsZero())
}

func TestUserAgent(t *testing.T) {
	originalVersion := Version
	t.Cleanup(func() { Version = originalVersion })

	Version = "1.2.3"
	assert.Equal(t, "ankimcp/1.2.3 ("+Platform+")", UserAgent())
}

func TestBuildInfoString(t *testing.T) {
	info := BuildInfo{Version: "1.0.0", GitCommit: "abc123", BuildDate: "2026-01-01"}
	assert.Equal(t, "ankimcp 1.0.0 (commit: abc123, built: 2026-01-01)", info.String())
}
