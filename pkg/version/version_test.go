package version

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetInfo(t *testing.T) {
	info := GetInfo()

	assert.Equal(t, Version, info.Version)
	assert.Equal(t, GitCommit, info.GitCommit)
	assert.Equal(t, BuildTime, info.BuildTime)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
}

func TestInfoString(t *testing.T) {
	info := Info{
		Version:   "v1.0.0",
		GitCommit: "abc123",
		BuildTime: "2024-01-01",
		GoVersion: "go1.23",
		Platform:  "linux/amd64",
	}

	str := info.String()
	assert.Contains(t, str, "packetscope v1.0.0")
	assert.Contains(t, str, "commit abc123")
	assert.Contains(t, str, "built 2024-01-01")
	assert.Contains(t, str, "go1.23")
	assert.Contains(t, str, "linux/amd64")
}

func TestInfoShort(t *testing.T) {
	info := Info{Version: "v1.0.0"}
	assert.Equal(t, "packetscope v1.0.0", info.Short())
}

func TestDefaults(t *testing.T) {
	// Without ldflags the defaults must still produce a usable string.
	info := GetInfo()
	assert.True(t, strings.HasPrefix(info.GoVersion, "go"))
	assert.NotEmpty(t, info.String())
	assert.NotEmpty(t, info.Short())
}
