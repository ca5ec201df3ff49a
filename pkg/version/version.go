package version

import (
	"fmt"
	"runtime"
)

// Set at release time via -ldflags "-X .../pkg/version.Version=v1.2.3 ...".
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Info is the resolved build description served by /version.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// GetInfo resolves the build-time variables and the runtime platform.
func GetInfo() Info {
	return Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String returns the full build description.
func (i Info) String() string {
	return fmt.Sprintf("packetscope %s (commit %s, built %s, %s, %s)",
		i.Version, i.GitCommit, i.BuildTime, i.GoVersion, i.Platform)
}

// Short returns just the binary name and version.
func (i Info) Short() string {
	return "packetscope " + i.Version
}
