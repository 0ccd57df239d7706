// Package contracts holds the types shared between the API surface and
// the internal packages: domain models, event payloads and request DTOs.
package contracts

import "runtime"

// Version is the application release version.
const Version = "1.2.0"

// Stamped at build time via -ldflags.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// BuildInfo describes the running binary for the version endpoint.
type BuildInfo struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GitCommit string `json:"git_commit"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// CurrentBuild collects the compile-time and runtime build metadata.
func CurrentBuild() BuildInfo {
	return BuildInfo{
		Version:   Version,
		BuildTime: BuildTime,
		GitCommit: GitCommit,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}
