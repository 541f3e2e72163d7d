// Package version exposes build metadata injected at link time:
//
//	go build -ldflags "-X git.home.luguber.info/inful/botpack/internal/version.Version=v1.2.0"
package version

import "fmt"

// Version is the release version, "unknown" for development builds.
var Version = "unknown"

// BuildInfo contains additional build metadata.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String renders the version line printed by botpack --version.
func String() string {
	return fmt.Sprintf("botpack %s (commit %s, built %s)", Version, GitCommit, BuildTime)
}
