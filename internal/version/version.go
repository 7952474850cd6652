// Package version reports the assetmanifest build.
package version

import "fmt"

// Build metadata, set via ldflags in production:
// go build -ldflags "-X git.home.luguber.info/inful/assetmanifest/internal/version.Version=v1.0.0".
var (
	Version   = "unknown"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// String is the text printed by --version.
func String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildTime)
}
