// Package version carries the build metadata of the hudscan binary.
package version

import "fmt"

// Build-time variables set by ldflags, e.g.
//
//	-X github.com/MeKo-Tech/hudscan/internal/version.Version=v1.2.0
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info returns version, commit and build date.
func Info() (string, string, string) {
	return Version, GitCommit, BuildDate
}

// String formats the build metadata on one line.
func String() string {
	return fmt.Sprintf("hudscan %s (commit %s, built %s)", Version, GitCommit, BuildDate)
}
