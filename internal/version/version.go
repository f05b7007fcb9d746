// Package version holds build metadata injected via ldflags.
//
//	go build -ldflags "-X github.com/kailas-cloud/taxoclass/internal/version.Version=v1.2.0"
package version

import "fmt"

//nolint:revive // Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String renders the build metadata for `taxoclass version` and startup logs.
func String() string {
	return fmt.Sprintf("taxoclass %s (commit %s, built %s)", Version, Commit, Date)
}
