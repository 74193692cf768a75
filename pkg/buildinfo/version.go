// Package buildinfo holds version information stamped in at build time:
//
//	go build -ldflags "-X github.com/matzehuels/wheelsmith/pkg/buildinfo.Version=v0.3.0 \
//	    -X github.com/matzehuels/wheelsmith/pkg/buildinfo.Commit=$(git rev-parse HEAD) \
//	    -X github.com/matzehuels/wheelsmith/pkg/buildinfo.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package buildinfo

import "fmt"

var (
	// Version is the release version, "dev" for local builds.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// UserAgent identifies wheelsmith in the INSTALLER file and logs.
func UserAgent() string {
	return "wheelsmith/" + Version
}

// Template returns the version template string for cobra.
func Template() string {
	return fmt.Sprintf("{{.Name}} version %s\ncommit: %s\nbuilt: %s\n", Version, Commit, Date)
}
