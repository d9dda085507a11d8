// Package version holds build metadata injected at link time.
package version

import "fmt"

// Populated via -ldflags "-X decklens/internal/version.Version=..."
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Info returns a one-line human-readable version string.
func Info() string {
	return fmt.Sprintf("decklens %s (commit: %s, built: %s)", Version, Commit, Date)
}
