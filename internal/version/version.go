// Package version carries build-time version information for hpy.
package version

import (
	"fmt"
	"runtime"
)

// These variables are set at build time using -ldflags.
var (
	// Version is the semantic version of the application.
	Version = "0.8.2"

	// GitCommit is the git commit hash when the binary was built.
	GitCommit = "unknown"
)

// String returns a human-readable version line.
func String() string {
	return fmt.Sprintf("hpy %s (%s, %s/%s)", Version, GitCommit, runtime.GOOS, runtime.GOARCH)
}
