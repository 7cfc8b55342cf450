// Package buildinfo holds version information set at link time:
//
//	go build -ldflags "-X github.com/motioninput/mimonitor/internal/buildinfo.Version=1.2.0"
package buildinfo

import "fmt"

var (
	Version    = "dev"
	Codename   = "unknown"
	CommitHash = "unknown"
	BuildDate  = "unknown"
)

// Summary formats the build for one-line output, e.g. in the daemon's
// --version flag.
func Summary(binary string) string {
	return fmt.Sprintf("%s %s (%s) commit %s built %s", binary, Version, Codename, CommitHash, BuildDate)
}
