// Package cliutil holds the small pieces cmd/telemetryhubd shares across
// its subcommands: version string formatting and the startup banner.
// Grounded on ChuLiYu-raft-recovery/cmd/queue/main.go's ldflags-injected
// version/commit/date pattern.
package cliutil

import "fmt"

// Version, Commit, and Date are overridden at build time via
// -ldflags "-X telemetryhub/internal/cliutil.Version=... -X ...".
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String renders the version line cobra's root command exposes under
// -v/--version.
func String() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date)
}

// Banner returns a one-line banner naming the binary and the resolved
// version string.
func Banner(binaryName string) string {
	return fmt.Sprintf("%s %s", binaryName, String())
}
