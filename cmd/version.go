package cmd

import (
	"runtime/debug"
)

// Version can be set via:
// -ldflags="-X 'github.com/Xazziri/Trivy-dashboard/cmd.Version=$TAG'"
var Version string

// buildVersion returns the linked version, falling back to the module
// build info.
func buildVersion() string {
	if Version != "" {
		return Version
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "(unknown)"
	}
	return info.Main.Version
}
