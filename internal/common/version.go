package common

import (
	"fmt"
	"runtime/debug"
)

// Build metadata, overridden via -ldflags at release time.
var (
	Version   = "dev"
	GitCommit = ""
)

// GetVersion returns the short version string.
func GetVersion() string {
	return Version
}

// GetFullVersion returns the version with commit information. When ldflags
// were not set it falls back to the module build info embedded by the
// toolchain.
func GetFullVersion() string {
	commit := GitCommit
	if commit == "" {
		if info, ok := debug.ReadBuildInfo(); ok {
			for _, s := range info.Settings {
				if s.Key == "vcs.revision" && len(s.Value) >= 8 {
					commit = s.Value[:8]
				}
			}
		}
	}
	if commit == "" {
		return Version
	}
	return fmt.Sprintf("%s (%s)", Version, commit)
}
