// Package version carries build metadata for the branchstats binary.
package version

import "runtime/debug"

const (
	unsetVersion = "dev"
	unsetCommit  = "none"
	unsetDate    = "unknown"

	develVersion = "(devel)"
)

// Build metadata, normally set with -ldflags "-X ...".
var (
	Version = unsetVersion
	Commit  = unsetCommit
	Date    = unsetDate
)

// InitBinaryVersion fills whatever the linker left unset from the module
// build info embedded by the Go toolchain.
func InitBinaryVersion() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	fromBuildInfo(info)
}

func fromBuildInfo(info *debug.BuildInfo) {
	if Version == unsetVersion && info.Main.Version != "" && info.Main.Version != develVersion {
		Version = info.Main.Version
	}

	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if Commit == unsetCommit {
				Commit = s.Value
			}
		case "vcs.time":
			if Date == unsetDate {
				Date = s.Value
			}
		}
	}
}
