// Package version reports build metadata. Release builds set the variables
// with -ldflags; `go install` builds fall back to the stamped module info.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

// Info is the resolved build metadata.
type Info struct {
	Version   string
	Commit    string
	Date      string
	GoVersion string
}

var readBuildInfo = debug.ReadBuildInfo

// Get merges the linker-set variables with the embedded build info.
func Get() Info {
	info := Info{Version: Version, Commit: Commit, Date: Date, GoVersion: runtime.Version()}

	if bi, ok := readBuildInfo(); ok {
		if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			info.Version = bi.Main.Version
		}
		for _, setting := range bi.Settings {
			switch setting.Key {
			case "vcs.revision":
				if info.Commit == "" {
					info.Commit = shortRevision(setting.Value)
				}
			case "vcs.time":
				if info.Date == "" {
					info.Date = setting.Value
				}
			}
		}
	}

	if info.Commit == "" {
		info.Commit = "none"
	}
	if info.Date == "" {
		info.Date = "unknown"
	}
	return info
}

// String renders the metadata for `smartspeak version`.
func String() string {
	info := Get()
	return fmt.Sprintf("smartspeak %s (commit=%s, date=%s, go=%s)", info.Version, info.Commit, info.Date, info.GoVersion)
}

// UserAgent identifies smartspeak to remote APIs.
func UserAgent() string {
	return "smartspeak/" + Get().Version
}

func shortRevision(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}
