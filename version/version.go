package version //nolint:revive // package name intentionally matches build-info convention

import (
	"fmt"
	"runtime/debug"
)

//nolint:gochecknoglobals //version information is set at build time
var (
	Repository string
	Version    string
	Commit     string
	Date       string
)

// String describes the running build. Values not set through -ldflags are
// taken from the module build information when available.
func String() string {
	v, commit, date := Version, Commit, Date

	if info, ok := debug.ReadBuildInfo(); ok {
		if v == "" && info.Main.Version != "" {
			v = info.Main.Version
		}
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				if commit == "" {
					commit = s.Value
				}
			case "vcs.time":
				if date == "" {
					date = s.Value
				}
			}
		}
	}

	if v == "" {
		v = "(devel)"
	}
	out := "polyglot " + v
	if commit != "" || date != "" {
		out += fmt.Sprintf(" (commit %s, built %s)", orUnknown(commit), orUnknown(date))
	}
	if Repository != "" {
		out += " " + Repository
	}
	return out
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
