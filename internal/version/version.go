// Package version reports the build identity of the buildplan binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	// Version is the semantic version (set by ldflags during build)
	Version = "dev"
	// Commit is the git commit hash (set by ldflags during build)
	Commit = "unknown"
	// Date is the build date (set by ldflags during build)
	Date = "unknown"
)

// Info contains complete version information
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// GetInfo returns complete version information. Without ldflags the
// commit and date fall back to the VCS stamp of the module build.
func GetInfo() Info {
	info := Info{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			switch {
			case s.Key == "vcs.revision" && info.Commit == "unknown":
				info.Commit = s.Value
			case s.Key == "vcs.time" && info.Date == "unknown":
				info.Date = s.Value
			}
		}
	}
	return info
}

// String returns a formatted version string
func (i Info) String() string {
	return fmt.Sprintf("buildplan %s (%s) built %s with %s for %s",
		i.Version, i.ShortCommit(), i.Date, i.GoVersion, i.Platform)
}

// ShortCommit returns at most the first eight characters of the commit.
func (i Info) ShortCommit() string {
	if len(i.Commit) > 8 {
		return i.Commit[:8]
	}
	return i.Commit
}

// Short returns just the version number
func (i Info) Short() string {
	return i.Version
}
