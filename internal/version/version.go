// Package version reports build metadata. Release builds set the variables with -ldflags;
// other builds fall back to the VCS stamp the Go toolchain embeds.
package version

import (
	"runtime"
	"runtime/debug"
)

// Set with -ldflags "-X github.com/smazurov/paws/internal/version.Version=...".
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	BuildID   = "unknown"
)

// Info is the build metadata served by the API.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	BuildID   string `json:"build_id"`
	GoVersion string `json:"go_version"`
	Compiler  string `json:"compiler"`
	Platform  string `json:"platform"`
}

// Get returns the build metadata.
func Get() Info {
	info := Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		BuildID:   BuildID,
		GoVersion: runtime.Version(),
		Compiler:  runtime.Compiler,
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		fillFromBuildSettings(&info, bi.Settings)
	}
	return info
}

// fillFromBuildSettings replaces unset commit and date fields with vcs settings.
func fillFromBuildSettings(info *Info, settings []debug.BuildSetting) {
	dirty := false
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if info.GitCommit == "unknown" && s.Value != "" {
				info.GitCommit = s.Value[:min(len(s.Value), 7)]
			}
		case "vcs.time":
			if info.BuildDate == "unknown" && s.Value != "" {
				info.BuildDate = s.Value
			}
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if dirty && info.GitCommit != "unknown" && GitCommit == "unknown" {
		info.GitCommit += "-dirty"
	}
}

// String returns the version, with the commit for development builds.
func String() string {
	info := Get()
	if info.Version == "dev" && info.GitCommit != "unknown" {
		return "dev-" + info.GitCommit
	}
	return info.Version
}
