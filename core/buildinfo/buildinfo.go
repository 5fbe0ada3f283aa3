// Package buildinfo carries version stamps injected at link time:
//
//	-X 'github.com/m3rciful/chatbots/core/buildinfo.Version=v1.2.3'
//	-X 'github.com/m3rciful/chatbots/core/buildinfo.Commit=abcdef0'
//	-X 'github.com/m3rciful/chatbots/core/buildinfo.Date=2025-08-30T12:00:00Z'
package buildinfo

import "runtime/debug"

var (
	Version = "dev"
	Commit  = "local"
	Date    = ""
)

// Resolve fills unset stamps from the module build info embedded by the Go
// toolchain, so `go install` builds still report a version and revision.
func Resolve() (version, commit, date string) {
	version, commit, date = Version, Commit, Date
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	if version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		version = info.Main.Version
	}
	for _, s := range info.Settings {
		switch {
		case s.Key == "vcs.revision" && commit == "local":
			commit = s.Value
			if len(commit) > 7 {
				commit = commit[:7]
			}
		case s.Key == "vcs.time" && date == "":
			date = s.Value
		}
	}
	return
}
