package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"
)

// These variables can be set at build time via ldflags:
//
//	go build -ldflags="-X github.com/muurk/upnpdiscover/internal/version.Version=v1.2.3 \
//	                   -X github.com/muurk/upnpdiscover/internal/version.Commit=abc123"
//
// If not set, they are taken from the VCS stamp in the build info, or fall
// back to "dev" with a timestamp.
var (
	// Version is the semantic version of the application
	Version = ""
	// Commit is the git commit hash
	Commit = ""
)

// Product is the name sent in User-Agent and SERVER style headers
const Product = "upnpdiscover"

func init() {
	if Version == "" || Commit == "" {
		if info, ok := debug.ReadBuildInfo(); ok {
			v, c := fromSettings(info.Settings)
			if Version == "" {
				Version = v
			}
			if Commit == "" {
				Commit = c
			}
		}
	}

	if Version == "" {
		Version = fmt.Sprintf("dev-%s", time.Now().Format("20060102-150405"))
	}
	if Commit == "" {
		Commit = "unknown"
	}
}

// fromSettings derives a dev version and a short commit from the vcs.*
// build settings. Either result may be empty.
func fromSettings(settings []debug.BuildSetting) (version, commit string) {
	var revision, modified, stamp string
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			modified = s.Value
		case "vcs.time":
			stamp = s.Value
		}
	}

	if revision != "" {
		commit = revision
		if len(commit) > 7 {
			commit = commit[:7]
		}
		if modified == "true" {
			commit += "-dirty"
		}
	}

	// Build info carries no tags
	if t, err := time.Parse(time.RFC3339, stamp); err == nil {
		version = "dev-" + t.Format("20060102")
	}
	return version, commit
}

// Full returns the full version string including commit
func Full() string {
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}

// UserAgent identifies this program in outgoing HTTP requests, in the
// "OS/version UPnP/1.1 product/version" shape UPnP devices expect
func UserAgent() string {
	return fmt.Sprintf("%s/%s UPnP/1.1 %s/%s", runtime.GOOS, runtime.Version(), Product, Version)
}
