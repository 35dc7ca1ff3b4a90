package version

import (
	"runtime/debug"
	"strings"
	"testing"
)

func TestFromSettings(t *testing.T) {
	tests := []struct {
		name        string
		settings    []debug.BuildSetting
		wantVersion string
		wantCommit  string
	}{
		{
			name:     "no vcs info",
			settings: []debug.BuildSetting{{Key: "GOOS", Value: "linux"}},
		},
		{
			name: "clean checkout",
			settings: []debug.BuildSetting{
				{Key: "vcs.revision", Value: "0123456789abcdef"},
				{Key: "vcs.modified", Value: "false"},
				{Key: "vcs.time", Value: "2025-03-04T10:11:12Z"},
			},
			wantVersion: "dev-20250304",
			wantCommit:  "0123456",
		},
		{
			name: "dirty tree",
			settings: []debug.BuildSetting{
				{Key: "vcs.revision", Value: "0123456789abcdef"},
				{Key: "vcs.modified", Value: "true"},
			},
			wantCommit: "0123456-dirty",
		},
		{
			name: "short revision and bad time",
			settings: []debug.BuildSetting{
				{Key: "vcs.revision", Value: "abc"},
				{Key: "vcs.time", Value: "yesterday"},
			},
			wantCommit: "abc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, c := fromSettings(tt.settings)
			if v != tt.wantVersion {
				t.Errorf("fromSettings() version = %q, want %q", v, tt.wantVersion)
			}
			if c != tt.wantCommit {
				t.Errorf("fromSettings() commit = %q, want %q", c, tt.wantCommit)
			}
		})
	}
}

func TestFull(t *testing.T) {
	if Version == "" || Commit == "" {
		t.Fatalf("Version = %q, Commit = %q, want both populated", Version, Commit)
	}
	want := Version + " (commit: " + Commit + ")"
	if got := Full(); got != want {
		t.Errorf("Full() = %q, want %q", got, want)
	}
}

func TestUserAgent(t *testing.T) {
	ua := UserAgent()
	if !strings.Contains(ua, " UPnP/1.1 ") {
		t.Errorf("UserAgent() = %q, want UPnP/1.1 token", ua)
	}
	if !strings.HasSuffix(ua, Product+"/"+Version) {
		t.Errorf("UserAgent() = %q, want suffix %q", ua, Product+"/"+Version)
	}
}
