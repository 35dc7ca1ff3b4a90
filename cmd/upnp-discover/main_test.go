package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/muurk/upnpdiscover/internal/config"
	"github.com/muurk/upnpdiscover/internal/version"
)

// execute runs the root command with args and returns its output. Flag
// values are reset first since cobra keeps them between runs.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	cfg = config.Default()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return out.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "", "version", "--config", filepath.Join(t.TempDir(), "none.yaml"))
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	want := "upnp-discover " + version.Version + " (commit: " + version.Commit + ")\n"
	if out != want {
		t.Errorf("version output = %q, want %q", out, want)
	}
}

func TestUnknownFormat(t *testing.T) {
	_, err := execute(t, "", "version", "--format", "xml", "--config", filepath.Join(t.TempDir(), "none.yaml"))
	if err == nil || !strings.Contains(err.Error(), "unknown output format") {
		t.Errorf("--format xml error = %v, want unknown output format", err)
	}
}

func TestInvalidConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("version: 1\nscan:\n  mx: 99\n"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := execute(t, "", "version", "--config", path); err == nil {
		t.Error("invalid config accepted, want error")
	}
}

func TestConfigCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "upnpdiscover", "config.yaml")

	out, err := execute(t, "", "config", "path", "--config", path)
	if err != nil {
		t.Fatalf("config path error = %v", err)
	}
	if strings.TrimSpace(out) != path {
		t.Errorf("config path = %q, want %q", strings.TrimSpace(out), path)
	}

	if _, err := execute(t, "", "config", "init", "--config", path); err != nil {
		t.Fatalf("config init error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config init did not write %s: %v", path, err)
	}

	if _, err := execute(t, "", "config", "init", "--config", path); err == nil {
		t.Error("config init over an existing file succeeded, want error")
	}

	// Declined overwrite leaves the file alone
	custom := []byte("version: 1\nlog_level: debug\n")
	if err := os.WriteFile(path, custom, 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, "no\n", "config", "init", "--force", "--config", path); err != nil {
		t.Fatalf("config init --force error = %v", err)
	}
	if data, _ := os.ReadFile(path); !bytes.Equal(data, custom) {
		t.Errorf("declined overwrite changed the file to %q", data)
	}

	if _, err := execute(t, "", "config", "init", "--force", "--yes", "--config", path); err != nil {
		t.Fatalf("config init --force --yes error = %v", err)
	}

	out, err = execute(t, "", "config", "show", "--config", path)
	if err != nil {
		t.Fatalf("config show error = %v", err)
	}
	for _, want := range []string{"version: 1", "timeout: 2s", "min_interval: 59s", "8900"} {
		if !strings.Contains(out, want) {
			t.Errorf("config show missing %q in:\n%s", want, out)
		}
	}
}

const kitchenDescription = `<?xml version="1.0" encoding="utf-8"?>
<root xmlns="urn:schemas-upnp-org:device-1-0">
  <specVersion><major>1</major><minor>0</minor></specVersion>
  <device>
    <deviceType>urn:schemas-upnp-org:device:ZonePlayer:1</deviceType>
    <friendlyName>Kitchen</friendlyName>
    <manufacturer>Sonos, Inc.</manufacturer>
    <modelName>Play:1</modelName>
  </device>
</root>`

func TestDescribeCommand(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/desc.xml" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/xml")
		_, _ = w.Write([]byte(kitchenDescription))
	}))
	defer ts.Close()

	configFile := filepath.Join(t.TempDir(), "none.yaml")

	t.Run("json", func(t *testing.T) {
		out, err := execute(t, "", "describe", ts.URL+"/desc.xml", "--format", "json", "--config", configFile)
		if err != nil {
			t.Fatalf("describe error = %v", err)
		}

		var got struct {
			Device struct {
				FriendlyName string `json:"friendlyName"`
				Manufacturer string `json:"manufacturer"`
			} `json:"device"`
		}
		if err := json.Unmarshal([]byte(out), &got); err != nil {
			t.Fatalf("describe output is not JSON: %v\n%s", err, out)
		}
		if got.Device.FriendlyName != "Kitchen" || got.Device.Manufacturer != "Sonos, Inc." {
			t.Errorf("describe device = %+v, want Kitchen by Sonos, Inc.", got.Device)
		}
	})

	t.Run("table", func(t *testing.T) {
		out, err := execute(t, "", "describe", ts.URL+"/desc.xml", "--config", configFile)
		if err != nil {
			t.Fatalf("describe error = %v", err)
		}
		for _, want := range []string{"KITCHEN", "ZonePlayer:1", "friendlyName: Kitchen"} {
			if !strings.Contains(out, want) {
				t.Errorf("describe output missing %q in:\n%s", want, out)
			}
		}
	})

	t.Run("not found", func(t *testing.T) {
		out, err := execute(t, "", "describe", ts.URL+"/missing.xml", "--config", configFile)
		if err == nil {
			t.Fatal("describe of a missing document succeeded, want error")
		}
		if !strings.Contains(out, "Description fetch failed") {
			t.Errorf("describe output missing failure box:\n%s", out)
		}
	})
}

func TestFindFlags(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "none.yaml")

	tests := []struct {
		name string
		args []string
	}{
		{"no query", []string{"find"}},
		{"both queries", []string{"find", "--st", "upnp:rootdevice", "--match", "manufacturer=Acme"}},
		{"malformed match", []string{"find", "--match", "manufacturer"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := execute(t, "", append(tt.args, "--config", configFile)...); err == nil {
				t.Errorf("%v succeeded, want error", tt.args)
			}
		})
	}
}
