package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestGetConfigDir(t *testing.T) {
	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}

	if configDir == "" {
		t.Error("GetConfigDir() returned empty string")
	}

	if !strings.Contains(configDir, "upnpdiscover") {
		t.Errorf("GetConfigDir() = %v, should contain 'upnpdiscover'", configDir)
	}

	if runtime.GOOS == "darwin" && !strings.Contains(configDir, ".config") {
		t.Errorf("macOS config dir should contain '.config', got: %v", configDir)
	}

	t.Logf("Config directory: %s", configDir)
}

func TestGetConfigDir_XDG(t *testing.T) {
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		t.Skip("XDG_CONFIG_HOME only applies to Linux and other Unix-like systems")
	}

	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}
	if want := filepath.Join(tmpDir, "upnpdiscover"); configDir != want {
		t.Errorf("GetConfigDir() = %v, want %v", configDir, want)
	}
}

func TestGetConfigPath(t *testing.T) {
	configPath, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath() error = %v", err)
	}

	if filepath.Base(configPath) != "config.yaml" {
		t.Errorf("GetConfigPath() should end with 'config.yaml', got: %v", configPath)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Version != CurrentVersion {
		t.Errorf("Version = %v, want %v", cfg.Version, CurrentVersion)
	}
	if cfg.Scan.Timeout.Std() != 2*time.Second {
		t.Errorf("Scan.Timeout = %v, want 2s", cfg.Scan.Timeout)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `version: 1
log_level: debug
scan:
  timeout: 3s
  interfaces: [eth0]
search:
  retries: 5
server:
  listen: "127.0.0.1:9000"
  refresh_interval: 90
`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %v, want debug", cfg.LogLevel)
	}
	if cfg.Scan.Timeout.Std() != 3*time.Second {
		t.Errorf("Scan.Timeout = %v, want 3s", cfg.Scan.Timeout)
	}
	if len(cfg.Scan.Interfaces) != 1 || cfg.Scan.Interfaces[0] != "eth0" {
		t.Errorf("Scan.Interfaces = %v, want [eth0]", cfg.Scan.Interfaces)
	}
	if cfg.Scan.MX != 2 {
		t.Errorf("Scan.MX = %v, want default 2", cfg.Scan.MX)
	}
	if cfg.Search.Retries != 5 {
		t.Errorf("Search.Retries = %v, want 5", cfg.Search.Retries)
	}
	if cfg.Search.Target != "upnp:rootdevice" {
		t.Errorf("Search.Target = %v, want default upnp:rootdevice", cfg.Search.Target)
	}
	if cfg.Server.RefreshInterval.Std() != 90*time.Second {
		t.Errorf("Server.RefreshInterval = %v, want 1m30s", cfg.Server.RefreshInterval)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{"bad yaml", "version: [1", "failed to parse"},
		{"bad version", "version: 2", "unsupported config version"},
		{"bad duration", "version: 1\nscan:\n  timeout: soon\n", "invalid duration"},
		{"zero timeout", "version: 1\nscan:\n  timeout: 0s\n", "invalid config"},
		{"mx too large", "version: 1\nscan:\n  mx: 10\n", "invalid config"},
		{"bad log level", "version: 1\nlog_level: loud\n", "invalid config"},
		{"bad listen address", "version: 1\nserver:\n  listen: nowhere\n", "invalid config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.data), 0600); err != nil {
				t.Fatalf("Failed to write test config: %v", err)
			}

			_, err := Load(path)
			if err == nil {
				t.Fatal("Load() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.LogLevel = "warn"
	cfg.Scan.Timeout = Duration(1500 * time.Millisecond)
	cfg.Server.Advertise = true
	cfg.Server.Instance = "attic"

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read saved config: %v", err)
	}
	if !strings.HasPrefix(string(data), "# upnpdiscover configuration file") {
		t.Error("saved config should start with the header comment")
	}
	if !strings.Contains(string(data), "timeout: 1.5s") {
		t.Errorf("saved config should contain durations as strings:\n%s", data)
	}

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file should not remain after Save()")
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.LogLevel != "warn" || loaded.Scan.Timeout != cfg.Scan.Timeout {
		t.Errorf("loaded = %+v, want %+v", loaded, cfg)
	}
	if !loaded.Server.Advertise || loaded.Server.Instance != "attic" {
		t.Errorf("loaded server = %+v", loaded.Server)
	}
}

func TestSave_RejectsInvalid(t *testing.T) {
	cfg := Default()
	cfg.Search.Retries = 0

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := cfg.Save(path); err == nil {
		t.Fatal("Save() error = nil, want validation error")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("invalid config should not be written")
	}
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	got, err := Init(path, false)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if got != path {
		t.Errorf("Init() path = %v, want %v", got, path)
	}

	if _, err := Init(path, false); err == nil {
		t.Error("Init() over an existing file should fail without force")
	}
	if _, err := Init(path, true); err != nil {
		t.Errorf("Init(force) error = %v", err)
	}
}
