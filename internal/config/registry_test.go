package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestGetConfigDir(t *testing.T) {
	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}

	if configDir == "" {
		t.Error("GetConfigDir() returned empty string")
	}
	if !strings.Contains(configDir, "z21") {
		t.Errorf("GetConfigDir() = %v, should contain 'z21'", configDir)
	}

	switch runtime.GOOS {
	case "windows":
		if !strings.Contains(configDir, "AppData") && !strings.Contains(configDir, "Local") {
			t.Errorf("Windows config dir should contain 'AppData' or 'Local', got: %v", configDir)
		}
	case "darwin", "linux":
		if !strings.Contains(configDir, ".config") {
			t.Errorf("Unix config dir should contain '.config', got: %v", configDir)
		}
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

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()
	if reg.Version != 1 {
		t.Errorf("NewRegistry().Version = %v, want 1", reg.Version)
	}
	if reg.Stations == nil {
		t.Error("NewRegistry().Stations should not be nil")
	}
}

func TestSetStation(t *testing.T) {
	reg := NewRegistry()

	reg.SetStation("layout", &Station{Address: "192.168.0.111:21105", DefaultLoco: 3})
	if reg.Default != "layout" {
		t.Errorf("first profile should become default, got %q", reg.Default)
	}

	reg.SetStation("workbench", &Station{Address: "10.0.0.5:21105"})
	if reg.Default != "layout" {
		t.Errorf("default should stay on first profile, got %q", reg.Default)
	}

	if got := reg.GetStation("layout"); got == nil || got.DefaultLoco != 3 {
		t.Errorf("GetStation(layout) = %+v", got)
	}
	if reg.GetStation("missing") != nil {
		t.Error("GetStation(missing) should be nil")
	}
}

func TestRemoveStation(t *testing.T) {
	reg := NewRegistry()
	reg.SetStation("layout", &Station{Address: "192.168.0.111:21105"})
	reg.RemoveStation("layout")
	if reg.GetStation("layout") != nil {
		t.Error("profile should be gone after removal")
	}
	if reg.Default != "" {
		t.Errorf("default should be cleared, got %q", reg.Default)
	}
}

func TestRegistryYAMLRoundTrip(t *testing.T) {
	reg := NewRegistry()
	reg.SetStation("layout", &Station{
		Address:     "192.168.0.111:21105",
		TimeoutMS:   3000,
		DefaultLoco: 42,
		Steps:       "28",
	})

	data, err := yaml.Marshal(reg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	loaded := NewRegistry()
	if err := yaml.Unmarshal(data, loaded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	st := loaded.GetStation("layout")
	if st == nil {
		t.Fatal("profile lost in round trip")
	}
	if st.Address != "192.168.0.111:21105" || st.TimeoutMS != 3000 || st.DefaultLoco != 42 || st.Steps != "28" {
		t.Errorf("profile fields lost: %+v", st)
	}
	if loaded.Default != "layout" {
		t.Errorf("default lost: %q", loaded.Default)
	}
}

func TestSaveAndLoadFromDisk(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("XDG override not applicable on windows")
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	reg := NewRegistry()
	reg.SetStation("layout", &Station{Address: "192.168.0.111:21105"})
	if err := SaveRegistry(reg); err != nil {
		t.Fatalf("SaveRegistry: %v", err)
	}

	loaded, err := loadRegistryFromDisk()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.GetStation("layout") == nil {
		t.Error("saved profile not found after reload")
	}

	path, _ := GetConfigPath()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat config file: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("config file mode = %v, want 0600", info.Mode().Perm())
	}
}
