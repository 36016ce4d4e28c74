package cliconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestApplyFileConfig(t *testing.T) {
	tests := []struct {
		name       string
		fileConfig FileConfig
		changed    map[string]bool
		initial    Config
		expected   Config
		wantErr    bool
	}{
		{
			name: "applies all valid config values",
			fileConfig: FileConfig{
				DeviceURL:          "http://garden.local",
				FSPath:             "/fs",
				EventsPath:         "/events",
				MetaTimeout:        "3s",
				PayloadIdleTimeout: "1m",
				HeartbeatInterval:  "2s",
				HeartbeatTimeout:   "4s",
				BackoffInitial:     "100ms",
				BackoffMax:         "5s",
				HTTPTimeout:        "30s",
				SliceSize:          1024,
				Language:           "de-CH",
				LogLevel:           "debug",
				LogFormat:          "json",
			},
			changed: map[string]bool{},
			initial: Config{},
			expected: Config{
				DeviceURL:          "http://garden.local",
				FSPath:             "/fs",
				EventsPath:         "/events",
				MetaTimeout:        3 * time.Second,
				PayloadIdleTimeout: time.Minute,
				HeartbeatInterval:  2 * time.Second,
				HeartbeatTimeout:   4 * time.Second,
				BackoffInitial:     100 * time.Millisecond,
				BackoffMax:         5 * time.Second,
				HTTPTimeout:        30 * time.Second,
				SliceSize:          1024,
				Language:           "de-CH",
				LogLevel:           "debug",
				LogFormat:          "json",
			},
		},
		{
			name: "respects changed flags",
			fileConfig: FileConfig{
				DeviceURL: "http://config.local",
				Language:  "de",
			},
			changed: map[string]bool{"device": true},
			initial: Config{
				DeviceURL: "http://flag.local",
				Language:  "en",
			},
			expected: Config{
				DeviceURL: "http://flag.local", // unchanged because flag was set
				Language:  "de",
			},
		},
		{
			name: "empty values keep defaults",
			fileConfig: FileConfig{
				SliceSize: -1,
			},
			changed:  map[string]bool{},
			initial:  DefaultConfig(),
			expected: DefaultConfig(),
		},
		{
			name: "returns error for invalid duration",
			fileConfig: FileConfig{
				HeartbeatTimeout: "soon",
			},
			changed: map[string]bool{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.initial
			err := ApplyFileConfig(&cfg, tt.fileConfig, tt.changed)

			if tt.wantErr && err == nil {
				t.Error("ApplyFileConfig() expected error but got nil")
				return
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ApplyFileConfig() unexpected error: %v", err)
				return
			}

			if !tt.wantErr && cfg != tt.expected {
				t.Errorf("ApplyFileConfig() = %+v, want %+v", cfg, tt.expected)
			}
		})
	}
}

func TestLoadFileConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.toml")

	tomlContent := `
device = "http://192.168.1.40"
heartbeat_timeout = "3s"
slice_size = 2048
lang = "de-CH"
`

	if err := os.WriteFile(configPath, []byte(tomlContent), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	fc, err := LoadFileConfig(configPath)
	if err != nil {
		t.Fatalf("LoadFileConfig() error = %v", err)
	}

	if fc.DeviceURL != "http://192.168.1.40" {
		t.Errorf("DeviceURL = %v, want http://192.168.1.40", fc.DeviceURL)
	}
	if fc.HeartbeatTimeout != "3s" {
		t.Errorf("HeartbeatTimeout = %v, want 3s", fc.HeartbeatTimeout)
	}
	if fc.SliceSize != 2048 {
		t.Errorf("SliceSize = %v, want 2048", fc.SliceSize)
	}
	if fc.Language != "de-CH" {
		t.Errorf("Language = %v, want de-CH", fc.Language)
	}
}

func TestLoadFileConfig_InvalidFile(t *testing.T) {
	_, err := LoadFileConfig("/nonexistent/path/config.toml")
	if err == nil {
		t.Error("LoadFileConfig() expected error for nonexistent file")
	}
}

func TestLoadFileConfig_InvalidTOML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.toml")

	invalidContent := `
device = "http://garden.local"
this is not valid toml
`

	if err := os.WriteFile(configPath, []byte(invalidContent), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	_, err := LoadFileConfig(configPath)
	if err == nil {
		t.Error("LoadFileConfig() expected error for invalid TOML")
	}
}

func TestDefaultConfigPath(t *testing.T) {
	path := DefaultConfigPath()

	if path != "" && !strings.Contains(path, ".wateringctl") {
		t.Errorf("DefaultConfigPath() = %v, should contain .wateringctl", path)
	}
}

func TestFileExists(t *testing.T) {
	tmpDir := t.TempDir()
	existingFile := filepath.Join(tmpDir, "exists.txt")

	if err := os.WriteFile(existingFile, []byte("test"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	if !FileExists(existingFile) {
		t.Error("FileExists() = false, want true for existing file")
	}

	if FileExists(filepath.Join(tmpDir, "nonexistent.txt")) {
		t.Error("FileExists() = true, want false for nonexistent file")
	}
}
